// Package sysinfo reports host facts used by the pre-install checks and the
// system endpoint: memory, disk, CPU, platform, and network identity.
package sysinfo

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
)

// Memory reports physical memory in bytes.
type Memory struct {
	Total     uint64  `json:"total"`
	Available uint64  `json:"available"`
	Used      uint64  `json:"used"`
	Percent   float64 `json:"percent"`
}

// Disk reports usage of the filesystem holding a path, in bytes.
type Disk struct {
	Path    string  `json:"path"`
	Total   uint64  `json:"total"`
	Free    uint64  `json:"free"`
	Used    uint64  `json:"used"`
	Percent float64 `json:"percent"`
}

// Info is the full host report.
type Info struct {
	Hostname           string   `json:"hostname"`
	Platform           string   `json:"platform"`
	Architecture       string   `json:"architecture"`
	CPUCores           int      `json:"cpu_cores"`
	Memory             Memory   `json:"memory"`
	Disk               Disk     `json:"disk"`
	TemperatureCelsius *float64 `json:"temperature_celsius,omitempty"`
	RaspberryPi        bool     `json:"raspberry_pi"`
	PiModel            string   `json:"pi_model,omitempty"`
	DockerInstalled    bool     `json:"docker_installed"`
	TailscaleInstalled bool     `json:"tailscale_installed"`
	PrimaryIP          string   `json:"primary_ip"`
}

var _ Collector = (*collector)(nil)

// Collector gathers host information.
type Collector interface {
	Collect() (Info, error)
	MemoryInfo() (Memory, error)
	DiskInfo(path string) (Disk, error)
	PrimaryIP() (string, error)
}

type collector struct {
	rootDir string
	logger  logrus.FieldLogger
}

type CollectorOption func(*collector)

func WithLogger(logger logrus.FieldLogger) CollectorOption {
	return func(c *collector) {
		c.logger = logger
	}
}

// WithRootDir rebases the /proc and /sys lookups, used by tests.
func WithRootDir(dir string) CollectorOption {
	return func(c *collector) {
		c.rootDir = dir
	}
}

// NewCollector creates a host information collector.
func NewCollector(opts ...CollectorOption) Collector {
	c := &collector{}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = logrus.New()
	}

	return c
}

func (c *collector) Collect() (Info, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return Info{}, fmt.Errorf("get hostname: %w", err)
	}

	memory, err := c.MemoryInfo()
	if err != nil {
		return Info{}, err
	}

	disk, err := c.DiskInfo("/")
	if err != nil {
		return Info{}, err
	}

	info := Info{
		Hostname:        hostname,
		Platform:        runtime.GOOS,
		Architecture:    runtime.GOARCH,
		CPUCores:        runtime.NumCPU(),
		Memory:          memory,
		Disk:            disk,
		DockerInstalled: commandExists("docker"),
	}
	info.TailscaleInstalled = commandExists("tailscale")

	if temp, ok := c.temperature(); ok {
		info.TemperatureCelsius = &temp
	}
	info.RaspberryPi, info.PiModel = c.piModel()

	if ip, err := c.PrimaryIP(); err == nil {
		info.PrimaryIP = ip
	} else {
		c.logger.WithError(err).Debug("could not determine primary IP")
	}

	return info, nil
}

func (c *collector) MemoryInfo() (Memory, error) {
	f, err := os.Open(c.path("/proc/meminfo"))
	if err != nil {
		return Memory{}, fmt.Errorf("open meminfo: %w", err)
	}
	defer f.Close()

	var total, available uint64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			total = kb * 1024
		case "MemAvailable:":
			available = kb * 1024
		}
	}
	if err := scanner.Err(); err != nil {
		return Memory{}, fmt.Errorf("read meminfo: %w", err)
	}
	if total == 0 {
		return Memory{}, fmt.Errorf("meminfo is missing MemTotal")
	}

	used := total - available
	return Memory{
		Total:     total,
		Available: available,
		Used:      used,
		Percent:   float64(used) / float64(total) * 100,
	}, nil
}

func (c *collector) DiskInfo(path string) (Disk, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return Disk{}, fmt.Errorf("statfs %s: %w", path, err)
	}

	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)
	used := total - free

	disk := Disk{Path: path, Total: total, Free: free, Used: used}
	if total > 0 {
		disk.Percent = float64(used) / float64(total) * 100
	}
	return disk, nil
}

// PrimaryIP returns the first non-loopback IPv4 address of the host,
// skipping container bridge interfaces.
func (c *collector) PrimaryIP() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("list interfaces: %w", err)
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if strings.HasPrefix(iface.Name, "docker") || strings.HasPrefix(iface.Name, "br-") || strings.HasPrefix(iface.Name, "veth") {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			if ip := ipnet.IP.To4(); ip != nil {
				return ip.String(), nil
			}
		}
	}
	return "", fmt.Errorf("no usable IPv4 address found")
}

func (c *collector) temperature() (float64, bool) {
	data, err := os.ReadFile(c.path("/sys/class/thermal/thermal_zone0/temp"))
	if err != nil {
		return 0, false
	}
	milli, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, false
	}
	return milli / 1000.0, true
}

func (c *collector) piModel() (bool, string) {
	data, err := os.ReadFile(c.path("/proc/device-tree/model"))
	if err != nil {
		return false, ""
	}
	model := strings.TrimRight(string(data), "\x00\n")
	if !strings.Contains(strings.ToLower(model), "raspberry pi") {
		return false, ""
	}
	return true, model
}

func (c *collector) path(p string) string {
	if c.rootDir == "" {
		return p
	}
	return c.rootDir + p
}

func commandExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
