// Package versions
package versions

var (
	// Version holds the mediastack version. Set at compile time via ldflags.
	Version = "v0.0.0"
)
