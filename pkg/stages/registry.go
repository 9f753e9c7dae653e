package stages

import "fmt"

// Registry is an ordered catalog of stages.
type Registry []Stage

// DefaultRegistry returns the full provisioning pipeline in execution order.
func DefaultRegistry() Registry {
	return Registry{
		{ID: "pre_check", DisplayName: "System Compatibility Check", Weight: 0.05},
		{ID: "config_setup", DisplayName: "Basic Configuration Setup", Weight: 0.05},
		{ID: "network_setup", DisplayName: "Network Configuration", Weight: 0.05},
		{ID: "storage_setup", DisplayName: "Storage Configuration", Weight: 0.10},
		{ID: "dependency_install", DisplayName: "Installing Dependencies", Weight: 0.10},
		{ID: "docker_setup", DisplayName: "Setting up Docker", Weight: 0.15},
		{ID: "compose_generation", DisplayName: "Generating Docker Compose Files", Weight: 0.10},
		{ID: "container_creation", DisplayName: "Creating Containers", Weight: 0.20},
		{ID: "service_start", DisplayName: "Starting Services", Weight: 0.10},
		{ID: "post_install", DisplayName: "Post-Installation Configuration", Weight: 0.05},
		{ID: "finalization", DisplayName: "Finalizing Installation", Weight: 0.05},
	}
}

// Validate checks registry consistency: unique non-empty ids and weights
// summing to 1.0 within a small tolerance.
func (r Registry) Validate() error {
	if len(r) == 0 {
		return fmt.Errorf("registry is empty")
	}

	seen := make(map[string]bool, len(r))
	var sum float64
	for _, stage := range r {
		if stage.ID == "" {
			return fmt.Errorf("stage with empty id")
		}
		if seen[stage.ID] {
			return fmt.Errorf("duplicate stage id %q", stage.ID)
		}
		seen[stage.ID] = true
		if stage.Weight < 0 {
			return fmt.Errorf("stage %q has negative weight", stage.ID)
		}
		sum += stage.Weight
	}

	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("stage weights sum to %.3f, want 1.0", sum)
	}
	return nil
}

// IndexOf returns the position of a stage id, or -1 when absent.
func (r Registry) IndexOf(id string) int {
	for i, stage := range r {
		if stage.ID == id {
			return i
		}
	}
	return -1
}

// Get returns the stage with the given id.
func (r Registry) Get(id string) (Stage, bool) {
	if i := r.IndexOf(id); i >= 0 {
		return r[i], true
	}
	return Stage{}, false
}
