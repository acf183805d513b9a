package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a single validation failure.
type ValidationError struct {
	Field   string // The config field path (e.g., "backend.ssh.hosts")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

var validModes = map[string]bool{"local": true, "ssh": true, "slurm": true}

// Validate checks the configuration and returns every problem found.
// An empty result means the configuration is usable.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	errs = append(errs, c.validateBackend()...)

	if strings.TrimSpace(c.Splitter.PDALBinary) == "" {
		errs = append(errs, ValidationError{
			Field:   "splitter.pdal_binary",
			Value:   c.Splitter.PDALBinary,
			Message: "must not be empty",
		})
	}
	if strings.TrimSpace(c.State.DBPath) == "" {
		errs = append(errs, ValidationError{
			Field:   "state.db_path",
			Value:   c.State.DBPath,
			Message: "must not be empty",
		})
	}

	return errs
}

func (c *Config) validateBackend() []ValidationError {
	var errs []ValidationError
	b := c.Backend

	if !validModes[b.Mode] {
		errs = append(errs, ValidationError{
			Field:   "backend.mode",
			Value:   b.Mode,
			Message: "must be one of local, ssh, slurm",
		})
	}
	if b.Workers < 0 {
		errs = append(errs, ValidationError{
			Field:   "backend.workers",
			Value:   b.Workers,
			Message: "must be zero (one per CPU) or positive",
		})
	}

	if b.Mode == "ssh" && len(b.SSH.Hosts) == 0 {
		errs = append(errs, ValidationError{
			Field:   "backend.ssh.hosts",
			Value:   b.SSH.Hosts,
			Message: "ssh mode requires at least one host",
		})
	}
	if b.SSH.Port < 0 || b.SSH.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "backend.ssh.port",
			Value:   b.SSH.Port,
			Message: "must be between 0 and 65535",
		})
	}
	if b.SSH.WorkersPerHost < 0 {
		errs = append(errs, ValidationError{
			Field:   "backend.ssh.workers_per_host",
			Value:   b.SSH.WorkersPerHost,
			Message: "must not be negative",
		})
	}

	return errs
}
