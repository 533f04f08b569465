package config

import "fmt"

// Validate checks cross-field constraints after loading.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "json":
		if c.Store.Dir == "" {
			return fmt.Errorf("config: store.dir is required for the json backend")
		}
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("config: store.path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("config: unknown store.backend %q (want json or sqlite)", c.Store.Backend)
	}

	if c.Probe.Timeout <= 0 {
		return fmt.Errorf("config: probe.timeout must be positive")
	}
	if c.Probe.MaxBodyBytes <= 0 {
		return fmt.Errorf("config: probe.max_body_bytes must be positive")
	}

	if c.Sweep.Concurrency < 1 {
		return fmt.Errorf("config: sweep.concurrency must be at least 1")
	}
	if c.Sweep.Timeout <= 0 {
		return fmt.Errorf("config: sweep.timeout must be positive")
	}
	if c.Sweep.RatePerSecond < 0 {
		return fmt.Errorf("config: sweep.rate_per_second must not be negative")
	}

	switch c.Logger.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: unknown logger.format %q", c.Logger.Format)
	}

	for i, job := range c.Monitor.Jobs {
		if job.Schedule == "" {
			return fmt.Errorf("config: monitor.jobs[%d]: schedule is required", i)
		}
		if job.ProjectID == "" {
			return fmt.Errorf("config: monitor.jobs[%d]: project_id is required", i)
		}
	}

	return nil
}
