package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds all configurable polling and timeout values.
// These values can be customized via environment variables.
type Timeouts struct {
	PollInterval     time.Duration // Delay between readiness poll attempts
	PollMaxAttempts  int           // Attempt bound for readiness polls
	ClusterWait      time.Duration // Timeout for cluster activation (informational)
	EndpointInterval time.Duration // Delay between load balancer endpoint probes
	EndpointAttempts int           // Attempt bound for load balancer endpoint probes
	TerraformApply   time.Duration // Timeout for terraform apply/destroy invocations
	HelmTimeout      time.Duration // Timeout passed to helm install/upgrade
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - EKSLINE_POLL_INTERVAL (default: 10s)
//   - EKSLINE_POLL_MAX_ATTEMPTS (default: 60)
//   - EKSLINE_TIMEOUT_CLUSTER (default: 25m)
//   - EKSLINE_ENDPOINT_INTERVAL (default: 15s)
//   - EKSLINE_ENDPOINT_MAX_ATTEMPTS (default: 20)
//   - EKSLINE_TIMEOUT_TERRAFORM (default: 45m)
//   - EKSLINE_TIMEOUT_HELM (default: 5m)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		PollInterval:     parseDuration("EKSLINE_POLL_INTERVAL", 10*time.Second),
		PollMaxAttempts:  parseInt("EKSLINE_POLL_MAX_ATTEMPTS", 60),
		ClusterWait:      parseDuration("EKSLINE_TIMEOUT_CLUSTER", 25*time.Minute),
		EndpointInterval: parseDuration("EKSLINE_ENDPOINT_INTERVAL", 15*time.Second),
		EndpointAttempts: parseInt("EKSLINE_ENDPOINT_MAX_ATTEMPTS", 20),
		TerraformApply:   parseDuration("EKSLINE_TIMEOUT_TERRAFORM", 45*time.Minute),
		HelmTimeout:      parseDuration("EKSLINE_TIMEOUT_HELM", 5*time.Minute),
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		return defaultVal
	}

	return n
}
