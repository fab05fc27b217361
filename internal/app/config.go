package app

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/vk/flowgrid/internal/flow"
)

// DefaultWorkerURL is the address of a locally running worker.
const DefaultWorkerURL = "http://localhost:5000"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	FlowPath       string // flow document, .json or .yaml
	ProcessorsPath string // extra .hcl processor manifests
	StatePath      string // workspace file; empty keeps state in memory

	WorkerURL          string
	Namespace          string
	InsecureSkipVerify bool

	RunNode        string
	CyclePolicy    flow.CyclePolicy
	EnvCredentials bool
	Timeout        time.Duration

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
}

// NewConfig validates cfg and fills defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.FlowPath == "" {
		return nil, errors.New("FlowPath is a required configuration field and cannot be empty")
	}

	if cfg.WorkerURL == "" {
		cfg.WorkerURL = DefaultWorkerURL
	}
	u, err := url.Parse(cfg.WorkerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid worker URL: %w", err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return nil, fmt.Errorf("invalid worker URL %q: scheme must be http, https, ws or wss", cfg.WorkerURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid worker URL %q: missing host", cfg.WorkerURL)
	}

	if cfg.Timeout < 0 {
		return nil, errors.New("timeout cannot be negative")
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		return nil, fmt.Errorf("healthcheck port %d is out of range", cfg.HealthcheckPort)
	}

	return &cfg, nil
}
