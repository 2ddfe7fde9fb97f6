package app

import "errors"

// Config holds everything an App instance needs to run.
type Config struct {
	WorkspacePath string   // HCL workspace definition
	Packages      []string // package names to look up

	LogFormat   string
	LogLevel    string
	WorkerCount int
	KeepGoing   bool
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.WorkspacePath == "" {
		return nil, errors.New("WorkspacePath is a required configuration field and cannot be empty")
	}
	if len(cfg.Packages) == 0 {
		return nil, errors.New("at least one package name is required")
	}
	return &cfg, nil
}
