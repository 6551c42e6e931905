// Copyright 2021-2024 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package spantrace

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

// ConfigPrefix is the prefix of the environment variables read by LoadConfig.
const ConfigPrefix = "SPANTRACE"

// Config holds the settings of tracing.
type Config struct {
	// ApplicationName is reported in trace logs. SPANTRACE_APPLICATION_NAME.
	ApplicationName string `envconfig:"APPLICATION_NAME" default:"application"`

	// HostName is reported in trace logs. SPANTRACE_HOST_NAME, defaults to the host name of the OS.
	HostName string `envconfig:"HOST_NAME"`

	// TraceHeader overrides the default trace header name. SPANTRACE_TRACE_HEADER.
	TraceHeader string `envconfig:"TRACE_HEADER" default:"THALIATRACE"`

	// LogLevel overrides LOG_LEVEL, if set. SPANTRACE_LOG_LEVEL.
	LogLevel string `envconfig:"LOG_LEVEL"`
}

func hostname() string {
	host, err := os.Hostname()
	if err != nil {
		return "localhost"
	}
	return host
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process(ConfigPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.HostName == "" {
		cfg.HostName = hostname()
	}
	return cfg, nil
}

// DefaultConfig returns configuration loaded from environment variables, or the defaults if those are invalid.
func DefaultConfig() Config {
	cfg, err := LoadConfig()
	if err != nil {
		log.Warn(err)
		return Config{ApplicationName: "application", HostName: hostname(), TraceHeader: TraceHeader}
	}
	return cfg
}

// Apply sets the process wide settings, i.e. log level.
// The trace header name is not process wide; it is taken by NewTracer.
func (cfg Config) Apply() error {
	if cfg.LogLevel != "" {
		if err := SetLogLevel(cfg.LogLevel); err != nil {
			return fmt.Errorf("log level: %w", err)
		}
	}
	return nil
}
