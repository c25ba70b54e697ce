// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tribroker

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables read by ConfigFromEnv.
const (
	EnvPolicy      = "TRIBROKER_POLICY"
	EnvHost        = "TRIBROKER_HOST"
	EnvPort        = "TRIBROKER_PORT"
	EnvTarget      = "TRIBROKER_TARGET"
	EnvSubscribers = "TRIBROKER_SUBSCRIBERS"
	EnvClientID    = "TRIBROKER_CLIENT_ID"
	EnvMetricsAddr = "TRIBROKER_METRICS_ADDR"
	EnvLogLevel    = "TRIBROKER_LOG_LEVEL"
)

const defaultSubscribers = 3

// Config is the process-level configuration shared by the example programs.
type Config struct {
	Policy      string
	Host        string
	Port        int
	Target      int
	Subscribers int
	ClientID    string
	MetricsAddr string
	LogLevel    LogLevel
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Policy:      DefaultPolicy,
		Host:        DefaultHost,
		Port:        DefaultPort,
		Target:      DefaultTarget,
		Subscribers: defaultSubscribers,
		LogLevel:    LogLevelInfo,
	}
}

// ConfigFromEnv loads an optional .env file from the working directory and
// overlays the TRIBROKER_* variables on DefaultConfig. Variables already set
// in the environment win over the file.
func ConfigFromEnv() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("tribroker: could not load .env: %w", err)
	}

	cfg := DefaultConfig()
	if v, ok := os.LookupEnv(EnvPolicy); ok {
		cfg.Policy = v
	}
	if v, ok := os.LookupEnv(EnvHost); ok {
		cfg.Host = v
	}
	if v, ok := os.LookupEnv(EnvClientID); ok {
		cfg.ClientID = v
	}
	if v, ok := os.LookupEnv(EnvMetricsAddr); ok {
		cfg.MetricsAddr = v
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		lvl, err := ParseLogLevel(v)
		if err != nil {
			return Config{}, err
		}
		cfg.LogLevel = lvl
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{EnvPort, &cfg.Port},
		{EnvTarget, &cfg.Target},
		{EnvSubscribers, &cfg.Subscribers},
	}
	for _, iv := range ints {
		v, ok := os.LookupEnv(iv.name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("tribroker: invalid %s=%q: %w", iv.name, v, err)
		}
		*iv.dst = n
	}

	if _, err := ParsePolicy(cfg.Policy); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Options turns the configuration into broker options.
func (c Config) Options() []Option {
	return []Option{
		WithPolicy(c.Policy),
		WithHost(c.Host),
		WithPort(c.Port),
		WithTarget(c.Target),
		WithLogger(NewLogger(c.LogLevel)),
	}
}
