// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tribroker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inTempDir runs the test from an empty directory so that no stray .env
// file is picked up.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestConfigDefaults(t *testing.T) {
	inTempDir(t)

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, "random", cfg.Policy)
	assert.Equal(t, 8888, cfg.Port)
	assert.Equal(t, 1_000_000, cfg.Target)
	assert.Equal(t, 3, cfg.Subscribers)
}

func TestConfigFromEnv(t *testing.T) {
	inTempDir(t)
	t.Setenv(EnvPolicy, "ponderado")
	t.Setenv(EnvHost, "0.0.0.0")
	t.Setenv(EnvPort, "9000")
	t.Setenv(EnvTarget, "500")
	t.Setenv(EnvSubscribers, "5")
	t.Setenv(EnvClientID, "worker-1")
	t.Setenv(EnvMetricsAddr, ":2112")
	t.Setenv(EnvLogLevel, "debug")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, Config{
		Policy:      "ponderado",
		Host:        "0.0.0.0",
		Port:        9000,
		Target:      500,
		Subscribers: 5,
		ClientID:    "worker-1",
		MetricsAddr: ":2112",
		LogLevel:    LogLevelDebug,
	}, cfg)

	b, err := NewBroker(cfg.Options()...)
	require.NoError(t, err)
	assert.Equal(t, PolicyWeighted, b.Policy())
	assert.Equal(t, 500, b.State().Target())
}

func TestConfigDotEnv(t *testing.T) {
	dir := inTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TRIBROKER_POLICY=conditional\nTRIBROKER_TARGET=42\n"), 0o600))
	// The process environment wins over the file.
	t.Setenv(EnvTarget, "7")
	// godotenv sets what it loads; make sure the test leaves no trace.
	t.Setenv(EnvPolicy, "")
	os.Unsetenv(EnvPolicy)

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "conditional", cfg.Policy)
	assert.Equal(t, 7, cfg.Target)
}

func TestConfigErrors(t *testing.T) {
	for name, env := range map[string][2]string{
		"policy":    {EnvPolicy, "lifo"},
		"port":      {EnvPort, "eighty"},
		"target":    {EnvTarget, "1e6"},
		"log-level": {EnvLogLevel, "verbose"},
	} {
		t.Run(name, func(t *testing.T) {
			inTempDir(t)
			t.Setenv(env[0], env[1])
			_, err := ConfigFromEnv()
			assert.Error(t, err)
		})
	}

	inTempDir(t)
	t.Setenv(EnvPolicy, "lifo")
	_, err := ConfigFromEnv()
	assert.ErrorIs(t, err, ErrUnknownPolicy)
}
