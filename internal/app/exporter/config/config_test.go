package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParse_NothingToProbe(t *testing.T) {
	_, err := parse("exporter", nil, env(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to probe")
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := parse("exporter", []string{"-u", "http://localhost:8080/metrics-json"}, env(nil))
	require.NoError(t, err)

	assert.Equal(t, ":9102", cfg.ServerAddress)
	assert.Equal(t, 30*time.Second, cfg.RefreshInterval)
	assert.Equal(t, 5*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "http://localhost:8080/metrics-json", cfg.MetricsURL)
	assert.Empty(t, cfg.Services)
	assert.Empty(t, cfg.PostgresTargets)
}

func TestParse_Flags(t *testing.T) {
	args := []string{
		"-a", "127.0.0.1:9200",
		"-i", "10",
		"-t", "2",
		"-s", "nginx, sshd,,",
		"-pg", "main=postgres://user@db:5432/app?sslmode=disable; replica=postgres://user@db2/app",
		"-l", "debug",
	}
	cfg, err := parse("exporter", args, env(nil))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9200", cfg.ServerAddress)
	assert.Equal(t, 10*time.Second, cfg.RefreshInterval)
	assert.Equal(t, 2*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, []string{"nginx", "sshd"}, cfg.Services)
	assert.Equal(t, map[string]string{
		"main":    "postgres://user@db:5432/app?sslmode=disable",
		"replica": "postgres://user@db2/app",
	}, cfg.PostgresTargets)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParse_EnvOverridesFlags(t *testing.T) {
	args := []string{"-a", ":9000", "-i", "10", "-s", "nginx"}
	cfg, err := parse("exporter", args, env(map[string]string{
		"ADDRESS":          ":9300",
		"REFRESH_INTERVAL": "3",
		"PROBE_TIMEOUT":    "1",
		"SERVICES":         "postgresql,redis",
		"LOG_LEVEL":        "warn",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":9300", cfg.ServerAddress)
	assert.Equal(t, 3*time.Second, cfg.RefreshInterval)
	assert.Equal(t, time.Second, cfg.ProbeTimeout)
	assert.Equal(t, []string{"postgresql", "redis"}, cfg.Services)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestParse_EmptyEnvKeepsDefaults(t *testing.T) {
	cfg, err := parse("exporter", []string{"-s", "nginx"}, env(map[string]string{
		"REFRESH_INTERVAL": "",
		"ADDRESS":          "",
	}))
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.RefreshInterval)
	assert.Equal(t, ":9102", cfg.ServerAddress)
}

func TestParse_MalformedEnvDurations(t *testing.T) {
	for _, key := range []string{"REFRESH_INTERVAL", "PROBE_TIMEOUT"} {
		t.Run(key, func(t *testing.T) {
			_, err := parse("exporter", []string{"-s", "nginx"}, env(map[string]string{key: "30s"}))
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestParse_JSONFile(t *testing.T) {
	path := writeFile(t, "exporter.json", `{
		"address": ":9500",
		"refresh_interval": "1500ms",
		"probe_timeout": "750ms",
		"metrics_url": "http://app:8080/metrics-json",
		"services": ["nginx"],
		"postgres": {"main": "postgres://db/app"},
		"log_level": "error"
	}`)

	cfg, err := parse("exporter", []string{"-c", path}, env(nil))
	require.NoError(t, err)

	assert.Equal(t, ":9500", cfg.ServerAddress)
	assert.Equal(t, 1500*time.Millisecond, cfg.RefreshInterval)
	assert.Equal(t, 750*time.Millisecond, cfg.ProbeTimeout)
	assert.Equal(t, "http://app:8080/metrics-json", cfg.MetricsURL)
	assert.Equal(t, []string{"nginx"}, cfg.Services)
	assert.Equal(t, map[string]string{"main": "postgres://db/app"}, cfg.PostgresTargets)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestParse_YAMLFileFromEnv(t *testing.T) {
	path := writeFile(t, "exporter.yaml", `
address: ":9600"
refresh_interval: 15s
services:
  - nginx
  - sshd
`)

	cfg, err := parse("exporter", []string{"-a", ":9700"}, env(map[string]string{"CONFIG": path}))
	require.NoError(t, err)

	// flags beat the file
	assert.Equal(t, ":9700", cfg.ServerAddress)
	assert.Equal(t, 15*time.Second, cfg.RefreshInterval)
	assert.Equal(t, 5*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, []string{"nginx", "sshd"}, cfg.Services)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  map[string]string
	}{
		{name: "bad pg flag", args: []string{"-pg", "no-equals-sign"}},
		{name: "bad pg env", args: []string{"-s", "nginx"}, env: map[string]string{"POSTGRES_TARGETS": "=postgres://db"}},
		{name: "unknown flag", args: []string{"-s", "nginx", "-z"}},
		{name: "missing file", args: []string{"-c", filepath.Join(t.TempDir(), "absent.json")}},
		{name: "negative interval", args: []string{"-s", "nginx", "-i", "-1"}},
		{name: "zero timeout", args: []string{"-s", "nginx", "-t", "0"}},
		{name: "empty address", args: []string{"-s", "nginx", "-a", ""}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parse("exporter", tc.args, env(tc.env))
			assert.Error(t, err)
		})
	}
}

func TestParse_BadFile(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{name: "broken json", file: "c.json", content: `{"address":`},
		{name: "broken yaml", file: "c.yml", content: "services: [nginx"},
		{name: "bad duration", file: "c.json", content: `{"refresh_interval": "often", "services": ["nginx"]}`},
		{name: "bad timeout", file: "c.yaml", content: "probe_timeout: 5 seconds\nservices: [nginx]\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, tc.file, tc.content)
			_, err := parse("exporter", []string{"-config=" + path}, env(nil))
			assert.Error(t, err)
		})
	}
}

func TestFindConfigPathFromArgs(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{args: []string{"-c", "a.json"}, want: "a.json"},
		{args: []string{"-a", ":1", "-config", "b.yaml"}, want: "b.yaml"},
		{args: []string{"--config=c.yml"}, want: "c.yml"},
		{args: []string{"-c=d.json"}, want: "d.json"},
		{args: []string{"-c"}, want: ""},
		{args: nil, want: ""},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, findConfigPathFromArgs(tc.args), "%v", tc.args)
	}
}

func TestParseTargets(t *testing.T) {
	got, err := parseTargets("a=host=db user=x; b = postgres://db/b ;")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "host=db user=x", "b": "postgres://db/b"}, got)
	assert.Equal(t, "a=host=db user=x;b=postgres://db/b", formatTargets(got))
}
