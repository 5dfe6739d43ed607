package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ServerAddress   string
	RefreshInterval time.Duration
	ProbeTimeout    time.Duration
	// URL JSON-документа с агрегированными метриками; если пусто, проба отключена
	MetricsURL string
	// Юниты systemd для проверки
	Services []string
	// Имя цели -> DSN PostgreSQL
	PostgresTargets map[string]string
	LogLevel        string
}

// fileConfig описывает формат JSON/YAML-конфига.
// Поля указаны как указатели для различения отсутствующих значений.
type fileConfig struct {
	Address         *string           `json:"address" yaml:"address"`
	RefreshInterval *string           `json:"refresh_interval" yaml:"refresh_interval"`
	ProbeTimeout    *string           `json:"probe_timeout" yaml:"probe_timeout"`
	MetricsURL      *string           `json:"metrics_url" yaml:"metrics_url"`
	Services        []string          `json:"services" yaml:"services"`
	Postgres        map[string]string `json:"postgres" yaml:"postgres"`
	LogLevel        *string           `json:"log_level" yaml:"log_level"`
}

func defaults() *Config {
	return &Config{
		ServerAddress:   ":9102",
		RefreshInterval: 30 * time.Second,
		ProbeTimeout:    5 * time.Second,
		LogLevel:        "info",
		PostgresTargets: map[string]string{},
	}
}

// NewConfig читает конфиг-файл, флаги и переменные окружения (в порядке
// возрастания приоритета) и возвращает проверенную конфигурацию экспортера.
func NewConfig() (*Config, error) {
	return parse(os.Args[0], os.Args[1:], os.LookupEnv)
}

func parse(program string, args []string, lookupEnv func(string) (string, bool)) (*Config, error) {
	cfg := defaults()

	// 1) Путь к конфигу ищем до разбора флагов: значения из файла служат
	// дефолтами для флагов.
	configPath := findConfigPathFromArgs(args)
	if configPath == "" {
		configPath, _ = lookupEnv("CONFIG")
	}
	if configPath != "" {
		if err := loadFile(cfg, configPath); err != nil {
			return nil, err
		}
	}

	// 2) Флаги
	fs := flag.NewFlagSet(program, flag.ContinueOnError)
	var configPathFlag string
	fs.StringVar(&configPathFlag, "c", configPath, "Path to JSON or YAML config file")
	fs.StringVar(&configPathFlag, "config", configPath, "Path to JSON or YAML config file")
	fs.StringVar(&cfg.ServerAddress, "a", cfg.ServerAddress, "Exporter listen address")
	refresh := fs.Int("i", int(cfg.RefreshInterval.Seconds()), "Refresh interval in seconds")
	timeout := fs.Int("t", int(cfg.ProbeTimeout.Seconds()), "Probe timeout in seconds")
	fs.StringVar(&cfg.MetricsURL, "u", cfg.MetricsURL, "URL of the JSON metrics document")
	services := fs.String("s", strings.Join(cfg.Services, ","), "Comma-separated systemd units to check")
	pg := fs.String("pg", formatTargets(cfg.PostgresTargets), "PostgreSQL targets as name=dsn;name=dsn")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "Log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Флаги применяем только явно заданные, чтобы не терять точность
	// интервалов из файла.
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["i"] {
		cfg.RefreshInterval = time.Duration(*refresh) * time.Second
	}
	if set["t"] {
		cfg.ProbeTimeout = time.Duration(*timeout) * time.Second
	}
	if set["s"] {
		cfg.Services = splitList(*services)
	}
	if set["pg"] {
		targets, err := parseTargets(*pg)
		if err != nil {
			return nil, err
		}
		cfg.PostgresTargets = targets
	}

	// 3) Переменные окружения
	if v, ok := lookupEnv("ADDRESS"); ok && v != "" {
		cfg.ServerAddress = v
	}
	if v, ok := lookupEnv("REFRESH_INTERVAL"); ok && v != "" {
		ri, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid REFRESH_INTERVAL %q, want seconds: %w", v, err)
		}
		cfg.RefreshInterval = time.Duration(ri) * time.Second
	}
	if v, ok := lookupEnv("PROBE_TIMEOUT"); ok && v != "" {
		pt, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PROBE_TIMEOUT %q, want seconds: %w", v, err)
		}
		cfg.ProbeTimeout = time.Duration(pt) * time.Second
	}
	if v, ok := lookupEnv("METRICS_URL"); ok && v != "" {
		cfg.MetricsURL = v
	}
	if v, ok := lookupEnv("SERVICES"); ok && v != "" {
		cfg.Services = splitList(v)
	}
	if v, ok := lookupEnv("POSTGRES_TARGETS"); ok && v != "" {
		targets, err := parseTargets(v)
		if err != nil {
			return nil, err
		}
		cfg.PostgresTargets = targets
	}
	if v, ok := lookupEnv("LOG_LEVEL"); ok && v != "" {
		cfg.LogLevel = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings the exporter cannot run with.
func (c *Config) Validate() error {
	if c.ServerAddress == "" {
		return errors.New("listen address must not be empty")
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("refresh interval must be positive, got %s", c.RefreshInterval)
	}
	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("probe timeout must be positive, got %s", c.ProbeTimeout)
	}
	if c.MetricsURL == "" && len(c.Services) == 0 && len(c.PostgresTargets) == 0 {
		return errors.New("nothing to probe: set a metrics URL, services or postgres targets")
	}
	return nil
}

func findConfigPathFromArgs(args []string) string {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "-c" || arg == "-config" || arg == "--config" {
			if i+1 < len(args) {
				return args[i+1]
			}
			return ""
		}
		if strings.HasPrefix(arg, "-c=") {
			return strings.TrimPrefix(arg, "-c=")
		}
		if strings.HasPrefix(arg, "-config=") || strings.HasPrefix(arg, "--config=") {
			if idx := strings.Index(arg, "="); idx != -1 {
				return arg[idx+1:]
			}
		}
	}
	return ""
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return applyFileConfig(cfg, fc)
}

func applyFileConfig(cfg *Config, fc fileConfig) error {
	if fc.Address != nil && *fc.Address != "" {
		cfg.ServerAddress = *fc.Address
	}
	if fc.RefreshInterval != nil && *fc.RefreshInterval != "" {
		d, err := time.ParseDuration(*fc.RefreshInterval)
		if err != nil {
			return fmt.Errorf("invalid refresh_interval: %w", err)
		}
		cfg.RefreshInterval = d
	}
	if fc.ProbeTimeout != nil && *fc.ProbeTimeout != "" {
		d, err := time.ParseDuration(*fc.ProbeTimeout)
		if err != nil {
			return fmt.Errorf("invalid probe_timeout: %w", err)
		}
		cfg.ProbeTimeout = d
	}
	if fc.MetricsURL != nil {
		cfg.MetricsURL = *fc.MetricsURL
	}
	if fc.Services != nil {
		cfg.Services = fc.Services
	}
	if fc.Postgres != nil {
		cfg.PostgresTargets = fc.Postgres
	}
	if fc.LogLevel != nil && *fc.LogLevel != "" {
		cfg.LogLevel = *fc.LogLevel
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseTargets parses "name=dsn;name=dsn". DSNs may contain '=' themselves,
// so only the first '=' of each entry separates the name.
func parseTargets(s string) (map[string]string, error) {
	out := make(map[string]string)
	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, dsn, ok := strings.Cut(entry, "=")
		name, dsn = strings.TrimSpace(name), strings.TrimSpace(dsn)
		if !ok || name == "" || dsn == "" {
			return nil, fmt.Errorf("invalid postgres target %q, want name=dsn", entry)
		}
		out[name] = dsn
	}
	return out, nil
}

func formatTargets(m map[string]string) string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+m[name])
	}
	return strings.Join(parts, ";")
}
