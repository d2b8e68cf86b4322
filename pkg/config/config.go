// Package config loads the YAML target file and turns it into checks.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/kylerisse/checkhttp/pkg/check"
	httpcheck "github.com/kylerisse/checkhttp/pkg/check/http"
	"github.com/kylerisse/checkhttp/pkg/logging"
	"github.com/kylerisse/checkhttp/pkg/runner"
)

// DefaultType is used for targets without a "type" key.
const DefaultType = httpcheck.TypeName

// File is the parsed configuration file.
//
//	log:
//	  level: info
//	  file: /var/log/checkhttp.log
//	runner:
//	  concurrency: 8
//	  rate: 20
//	defaults:
//	  timeout: 5s
//	targets:
//	  - url: https://example.com
//	    response_time: {warn: 1s, crit: 3s}
type File struct {
	Log      LogConfig        `yaml:"log"`
	Runner   RunnerConfig     `yaml:"runner"`
	Defaults map[string]any   `yaml:"defaults"`
	Targets  []map[string]any `yaml:"targets"`
}

// LogConfig mirrors logging.Config.
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// RunnerConfig configures the runner. Zero values keep the defaults.
type RunnerConfig struct {
	Concurrency int     `yaml:"concurrency"`
	Rate        float64 `yaml:"rate"`
	Burst       int     `yaml:"burst"`
}

// Load reads and validates the file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates a configuration document. Unknown top-level
// keys are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate reports every structural problem at once.
func (f *File) Validate() error {
	var err error

	if len(f.Targets) == 0 {
		err = multierr.Append(err, errors.New("no targets configured"))
	}
	if f.Runner.Concurrency < 0 {
		err = multierr.Append(err, fmt.Errorf("runner.concurrency must not be negative, got %d", f.Runner.Concurrency))
	}
	if f.Runner.Rate < 0 {
		err = multierr.Append(err, fmt.Errorf("runner.rate must not be negative, got %v", f.Runner.Rate))
	}
	if f.Runner.Burst < 0 {
		err = multierr.Append(err, fmt.Errorf("runner.burst must not be negative, got %d", f.Runner.Burst))
	}
	if f.Log.Level != "" {
		if _, perr := logrus.ParseLevel(f.Log.Level); perr != nil {
			err = multierr.Append(err, fmt.Errorf("log.level: %w", perr))
		}
	}
	switch strings.ToLower(f.Log.Format) {
	case "", "text", "json":
	default:
		err = multierr.Append(err, fmt.Errorf("log.format must be text or json, got %q", f.Log.Format))
	}

	for i, target := range f.Targets {
		if t, ok := target["type"]; ok {
			if s, ok := t.(string); !ok || s == "" {
				err = multierr.Append(err, fmt.Errorf("target %d: type must be a non-empty string", i))
			}
		}
	}

	return err
}

// ApplyEnv lets CHECKHTTP_LOG_LEVEL and CHECKHTTP_LOG_FILE override the
// file's log settings.
func (f *File) ApplyEnv() {
	if v := os.Getenv("CHECKHTTP_LOG_LEVEL"); v != "" {
		f.Log.Level = v
	}
	if v := os.Getenv("CHECKHTTP_LOG_FILE"); v != "" {
		f.Log.File = v
	}
}

// Logging returns the logger configuration, filling in defaults.
func (f *File) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	if f.Log.Level != "" {
		cfg.Level = f.Log.Level
	}
	if f.Log.Format != "" {
		cfg.Format = f.Log.Format
	}
	cfg.File = f.Log.File
	if f.Log.MaxSizeMB > 0 {
		cfg.MaxSizeMB = f.Log.MaxSizeMB
	}
	if f.Log.MaxBackups > 0 {
		cfg.MaxBackups = f.Log.MaxBackups
	}
	if f.Log.MaxAgeDays > 0 {
		cfg.MaxAgeDays = f.Log.MaxAgeDays
	}
	cfg.Compress = f.Log.Compress
	return cfg
}

// RunnerOptions converts the runner section into runner options.
func (f *File) RunnerOptions() []runner.Option {
	var opts []runner.Option
	if f.Runner.Concurrency > 0 {
		opts = append(opts, runner.WithConcurrency(f.Runner.Concurrency))
	}
	if f.Runner.Rate > 0 {
		burst := f.Runner.Burst
		if burst == 0 {
			burst = max(f.Runner.Concurrency, 1)
		}
		opts = append(opts, runner.WithRate(f.Runner.Rate, burst))
	}
	return opts
}

// Checks builds one check per target through reg. Each target is merged
// over the defaults. All target errors are reported together.
func (f *File) Checks(reg *check.Registry, logger *logrus.Logger) ([]check.Check, error) {
	var errs error
	checks := make([]check.Check, 0, len(f.Targets))

	for i, target := range f.Targets {
		typeName, cfg := f.targetConfig(target)
		if logger != nil {
			cfg["logger"] = logger
		}

		chk, err := reg.Create(typeName, cfg)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("target %d (%s): %w", i, describe(target), err))
			continue
		}
		checks = append(checks, chk)
	}

	if errs != nil {
		return nil, errs
	}
	return checks, nil
}

func (f *File) targetConfig(target map[string]any) (string, map[string]any) {
	cfg := make(map[string]any, len(f.Defaults)+len(target))
	for k, v := range f.Defaults {
		cfg[k] = v
	}
	for k, v := range target {
		cfg[k] = v
	}

	typeName := DefaultType
	if s, ok := cfg["type"].(string); ok && s != "" {
		typeName = s
	}
	delete(cfg, "type")
	return typeName, cfg
}

func describe(target map[string]any) string {
	for _, key := range []string{"name", "url"} {
		if s, ok := target[key].(string); ok && s != "" {
			return s
		}
	}
	return "unnamed"
}

// DefaultRegistry returns a registry with all built-in check types.
func DefaultRegistry() *check.Registry {
	reg := check.NewRegistry()
	if err := reg.Register(httpcheck.TypeName, httpcheck.Factory); err != nil {
		panic(err)
	}
	return reg
}
