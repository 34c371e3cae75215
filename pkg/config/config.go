// Package config holds the runner configuration, read from an optional
// rcptr.yaml and overridden by command line flags.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultFile is looked up in the working directory when no path is given
const DefaultFile = "rcptr.yaml"

type LogLevel int

const (
	unknownLevel LogLevel = iota
	ERROR
	INFO
	DEBUG
)

func (l LogLevel) String() string {
	switch l {
	case ERROR:
		return "ERROR"
	case INFO:
		return "INFO"
	case DEBUG:
		return "DEBUG"
	}
	return "UNKNOWN"
}

func ParseLogLevel(raw string) (LogLevel, error) {
	switch strings.ToUpper(raw) {
	case "ERROR":
		return ERROR, nil
	case "INFO":
		return INFO, nil
	case "DEBUG":
		return DEBUG, nil
	}
	return INFO, errors.Errorf("unknown log level '%s', valid values are: [%s] (case-insensitive)",
		raw, strings.Join([]string{ERROR.String(), INFO.String(), DEBUG.String()}, ", "))
}

type LogFormat int

const (
	unknownFormat LogFormat = iota
	TEXT
	JSON
)

func (f LogFormat) String() string {
	switch f {
	case TEXT:
		return "TEXT"
	case JSON:
		return "JSON"
	}
	return "UNKNOWN"
}

func ParseLogFormat(raw string) (LogFormat, error) {
	switch strings.ToUpper(raw) {
	case "TEXT":
		return TEXT, nil
	case "JSON":
		return JSON, nil
	}
	return TEXT, errors.Errorf("unknown log format '%s', valid values are: [%s] (case-insensitive)",
		raw, strings.Join([]string{TEXT.String(), JSON.String()}, ", "))
}

// Config represents rcptr.yaml
type Config struct {
	LogLevel  string `yaml:"logLevel,omitempty"`
	LogFormat string `yaml:"logFormat,omitempty"`
	// Metrics prints the lifecycle counters after each run
	Metrics bool `yaml:"metrics,omitempty"`
	// FailFast stops a script at the first failed expectation
	FailFast bool `yaml:"failFast,omitempty"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		LogLevel:  INFO.String(),
		LogFormat: TEXT.String(),
	}
}

// Load reads the file at path. An empty path means DefaultFile, which may
// be absent; an explicitly named file must exist.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid %s", path)
	}
	return cfg, nil
}

// Validate reports every invalid field at once
func (c *Config) Validate() error {
	var result *multierror.Error
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		result = multierror.Append(result, err)
	}
	if _, err := ParseLogFormat(c.LogFormat); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// Logger builds a logr.Logger writing to w. DEBUG enables V(1), which is
// where handle lifecycle events are logged; ERROR drops info lines.
func (c *Config) Logger(w io.Writer) (logr.Logger, error) {
	level, err := ParseLogLevel(c.LogLevel)
	if err != nil {
		return logr.Discard(), err
	}
	format, err := ParseLogFormat(c.LogFormat)
	if err != nil {
		return logr.Discard(), err
	}

	opts := funcr.Options{}
	if level == DEBUG {
		opts.Verbosity = 1
	}

	var log logr.Logger
	switch format {
	case JSON:
		log = funcr.NewJSON(func(obj string) {
			fmt.Fprintln(w, obj)
		}, opts)
	default:
		log = funcr.New(func(prefix, args string) {
			if prefix != "" {
				fmt.Fprintf(w, "%s: %s\n", prefix, args)
				return
			}
			fmt.Fprintln(w, args)
		}, opts)
	}
	if level == ERROR {
		log = logr.New(errorOnly{log.GetSink()})
	}
	return log, nil
}

// errorOnly passes errors through and drops info lines
type errorOnly struct {
	logr.LogSink
}

func (e errorOnly) Enabled(int) bool { return false }

func (e errorOnly) WithValues(kv ...interface{}) logr.LogSink {
	return errorOnly{e.LogSink.WithValues(kv...)}
}

func (e errorOnly) WithName(name string) logr.LogSink {
	return errorOnly{e.LogSink.WithName(name)}
}
