// Package config loads the YAML configuration for cmd/exerciser: which
// service to target, how to authenticate, and which operations to run on
// what schedule.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level exerciser configuration.
type Config struct {
	Service    ServiceConfig `yaml:"service"`
	Operations []Operation   `yaml:"operations"`
	Metrics    MetricsConfig `yaml:"metrics"`
	Logging    LoggingConfig `yaml:"logging"`
	Jitter     JitterConfig  `yaml:"jitter"` // global default, overridable per operation
}

// ServiceConfig names the target service and how to reach and
// authenticate against it. AccessKeyEnv/SecretKeyEnv/SessionTokenEnv name
// environment variables rather than embedding key material directly, so
// a committed config file never carries a secret.
type ServiceConfig struct {
	ServiceID       string `yaml:"service_id"`
	SigningName     string `yaml:"signing_name"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	Protocol        string `yaml:"protocol"` // json | rest-json | rest-xml | query | ec2-query
	APIVersion      string `yaml:"api_version"`
	AccessKeyEnv    string `yaml:"access_key_env"`
	SecretKeyEnv    string `yaml:"secret_key_env"`
	SessionTokenEnv string `yaml:"session_token_env"`
	CalculateMD5    bool   `yaml:"calculate_md5"`
	// S3DisableChunkedUploads forces streaming bodies to be buffered and
	// signed as a single UNSIGNED-PAYLOAD request instead of framed
	// aws-chunked signing.
	S3DisableChunkedUploads bool `yaml:"s3_disable_chunked_uploads"`
}

// Operation describes one request to exercise on a schedule: the wire
// shape is supplied directly (method, path template, raw body) rather
// than through a generated input shape, since the exerciser has no
// per-service code generation step of its own.
type Operation struct {
	Name     string            `yaml:"name"`
	Schedule string            `yaml:"schedule"`
	Enabled  bool              `yaml:"enabled"`
	Method   string            `yaml:"method"`
	Path     string            `yaml:"path"`
	Query    map[string]string `yaml:"query,omitempty"`
	Headers  map[string]string `yaml:"headers,omitempty"`
	Body     BodySpec          `yaml:"body,omitempty"`
	Jitter   *JitterConfig     `yaml:"jitter,omitempty"`
	Checksum ChecksumSpec      `yaml:"checksum,omitempty"`
}

// ChecksumSpec mirrors checksum.OperationChecksumOptions as YAML so an
// exerciser operation can declare which checksum trait its target
// operation exposes.
type ChecksumSpec struct {
	Header            bool `yaml:"header,omitempty"`
	Required          bool `yaml:"required,omitempty"`
	MD5ChecksumHeader bool `yaml:"md5_header,omitempty"`
}

// BodySpec is a literal request body plus an optional size override —
// when Size is set and Literal is empty, a body of that many zero
// bytes is generated at run time, for exercising streaming/chunked
// uploads without checking megabytes of fixture data into the config.
type BodySpec struct {
	Literal string   `yaml:"literal,omitempty"`
	Size    *ByteSize `yaml:"size,omitempty"`
}

// ByteSize accepts either a bare integer or a human-readable size like
// "5MB" in YAML.
type ByteSize int64

func (bs *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	var intVal int64
	if err := value.Decode(&intVal); err == nil {
		*bs = ByteSize(intVal)
		return nil
	}

	var strVal string
	if err := value.Decode(&strVal); err != nil {
		return fmt.Errorf("size must be a number or string like '5MB': %w", err)
	}
	size, err := parseByteSize(strVal)
	if err != nil {
		return err
	}
	*bs = ByteSize(size)
	return nil
}

func (bs ByteSize) Int64() int64 { return int64(bs) }

func (bs ByteSize) String() string {
	bytes := int64(bs)
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)
	switch {
	case bytes >= GB && bytes%GB == 0:
		return fmt.Sprintf("%dGB", bytes/GB)
	case bytes >= MB && bytes%MB == 0:
		return fmt.Sprintf("%dMB", bytes/MB)
	case bytes >= KB && bytes%KB == 0:
		return fmt.Sprintf("%dKB", bytes/KB)
	default:
		return fmt.Sprintf("%dB", bytes)
	}
}

func parseByteSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	var numStr, unitStr string
	for i, c := range s {
		if (c >= '0' && c <= '9') || c == '.' {
			continue
		}
		numStr = s[:i]
		unitStr = s[i:]
		break
	}
	if unitStr == "" {
		numStr = s
		unitStr = "B"
	}

	num, err := strconv.ParseFloat(strings.TrimSpace(numStr), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number in size %q: %w", s, err)
	}

	unitStr = strings.TrimSpace(strings.ToUpper(unitStr))
	var multiplier int64
	switch unitStr {
	case "B", "":
		multiplier = 1
	case "KB", "K":
		multiplier = 1024
	case "MB", "M":
		multiplier = 1024 * 1024
	case "GB", "G":
		multiplier = 1024 * 1024 * 1024
	default:
		return 0, fmt.Errorf("unknown size unit %q (supported: B, KB, MB, GB)", unitStr)
	}
	return int64(num * float64(multiplier)), nil
}

// JitterConfig holds jitter configuration; Enabled is a pointer so a
// child (operation-level) config can distinguish "not set, inherit" from
// an explicit false.
type JitterConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Max     string `yaml:"max,omitempty"` // duration ("30s") or percentage ("10%")
}

func (j *JitterConfig) IsEnabled() bool {
	if j == nil || j.Enabled == nil {
		return false
	}
	return *j.Enabled
}

// Effective merges j over parent, with j's explicitly-set fields
// winning.
func (j *JitterConfig) Effective(parent JitterConfig) JitterConfig {
	result := parent
	if j != nil {
		if j.Enabled != nil {
			result.Enabled = j.Enabled
		}
		if j.Max != "" {
			result.Max = j.Max
		}
	}
	return result
}

// ParseMax resolves Max to a duration; a percentage value is scaled
// against scheduleInterval.
func (j *JitterConfig) ParseMax(scheduleInterval time.Duration) (time.Duration, error) {
	if j == nil || j.Max == "" {
		return 0, nil
	}
	max := strings.TrimSpace(j.Max)

	if strings.HasSuffix(max, "%") {
		percent, err := strconv.ParseFloat(strings.TrimSuffix(max, "%"), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid jitter percentage %q: %w", max, err)
		}
		if percent < 0 || percent > 100 {
			return 0, fmt.Errorf("jitter percentage must be between 0 and 100, got %v", percent)
		}
		if scheduleInterval <= 0 {
			return 0, fmt.Errorf("cannot use percentage jitter without a schedule interval")
		}
		return time.Duration(float64(scheduleInterval) * percent / 100), nil
	}
	return time.ParseDuration(max)
}

// ParseCronInterval estimates the interval between cron executions for
// the common patterns ("*/N * * * *", "0 */N * * *", fixed minute/hour).
func ParseCronInterval(schedule string) (time.Duration, error) {
	parts := strings.Fields(schedule)
	if len(parts) < 5 {
		return 0, fmt.Errorf("invalid cron schedule: %s", schedule)
	}
	minute, hour := parts[0], parts[1]

	if strings.HasPrefix(minute, "*/") {
		if n, err := strconv.Atoi(strings.TrimPrefix(minute, "*/")); err == nil && n > 0 {
			return time.Duration(n) * time.Minute, nil
		}
	}
	if minute == "0" && strings.HasPrefix(hour, "*/") {
		if n, err := strconv.Atoi(strings.TrimPrefix(hour, "*/")); err == nil && n > 0 {
			return time.Duration(n) * time.Hour, nil
		}
	}
	if _, err := strconv.Atoi(minute); err == nil && hour == "*" {
		return time.Hour, nil
	}
	if _, err := strconv.Atoi(minute); err == nil {
		if _, err := strconv.Atoi(hour); err == nil {
			return 24 * time.Hour, nil
		}
	}
	return time.Minute, nil
}

// MetricsConfig holds the /metrics HTTP server configuration.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// LoggingConfig holds the logger configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads path, expands ${ENV_VAR} references, and parses it as a
// Config, filling in defaults for anything left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	if cfg.Service.Region == "" {
		cfg.Service.Region = "us-east-1"
	}
	if cfg.Service.Protocol == "" {
		cfg.Service.Protocol = "rest-json"
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 8080
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	return &cfg, nil
}

// Credentials resolves the access key/secret/session token named by the
// service's *Env fields from the process environment.
func (c *Config) Credentials() (accessKey, secretKey, sessionToken string) {
	return os.Getenv(c.Service.AccessKeyEnv), os.Getenv(c.Service.SecretKeyEnv), os.Getenv(c.Service.SessionTokenEnv)
}
