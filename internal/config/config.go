// Package config defines the normalized configuration surface the agent
// consumes. The core never parses a config file or flat env vars itself
// — that lives in cmd/memguard — but it does apply legacy-field
// normalization and its own defaulting/validation.
package config

import (
	"fmt"
	"time"

	"github.com/dmitriimaksimovdevelop/memguard/internal/agenterr"
)

type MonitoringConfig struct {
	Interval         time.Duration `yaml:"interval"`
	Detailed         bool          `yaml:"detailed"`
	GC               bool          `yaml:"gc"`
	Processes        bool          `yaml:"processes"`
	AdaptiveInterval bool          `yaml:"adaptiveInterval"`
	MinInterval      time.Duration `yaml:"minInterval"`
	MaxInterval      time.Duration `yaml:"maxInterval"`
}

type ThresholdConfig struct {
	Heap         float64 `yaml:"heap"`
	RSS          float64 `yaml:"rss"`
	External     float64 `yaml:"external"`
	Growth       float64 `yaml:"growth"`
	GCFrequency  float64 `yaml:"gcFrequency"`
	GCEfficiency float64 `yaml:"gcEfficiency"`
}

type DetectionAlgorithms struct {
	Growth     bool `yaml:"growth"`
	Retention  bool `yaml:"retention"`
	Frequency  bool `yaml:"frequency"`
	Clustering bool `yaml:"clustering"`
}

type DetectionThresholds struct {
	Growth     float64 `yaml:"growth"`
	Retention  float64 `yaml:"retention"`
	Frequency  float64 `yaml:"frequency"`
	Confidence float64 `yaml:"confidence"`
}

type BaselineConfig struct {
	Duration time.Duration `yaml:"duration"`
	Samples  int           `yaml:"samples"`
}

type DetectionConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Sensitivity string              `yaml:"sensitivity"` // low|medium|high
	Patterns    []string            `yaml:"patterns"`
	Algorithms  DetectionAlgorithms `yaml:"algorithms"`
	Thresholds  DetectionThresholds `yaml:"thresholds"`
	Baseline    BaselineConfig      `yaml:"baseline"`
}

type ProfilingFilters struct {
	MinSampleCount int           `yaml:"minSampleCount"`
	MinDuration    time.Duration `yaml:"minDuration"`
}

type ProfilingConfig struct {
	Enabled    bool             `yaml:"enabled"`
	Sampling   bool             `yaml:"sampling"`
	Allocation bool             `yaml:"allocation"`
	Duration   time.Duration    `yaml:"duration"`
	SampleRate float64          `yaml:"sampleRate"`
	StackDepth int              `yaml:"stackDepth"`
	Filters    ProfilingFilters `yaml:"filters"`
}

type ReportingLevels struct {
	Info  bool `yaml:"info"`
	Warn  bool `yaml:"warn"`
	Error bool `yaml:"error"`
	Debug bool `yaml:"debug"`
}

type ReportingConfig struct {
	Console        bool            `yaml:"console"`
	File           string          `yaml:"file"`
	Webhook        string          `yaml:"webhook"`
	Levels         ReportingLevels `yaml:"levels"`
	Format         string          `yaml:"format"` // text|json
	IncludeStack   bool            `yaml:"includeStack"`
	IncludeContext bool            `yaml:"includeContext"`
}

type ThrottlingConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxConcurrent int         `yaml:"maxConcurrent"`
	Interval    time.Duration `yaml:"interval"`
}

type CachingConfig struct {
	Enabled    bool          `yaml:"enabled"`
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"maxEntries"`
}

type PerformanceConfig struct {
	Adaptive            bool             `yaml:"adaptive"`
	LowImpactMode       bool             `yaml:"lowImpactMode"`
	BackgroundProcessing bool            `yaml:"backgroundProcessing"`
	Throttling          ThrottlingConfig `yaml:"throttling"`
	Caching             CachingConfig    `yaml:"caching"`
}

type EscalationConfig struct {
	Enabled       bool          `yaml:"enabled"`
	TimeoutWarning time.Duration `yaml:"timeoutWarning"`
	TimeoutError   time.Duration `yaml:"timeoutError"`
	TimeoutCritical time.Duration `yaml:"timeoutCritical"`
	MaxEscalations int           `yaml:"maxEscalations"`
}

// SuppressionRule mirrors §4.6's conjunctive suppression rule shape.
type SuppressionRule struct {
	Level    string   `yaml:"level,omitempty"`
	Source   string   `yaml:"source,omitempty"`
	Category string   `yaml:"category,omitempty"`
	Tags     []string `yaml:"tags,omitempty"`
	Pattern  string   `yaml:"pattern,omitempty"`
}

type SuppressionConfig struct {
	Enabled     bool              `yaml:"enabled"`
	MaxDuration time.Duration     `yaml:"maxDuration"`
	Rules       []SuppressionRule `yaml:"rules"`
}

type ChannelFilters struct {
	Sources    []string `yaml:"sources,omitempty"`
	Categories []string `yaml:"categories,omitempty"`
	Tags       []string `yaml:"tags,omitempty"`
}

// ChannelConfig is one sink declaration (§4.6 routing to sinks).
type ChannelConfig struct {
	Name     string         `yaml:"name"`
	Type     string         `yaml:"type"` // console|file|webhook|email
	MinLevel string         `yaml:"minLevel,omitempty"`
	Filters  ChannelFilters `yaml:"filters"`
}

type SmartFilteringConfig struct {
	Enabled            bool          `yaml:"enabled"`
	DuplicateWindow    time.Duration `yaml:"duplicateWindow"`
	SimilarityThreshold float64      `yaml:"similarityThreshold"`
}

type AlertingConfig struct {
	Enabled        bool                 `yaml:"enabled"`
	Throttling     AlertThrottleConfig  `yaml:"throttling"`
	Escalation     EscalationConfig     `yaml:"escalation"`
	Suppression    SuppressionConfig    `yaml:"suppression"`
	Channels       []ChannelConfig      `yaml:"channels"`
	SmartFiltering SmartFilteringConfig `yaml:"smartFiltering"`
}

type AlertThrottleConfig struct {
	Enabled             bool          `yaml:"enabled"`
	WindowMs            time.Duration `yaml:"windowMs"`
	MaxAlertsPerWindow  int           `yaml:"maxAlertsPerWindow"`
	BatchSimilar        bool          `yaml:"batchSimilar"`
}

type StreamingConfig struct {
	Enabled           bool          `yaml:"enabled"`
	Port              int           `yaml:"port"`
	Host              string        `yaml:"host"`
	CORS              bool          `yaml:"cors"`
	MaxConnections    int           `yaml:"maxConnections"`
	BufferSize        int           `yaml:"bufferSize"`
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval"`
	Channels          []string      `yaml:"channels"`
}

type HotspotThresholds struct {
	Growth    float64 `yaml:"growth"`
	Frequency int     `yaml:"frequency"`
	Size      uint64  `yaml:"size"`
}

type HotspotsConfig struct {
	Enabled          bool                   `yaml:"enabled"`
	SampleInterval   time.Duration          `yaml:"sampleInterval"`
	RetentionPeriod  time.Duration          `yaml:"retentionPeriod"`
	HotspotThreshold float64                `yaml:"hotspotThreshold"`
	Categories       map[string]bool        `yaml:"categories"`
	Thresholds       HotspotThresholds      `yaml:"thresholds"`
}

type ErrorCircuitBreakerConfig struct {
	Threshold int           `yaml:"threshold"`
	Window    time.Duration `yaml:"window"`
	Timeout   time.Duration `yaml:"timeout"`
}

type ErrorHandlingConfig struct {
	ExitOnUnhandled          bool                      `yaml:"exitOnUnhandled"`
	GracefulShutdownTimeout  time.Duration             `yaml:"gracefulShutdownTimeout"`
	LogErrors                bool                      `yaml:"logErrors"`
	ReportErrors             bool                      `yaml:"reportErrors"`
	ErrorThreshold           int                       `yaml:"errorThreshold"`
	ErrorWindow              time.Duration             `yaml:"errorWindow"`
	CircuitBreaker           ErrorCircuitBreakerConfig `yaml:"circuitBreaker"`
}

// Config is the top-level normalized configuration the Supervisor consumes.
type Config struct {
	Monitoring    MonitoringConfig    `yaml:"monitoring"`
	Threshold     ThresholdConfig     `yaml:"threshold"`
	Detection     DetectionConfig     `yaml:"detection"`
	Profiling     ProfilingConfig     `yaml:"profiling"`
	Reporting     ReportingConfig     `yaml:"reporting"`
	Performance   PerformanceConfig   `yaml:"performance"`
	Alerting      AlertingConfig      `yaml:"alerting"`
	Streaming     StreamingConfig     `yaml:"streaming"`
	Hotspots      HotspotsConfig      `yaml:"hotspots"`
	ErrorHandling ErrorHandlingConfig `yaml:"errorHandling"`
}

// DefaultConfig returns a fully-populated, valid Config.
func DefaultConfig() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills any zero-valued field with its spec default. Safe to
// call on a partially-populated Config coming from a config file or
// configure(partial) call.
func (c *Config) ApplyDefaults() {
	if c.Monitoring.Interval == 0 {
		c.Monitoring.Interval = 30 * time.Second
	}
	if c.Monitoring.MinInterval == 0 {
		c.Monitoring.MinInterval = 5 * time.Second
	}
	if c.Monitoring.MaxInterval == 0 {
		c.Monitoring.MaxInterval = 5 * time.Minute
	}

	if c.Threshold.Heap == 0 {
		c.Threshold.Heap = 0.85
	}
	if c.Threshold.RSS == 0 {
		c.Threshold.RSS = 0.85
	}
	if c.Threshold.Growth == 0 {
		c.Threshold.Growth = 0.1
	}
	if c.Threshold.GCFrequency == 0 {
		c.Threshold.GCFrequency = 10
	}
	if c.Threshold.GCEfficiency == 0 {
		c.Threshold.GCEfficiency = 0.1
	}

	if c.Detection.Sensitivity == "" {
		c.Detection.Sensitivity = "medium"
	}
	if c.Detection.Thresholds.Growth == 0 {
		c.Detection.Thresholds.Growth = c.Threshold.Growth
	}
	if c.Detection.Thresholds.Confidence == 0 {
		c.Detection.Thresholds.Confidence = 0.8
	}
	if c.Detection.Baseline.Duration == 0 {
		c.Detection.Baseline.Duration = 10 * time.Minute
	}
	if c.Detection.Baseline.Samples == 0 {
		c.Detection.Baseline.Samples = 10
	}

	if c.Profiling.SampleRate == 0 {
		c.Profiling.SampleRate = 1.0
	}
	if c.Profiling.StackDepth == 0 {
		c.Profiling.StackDepth = 32
	}

	if c.Reporting.Format == "" {
		c.Reporting.Format = "text"
	}

	if c.Performance.Throttling.MaxConcurrent == 0 {
		c.Performance.Throttling.MaxConcurrent = 4
	}
	if c.Performance.Throttling.Interval == 0 {
		c.Performance.Throttling.Interval = 10 * time.Second
	}
	if c.Performance.Caching.TTL == 0 {
		c.Performance.Caching.TTL = time.Minute
	}
	if c.Performance.Caching.MaxEntries == 0 {
		c.Performance.Caching.MaxEntries = 1000
	}

	if c.Alerting.Throttling.WindowMs == 0 {
		c.Alerting.Throttling.WindowMs = time.Minute
	}
	if c.Alerting.Throttling.MaxAlertsPerWindow == 0 {
		c.Alerting.Throttling.MaxAlertsPerWindow = 10
	}
	if c.Alerting.Escalation.TimeoutWarning == 0 {
		c.Alerting.Escalation.TimeoutWarning = 5 * time.Minute
	}
	if c.Alerting.Escalation.TimeoutError == 0 {
		c.Alerting.Escalation.TimeoutError = 10 * time.Minute
	}
	if c.Alerting.Escalation.TimeoutCritical == 0 {
		c.Alerting.Escalation.TimeoutCritical = 15 * time.Minute
	}
	if c.Alerting.Escalation.MaxEscalations == 0 {
		c.Alerting.Escalation.MaxEscalations = 3
	}
	if c.Alerting.Suppression.MaxDuration == 0 {
		c.Alerting.Suppression.MaxDuration = time.Hour
	}
	if c.Alerting.SmartFiltering.DuplicateWindow == 0 {
		c.Alerting.SmartFiltering.DuplicateWindow = 5 * time.Second
	}
	if c.Alerting.SmartFiltering.SimilarityThreshold == 0 {
		c.Alerting.SmartFiltering.SimilarityThreshold = 0.85
	}

	if c.Streaming.Port == 0 {
		c.Streaming.Port = 9099
	}
	if c.Streaming.Host == "" {
		c.Streaming.Host = "0.0.0.0"
	}
	if c.Streaming.MaxConnections == 0 {
		c.Streaming.MaxConnections = 100
	}
	if c.Streaming.BufferSize == 0 {
		c.Streaming.BufferSize = 200
	}
	if c.Streaming.HeartbeatInterval == 0 {
		c.Streaming.HeartbeatInterval = 30 * time.Second
	}

	if c.Hotspots.SampleInterval == 0 {
		c.Hotspots.SampleInterval = 30 * time.Second
	}
	if c.Hotspots.RetentionPeriod == 0 {
		c.Hotspots.RetentionPeriod = time.Hour
	}
	if c.Hotspots.HotspotThreshold == 0 {
		c.Hotspots.HotspotThreshold = 0.2
	}
	if c.Hotspots.Thresholds.Growth == 0 {
		c.Hotspots.Thresholds.Growth = 0.15
	}
	if c.Hotspots.Thresholds.Frequency == 0 {
		c.Hotspots.Thresholds.Frequency = 3
	}
	if c.Hotspots.Thresholds.Size == 0 {
		c.Hotspots.Thresholds.Size = 1 << 20
	}

	if c.ErrorHandling.GracefulShutdownTimeout == 0 {
		c.ErrorHandling.GracefulShutdownTimeout = 10 * time.Second
	}
	if c.ErrorHandling.ErrorThreshold == 0 {
		c.ErrorHandling.ErrorThreshold = 20
	}
	if c.ErrorHandling.ErrorWindow == 0 {
		c.ErrorHandling.ErrorWindow = 5 * time.Minute
	}
	if c.ErrorHandling.CircuitBreaker.Threshold == 0 {
		c.ErrorHandling.CircuitBreaker.Threshold = 5
	}
	if c.ErrorHandling.CircuitBreaker.Window == 0 {
		c.ErrorHandling.CircuitBreaker.Window = time.Minute
	}
	if c.ErrorHandling.CircuitBreaker.Timeout == 0 {
		c.ErrorHandling.CircuitBreaker.Timeout = 30 * time.Second
	}
}

// Validate checks every section for internal consistency, returning a
// wrapped agenterr.AgentError of class Configuration on the first problem
// found — the same one-constructor-per-section shape as ariadne's
// UnifiedBusinessConfig.Validate().
func (c *Config) Validate() error {
	if c.Monitoring.MinInterval > c.Monitoring.MaxInterval {
		return wrapCfgErr("monitoring", fmt.Errorf("minInterval %s exceeds maxInterval %s", c.Monitoring.MinInterval, c.Monitoring.MaxInterval))
	}
	if c.Monitoring.Interval < 0 {
		return wrapCfgErr("monitoring", fmt.Errorf("interval must be non-negative"))
	}
	switch c.Detection.Sensitivity {
	case "low", "medium", "high":
	default:
		return wrapCfgErr("detection", fmt.Errorf("unknown sensitivity %q", c.Detection.Sensitivity))
	}
	if c.Detection.Baseline.Samples <= 0 {
		return wrapCfgErr("detection", fmt.Errorf("baseline.samples must be positive"))
	}
	if c.Performance.Throttling.MaxConcurrent <= 0 {
		return wrapCfgErr("performance", fmt.Errorf("throttling.maxConcurrent must be positive"))
	}
	if c.Alerting.Throttling.MaxAlertsPerWindow <= 0 {
		return wrapCfgErr("alerting", fmt.Errorf("throttling.maxAlertsPerWindow must be positive"))
	}
	if c.Streaming.Enabled && (c.Streaming.Port <= 0 || c.Streaming.Port > 65535) {
		return wrapCfgErr("streaming", fmt.Errorf("invalid port %d", c.Streaming.Port))
	}
	if c.Streaming.BufferSize <= 0 {
		return wrapCfgErr("streaming", fmt.Errorf("bufferSize must be positive"))
	}
	return nil
}

func wrapCfgErr(section string, err error) error {
	return agenterr.Configuration("INVALID_CONFIG", fmt.Sprintf("section %q", section), err)
}

// SensitivityThreshold maps detection.sensitivity to the verdict threshold
// §4.4 names: low=0.7, medium=0.5, high=0.3.
func (c *Config) SensitivityThreshold() float64 {
	switch c.Detection.Sensitivity {
	case "low":
		return 0.7
	case "high":
		return 0.3
	default:
		return 0.5
	}
}

// NormalizeLegacy accepts a raw map possibly carrying the flat legacy
// fields (`enabled`, `interval`, `production`) alongside or instead of the
// nested form, and returns a Config with those fields folded into their
// nested homes: enabled -> detection.enabled, interval ->
// monitoring.interval, production is dropped.
func NormalizeLegacy(raw map[string]any) *Config {
	c := DefaultConfig()

	if v, ok := raw["enabled"].(bool); ok {
		c.Detection.Enabled = v
	}
	if v, ok := raw["interval"]; ok {
		if d, ok := toDuration(v); ok {
			c.Monitoring.Interval = d
		}
	}
	// "production" is recognized and intentionally dropped (§6).
	delete(raw, "production")

	if nested, ok := raw["monitoring"].(map[string]any); ok {
		if v, ok := nested["interval"]; ok {
			if d, ok := toDuration(v); ok {
				c.Monitoring.Interval = d
			}
		}
	}
	if nested, ok := raw["detection"].(map[string]any); ok {
		if v, ok := nested["enabled"].(bool); ok {
			c.Detection.Enabled = v
		}
		if v, ok := nested["sensitivity"].(string); ok {
			c.Detection.Sensitivity = v
		}
	}

	c.ApplyDefaults()
	return c
}

func toDuration(v any) (time.Duration, bool) {
	switch n := v.(type) {
	case time.Duration:
		return n, true
	case int:
		return time.Duration(n) * time.Millisecond, true
	case int64:
		return time.Duration(n) * time.Millisecond, true
	case float64:
		return time.Duration(n) * time.Millisecond, true
	default:
		return 0, false
	}
}
