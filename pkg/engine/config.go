package engine

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"equilibrium-api/pkg/analytics"
	"equilibrium-api/pkg/confkit"
	"equilibrium-api/pkg/footprint"
	"equilibrium-api/pkg/market"
)

// Defaults applied by normalise when the corresponding field is unset.
const (
	DefaultHistoryStart = "2020-01-01"
	DefaultTimezone     = "America/New_York"
	DefaultSessionStart = "09:30"
	DefaultIBEnd        = "10:30"
	DefaultSessionEnd   = "16:00"
	DefaultInterval     = "1m"
	DefaultPageLimit    = 1000
	DefaultWorkers      = 4
)

const (
	defaultFetchTimeout = 30 * time.Second
	defaultStoreTimeout = 10 * time.Second
	defaultAssetTimeout = 5 * time.Minute
)

// Config drives the ingestion and report pipeline.
type Config struct {
	// Assets to sync each run, exchange-native symbols.
	Assets []string `yaml:"assets"`

	// HistoryStart bounds the first backfill, YYYY-MM-DD.
	HistoryStart string `yaml:"history_start"`

	// Session clock. Timezone is an IANA name; the three window edges are
	// HH:MM in that timezone.
	Timezone     string `yaml:"timezone"`
	SessionStart string `yaml:"session_start"`
	IBEnd        string `yaml:"ib_end"`
	SessionEnd   string `yaml:"session_end"`

	// Interval is the candle interval the provider is polled at.
	Interval  string `yaml:"interval"`
	PageLimit int    `yaml:"page_limit"`

	// MinCandles is the sparse-session floor; 0 uses the builder default.
	MinCandles int `yaml:"min_candles"`
	// MinSamples is the low-confidence floor for reports; 0 uses the
	// analytics default.
	MinSamples int `yaml:"min_samples"`

	// Periods limits the published report windows; empty publishes the
	// full default ladder.
	Periods []string `yaml:"periods"`

	// Workers bounds concurrent per-asset pipelines.
	Workers int `yaml:"workers"`

	// DriftScanDays extends the schema probe beyond the oldest row to the
	// most recent N calendar days of rows. 0 probes the oldest row only.
	DriftScanDays int `yaml:"drift_scan_days"`

	FetchTimeoutRaw string        `yaml:"fetch_timeout"`
	FetchTimeout    time.Duration `yaml:"-"`
	StoreTimeoutRaw string        `yaml:"store_timeout"`
	StoreTimeout    time.Duration `yaml:"-"`
	AssetTimeoutRaw string        `yaml:"asset_timeout"`
	AssetTimeout    time.Duration `yaml:"-"`
	LockTTLRaw      string        `yaml:"lock_ttl"`
	LockTTL         time.Duration `yaml:"-"`
	ReportTTLRaw    string        `yaml:"report_ttl"`
	ReportTTL       time.Duration `yaml:"-"`
}

// LoadConfig reads engine configuration from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open engine config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// MustLoad reads engine configuration from the default project location and
// panics on error.
func MustLoad() *Config {
	path := confkit.MustProjectPath("etc/engine.yaml")
	cfg, err := LoadConfig(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadConfigFromReader constructs a Config from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	confkit.LoadDotenvOnce()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read engine config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal engine config: %w", err)
	}
	if err := cfg.normalise(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalise() error {
	c.expandEnv()

	assets := make([]string, 0, len(c.Assets))
	for _, asset := range c.Assets {
		symbol := strings.ToUpper(strings.TrimSpace(asset))
		if symbol == "" {
			continue
		}
		assets = append(assets, symbol)
	}
	c.Assets = assets

	if c.HistoryStart == "" {
		c.HistoryStart = DefaultHistoryStart
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	if c.SessionStart == "" {
		c.SessionStart = DefaultSessionStart
	}
	if c.IBEnd == "" {
		c.IBEnd = DefaultIBEnd
	}
	if c.SessionEnd == "" {
		c.SessionEnd = DefaultSessionEnd
	}
	if c.Interval == "" {
		c.Interval = DefaultInterval
	}
	if c.PageLimit == 0 {
		c.PageLimit = DefaultPageLimit
	}
	if c.MinSamples == 0 {
		c.MinSamples = analytics.DefaultMinSamples
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	return c.parseDurations()
}

func (c *Config) expandEnv() {
	c.HistoryStart = strings.TrimSpace(os.ExpandEnv(c.HistoryStart))
	c.Timezone = strings.TrimSpace(os.ExpandEnv(c.Timezone))
	c.SessionStart = strings.TrimSpace(os.ExpandEnv(c.SessionStart))
	c.IBEnd = strings.TrimSpace(os.ExpandEnv(c.IBEnd))
	c.SessionEnd = strings.TrimSpace(os.ExpandEnv(c.SessionEnd))
	c.Interval = strings.TrimSpace(os.ExpandEnv(c.Interval))
	c.FetchTimeoutRaw = strings.TrimSpace(os.ExpandEnv(c.FetchTimeoutRaw))
	c.StoreTimeoutRaw = strings.TrimSpace(os.ExpandEnv(c.StoreTimeoutRaw))
	c.AssetTimeoutRaw = strings.TrimSpace(os.ExpandEnv(c.AssetTimeoutRaw))
	c.LockTTLRaw = strings.TrimSpace(os.ExpandEnv(c.LockTTLRaw))
	c.ReportTTLRaw = strings.TrimSpace(os.ExpandEnv(c.ReportTTLRaw))
	for i, asset := range c.Assets {
		c.Assets[i] = os.ExpandEnv(asset)
	}
}

func (c *Config) parseDurations() error {
	parse := func(name, raw string, fallback time.Duration) (time.Duration, error) {
		if raw == "" {
			return fallback, nil
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return 0, fmt.Errorf("engine config: invalid %s %q: %w", name, raw, err)
		}
		if d < 0 {
			return 0, fmt.Errorf("engine config: %s cannot be negative, got %s", name, d)
		}
		return d, nil
	}

	var err error
	if c.FetchTimeout, err = parse("fetch_timeout", c.FetchTimeoutRaw, defaultFetchTimeout); err != nil {
		return err
	}
	if c.StoreTimeout, err = parse("store_timeout", c.StoreTimeoutRaw, defaultStoreTimeout); err != nil {
		return err
	}
	if c.AssetTimeout, err = parse("asset_timeout", c.AssetTimeoutRaw, defaultAssetTimeout); err != nil {
		return err
	}
	// The lock must outlive the longest possible asset pipeline so a
	// crashed holder cannot block the next run forever.
	if c.LockTTL, err = parse("lock_ttl", c.LockTTLRaw, c.AssetTimeout+time.Minute); err != nil {
		return err
	}
	if c.ReportTTL, err = parse("report_ttl", c.ReportTTLRaw, 0); err != nil {
		return err
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("engine config: fetch_timeout must be positive")
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("engine config: store_timeout must be positive")
	}
	if c.AssetTimeout <= 0 {
		return fmt.Errorf("engine config: asset_timeout must be positive")
	}
	return nil
}

// Validate ensures the configuration is structurally sound.
func (c *Config) Validate() error {
	if len(c.Assets) == 0 {
		return fmt.Errorf("engine config: assets cannot be empty")
	}
	if _, err := time.Parse("2006-01-02", c.HistoryStart); err != nil {
		return fmt.Errorf("engine config: invalid history_start %q: %w", c.HistoryStart, err)
	}
	if _, err := c.Calendar(); err != nil {
		return fmt.Errorf("engine config: %w", err)
	}
	if _, err := market.IntervalDuration(c.Interval); err != nil {
		return fmt.Errorf("engine config: %w", err)
	}
	if c.PageLimit <= 0 {
		return fmt.Errorf("engine config: page_limit must be positive")
	}
	if c.MinCandles < 0 {
		return fmt.Errorf("engine config: min_candles cannot be negative")
	}
	if c.MinSamples < 0 {
		return fmt.Errorf("engine config: min_samples cannot be negative")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("engine config: workers must be positive")
	}
	if c.DriftScanDays < 0 {
		return fmt.Errorf("engine config: drift_scan_days cannot be negative")
	}
	if _, err := c.PeriodList(); err != nil {
		return err
	}
	return nil
}

// Calendar builds the session calendar described by the config.
func (c *Config) Calendar() (*footprint.Calendar, error) {
	return footprint.NewCalendar(c.Timezone, c.SessionStart, c.IBEnd, c.SessionEnd)
}

// HistoryStartDate returns history_start as a UTC-midnight date.
func (c *Config) HistoryStartDate() time.Time {
	t, err := time.Parse("2006-01-02", c.HistoryStart)
	if err != nil {
		return time.Time{}
	}
	return t
}

// HistoryStartMillis returns history_start as unix milliseconds.
func (c *Config) HistoryStartMillis() int64 {
	start := c.HistoryStartDate()
	if start.IsZero() {
		return 0
	}
	return start.UnixMilli()
}

// PeriodList resolves the configured period ids, or the default ladder when
// none are configured.
func (c *Config) PeriodList() ([]analytics.Period, error) {
	if len(c.Periods) == 0 {
		return analytics.DefaultPeriods(), nil
	}
	periods := make([]analytics.Period, 0, len(c.Periods))
	for _, id := range c.Periods {
		p, err := analytics.ParsePeriod(id)
		if err != nil {
			return nil, fmt.Errorf("engine config: %w", err)
		}
		periods = append(periods, p)
	}
	return periods, nil
}

func (c *Config) analyticsConfig() analytics.Config {
	return analytics.Config{
		MinSamples: c.MinSamples,
		Windows: analytics.Windows{
			Start:      c.IBEnd,
			SessionEnd: c.SessionEnd,
		},
	}
}
