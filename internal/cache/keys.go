package cache

import (
	"strings"
	"time"

	"equilibrium-api/internal/config"
	"equilibrium-api/pkg/engine"
)

// Namespace is the Redis key prefix for the Equilibrium application. It must
// match the prefix the engine publishes under.
const Namespace = "equilibrium"

// TTLClass represents a config-driven TTL bucket.
type TTLClass string

const (
	TTLShort  TTLClass = "short"
	TTLMedium TTLClass = "medium"
	TTLLong   TTLClass = "long"
)

// TTLSet normalises cache TTLs from config into time.Duration values.
type TTLSet struct {
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}

// NewTTLSet converts config TTLs (in seconds) into durations.
func NewTTLSet(cfg config.CacheTTL) TTLSet {
	return TTLSet{
		Short:  durationOrDefault(cfg.Short, 10*time.Second),
		Medium: durationOrDefault(cfg.Medium, time.Minute),
		Long:   durationOrDefault(cfg.Long, 5*time.Minute),
	}
}

func durationOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds < 0 {
		return 0
	}
	if seconds == 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// Duration returns the configured duration for the given TTL class.
func (t TTLSet) Duration(class TTLClass) time.Duration {
	switch class {
	case TTLShort:
		return t.Short
	case TTLMedium:
		return t.Medium
	case TTLLong:
		return t.Long
	default:
		return 0
	}
}

func formatKey(parts ...string) string {
	values := make([]string, 0, len(parts)+1)
	values = append(values, Namespace)
	for _, part := range parts {
		clean := strings.TrimSpace(part)
		if clean == "" {
			continue
		}
		values = append(values, clean)
	}
	return strings.Join(values, ":")
}

// --- Analytics Report Keys ---------------------------------------------------

// The engine owns the layout of every key it publishes; the serving side reads
// through these wrappers so the two can never drift apart.

// AnalyticsReportKey addresses one published report envelope.
func AnalyticsReportKey(symbol, reportType, period string) string {
	return engine.ReportKey(symbol, reportType, period)
}

// AnalyticsFreshnessKey holds the RFC3339 timestamp of the last publish for a symbol.
func AnalyticsFreshnessKey(symbol string) string {
	return engine.FreshnessKey(symbol)
}

// EngineStatusKey holds the msgpack snapshot of the last engine run.
func EngineStatusKey() string {
	return engine.StatusKey()
}

// EngineLockKey is the per-asset advisory lock the runner takes.
func EngineLockKey(assetID string) string {
	return engine.LockKey(assetID)
}

// --- Serving Keys -------------------------------------------------------------

// AnalyticsIndexKey caches the computed report-availability index for a symbol.
func AnalyticsIndexKey(symbol string) string {
	return formatKey("analytics", symbol, "index")
}

// --- TTL Helpers --------------------------------------------------------------

// AnalyticsIndexTTL returns the TTL for availability index payloads. The index
// is rebuilt from dozens of key probes, so it is cached briefly.
func AnalyticsIndexTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLShort)
}
