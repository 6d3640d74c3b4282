package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every override: STATICREFLECT_<SECTION>_<KEY>.
const EnvPrefix = "STATICREFLECT_"

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: STATICREFLECT_[SECTION]_[KEY] (e.g., STATICREFLECT_CACHE_MAX_FILES).
// Values that fail to parse are ignored.
func ApplyEnvOverrides(cfg *Config) {
	setEnvString(&cfg.PHP.MinVersion, "PHP_MIN_VERSION")

	setEnvInt(&cfg.Cache.MaxFiles, "CACHE_MAX_FILES")
	setEnvUint64(&cfg.Cache.MaxHeapMB, "CACHE_MAX_HEAP_MB")

	setEnvList(&cfg.Locator.Roots, "LOCATOR_ROOTS")
	setEnvString(&cfg.Locator.IndexPath, "LOCATOR_INDEX_PATH")
	setEnvBool(&cfg.Locator.Watch, "LOCATOR_WATCH")
	setEnvDuration(&cfg.Locator.Debounce, "LOCATOR_DEBOUNCE")
	setEnvFloat64(&cfg.Locator.RefreshRate, "LOCATOR_REFRESH_RATE")

	setEnvBool(&cfg.Metrics.Enabled, "METRICS_ENABLED")
	setEnvString(&cfg.Metrics.Address, "METRICS_ADDRESS")
	setEnvBool(&cfg.Tracing.Enabled, "TRACING_ENABLED")
	setEnvString(&cfg.Tracing.Endpoint, "TRACING_ENDPOINT")
}

func lookup(key string) (string, bool) {
	val, ok := os.LookupEnv(EnvPrefix + key)
	if ok {
		slog.Debug("applying env override", "key", EnvPrefix+key, "value", val)
	}
	return val, ok
}

func setEnvString(target *string, key string) {
	if val, ok := lookup(key); ok {
		*target = val
	}
}

// setEnvList splits on the OS path list separator.
func setEnvList(target *[]string, key string) {
	if val, ok := lookup(key); ok {
		*target = trimAll(strings.Split(val, string(os.PathListSeparator)))
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := lookup(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			*target = i
		}
	}
}

func setEnvUint64(target *uint64, key string) {
	if val, ok := lookup(key); ok {
		if i, err := strconv.ParseUint(val, 10, 64); err == nil {
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := lookup(key); ok {
		if b, err := strconv.ParseBool(strings.ToLower(val)); err == nil {
			*target = b
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := lookup(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*target = f
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := lookup(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			*target = d
		}
	}
}
