package startup

import (
	"os"
	"strconv"
	"time"

	"music-library/internal/logging"
)

// envVar binds one environment variable to a Config field. load stores the
// value in effect into the field and returns it for the configuration log.
type envVar struct {
	key  string
	load func(key string) any
}

func stringVar(dst *string, def string) func(string) any {
	return func(key string) any {
		*dst = getEnv(key, def)
		return *dst
	}
}

func boolVar(dst *bool, def bool) func(string) any {
	return func(key string) any {
		*dst = getEnvBool(key, def)
		return *dst
	}
}

func intVar(dst *int, def int) func(string) any {
	return func(key string) any {
		*dst = getEnvInt(key, def)
		return *dst
	}
}

func durationVar(dst *time.Duration, def time.Duration) func(string) any {
	return func(key string) any {
		*dst = getEnvDuration(key, def)
		return *dst
	}
}

// getEnv returns the value of key, or def when key is not set at all. An
// empty value is kept.
func getEnv(key, def string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return def
}

// parseEnv parses a non-empty key with parse. Unparsable values are logged
// and replaced by def.
func parseEnv[T any](key string, def T, parse func(string) (T, error)) T {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		logging.Warn("Ignoring %s=%q (%v), using %v", key, raw, err, def)
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	return parseEnv(key, def, strconv.ParseBool)
}

func getEnvInt(key string, def int) int {
	return parseEnv(key, def, strconv.Atoi)
}

// getEnvDuration rejects negative durations; zero is how intervals are
// switched off.
func getEnvDuration(key string, def time.Duration) time.Duration {
	return parseEnv(key, def, func(s string) (time.Duration, error) {
		d, err := time.ParseDuration(s)
		if err == nil && d < 0 {
			err = errNegativeDuration
		}
		return d, err
	})
}
