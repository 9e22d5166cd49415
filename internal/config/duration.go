package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration parses a duration setting such as "15m" or "1h30m". A bare
// integer is read as seconds and an empty value yields zero.
func Duration(key, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	var d time.Duration
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > int64(time.Duration(1<<63-1)/time.Second) {
			return 0, fmt.Errorf("%s: %q is out of range", key, raw)
		}
		d = time.Duration(n) * time.Second
	} else if d, err = time.ParseDuration(s); err != nil {
		return 0, fmt.Errorf("%s: %q is not a duration (want e.g. 10s, 15m)", key, raw)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: %q is negative", key, raw)
	}
	return d, nil
}

// DurationOr is Duration with def substituted for a zero or empty value.
func DurationOr(key, raw string, def time.Duration) (time.Duration, error) {
	d, err := Duration(key, raw)
	if err != nil || d > 0 {
		return d, err
	}
	return def, nil
}
