package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// queryInt returns def when key is absent.
func queryInt(q url.Values, key string, def int) (int, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", ErrBadRequest, key)
	}
	return n, nil
}

func queryBool(q url.Values, key string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(q.Get(key)))
	return err == nil && b
}

// queryTime accepts RFC 3339 timestamps and plain dates. A plain date used as
// an upper bound covers the whole day.
func queryTime(q url.Values, key string, upper bool) (*time.Time, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an RFC 3339 time or a YYYY-MM-DD date", ErrBadRequest, key)
	}
	if upper {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
