package service

import (
	"strings"
	"time"
)

// Timeframe presets accepted by the dashboards.
const (
	TimeframeAll   = "all"
	TimeframeDay   = "day"
	TimeframeWeek  = "week"
	TimeframeMonth = "month"
)

// timeframeSpan returns the span of a preset. The empty string and "all" have
// no span.
func timeframeSpan(tf string) (time.Duration, bool, error) {
	switch strings.ToLower(strings.TrimSpace(tf)) {
	case "", TimeframeAll:
		return 0, false, nil
	case TimeframeDay, "24h":
		return 24 * time.Hour, true, nil
	case TimeframeWeek, "7d":
		return 7 * 24 * time.Hour, true, nil
	case TimeframeMonth, "30d":
		return 30 * 24 * time.Hour, true, nil
	}
	return 0, false, invalid("unknown timeframe %q", tf)
}

// window resolves either an explicit range or a timeframe preset relative to
// now. Supplying both is rejected.
func window(from, to *time.Time, tf string, now time.Time) (*time.Time, *time.Time, error) {
	span, ok, err := timeframeSpan(tf)
	if err != nil {
		return nil, nil, err
	}
	if ok {
		if from != nil || to != nil {
			return nil, nil, invalid("timeframe and date range are mutually exclusive")
		}
		start, end := now.Add(-span).UTC(), now.UTC()
		return &start, &end, nil
	}
	if from != nil && to != nil && from.After(*to) {
		return nil, nil, invalid("from must not be after to")
	}
	return utcPtr(from), utcPtr(to), nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
