package types

import (
	"fmt"
	"time"
)

// Enum values for aggregation window
type AggregationWindow string

const (
	WindowHour AggregationWindow = "hour"
	WindowDay  AggregationWindow = "day"
	WindowWeek AggregationWindow = "week"
)

func (w AggregationWindow) String() string {
	return string(w)
}

func (w AggregationWindow) Duration() time.Duration {
	switch w {
	case WindowHour:
		return time.Hour
	case WindowDay:
		return 24 * time.Hour
	case WindowWeek:
		return 7 * 24 * time.Hour
	}
	return 0
}

func ParseAggregationWindow(s string) (AggregationWindow, error) {
	switch AggregationWindow(s) {
	case WindowHour, WindowDay, WindowWeek:
		return AggregationWindow(s), nil
	}
	return "", fmt.Errorf("aggregation window %q does not exist. should be one of {%s, %s, %s}",
		s, WindowHour, WindowDay, WindowWeek)
}
