package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	apperrors "github.com/lueurxax/channel-observatory/internal/core/errors"
)

// TimeUnit is a date_trunc bucket width.
type TimeUnit string

const (
	UnitYear   TimeUnit = "year"
	UnitMonth  TimeUnit = "month"
	UnitWeek   TimeUnit = "week"
	UnitDay    TimeUnit = "day"
	UnitHour   TimeUnit = "hour"
	UnitMinute TimeUnit = "minute"
)

// TimeUnits lists the supported bucket widths, coarsest first.
var TimeUnits = []TimeUnit{UnitYear, UnitMonth, UnitWeek, UnitDay, UnitHour, UnitMinute}

// ParseTimeUnit validates a unit name. Empty input maps to fallback.
func ParseTimeUnit(raw string, fallback TimeUnit) (TimeUnit, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return fallback, nil
	}

	for _, u := range TimeUnits {
		if string(u) == raw {
			return u, nil
		}
	}

	return "", fmt.Errorf("%w: %q", apperrors.ErrInvalidTimeUnit, raw)
}

// TimeCount is one bucket of a histogram.
type TimeCount struct {
	Bucket time.Time `json:"bucket"`
	Count  int       `json:"count"`
}

const dateLayout = "2006-01-02"

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ParseDateRange parses YYYY-MM-DD (or any dateparse-recognised) bounds.
// A date-only end bound covers the whole day.
func ParseDateRange(from, to string) (DateRange, error) {
	start, _, err := parseBound(from)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: from: %w", apperrors.ErrInvalidDateRange, err)
	}

	end, dateOnly, err := parseBound(to)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: to: %w", apperrors.ErrInvalidDateRange, err)
	}

	if dateOnly {
		end = end.Add(24*time.Hour - time.Nanosecond)
	}

	if end.Before(start) {
		return DateRange{}, fmt.Errorf("%w: %s is before %s", apperrors.ErrInvalidDateRange, to, from)
	}

	return DateRange{Start: start, End: end}, nil
}

func parseBound(raw string) (time.Time, bool, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, true, nil
	}

	t, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse %q: %w", raw, err)
	}

	return t, false, nil
}

func (r DateRange) String() string {
	return r.Start.Format(dateLayout) + ".." + r.End.Format(dateLayout)
}

// ForwardEdge counts forwards from ChannelID of posts originating in ForwardeeChannelID.
type ForwardEdge struct {
	ChannelID          int64 `json:"channel_id"`
	ForwardeeChannelID int64 `json:"forwardee_channel_id"`
	Weight             int   `json:"weight"`
}

// DomainEdge counts links from a channel to a web domain.
type DomainEdge struct {
	ChannelID int64  `json:"channel_id"`
	Domain    string `json:"domain"`
	Weight    int    `json:"weight"`
}

// DomainCount is a domain's total citation weight across channels.
type DomainCount struct {
	Domain string `json:"domain"`
	Weight int    `json:"weight"`
}
