// Package recurrence holds the calendar rules for recurring transaction
// templates: interval presets, due-month checks and next-execution math.
// Everything here is pure; callers supply the clock.
package recurrence

import (
	"errors"
	"fmt"
)

// IntervalKind names one of the supported recurrence intervals.
type IntervalKind string

const (
	KindMonthly    IntervalKind = "monthly"
	KindQuarterly  IntervalKind = "quarterly"
	KindSemiAnnual IntervalKind = "semi-annual"
	KindAnnual     IntervalKind = "annual"
	KindCustom     IntervalKind = "custom"
)

// ErrInvalidInterval is returned when an interval kind or month count is not usable.
var ErrInvalidInterval = errors.New("invalid recurrence interval")

// Interval is a recurrence step measured in calendar months. It is either one
// of the named presets or a custom month count with its own label. The zero
// value is not a valid interval.
type Interval struct {
	kind   IntervalKind
	months int
	label  string
}

// Presets.
var (
	Monthly    = Interval{kind: KindMonthly, months: 1, label: "Monthly"}
	Quarterly  = Interval{kind: KindQuarterly, months: 3, label: "Quarterly"}
	SemiAnnual = Interval{kind: KindSemiAnnual, months: 6, label: "Semi-annual"}
	Annual     = Interval{kind: KindAnnual, months: 12, label: "Annual"}
)

var presets = map[IntervalKind]Interval{
	KindMonthly:    Monthly,
	KindQuarterly:  Quarterly,
	KindSemiAnnual: SemiAnnual,
	KindAnnual:     Annual,
}

// Custom builds an interval of an arbitrary positive number of months.
// An empty label defaults to "Every N months".
func Custom(months int, label string) (Interval, error) {
	if months <= 0 {
		return Interval{}, fmt.Errorf("%w: custom interval needs a positive month count, got %d", ErrInvalidInterval, months)
	}
	if label == "" {
		label = fmt.Sprintf("Every %d months", months)
	}
	return Interval{kind: KindCustom, months: months, label: label}, nil
}

// ParseInterval turns a stored or requested (kind, months, label) triple into
// an Interval. For presets months may be zero or must equal the preset's
// month count; the label is ignored.
func ParseInterval(kind string, months int, label string) (Interval, error) {
	k := IntervalKind(kind)
	if k == KindCustom {
		return Custom(months, label)
	}

	preset, ok := presets[k]
	if !ok {
		return Interval{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidInterval, kind)
	}
	if months != 0 && months != preset.months {
		return Interval{}, fmt.Errorf("%w: %s interval is %d months, got %d", ErrInvalidInterval, kind, preset.months, months)
	}
	return preset, nil
}

// Kind returns the interval's kind.
func (i Interval) Kind() IntervalKind { return i.kind }

// Months returns the step in calendar months.
func (i Interval) Months() int { return i.months }

// Label returns a display label.
func (i Interval) Label() string { return i.label }

// IsZero reports whether i is the invalid zero value.
func (i Interval) IsZero() bool { return i.months == 0 }

func (i Interval) String() string {
	if i.kind == KindCustom {
		return fmt.Sprintf("%s(%d)", i.kind, i.months)
	}
	return string(i.kind)
}
