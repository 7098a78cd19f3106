package recurrence

import (
	"errors"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type item struct {
	name string
	s    Schedule
}

func (i item) Schedule() Schedule { return i.s }

func TestShouldExecuteInMonth(t *testing.T) {
	quarterly := Schedule{StartDate: date(2024, 1, 15), Interval: Quarterly}

	tests := []struct {
		year  int
		month time.Month
		want  bool
	}{
		{2024, 1, true},
		{2024, 4, true},
		{2024, 7, true},
		{2024, 10, true},
		{2025, 1, true},
		{2024, 2, false},
		{2024, 3, false},
		{2024, 5, false},
		{2023, 10, false},
	}

	for _, tt := range tests {
		got := ShouldExecuteInMonth(quarterly, tt.month, tt.year)
		if got != tt.want {
			t.Errorf("ShouldExecuteInMonth(%d-%02d) = %v, want %v", tt.year, tt.month, got, tt.want)
		}
	}

	t.Run("month_end_start_is_due_in_february", func(t *testing.T) {
		s := Schedule{StartDate: date(2024, 1, 31), Interval: Monthly}
		if !ShouldExecuteInMonth(s, time.February, 2024) {
			t.Error("expected monthly template anchored on Jan 31 to be due in February")
		}
	})

	t.Run("zero_interval_never_due", func(t *testing.T) {
		s := Schedule{StartDate: date(2024, 1, 1)}
		if ShouldExecuteInMonth(s, time.January, 2024) {
			t.Error("expected zero interval to never be due")
		}
	})
}

func TestFilterDueForMonth(t *testing.T) {
	end := date(2024, 7, 1)
	items := []item{
		{name: "ending", s: Schedule{StartDate: date(2024, 1, 15), EndDate: &end, Interval: Quarterly}},
		{name: "open", s: Schedule{StartDate: date(2024, 1, 15), Interval: Quarterly}},
		{name: "monthly", s: Schedule{StartDate: date(2024, 2, 1), Interval: Monthly}},
	}

	t.Run("end_date_cutoff", func(t *testing.T) {
		due := FilterDueForMonth(items, time.October, 2024, date(2024, 10, 1))
		if len(due) != 2 {
			t.Fatalf("expected 2 due items, got %d", len(due))
		}
		for _, d := range due {
			if d.name == "ending" {
				t.Error("template past its end date should be filtered out")
			}
		}
	})

	t.Run("before_end_date", func(t *testing.T) {
		due := FilterDueForMonth(items, time.April, 2024, date(2024, 4, 1))
		if len(due) != 3 {
			t.Errorf("expected 3 due items, got %d", len(due))
		}
	})

	t.Run("not_due_month", func(t *testing.T) {
		due := FilterDueForMonth(items, time.January, 2024, date(2024, 1, 1))
		if len(due) != 2 {
			t.Errorf("expected 2 due items, got %d", len(due))
		}
	})
}

func TestNextExecutionDate(t *testing.T) {
	tests := []struct {
		name   string
		from   time.Time
		months int
		want   time.Time
	}{
		{"monthly", date(2024, 3, 1), 1, date(2024, 4, 1)},
		{"year_rollover", date(2024, 11, 1), 3, date(2025, 2, 1)},
		{"annual", date(2024, 6, 15), 12, date(2025, 6, 15)},
		{"day_spillover", date(2023, 1, 31), 1, date(2023, 3, 3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextExecutionDate(tt.from, tt.months)
			if !got.Equal(tt.want) {
				t.Errorf("NextExecutionDate = %s, want %s", got.Format("2006-01-02"), tt.want.Format("2006-01-02"))
			}
		})
	}
}

func TestFirstExecutionDate(t *testing.T) {
	today := date(2024, 5, 10)

	t.Run("future_start", func(t *testing.T) {
		s := Schedule{StartDate: date(2024, 6, 1), Interval: Monthly}
		if got := FirstExecutionDate(s, today); !got.Equal(s.StartDate) {
			t.Errorf("got %s, want start date", got)
		}
	})

	t.Run("start_today", func(t *testing.T) {
		s := Schedule{StartDate: today, Interval: Monthly}
		if got := FirstExecutionDate(s, today.Add(15*time.Hour)); !got.Equal(today) {
			t.Errorf("got %s, want today", got)
		}
	})

	t.Run("past_start_quarterly", func(t *testing.T) {
		s := Schedule{StartDate: date(2024, 1, 15), Interval: Quarterly}
		want := date(2024, 7, 15)
		if got := FirstExecutionDate(s, today); !got.Equal(want) {
			t.Errorf("got %s, want %s", got, want)
		}
	})
}

func TestUpcomingOccurrences(t *testing.T) {
	end := date(2024, 12, 31)
	s := Schedule{StartDate: date(2024, 1, 15), EndDate: &end, Interval: Quarterly}

	got := UpcomingOccurrences(s, date(2024, 5, 20), 5)
	want := []time.Time{date(2024, 7, 1), date(2024, 10, 1)}
	if len(got) != len(want) {
		t.Fatalf("expected %d occurrences, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("occurrence %d = %s, want %s", i, got[i], want[i])
		}
	}

	t.Run("before_start", func(t *testing.T) {
		s := Schedule{StartDate: date(2025, 3, 10), Interval: Annual}
		got := UpcomingOccurrences(s, date(2024, 1, 1), 2)
		if len(got) != 2 || !got[0].Equal(date(2025, 3, 1)) || !got[1].Equal(date(2026, 3, 1)) {
			t.Errorf("unexpected occurrences: %v", got)
		}
	})
}

func TestShiftMonth(t *testing.T) {
	tests := []struct {
		month     time.Month
		year      int
		delta     int
		wantMonth time.Month
		wantYear  int
	}{
		{time.March, 2024, -1, time.February, 2024},
		{time.January, 2024, -1, time.December, 2023},
		{time.February, 2024, -6, time.August, 2023},
		{time.November, 2024, 3, time.February, 2025},
	}

	for _, tt := range tests {
		m, y := ShiftMonth(tt.month, tt.year, tt.delta)
		if m != tt.wantMonth || y != tt.wantYear {
			t.Errorf("ShiftMonth(%s %d, %d) = %s %d, want %s %d", tt.month, tt.year, tt.delta, m, y, tt.wantMonth, tt.wantYear)
		}
	}
}

func TestParseInterval(t *testing.T) {
	t.Run("presets", func(t *testing.T) {
		for kind, months := range map[string]int{"monthly": 1, "quarterly": 3, "semi-annual": 6, "annual": 12} {
			iv, err := ParseInterval(kind, 0, "")
			if err != nil {
				t.Fatalf("ParseInterval(%s): %v", kind, err)
			}
			if iv.Months() != months {
				t.Errorf("%s months = %d, want %d", kind, iv.Months(), months)
			}
		}
	})

	t.Run("preset_mismatch", func(t *testing.T) {
		if _, err := ParseInterval("quarterly", 4, ""); !errors.Is(err, ErrInvalidInterval) {
			t.Errorf("expected ErrInvalidInterval, got %v", err)
		}
	})

	t.Run("custom", func(t *testing.T) {
		iv, err := ParseInterval("custom", 2, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if iv.Kind() != KindCustom || iv.Months() != 2 || iv.Label() != "Every 2 months" {
			t.Errorf("unexpected interval %+v", iv)
		}
	})

	t.Run("custom_non_positive", func(t *testing.T) {
		if _, err := ParseInterval("custom", 0, "never"); !errors.Is(err, ErrInvalidInterval) {
			t.Errorf("expected ErrInvalidInterval, got %v", err)
		}
	})

	t.Run("unknown_kind", func(t *testing.T) {
		if _, err := ParseInterval("weekly", 0, ""); !errors.Is(err, ErrInvalidInterval) {
			t.Errorf("expected ErrInvalidInterval, got %v", err)
		}
	})
}
