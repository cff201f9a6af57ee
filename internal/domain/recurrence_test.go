package domain

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func datePtr(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &t
}

func intPtr(n int) *int {
	return &n
}

func TestEncodeRule_Scenarios(t *testing.T) {
	tests := []struct {
		name string
		spec RecurrenceSpec
		want string
	}{
		{
			name: "non-recurring encodes to empty",
			spec: RecurrenceSpec{Frequency: FrequencyNone, Interval: 3, ByMonthDay: 10},
			want: "",
		},
		{
			name: "daily never ending",
			spec: RecurrenceSpec{Frequency: FrequencyDaily, Interval: 1},
			want: "RRULE:FREQ=DAILY",
		},
		{
			name: "daily interval above one",
			spec: RecurrenceSpec{Frequency: FrequencyDaily, Interval: 3},
			want: "RRULE:FREQ=DAILY;INTERVAL=3",
		},
		{
			name: "weekly with end date",
			spec: RecurrenceSpec{
				Frequency: FrequencyWeekly,
				Interval:  1,
				ByWeekday: []string{"MO", "WE"},
				Until:     datePtr(2024, time.December, 31),
			},
			want: "RRULE:FREQ=WEEKLY;BYDAY=MO,WE;UNTIL=20241231T000000Z",
		},
		{
			name: "weekly sorts weekdays into canonical order",
			spec: RecurrenceSpec{
				Frequency: FrequencyWeekly,
				ByWeekday: []string{"SU", "FR", "MO", "FR"},
			},
			want: "RRULE:FREQ=WEEKLY;BYDAY=MO,FR,SU",
		},
		{
			name: "weekly empty weekday set omits BYDAY",
			spec: RecurrenceSpec{Frequency: FrequencyWeekly, Interval: 2},
			want: "RRULE:FREQ=WEEKLY;INTERVAL=2",
		},
		{
			name: "monthly with count",
			spec: RecurrenceSpec{
				Frequency:  FrequencyMonthly,
				ByMonthDay: 15,
				Count:      intPtr(5),
			},
			want: "RRULE:FREQ=MONTHLY;BYMONTHDAY=15;COUNT=5",
		},
		{
			name: "stale weekday set ignored for monthly",
			spec: RecurrenceSpec{
				Frequency:  FrequencyMonthly,
				ByWeekday:  []string{"MO", "TU"},
				ByMonthDay: 3,
			},
			want: "RRULE:FREQ=MONTHLY;BYMONTHDAY=3",
		},
		{
			name: "stale monthday ignored for weekly",
			spec: RecurrenceSpec{
				Frequency:  FrequencyWeekly,
				ByWeekday:  []string{"TU"},
				ByMonthDay: 12,
			},
			want: "RRULE:FREQ=WEEKLY;BYDAY=TU",
		},
		{
			name: "until truncated to utc midnight",
			spec: func() RecurrenceSpec {
				u := time.Date(2025, time.March, 10, 17, 45, 3, 0, time.UTC)
				return RecurrenceSpec{Frequency: FrequencyDaily, Until: &u}
			}(),
			want: "RRULE:FREQ=DAILY;UNTIL=20250310T000000Z",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := EncodeRule(tt.spec)
			if got != tt.want {
				t.Fatalf("EncodeRule = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEncodeRule_UntilWinsOverCount(t *testing.T) {
	spec := RecurrenceSpec{
		Frequency: FrequencyDaily,
		Until:     datePtr(2024, time.June, 1),
		Count:     intPtr(10),
	}

	got, diags := EncodeRule(spec)
	if got != "RRULE:FREQ=DAILY;UNTIL=20240601T000000Z" {
		t.Fatalf("EncodeRule = %q", got)
	}
	if len(diags) != 1 {
		t.Fatalf("len(diags) = %d, want 1", len(diags))
	}
	if strings.Contains(got, "COUNT") {
		t.Fatalf("COUNT leaked into rule: %q", got)
	}
}

func TestDecodeRule_EmptyAndNonRule(t *testing.T) {
	spec, diags := DecodeRule("")
	if spec.Frequency != FrequencyNone {
		t.Fatalf("frequency = %q, want %q", spec.Frequency, FrequencyNone)
	}
	if len(diags) != 0 {
		t.Fatalf("diags = %v, want none", diags)
	}

	spec, _ = DecodeRule("DTSTART:20240101T000000Z")
	if spec.Frequency != FrequencyNone {
		t.Fatalf("frequency = %q, want %q", spec.Frequency, FrequencyNone)
	}
}

func TestDecodeRule_FailSoft(t *testing.T) {
	tests := []struct {
		name      string
		rule      string
		wantDiags int
		check     func(t *testing.T, spec RecurrenceSpec)
	}{
		{
			name:      "unsupported frequency degrades to none",
			rule:      "RRULE:FREQ=YEARLY;INTERVAL=2",
			wantDiags: 1,
			check: func(t *testing.T, spec RecurrenceSpec) {
				if spec.Frequency != FrequencyNone {
					t.Fatalf("frequency = %q, want none", spec.Frequency)
				}
			},
		},
		{
			name:      "unrecognized weekday token dropped",
			rule:      "RRULE:FREQ=WEEKLY;BYDAY=MO,XX,FR",
			wantDiags: 1,
			check: func(t *testing.T, spec RecurrenceSpec) {
				if !reflect.DeepEqual(spec.ByWeekday, []string{"MO", "FR"}) {
					t.Fatalf("byweekday = %v, want [MO FR]", spec.ByWeekday)
				}
			},
		},
		{
			name:      "malformed until falls back to never",
			rule:      "RRULE:FREQ=DAILY;UNTIL=2024",
			wantDiags: 1,
			check: func(t *testing.T, spec RecurrenceSpec) {
				if spec.Until != nil || spec.Count != nil {
					t.Fatalf("end = until:%v count:%v, want never", spec.Until, spec.Count)
				}
			},
		},
		{
			name:      "non-numeric until falls back to never",
			rule:      "RRULE:FREQ=DAILY;UNTIL=abcdefgh",
			wantDiags: 1,
			check: func(t *testing.T, spec RecurrenceSpec) {
				if spec.Until != nil {
					t.Fatalf("until = %v, want nil", spec.Until)
				}
			},
		},
		{
			name:      "until wins over count",
			rule:      "RRULE:FREQ=DAILY;UNTIL=20241231T000000Z;COUNT=4",
			wantDiags: 1,
			check: func(t *testing.T, spec RecurrenceSpec) {
				if spec.Until == nil || spec.Count != nil {
					t.Fatalf("end = until:%v count:%v, want until only", spec.Until, spec.Count)
				}
			},
		},
		{
			name:      "out of range monthday ignored",
			rule:      "RRULE:FREQ=MONTHLY;BYMONTHDAY=42",
			wantDiags: 0,
			check: func(t *testing.T, spec RecurrenceSpec) {
				if spec.ByMonthDay != 0 {
					t.Fatalf("bymonthday = %d, want 0", spec.ByMonthDay)
				}
			},
		},
		{
			name:      "unparsable interval defaults to one",
			rule:      "RRULE:FREQ=DAILY;INTERVAL=x",
			wantDiags: 0,
			check: func(t *testing.T, spec RecurrenceSpec) {
				if spec.Interval != 1 {
					t.Fatalf("interval = %d, want 1", spec.Interval)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, diags := DecodeRule(tt.rule)
			if len(diags) != tt.wantDiags {
				t.Fatalf("len(diags) = %d (%v), want %d", len(diags), diags, tt.wantDiags)
			}
			tt.check(t, spec)
		})
	}
}

func TestDecodeRule_ParsesUntilBySubstringOffsets(t *testing.T) {
	spec, diags := DecodeRule("RRULE:FREQ=WEEKLY;BYDAY=MO;UNTIL=20241231T000000Z")
	if len(diags) != 0 {
		t.Fatalf("diags = %v, want none", diags)
	}
	if spec.Until == nil {
		t.Fatalf("until = nil")
	}
	want := time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC)
	if !spec.Until.Equal(want) {
		t.Fatalf("until = %v, want %v", spec.Until, want)
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	specs := []RecurrenceSpec{
		{Frequency: FrequencyDaily},
		{Frequency: FrequencyDaily, Interval: 4, Count: intPtr(7)},
		{Frequency: FrequencyWeekly, ByWeekday: []string{"FR", "MO"}},
		{Frequency: FrequencyWeekly, Interval: 2, ByWeekday: []string{"SA", "SU"}, Until: datePtr(2025, time.January, 6)},
		{Frequency: FrequencyWeekly, Interval: 1, Count: intPtr(12)},
		{Frequency: FrequencyMonthly, ByMonthDay: 1},
		{Frequency: FrequencyMonthly, Interval: 6, ByMonthDay: 31, Until: datePtr(2026, time.July, 4)},
		{Frequency: FrequencyMonthly, ByMonthDay: 15, Count: intPtr(5)},
		// Defensive inputs: stale inactive fields, both end conditions.
		{Frequency: FrequencyDaily, ByWeekday: []string{"MO"}, ByMonthDay: 9},
		{Frequency: FrequencyWeekly, ByWeekday: []string{"WE", "WE", "TU"}, Until: datePtr(2024, time.May, 1), Count: intPtr(3)},
	}

	for _, spec := range specs {
		rule, _ := EncodeRule(spec)
		decoded, _ := DecodeRule(rule)
		want := Normalize(spec)
		if !reflect.DeepEqual(decoded, want) {
			t.Fatalf("round trip mismatch for %+v:\nrule    = %q\ndecoded = %+v\nwant    = %+v", spec, rule, decoded, want)
		}
	}
}

func TestNormalize_NonRecurringCollapses(t *testing.T) {
	spec := Normalize(RecurrenceSpec{Frequency: FrequencyNone, Interval: 9, ByWeekday: []string{"MO"}, ByMonthDay: 3})
	if !reflect.DeepEqual(spec, RecurrenceSpec{Frequency: FrequencyNone, Interval: 1}) {
		t.Fatalf("normalized = %+v", spec)
	}

	spec = Normalize(RecurrenceSpec{})
	if spec.Frequency != FrequencyNone {
		t.Fatalf("frequency = %q, want none", spec.Frequency)
	}
}
