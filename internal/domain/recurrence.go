package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Frequency string

const (
	FrequencyNone    Frequency = "none"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// weekdayOrder is the canonical BYDAY serialization order. Rules are always
// emitted in this order, not in the order the form collected the days.
var weekdayOrder = []string{"MO", "TU", "WE", "TH", "FR", "SA", "SU"}

func weekdayIndex(token string) int {
	for i, wd := range weekdayOrder {
		if wd == token {
			return i
		}
	}
	return -1
}

// RecurrenceSpec is the structured, form-editable shape of a recurrence
// rule. ByWeekday applies to weekly rules only, ByMonthDay to monthly rules
// only; the encoder ignores whichever is inactive for the chosen frequency.
// Until and Count both nil means the series never ends; when both are set
// Until wins.
type RecurrenceSpec struct {
	Frequency  Frequency
	Interval   int
	ByWeekday  []string
	ByMonthDay int
	Until      *time.Time
	Count      *int
}

func (s RecurrenceSpec) IsRecurring() bool {
	return s.Frequency != "" && s.Frequency != FrequencyNone
}

// EncodeRule serializes a spec into the provider's RRULE subset:
//
//	RRULE:FREQ=<F>[;INTERVAL=n][;BYDAY=MO,..][;BYMONTHDAY=n][;UNTIL=YYYYMMDDT000000Z|;COUNT=n]
//
// A non-recurring spec encodes to the empty string. INTERVAL is omitted when
// it is 1 so output stays stable for readers that default it. Diagnostics
// report recoverable inconsistencies; they never block encoding.
func EncodeRule(spec RecurrenceSpec) (string, []string) {
	if !spec.IsRecurring() {
		return "", nil
	}

	var diags []string
	var b strings.Builder
	b.WriteString("RRULE:FREQ=")
	b.WriteString(strings.ToUpper(string(spec.Frequency)))

	if spec.Interval > 1 {
		fmt.Fprintf(&b, ";INTERVAL=%d", spec.Interval)
	}

	if spec.Frequency == FrequencyWeekly {
		if days := canonicalWeekdays(spec.ByWeekday); len(days) > 0 {
			b.WriteString(";BYDAY=")
			b.WriteString(strings.Join(days, ","))
		}
	}

	if spec.Frequency == FrequencyMonthly && spec.ByMonthDay >= 1 && spec.ByMonthDay <= 31 {
		fmt.Fprintf(&b, ";BYMONTHDAY=%d", spec.ByMonthDay)
	}

	switch {
	case spec.Until != nil:
		if spec.Count != nil {
			diags = append(diags, "both until and count are set; keeping until and dropping count")
		}
		u := spec.Until.UTC()
		fmt.Fprintf(&b, ";UNTIL=%04d%02d%02dT000000Z", u.Year(), int(u.Month()), u.Day())
	case spec.Count != nil && *spec.Count >= 1:
		fmt.Fprintf(&b, ";COUNT=%d", *spec.Count)
	}

	return b.String(), diags
}

// DecodeRule parses a provider rule string back into a spec. It is the left
// inverse of EncodeRule: DecodeRule(EncodeRule(s)) equals Normalize(s) for
// every spec EncodeRule accepts. Malformed or unsupported input degrades to
// a non-recurring spec (or drops the offending part) with a diagnostic; it
// never fails.
func DecodeRule(rule string) (RecurrenceSpec, []string) {
	none := RecurrenceSpec{Frequency: FrequencyNone, Interval: 1}

	rule = strings.TrimSpace(rule)
	if rule == "" {
		return none, nil
	}
	body := strings.TrimPrefix(rule, "RRULE:")
	if !strings.HasPrefix(body, "FREQ=") {
		return none, []string{fmt.Sprintf("not a recurrence rule: %q", rule)}
	}

	var diags []string
	spec := RecurrenceSpec{Frequency: FrequencyNone, Interval: 1}
	var until *time.Time
	var count *int

	for _, part := range strings.Split(body, ";") {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		switch strings.ToUpper(strings.TrimSpace(key)) {
		case "FREQ":
			switch strings.ToUpper(strings.TrimSpace(value)) {
			case "DAILY":
				spec.Frequency = FrequencyDaily
			case "WEEKLY":
				spec.Frequency = FrequencyWeekly
			case "MONTHLY":
				spec.Frequency = FrequencyMonthly
			default:
				// The editing form has no representation for other
				// frequencies, so the whole rule degrades to none.
				diags = append(diags, fmt.Sprintf("unsupported FREQ value %q; treating rule as non-recurring", value))
				return none, diags
			}
		case "INTERVAL":
			if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && n >= 1 {
				spec.Interval = n
			}
		case "BYDAY":
			for _, token := range strings.Split(value, ",") {
				token = strings.ToUpper(strings.TrimSpace(token))
				if token == "" {
					continue
				}
				if weekdayIndex(token) < 0 {
					diags = append(diags, fmt.Sprintf("unrecognized BYDAY token %q dropped", token))
					continue
				}
				spec.ByWeekday = append(spec.ByWeekday, token)
			}
		case "BYMONTHDAY":
			if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && n >= 1 && n <= 31 {
				spec.ByMonthDay = n
			}
		case "UNTIL":
			t, ok := parseUntil(strings.TrimSpace(value))
			if !ok {
				diags = append(diags, fmt.Sprintf("malformed UNTIL value %q; treating end as never", value))
				continue
			}
			until = &t
		case "COUNT":
			if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && n >= 1 {
				count = &n
			}
		}
	}

	if until != nil && count != nil {
		diags = append(diags, "both UNTIL and COUNT present; keeping UNTIL and dropping COUNT")
		count = nil
	}
	spec.Until = until
	spec.Count = count

	return Normalize(spec), diags
}

// Normalize puts a spec into the canonical shape EncodeRule emits and
// DecodeRule returns: weekdays deduplicated and in MO..SU order, interval
// floored to 1, by-fields gated by frequency, Until truncated to UTC
// midnight and preferred over Count.
func Normalize(spec RecurrenceSpec) RecurrenceSpec {
	if !spec.IsRecurring() {
		return RecurrenceSpec{Frequency: FrequencyNone, Interval: 1}
	}

	out := RecurrenceSpec{Frequency: spec.Frequency, Interval: spec.Interval}
	if out.Interval < 1 {
		out.Interval = 1
	}

	switch spec.Frequency {
	case FrequencyWeekly:
		out.ByWeekday = canonicalWeekdays(spec.ByWeekday)
	case FrequencyMonthly:
		if spec.ByMonthDay >= 1 && spec.ByMonthDay <= 31 {
			out.ByMonthDay = spec.ByMonthDay
		}
	}

	switch {
	case spec.Until != nil:
		u := spec.Until.UTC()
		day := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
		out.Until = &day
	case spec.Count != nil && *spec.Count >= 1:
		c := *spec.Count
		out.Count = &c
	}

	return out
}

func canonicalWeekdays(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tokens))
	var out []string
	for _, wd := range weekdayOrder {
		for _, token := range tokens {
			if strings.ToUpper(strings.TrimSpace(token)) != wd {
				continue
			}
			if _, ok := seen[wd]; ok {
				break
			}
			seen[wd] = struct{}{}
			out = append(out, wd)
			break
		}
	}
	return out
}

// parseUntil reads the fixed-width YYYYMMDDTHHMMSSZ fragment by substring
// offsets. The provider format is fixed, so positional slicing is the whole
// contract; anything that does not fit it is rejected.
func parseUntil(value string) (time.Time, bool) {
	if len(value) < 8 {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(value[0:4])
	if err != nil {
		return time.Time{}, false
	}
	month, err := strconv.Atoi(value[4:6])
	if err != nil {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(value[6:8])
	if err != nil {
		return time.Time{}, false
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
}
