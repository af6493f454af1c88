package schema

import (
	"strings"
	"time"
)

// DateLayout is the canonical day/month/4-digit-year form.
const DateLayout = "02/01/2006"

// DateForm identifies which accepted input form a date value matched.
type DateForm int

const (
	FormUnknown DateForm = iota
	FormCanonical
	FormDayMonthShortYear
	FormMonthDayYear
	FormMonthDayShortYear
	FormMonthYear
)

func (f DateForm) String() string {
	switch f {
	case FormCanonical:
		return "DD/MM/YYYY"
	case FormDayMonthShortYear:
		return "DD/MM/YY"
	case FormMonthDayYear:
		return "MM/DD/YYYY"
	case FormMonthDayShortYear:
		return "MM/DD/YY"
	case FormMonthYear:
		return "MM/YYYY"
	default:
		return "unknown"
	}
}

// monthYearDay is the day used when only month and year are known.
const monthYearDay = 15

// dateForms lists the accepted layouts in precedence order. The first
// layout that parses wins. Two-digit years follow the time package pivot:
// 00-68 map to 2000-2068 and 69-99 map to 1969-1999.
var dateForms = []struct {
	form   DateForm
	layout string
}{
	{FormCanonical, "2/1/2006"},
	{FormDayMonthShortYear, "2/1/06"},
	{FormMonthDayYear, "1/2/2006"},
	{FormMonthDayShortYear, "1/2/06"},
	{FormMonthYear, "1/2006"},
}

// ParseDate parses v using the accepted date forms and reports which form
// matched. It returns FormUnknown when nothing matched.
func ParseDate(v string) (time.Time, DateForm) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, FormUnknown
	}
	for _, f := range dateForms {
		t, err := time.Parse(f.layout, v)
		if err != nil {
			continue
		}
		if f.form == FormMonthYear {
			t = time.Date(t.Year(), t.Month(), monthYearDay, 0, 0, 0, 0, time.UTC)
		}
		return t, f.form
	}
	return time.Time{}, FormUnknown
}

// NormalizeDate rewrites v into the canonical DD/MM/YYYY form.
//
// Values that match none of the accepted forms are returned unchanged with
// FormUnknown; the function never fails. Normalizing a canonical value is a
// no-op.
func NormalizeDate(v string) (string, DateForm) {
	t, form := ParseDate(v)
	if form == FormUnknown {
		return v, FormUnknown
	}
	return t.Format(DateLayout), form
}
