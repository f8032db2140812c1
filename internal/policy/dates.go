package policy

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cp25sy5-modjot/ledger-service/internal/domain"
)

var (
	isoDateRe    = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	dottedDateRe = regexp.MustCompile(`^(\d{1,2})[./](\d{1,2})[./](\d{4})$`)
	relativeRe   = regexp.MustCompile(`^in (\d+|a|an|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve) (day|week|month|year)s?$`)
	yearRe       = regexp.MustCompile(`^\d{4}$`)
	dayMonthRe   = regexp.MustCompile(`^(\d{1,2})(?:st|nd|rd|th)? (?:of )?([a-z]+)(?: (\d{4}))?$`)
	monthDayRe   = regexp.MustCompile(`^([a-z]+) (\d{1,2})(?:st|nd|rd|th)?(?: (\d{4}))?$`)
	monthYearRe  = regexp.MustCompile(`^(next )?([a-z]+)(?: (\d{4}))?$`)
	timeSuffixRe = regexp.MustCompile(`^(\S+)[t ]\d{1,2}:\d{2}(?::\d{2})?\S*$`)
)

var numberWords = map[string]int{
	"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
}

// leadingFillers are dropped from the front of a date phrase.
var leadingFillers = []string{"by ", "until ", "till ", "til ", "before ", "on ", "at ", "the ", "end of ", "in "}

// maxYears bounds how far a phrase may reach from the reference date. The
// store writes four-digit years.
const maxYears = 100

// Season ends, by last month.
var seasons = map[string]time.Month{
	"spring": time.May,
	"summer": time.August,
	"autumn": time.November,
	"fall":   time.November,
	"winter": time.February,
}

// ResolveDate turns a date phrase into a calendar day relative to ref. An
// empty phrase resolves to ref itself. Month-only phrases resolve to the
// last day of that month in its nearest future occurrence.
func ResolveDate(phrase string, ref time.Time) (time.Time, error) {
	p := strings.Trim(fold(phrase), " .,!?")
	if p == "" {
		return day(ref), nil
	}
	if m := timeSuffixRe.FindStringSubmatch(p); m != nil {
		p = m[1]
	}

	if d, ok := resolve(p, ref); ok && withinHorizon(d, ref) {
		return d, nil
	}
	return time.Time{}, domain.NewNormalizationError(domain.UnparseableDate, phrase)
}

func resolve(p string, ref time.Time) (time.Time, bool) {
	today := day(ref)

	switch p {
	case "today", "now", "heute":
		return today, true
	case "yesterday", "gestern":
		return today.AddDate(0, 0, -1), true
	case "tomorrow", "morgen":
		return today.AddDate(0, 0, 1), true
	case "end of year", "end of the year", "year end", "this year":
		return date(ref.Year(), time.December, 31, ref.Location()), true
	case "end of month", "end of the month", "this month":
		return endOfMonth(ref.Year(), ref.Month(), ref.Location()), true
	case "next week":
		return today.AddDate(0, 0, 7), true
	case "next month":
		n := time.Date(ref.Year(), ref.Month()+1, 1, 0, 0, 0, 0, ref.Location())
		return endOfMonth(n.Year(), n.Month(), ref.Location()), true
	case "next year":
		return date(ref.Year()+1, time.December, 31, ref.Location()), true
	}

	if m := isoDateRe.FindStringSubmatch(p); m != nil {
		return validDate(atoi(m[1]), atoi(m[2]), atoi(m[3]), ref.Location())
	}
	if m := dottedDateRe.FindStringSubmatch(p); m != nil {
		return validDate(atoi(m[3]), atoi(m[2]), atoi(m[1]), ref.Location())
	}
	if m := relativeRe.FindStringSubmatch(p); m != nil {
		n, ok := numberWords[m[1]]
		if !ok {
			n = atoi(m[1])
		}
		if n > maxYears*366 {
			return time.Time{}, false
		}
		switch m[2] {
		case "day":
			return today.AddDate(0, 0, n), true
		case "week":
			return today.AddDate(0, 0, 7*n), true
		case "month":
			return today.AddDate(0, n, 0), true
		case "year":
			return today.AddDate(n, 0, 0), true
		}
	}
	if yearRe.MatchString(p) {
		return date(atoi(p), time.December, 31, ref.Location()), true
	}
	if m := dayMonthRe.FindStringSubmatch(p); m != nil {
		if month, ok := monthFromName(m[2]); ok {
			return dayOfMonth(atoi(m[1]), month, m[3], ref)
		}
	}
	if m := monthDayRe.FindStringSubmatch(p); m != nil {
		if month, ok := monthFromName(m[1]); ok {
			return dayOfMonth(atoi(m[2]), month, m[3], ref)
		}
	}
	if m := monthYearRe.FindStringSubmatch(p); m != nil {
		next := m[1] != ""
		if end, ok := seasons[m[2]]; ok {
			return seasonEnd(end, next, m[3], ref), true
		}
		if month, ok := monthFromName(m[2]); ok {
			return monthEnd(month, next, m[3], ref), true
		}
	}

	for _, f := range leadingFillers {
		if rest, ok := strings.CutPrefix(p, f); ok && rest != "" {
			return resolve(rest, ref)
		}
	}
	return time.Time{}, false
}

// monthEnd resolves "june", "next june" and "june 2027" to the last day of
// the month.
func monthEnd(month time.Month, next bool, year string, ref time.Time) time.Time {
	loc := ref.Location()
	if year != "" {
		return endOfMonth(atoi(year), month, loc)
	}
	end := endOfMonth(ref.Year(), month, loc)
	if end.Before(day(ref)) || (next && month == ref.Month()) {
		end = endOfMonth(ref.Year()+1, month, loc)
	}
	return end
}

// seasonEnd resolves a season to its last day. "next summer" skips a summer
// that is already under way.
func seasonEnd(last time.Month, next bool, year string, ref time.Time) time.Time {
	loc := ref.Location()
	if year != "" {
		y := atoi(year)
		if last == time.February {
			y++
		}
		return endOfMonth(y, last, loc)
	}

	end := endOfMonth(ref.Year(), last, loc)
	if end.Before(day(ref)) {
		end = endOfMonth(ref.Year()+1, last, loc)
	}
	start := time.Date(end.Year(), last-2, 1, 0, 0, 0, 0, loc)
	if next && !day(ref).Before(start) {
		end = endOfMonth(end.Year()+1, last, loc)
	}
	return end
}

func dayOfMonth(d int, month time.Month, year string, ref time.Time) (time.Time, bool) {
	if year != "" {
		return validDate(atoi(year), int(month), d, ref.Location())
	}
	t, ok := validDate(ref.Year(), int(month), d, ref.Location())
	if ok && t.Before(day(ref)) {
		return validDate(ref.Year()+1, int(month), d, ref.Location())
	}
	return t, ok
}

var monthNames = []struct {
	name  string
	month time.Month
}{
	{"january", time.January}, {"januar", time.January},
	{"february", time.February}, {"februar", time.February},
	{"march", time.March}, {"marz", time.March},
	{"april", time.April},
	{"may", time.May}, {"mai", time.May},
	{"june", time.June}, {"juni", time.June},
	{"july", time.July}, {"juli", time.July},
	{"august", time.August},
	{"september", time.September},
	{"october", time.October}, {"oktober", time.October},
	{"november", time.November},
	{"december", time.December}, {"dezember", time.December},
}

// monthFromName accepts full names and abbreviations of at least three
// letters, English or German.
func monthFromName(m string) (time.Month, bool) {
	m = strings.TrimSuffix(m, ".")
	if len(m) < 3 {
		return 0, false
	}
	for _, n := range monthNames {
		if strings.HasPrefix(n.name, m) {
			return n.month, true
		}
	}
	return 0, false
}

func withinHorizon(d, ref time.Time) bool {
	diff := d.Year() - ref.Year()
	return diff >= -maxYears && diff <= maxYears && d.Year() >= 1 && d.Year() <= 9999
}

func validDate(y, m, d int, loc *time.Location) (time.Time, bool) {
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, loc)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

func date(y int, m time.Month, d int, loc *time.Location) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func endOfMonth(y int, m time.Month, loc *time.Location) time.Time {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, loc)
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
