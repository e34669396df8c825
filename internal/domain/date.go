package domain

import "time"

const DateLayout = "2006-01-02"

// Canonical is the zone every date key and "today" is computed in (Asia/Seoul, no DST).
var Canonical = time.FixedZone("KST", 9*60*60)

// DateKey formats t as a canonical date.
func DateKey(t time.Time) string {
	return t.In(Canonical).Format(DateLayout)
}

func Today(now time.Time) string {
	return DateKey(now)
}

// DaysAgo returns the canonical date n days before now.
func DaysAgo(now time.Time, n int) string {
	return DateKey(now.In(Canonical).AddDate(0, 0, -n))
}

func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, Canonical)
}

// DateRange lists every calendar day from..to inclusive, ascending.
func DateRange(from, to string) ([]string, error) {
	start, err := ParseDate(from)
	if err != nil {
		return nil, err
	}
	end, err := ParseDate(to)
	if err != nil {
		return nil, err
	}
	var out []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format(DateLayout))
	}
	return out, nil
}
