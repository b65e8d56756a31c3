// Package calendar handles the YYYY-MM-DD calendar dates stored as strings.
package calendar

import (
	"fmt"
	"time"
)

// Layout is the storage and wire format of a calendar date.
const Layout = "2006-01-02"

// Parse validates s as a calendar date and returns it in canonical form.
func Parse(s string) (string, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return "", fmt.Errorf("date %q: want YYYY-MM-DD", s)
	}
	return t.Format(Layout), nil
}

// Valid reports whether s is a canonical calendar date.
func Valid(s string) bool {
	got, err := Parse(s)
	return err == nil && got == s
}

// Format renders t as a calendar date in t's location.
func Format(t time.Time) string {
	return t.Format(Layout)
}

// Window returns from/to bounds covering the days before and including today,
// so Window(now, 7) spans today and the seven previous days.
func Window(now time.Time, days int) (from, to string) {
	if days < 0 {
		days = 0
	}
	return Format(now.AddDate(0, 0, -days)), Format(now)
}
