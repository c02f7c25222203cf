// Package window generates the business dates a discovery run probes, most
// recent first, together with every textual form a results page may use.
package window

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects how far back a search reaches.
type Mode int

const (
	Normal Mode = iota
	Extended
)

func (m Mode) String() string {
	if m == Extended {
		return "extended"
	}
	return "normal"
}

// Config holds the number of business days probed in each mode.
type Config struct {
	NormalDays   int `yaml:"normal_days"`
	ExtendedDays int `yaml:"extended_days"`
}

// DefaultConfig returns two business days for normal mode and eight for
// extended mode.
func DefaultConfig() Config {
	return Config{
		NormalDays:   2,
		ExtendedDays: 8,
	}
}

// Days returns the day count for mode.
func (c Config) Days(mode Mode) int {
	if mode == Extended {
		return c.ExtendedDays
	}
	return c.NormalDays
}

var monthNames = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// SearchDate is one business day and the strings it may be rendered as.
type SearchDate struct {
	Date  time.Time
	Long  string // "4 de septiembre de 2025"
	Slash string // "04/09/2025"
	Dash  string // "04-09-2025"
	ISO   string // "2025-09-04"
}

// NewSearchDate builds the textual forms for t.
func NewSearchDate(t time.Time) SearchDate {
	y, m, d := t.Date()
	return SearchDate{
		Date:  time.Date(y, m, d, 0, 0, 0, 0, t.Location()),
		Long:  fmt.Sprintf("%d de %s de %d", d, monthNames[m-1], y),
		Slash: t.Format("02/01/2006"),
		Dash:  t.Format("02-01-2006"),
		ISO:   t.Format("2006-01-02"),
	}
}

// Patterns returns the lowercase strings that qualify a row for this date.
// The long form is also tried with " de " replaced by "/".
func (sd SearchDate) Patterns() []string {
	return []string{
		strings.ToLower(sd.Long),
		sd.Slash,
		sd.Dash,
		strings.ToLower(strings.ReplaceAll(sd.Long, " de ", "/")),
		sd.ISO,
	}
}

// Matches reports whether text mentions the date in any known form,
// ignoring case.
func (sd SearchDate) Matches(text string) bool {
	text = strings.ToLower(text)
	for _, pattern := range sd.Patterns() {
		if strings.Contains(text, pattern) {
			return true
		}
	}
	return false
}

func (sd SearchDate) String() string {
	return sd.Long
}

// Generate walks backward from today, skipping weekends, and returns days
// business dates, today first when it is a weekday.
func Generate(today time.Time, days int) []SearchDate {
	dates := make([]SearchDate, 0, max(days, 0))
	for current := today; len(dates) < days; current = current.AddDate(0, 0, -1) {
		if wd := current.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		dates = append(dates, NewSearchDate(current))
	}
	return dates
}
