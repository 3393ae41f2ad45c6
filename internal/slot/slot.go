// Package slot turns recurring weekly working hours into bookable slot times.
// Everything here is pure: callers load windows and bookings and pass them in.
package slot

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	ErrInvalidClock = errors.New("hora inválida, se espera HH:MM")
	ErrInvalidDay   = errors.New("día de la semana inválido")
)

// Window is one recurring working window of a doctor.
type Window struct {
	Weekday time.Weekday
	Start   string // HH:MM
	End     string // HH:MM, exclusive
}

// ParseClock parses a strict HH:MM string into minutes since midnight.
func ParseClock(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, ErrInvalidClock
	}
	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return 0, ErrInvalidClock
		}
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	if h > 23 || m > 59 {
		return 0, ErrInvalidClock
	}
	return h*60 + m, nil
}

// FormatClock renders minutes since midnight as HH:MM.
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func (w Window) bounds() (start, end int, ok bool) {
	start, err := ParseClock(w.Start)
	if err != nil {
		return 0, 0, false
	}
	end, err = ParseClock(w.End)
	if err != nil {
		return 0, 0, false
	}
	return start, end, start < end
}

// Valid reports whether both bounds parse and Start is before End.
func (w Window) Valid() bool {
	_, _, ok := w.bounds()
	return ok
}

// Slots expands the window into start times step minutes apart.
// The last slot starts strictly before End. Invalid windows yield nil.
func (w Window) Slots(step int) []string {
	start, end, ok := w.bounds()
	if !ok || step <= 0 {
		return nil
	}
	out := make([]string, 0, (end-start)/step+1)
	for t := start; t < end; t += step {
		out = append(out, FormatClock(t))
	}
	return out
}

// Contains reports whether clock is a slot start time of the window.
func (w Window) Contains(clock string, step int) bool {
	start, end, ok := w.bounds()
	if !ok || step <= 0 {
		return false
	}
	t, err := ParseClock(clock)
	if err != nil {
		return false
	}
	return t >= start && t < end && (t-start)%step == 0
}

// String renders the window as "09:00 a 13:00".
func (w Window) String() string {
	return w.Start + " a " + w.End
}

// ForDay returns the valid windows for wd, in input order.
func ForDay(windows []Window, wd time.Weekday) []Window {
	var out []Window
	for _, w := range windows {
		if w.Weekday == wd && w.Valid() {
			out = append(out, w)
		}
	}
	return out
}

// Hours describes the working hours on wd, e.g. "09:00 a 13:00, 16:00 a 18:00".
func Hours(windows []Window, wd time.Weekday) string {
	day := ForDay(windows, wd)
	if len(day) == 0 {
		return ""
	}
	parts := make([]string, len(day))
	for i, w := range day {
		parts[i] = w.String()
	}
	return strings.Join(parts, ", ")
}

// Available reports whether clock is a slot of any window on wd.
func Available(windows []Window, wd time.Weekday, clock string, step int) bool {
	for _, w := range ForDay(windows, wd) {
		if w.Contains(clock, step) {
			return true
		}
	}
	return false
}

// Free computes the free slots of date.
//
// Only the calendar day of date is used. booked holds taken HH:MM values.
// When date is the same calendar day as now (both in clinic time), slots
// starting at or before the current minute are dropped. The result is sorted
// and free of duplicates when windows overlap.
func Free(windows []Window, booked []string, date, now time.Time, step int) []string {
	taken := make(map[string]struct{}, len(booked))
	for _, b := range booked {
		taken[b] = struct{}{}
	}

	sameDay := date.Year() == now.Year() && date.YearDay() == now.YearDay()
	nowMinutes := now.Hour()*60 + now.Minute()

	seen := make(map[string]struct{})
	out := []string{}
	for _, w := range ForDay(windows, date.Weekday()) {
		for _, s := range w.Slots(step) {
			if _, ok := taken[s]; ok {
				continue
			}
			if _, ok := seen[s]; ok {
				continue
			}
			if sameDay {
				if m, _ := ParseClock(s); m <= nowMinutes {
					continue
				}
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}

	// HH:MM sorts chronologically as text
	sort.Strings(out)
	return out
}

// ── weekday names ──

var dayNames = [...]string{"Domingo", "Lunes", "Martes", "Miércoles", "Jueves", "Viernes", "Sábado"}

// DayName returns the Spanish name of wd.
func DayName(wd time.Weekday) string {
	return dayNames[wd]
}

var dayAliases = map[string]time.Weekday{
	"domingo": time.Sunday, "lunes": time.Monday, "martes": time.Tuesday,
	"miércoles": time.Wednesday, "miercoles": time.Wednesday, "jueves": time.Thursday,
	"viernes": time.Friday, "sábado": time.Saturday, "sabado": time.Saturday,
}

// ParseDay parses a Spanish weekday name, with or without accents.
func ParseDay(name string) (time.Weekday, error) {
	wd, ok := dayAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDay, name)
	}
	return wd, nil
}
