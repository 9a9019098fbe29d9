// Package availability computes open booking slots for a service.
//
// Compute is a pure function of the service rules, the live bookings and the
// administrative blocks for a date range: calling it twice with the same
// inputs yields the same result.
package availability

import (
	"slices"
	"time"

	"github.com/dukerupert/motorworks/internal/domain"
)

// DaySlots lists the open start hours of one civil day.
type DaySlots struct {
	Date  time.Time `json:"date"`
	Hours []int     `json:"hours"`
}

// Engine evaluates schedules in the business's time zone.
type Engine struct {
	loc *time.Location
}

func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{loc: loc}
}

func (e *Engine) Location() *time.Location {
	return e.loc
}

// Today returns the current civil date in the business time zone.
func (e *Engine) Today(now time.Time) time.Time {
	return domain.CivilDate(now.In(e.loc))
}

// DaysUntil counts calendar days from today to day; negative for past days.
func (e *Engine) DaysUntil(day, now time.Time) int {
	return int(domain.CivilDate(day).Sub(e.Today(now)).Hours() / 24)
}

// InWindow reports whether day lies inside the service's booking window.
// A MaxAdvanceDays of 0 means no upper bound.
func (e *Engine) InWindow(svc domain.Service, day, now time.Time) bool {
	n := e.DaysUntil(day, now)
	if n < 0 || n < svc.MinAdvanceDays {
		return false
	}
	return svc.MaxAdvanceDays <= 0 || n <= svc.MaxAdvanceDays
}

// HoursUntil is the time from now to the booking's start, in hours.
func (e *Engine) HoursUntil(b domain.Booking, now time.Time) float64 {
	return b.StartsAt(e.loc).Sub(now).Hours()
}

// Compute returns the open slots for every day in [from, to], sorted by
// date then hour. Days without any open slot are omitted. Bookings in a
// status that does not hold its slot are ignored.
func (e *Engine) Compute(svc domain.Service, bookings []domain.Booking, blocks []domain.SlotBlock, from, to, now time.Time) []DaySlots {
	if svc.DurationHours < 1 {
		return nil
	}

	var out []DaySlots
	for day := domain.CivilDate(from); !day.After(domain.CivilDate(to)); day = day.AddDate(0, 0, 1) {
		if hours := e.daySlots(svc, bookings, blocks, day, now); len(hours) > 0 {
			out = append(out, DaySlots{Date: day, Hours: hours})
		}
	}
	return out
}

func (e *Engine) daySlots(svc domain.Service, bookings []domain.Booking, blocks []domain.SlotBlock, day, now time.Time) []int {
	if !svc.Schedule.OpenOn(day.Weekday()) || !e.InWindow(svc, day, now) {
		return nil
	}

	var blockedHours []int
	for _, b := range blocks {
		if b.ServiceID != svc.ID || !domain.CivilDate(b.Date).Equal(day) {
			continue
		}
		if b.Hour == nil {
			return nil
		}
		blockedHours = append(blockedHours, *b.Hour)
	}

	var live []domain.Booking
	for _, b := range bookings {
		if b.ServiceID == svc.ID && b.Status.HoldsSlot() && domain.CivilDate(b.ScheduledDate).Equal(day) {
			live = append(live, b)
		}
	}
	if limit := svc.Schedule.MaxBookingsPerDay; limit > 0 && len(live) >= limit {
		return nil
	}

	d := svc.DurationHours
	var hours []int
	for _, r := range svc.Schedule.HourRanges {
		for h := r.Start; h+d <= r.End; h += d {
			if h < 0 || h > 23 {
				continue
			}
			if slices.ContainsFunc(live, func(b domain.Booking) bool { return b.Overlaps(h, d) }) {
				continue
			}
			if slices.ContainsFunc(blockedHours, func(bh int) bool { return bh >= h && bh < h+d }) {
				continue
			}
			start := time.Date(day.Year(), day.Month(), day.Day(), h, 0, 0, 0, e.loc)
			if !start.After(now) {
				continue
			}
			hours = append(hours, h)
		}
	}

	slices.Sort(hours)
	return slices.Compact(hours)
}

// Contains reports whether hour is open on day in slots.
func Contains(slots []DaySlots, day time.Time, hour int) bool {
	day = domain.CivilDate(day)
	for _, s := range slots {
		if s.Date.Equal(day) {
			return slices.Contains(s.Hours, hour)
		}
	}
	return false
}
