package domain

import (
	"time"

	"github.com/google/uuid"
)

type VehicleInfo struct {
	Make         string `json:"make,omitempty"`
	Model        string `json:"model,omitempty"`
	Year         int    `json:"year,omitempty"`
	VIN          string `json:"vin,omitempty"`
	LicensePlate string `json:"license_plate,omitempty"`
}

// CivilDate truncates t to its calendar day and returns it as UTC midnight,
// the form in which scheduled dates are stored and compared.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Booking is a service appointment occupying one slot. ScheduledDate is a
// civil date (see CivilDate); the hour is business-local wall time.
type Booking struct {
	ID                 uuid.UUID     `json:"id"`
	BookingNumber      string        `json:"booking_number"`
	UserID             uuid.UUID     `json:"user_id"`
	ServiceID          uuid.UUID     `json:"service_id"`
	ScheduledDate      time.Time     `json:"scheduled_date"`
	ScheduledHour      int           `json:"scheduled_hour"`
	DurationHours      int           `json:"duration_hours"`
	BasePriceCents     int64         `json:"base_price_cents"`
	AddOnsCents        int64         `json:"add_ons_cents"`
	TotalCents         int64         `json:"total_cents"`
	Status             BookingStatus `json:"status"`
	Vehicle            *VehicleInfo  `json:"vehicle,omitempty"`
	Notes              string        `json:"notes,omitempty"`
	CancellationReason string        `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
	ConfirmedAt        *time.Time    `json:"confirmed_at,omitempty"`
	CompletedAt        *time.Time    `json:"completed_at,omitempty"`
	CancelledAt        *time.Time    `json:"cancelled_at,omitempty"`

	AddOns []BookingAddOn `json:"add_ons"`
}

// StartsAt returns the appointment start as wall-clock time in loc.
func (b Booking) StartsAt(loc *time.Location) time.Time {
	y, m, d := b.ScheduledDate.Date()
	return time.Date(y, m, d, b.ScheduledHour, 0, 0, 0, loc)
}

// Overlaps reports whether the booking occupies any hour of [hour, hour+duration).
func (b Booking) Overlaps(hour, duration int) bool {
	return hour < b.ScheduledHour+b.DurationHours && b.ScheduledHour < hour+duration
}

// BookingAddOn is a name/price snapshot taken at booking time.
type BookingAddOn struct {
	ID         uuid.UUID `json:"id"`
	BookingID  uuid.UUID `json:"booking_id"`
	AddOnID    uuid.UUID `json:"add_on_id"`
	Name       string    `json:"name"`
	PriceCents int64     `json:"price_cents"`
}

// SlotBlock removes capacity administratively. A nil Hour blocks the whole day.
type SlotBlock struct {
	ID        uuid.UUID `json:"id"`
	ServiceID uuid.UUID `json:"service_id"`
	Date      time.Time `json:"date"`
	Hour      *int      `json:"hour,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
