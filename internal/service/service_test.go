package service_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/motorworks/internal/address"
	"github.com/dukerupert/motorworks/internal/domain"
	"github.com/dukerupert/motorworks/internal/memstore"
	"github.com/dukerupert/motorworks/internal/notify"
	"github.com/dukerupert/motorworks/internal/repository"
	"github.com/dukerupert/motorworks/internal/service"
	"github.com/google/uuid"
)

// Monday 2026-03-02 08:00 UTC.
var start = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// faultStore wraps the querier handed to transactions so tests can replace
// individual methods.
type faultStore struct {
	*memstore.Store
	wrap func(q repository.Querier) repository.Querier
}

var _ repository.Store = (*faultStore)(nil)

func (s *faultStore) InTx(ctx context.Context, fn func(q repository.Querier) error) error {
	return s.Store.InTx(ctx, func(q repository.Querier) error {
		if s.wrap != nil {
			q = s.wrap(q)
		}
		return fn(q)
	})
}

type env struct {
	store  *memstore.Store
	clock  *clock
	events *notify.Recorder
	opts   service.Options
	userID uuid.UUID
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		store:  memstore.New(),
		clock:  &clock{now: start},
		events: notify.NewRecorder(),
		userID: uuid.New(),
	}
	e.opts = service.Options{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Location: time.UTC,
		Now:      e.clock.Now,
		Events:   e.events,
	}
	return e
}

func (e *env) product(price int64, stock int) domain.Product {
	p := domain.Product{
		ID:             uuid.New(),
		SKU:            "SKU-" + uuid.NewString()[:8],
		Name:           "Brake rotor",
		PriceCents:     price,
		Category:       "brakes",
		Status:         domain.ProductStatusActive,
		TrackInventory: true,
		StockQuantity:  stock,
	}
	e.store.PutProduct(p)
	return p
}

var weekdays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}

// detailing is a two-hour service open 09:00-17:00 on weekdays.
func (e *env) detailing() domain.Service {
	svc := domain.Service{
		ID:            uuid.New(),
		Name:          "Full detail",
		PriceCents:    80000,
		DurationHours: 2,
		Schedule: domain.Schedule{
			OpenWeekdays: weekdays,
			HourRanges:   []domain.HourRange{{Start: 9, End: 17}},
		},
		MaxAdvanceDays: 60,
		Active:         true,
	}
	e.store.PutService(svc)
	return svc
}

func (e *env) address(state string) uuid.UUID {
	return e.store.PutAddress(e.userID, address.Address{
		FullName:     "Dana Rivera",
		AddressLine1: "12 Garage Way",
		City:         "Missoula",
		State:        state,
		PostalCode:   "59801",
		Country:      "US",
	})
}

// day returns the civil date offset days after start.
func day(offset int) time.Time {
	return time.Date(2026, 3, 2+offset, 0, 0, 0, 0, time.UTC)
}
