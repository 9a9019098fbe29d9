// Package memstore is an in-memory repository.Store. Transactions are
// serialized and copy-on-write: InTx clones the state, runs the function
// against the clone and swaps it in only when the function succeeds. Every
// uniqueness constraint of the Postgres schema is enforced here too, so
// constraint-driven code paths behave identically.
package memstore

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/dukerupert/motorworks/internal/address"
	"github.com/dukerupert/motorworks/internal/domain"
	"github.com/dukerupert/motorworks/internal/repository"
	"github.com/google/uuid"
)

type seqKey struct {
	scope string
	day   time.Time
}

type addressRecord struct {
	userID uuid.UUID
	addr   address.Address
}

// state holds the tables. Values are treated as immutable: writes replace
// entries rather than mutating them, so a shallow map copy is a snapshot.
type state struct {
	products  map[uuid.UUID]domain.Product
	services  map[uuid.UUID]domain.Service
	addOns    map[uuid.UUID]domain.ServiceAddOn
	addresses map[uuid.UUID]addressRecord

	carts     map[uuid.UUID]domain.Cart
	cartItems map[uuid.UUID]domain.CartItem
	sequences map[seqKey]int

	orders   map[uuid.UUID]domain.Order
	bookings map[uuid.UUID]domain.Booking
	blocks   map[uuid.UUID]domain.SlotBlock
	payments map[uuid.UUID]domain.Payment
	refunds  map[uuid.UUID]domain.PaymentRefund
}

func newState() *state {
	return &state{
		products:  make(map[uuid.UUID]domain.Product),
		services:  make(map[uuid.UUID]domain.Service),
		addOns:    make(map[uuid.UUID]domain.ServiceAddOn),
		addresses: make(map[uuid.UUID]addressRecord),
		carts:     make(map[uuid.UUID]domain.Cart),
		cartItems: make(map[uuid.UUID]domain.CartItem),
		sequences: make(map[seqKey]int),
		orders:    make(map[uuid.UUID]domain.Order),
		bookings:  make(map[uuid.UUID]domain.Booking),
		blocks:    make(map[uuid.UUID]domain.SlotBlock),
		payments:  make(map[uuid.UUID]domain.Payment),
		refunds:   make(map[uuid.UUID]domain.PaymentRefund),
	}
}

func (s *state) clone() *state {
	return &state{
		products:  maps.Clone(s.products),
		services:  maps.Clone(s.services),
		addOns:    maps.Clone(s.addOns),
		addresses: maps.Clone(s.addresses),
		carts:     maps.Clone(s.carts),
		cartItems: maps.Clone(s.cartItems),
		sequences: maps.Clone(s.sequences),
		orders:    maps.Clone(s.orders),
		bookings:  maps.Clone(s.bookings),
		blocks:    maps.Clone(s.blocks),
		payments:  maps.Clone(s.payments),
		refunds:   maps.Clone(s.refunds),
	}
}

// Store implements repository.Store in memory.
type Store struct {
	*querier
	mu sync.Mutex
}

var _ repository.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	s := &Store{}
	s.querier = &querier{st: newState(), mu: &s.mu}
	return s
}

// InTx serializes fn against every other call on the store.
func (s *Store) InTx(ctx context.Context, fn func(q repository.Querier) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &querier{st: s.querier.st.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.querier.st = tx.st
	return nil
}

// =============================================================================
// Seeding. The catalog and identity collaborators own these records; the
// store accepts them directly so the core can run standalone.
// =============================================================================

func (s *Store) PutProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.products[p.ID] = p
}

func (s *Store) PutService(svc domain.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.services[svc.ID] = svc
}

func (s *Store) PutAddOn(a domain.ServiceAddOn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.addOns[a.ID] = a
}

// PutAddress stores an address owned by userID and returns its ID.
func (s *Store) PutAddress(userID uuid.UUID, a address.Address) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	s.st.addresses[id] = addressRecord{userID: userID, addr: a}
	return id
}
