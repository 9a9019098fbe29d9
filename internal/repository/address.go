package repository

import (
	"context"
	"errors"

	"github.com/dukerupert/motorworks/internal/address"
	"github.com/google/uuid"
)

// AddressBook adapts a Querier to address.Book.
type AddressBook struct {
	q Querier
}

var _ address.Book = (*AddressBook)(nil)

func NewAddressBook(q Querier) *AddressBook {
	return &AddressBook{q: q}
}

func (b *AddressBook) GetAddress(ctx context.Context, userID, addressID uuid.UUID) (*address.Address, error) {
	a, err := b.q.GetAddress(ctx, userID, addressID)
	if errors.Is(err, ErrNoRows) {
		return nil, address.ErrAddressNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
