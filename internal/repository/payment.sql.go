package repository

import (
	"context"

	"github.com/dukerupert/motorworks/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const paymentColumns = `
id, order_id, booking_id, amount_cents, currency, method, provider, provider_transaction_id,
status, retry_count, failure_reason, billing_address, provider_metadata, requires_action, action_url,
refunded_cents, refund_pending_cents, created_at, updated_at, processed_at, failed_at, refunded_at
`

const insertPayment = `
INSERT INTO payments (` + paymentColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
`

func metadata(p domain.Payment) map[string]string {
	if p.ProviderMetadata == nil {
		return map[string]string{}
	}
	return p.ProviderMetadata
}

func (q *Queries) InsertPayment(ctx context.Context, p domain.Payment) error {
	_, err := q.db.Exec(ctx, insertPayment,
		p.ID, p.OrderID, p.BookingID, p.AmountCents, p.Currency, p.Method, p.Provider, p.ProviderTransactionID,
		p.Status, p.RetryCount, p.FailureReason, p.BillingAddress, metadata(p), p.RequiresAction, p.ActionURL,
		p.RefundedCents, p.RefundPendingCents, p.CreatedAt, p.UpdatedAt, p.ProcessedAt, p.FailedAt, p.RefundedAt,
	)
	return translate(err)
}

func scanPayment(row pgx.Row) (domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(
		&p.ID, &p.OrderID, &p.BookingID, &p.AmountCents, &p.Currency, &p.Method, &p.Provider, &p.ProviderTransactionID,
		&p.Status, &p.RetryCount, &p.FailureReason, &p.BillingAddress, &p.ProviderMetadata, &p.RequiresAction, &p.ActionURL,
		&p.RefundedCents, &p.RefundPendingCents, &p.CreatedAt, &p.UpdatedAt, &p.ProcessedAt, &p.FailedAt, &p.RefundedAt,
	)
	return p, translate(err)
}

func (q *Queries) GetPayment(ctx context.Context, id uuid.UUID) (domain.Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
}

// GetPaymentForUpdate locks the payment row until the transaction ends.
func (q *Queries) GetPaymentForUpdate(ctx context.Context, id uuid.UUID) (domain.Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, id))
}

func (q *Queries) GetPaymentByProviderTx(ctx context.Context, provider, transactionID string) (domain.Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments
WHERE provider = $1 AND provider_transaction_id = $2`, provider, transactionID))
}

const updatePayment = `
UPDATE payments SET
    status = $3,
    provider_transaction_id = $4,
    retry_count = $5,
    failure_reason = $6,
    billing_address = $7,
    provider_metadata = $8,
    requires_action = $9,
    action_url = $10,
    refunded_cents = $11,
    refund_pending_cents = $12,
    processed_at = $13,
    failed_at = $14,
    refunded_at = $15,
    updated_at = $16
WHERE id = $1 AND status = $2
`

// UpdatePayment writes every mutable field of p, provided the stored status
// still equals from.
func (q *Queries) UpdatePayment(ctx context.Context, p domain.Payment, from domain.PaymentStatus) (bool, error) {
	tag, err := q.db.Exec(ctx, updatePayment,
		p.ID, from, p.Status, p.ProviderTransactionID, p.RetryCount, p.FailureReason, p.BillingAddress,
		metadata(p), p.RequiresAction, p.ActionURL, p.RefundedCents, p.RefundPendingCents, p.ProcessedAt, p.FailedAt, p.RefundedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return false, translate(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (q *Queries) InsertPaymentRefund(ctx context.Context, r domain.PaymentRefund) error {
	_, err := q.db.Exec(ctx, `
INSERT INTO payment_refunds (id, payment_id, provider_refund_id, amount_cents, reason, status, expected_by, created_at, settled_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID, r.PaymentID, r.ProviderRefundID, r.AmountCents, r.Reason, r.Status, r.ExpectedBy, r.CreatedAt, r.SettledAt)
	return translate(err)
}

// SettlePaymentRefund records the provider's answer on a pending refund.
// It reports false when the refund is no longer pending.
func (q *Queries) SettlePaymentRefund(ctx context.Context, r domain.PaymentRefund) (bool, error) {
	tag, err := q.db.Exec(ctx, `
UPDATE payment_refunds SET provider_refund_id = $2, status = $3, settled_at = $4
WHERE id = $1 AND status = $5`,
		r.ID, r.ProviderRefundID, r.Status, r.SettledAt, domain.RefundStatusPending)
	if err != nil {
		return false, translate(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (q *Queries) ListPaymentRefunds(ctx context.Context, paymentID uuid.UUID) ([]domain.PaymentRefund, error) {
	rows, err := q.db.Query(ctx, `
SELECT id, payment_id, provider_refund_id, amount_cents, reason, status, expected_by, created_at, settled_at
FROM payment_refunds WHERE payment_id = $1 ORDER BY created_at, id`, paymentID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var refunds []domain.PaymentRefund
	for rows.Next() {
		var r domain.PaymentRefund
		if err := rows.Scan(&r.ID, &r.PaymentID, &r.ProviderRefundID, &r.AmountCents, &r.Reason,
			&r.Status, &r.ExpectedBy, &r.CreatedAt, &r.SettledAt); err != nil {
			return nil, err
		}
		refunds = append(refunds, r)
	}
	return refunds, rows.Err()
}
