// Package payments verifies payment confirmations against the gateway and
// applies them to orders exactly once.
package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"shop-service/models"
	"shop-service/store"
)

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrAlreadyPaid          = errors.New("order already paid")
	ErrGatewayVerification  = errors.New("payment not verified by gateway")
	ErrDuplicateTransaction = errors.New("payment id already used on another order")
	ErrAmountMismatch       = errors.New("paid amount does not match order total")
)

// OrderLedger is the slice of the order store the verifier needs.
type OrderLedger interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	FindByPaymentID(ctx context.Context, paymentID string) (*models.Order, error)
	MarkPaid(ctx context.Context, id primitive.ObjectID, result models.PaymentResult, paidAt time.Time) (*models.Order, error)
}

type Verifier struct {
	orders  OrderLedger
	gateway Gateway
	logger  *zap.Logger
	now     func() time.Time
}

func NewVerifier(orders OrderLedger, gateway Gateway, logger *zap.Logger) *Verifier {
	return &Verifier{
		orders:  orders,
		gateway: gateway,
		logger:  logger,
		now:     time.Now,
	}
}

// VerifyAndPay confirms the transaction with the gateway, checks the paid
// amount against the stored order total, rejects replayed payment ids and
// marks the order paid. Paid is terminal: re-verifying an already-paid order
// fails with ErrAlreadyPaid regardless of the new payment id.
//
// The pre-checks here give clean errors on the common paths; the conditional
// write in MarkPaid plus the unique index on the payment id are what make the
// outcome race-free (see store.OrderStore).
func (v *Verifier) VerifyAndPay(ctx context.Context, orderID primitive.ObjectID, transactionID string) (*models.Order, error) {
	order, err := v.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if order.IsPaid {
		return nil, ErrAlreadyPaid
	}

	tx, err := v.gateway.VerifyTransaction(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("gateway call failed: %w", err)
	}
	if !tx.Verified {
		v.logger.Warn("gateway rejected transaction",
			zap.String("order_id", orderID.Hex()),
			zap.String("transaction_id", transactionID),
			zap.String("status", tx.Status))
		return nil, fmt.Errorf("%w: status %q", ErrGatewayVerification, tx.Status)
	}

	existing, err := v.orders.FindByPaymentID(ctx, transactionID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if existing != nil && existing.ID != order.ID {
		return nil, ErrDuplicateTransaction
	}

	paid, err := decimal.NewFromString(tx.Amount)
	if err != nil {
		return nil, fmt.Errorf("gateway returned unparseable amount %q: %w", tx.Amount, err)
	}
	total := decimal.NewFromFloat(order.TotalPrice).Round(2)
	if !paid.Equal(total) {
		v.logger.Warn("payment amount mismatch",
			zap.String("order_id", orderID.Hex()),
			zap.String("paid", paid.StringFixed(2)),
			zap.String("total", total.StringFixed(2)))
		return nil, fmt.Errorf("%w: paid %s, order total %s", ErrAmountMismatch, paid.StringFixed(2), total.StringFixed(2))
	}

	result := models.PaymentResult{
		ID:         transactionID,
		Status:     tx.Status,
		UpdateTime: tx.UpdateTime,
		PayerEmail: tx.PayerEmail,
	}

	updated, err := v.orders.MarkPaid(ctx, orderID, result, v.now())
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateKey):
			return nil, ErrDuplicateTransaction
		case errors.Is(err, store.ErrAlreadyPaid):
			return nil, ErrAlreadyPaid
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	v.logger.Info("payment applied",
		zap.String("order_id", orderID.Hex()),
		zap.String("transaction_id", transactionID),
		zap.String("payer_email", tx.PayerEmail))
	return updated, nil
}
