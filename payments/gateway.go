package payments

import "context"

// Transaction is the gateway's authoritative view of a payment.
type Transaction struct {
	ID         string
	Verified   bool
	Status     string
	Amount     string
	Currency   string
	PayerEmail string
	UpdateTime string
}

// Gateway fetches a transaction from the payment provider. Verified is false
// when the provider does not know the id or reports it as not completed.
type Gateway interface {
	VerifyTransaction(ctx context.Context, transactionID string) (*Transaction, error)
}
