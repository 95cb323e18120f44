// Package wallet provides the Lightning wallet client used to issue and
// track invoices for room requests.
package wallet

import "context"

// State represents the invoice state reported by the wallet backend.
type State int

const (
	StatePending State = iota // Not yet paid
	StateSettled              // Payment confirmed received
	StateFailed               // Terminally failed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateSettled:
		return "settled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Invoice represents a freshly issued invoice.
type Invoice struct {
	PaymentHash    string // Unique payment hash
	PaymentRequest string // BOLT11 payment request text
	Amount         int64  // Amount in sats
	Description    string // Invoice description
}

// Info describes the connected wallet.
type Info struct {
	Name    string // Wallet display name
	Balance int64  // Balance in msats
}

// Client is the interface to a Lightning wallet backend. One client is held
// per room for the room's lifetime and closed exactly once when the room
// closes.
type Client interface {
	// MakeInvoice creates an invoice for the given amount in sats.
	MakeInvoice(ctx context.Context, amountSats int64, description string) (*Invoice, error)
	// LookupInvoice returns the current state of an invoice.
	LookupInvoice(ctx context.Context, paymentHash string) (State, error)
	// GetInfo fetches wallet metadata, used to validate the connection.
	GetInfo(ctx context.Context) (*Info, error)
	// Close releases the connection.
	Close()
}
