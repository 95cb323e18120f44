// Package request provides the Request and PendingInvoice domain entities.
package request

import "time"

// Request represents a single play request in a room. A request is immutable
// once created; it only moves between the queue, the currently-playing slot
// and the played history.
type Request struct {
	CreatedAt     time.Time // Creation time
	Amount        int64     // Bid amount in sats (0 for host requests)
	URL           string    // Link to the requested track/video
	RequesterID   string    // Client ID of the requester
	RequesterName string    // Display name at request time
	IsHostRequest bool      // True when inserted directly by the host
}

// New creates a request backed by a settled payment.
func New(amount int64, url, requesterID, requesterName string) Request {
	return Request{
		CreatedAt:     time.Now(),
		Amount:        amount,
		URL:           url,
		RequesterID:   requesterID,
		RequesterName: requesterName,
	}
}

// NewHostRequest creates an unpaid request inserted by the room host.
func NewHostRequest(url, hostID, hostName string) Request {
	return Request{
		CreatedAt:     time.Now(),
		URL:           url,
		RequesterID:   hostID,
		RequesterName: hostName,
		IsHostRequest: true,
	}
}

// PendingInvoice tracks an issued invoice that has not reached a terminal
// state yet. It is removed from the room on settlement, failure or expiry.
type PendingInvoice struct {
	PaymentHash   string    // Unique payment hash from the wallet
	InvoiceText   string    // BOLT11 payment request
	Amount        int64     // Invoiced amount in sats
	Description   string    // Invoice description shown to the payer
	CreatedAt     time.Time // Issue time
	ExpiresAt     time.Time // Deadline after which the invoice is dropped
	RequesterID   string    // Client ID of the requester
	RequesterURL  string    // URL to enqueue once the invoice settles
	RequesterName string    // Display name at request time
}

// Expired reports whether the invoice deadline has passed.
func (p *PendingInvoice) Expired(now time.Time) bool {
	return p.ExpiresAt.Before(now)
}
