// Package room provides the Room domain entity and its queue mechanics.
package room

import (
	"sort"
	"time"

	"github.com/osa030/satsbox/internal/domain/request"
)

// CloseReason describes why a room was closed.
type CloseReason string

const (
	CloseReasonHostClosed       CloseReason = "host_closed"
	CloseReasonHostDisconnected CloseReason = "host_disconnected"
	CloseReasonAllLeft          CloseReason = "all_left"
)

// Room holds all server-side state of a listening room. It carries no locks;
// concurrent access is serialized by the room registry.
type Room struct {
	Code      string    // 6-char shareable code
	HostID    string    // Client ID of the current host connection
	HostToken string    // Durable credential for host rejoin, never sent to guests
	CreatedAt time.Time // Creation time

	Members          []string           // Client IDs, in join order (host first)
	CurrentlyPlaying *request.Request   // Nil when nothing is playing
	RequestQueue     []request.Request  // Sorted non-increasing by amount
	PlayedRequests   []request.Request  // Finished requests, in play order
	PendingInvoices  []request.PendingInvoice

	HostDisconnected bool // True while the grace period is running
}

// New creates a room with the given host as its only member.
func New(code, hostID, hostToken string) *Room {
	return &Room{
		Code:      code,
		HostID:    hostID,
		HostToken: hostToken,
		CreatedAt: time.Now(),
		Members:   []string{hostID},
	}
}

// IsHost reports whether the client is the current host connection.
func (r *Room) IsHost(clientID string) bool {
	return r.HostID == clientID
}

// HasMember reports whether the client is a member of the room.
func (r *Room) HasMember(clientID string) bool {
	for _, id := range r.Members {
		if id == clientID {
			return true
		}
	}
	return false
}

// AddMember appends a member if not already present.
func (r *Room) AddMember(clientID string) {
	if !r.HasMember(clientID) {
		r.Members = append(r.Members, clientID)
	}
}

// RemoveMember removes a member. Returns true if the member was present.
func (r *Room) RemoveMember(clientID string) bool {
	for i, id := range r.Members {
		if id == clientID {
			r.Members = append(r.Members[:i], r.Members[i+1:]...)
			return true
		}
	}
	return false
}

// IsEmpty reports whether the room has no members left.
func (r *Room) IsEmpty() bool {
	return len(r.Members) == 0
}

// Enqueue adds a request to the room. When nothing is playing the request
// starts immediately and bypasses the queue; otherwise it is inserted into
// the sorted position for its amount, after existing requests with the same
// amount. Returns true when the request became the currently playing item.
func (r *Room) Enqueue(req request.Request) bool {
	if r.CurrentlyPlaying == nil {
		r.CurrentlyPlaying = &req
		return true
	}

	// Binary search for the first entry with a strictly smaller amount.
	// Equal amounts keep arrival order.
	i := sort.Search(len(r.RequestQueue), func(i int) bool {
		return r.RequestQueue[i].Amount < req.Amount
	})
	r.RequestQueue = append(r.RequestQueue, request.Request{})
	copy(r.RequestQueue[i+1:], r.RequestQueue[i:])
	r.RequestQueue[i] = req
	return false
}

// Advance moves the currently playing request (if any) to the played history
// and promotes the queue head. It is a no-op on an idle room with an empty
// queue.
func (r *Room) Advance() {
	if r.CurrentlyPlaying != nil {
		r.PlayedRequests = append(r.PlayedRequests, *r.CurrentlyPlaying)
		r.CurrentlyPlaying = nil
	}
	r.promoteHead()
}

// SkipCurrent discards the currently playing request without recording it in
// the played history, then promotes the queue head.
func (r *Room) SkipCurrent() {
	r.CurrentlyPlaying = nil
	r.promoteHead()
}

func (r *Room) promoteHead() {
	if len(r.RequestQueue) == 0 {
		return
	}
	next := r.RequestQueue[0]
	r.RequestQueue = r.RequestQueue[1:]
	r.CurrentlyPlaying = &next
}

// AddPendingInvoice tracks an issued invoice. Returns false if an invoice
// with the same payment hash is already pending.
func (r *Room) AddPendingInvoice(inv request.PendingInvoice) bool {
	for i := range r.PendingInvoices {
		if r.PendingInvoices[i].PaymentHash == inv.PaymentHash {
			return false
		}
	}
	r.PendingInvoices = append(r.PendingInvoices, inv)
	return true
}

// RemovePendingInvoice removes the invoice with the given payment hash.
// Returns the removed invoice and true if it was present.
func (r *Room) RemovePendingInvoice(paymentHash string) (request.PendingInvoice, bool) {
	for i := range r.PendingInvoices {
		if r.PendingInvoices[i].PaymentHash == paymentHash {
			inv := r.PendingInvoices[i]
			r.PendingInvoices = append(r.PendingInvoices[:i], r.PendingInvoices[i+1:]...)
			return inv, true
		}
	}
	return request.PendingInvoice{}, false
}
