// Package rooms provides the room registry, the single owner of all room
// state. Every mutation of a room goes through here and is serialized by a
// per-room lock.
package rooms

import (
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/satsbox/internal/domain/request"
	"github.com/osa030/satsbox/internal/domain/room"
	"github.com/osa030/satsbox/internal/infra/wallet"
)

// DefaultGracePeriod is how long a room survives after its host disconnects.
const DefaultGracePeriod = 5 * time.Minute

// NameResolver resolves client IDs to display names for client views.
type NameResolver interface {
	Name(clientID string) string
}

// state wraps a room with its lock and lifecycle resources.
type state struct {
	mu         sync.Mutex
	room       *room.Room
	wallet     wallet.Client
	graceTimer *time.Timer
	closed     bool
}

// Registry owns all live rooms.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*state

	names       NameResolver
	gracePeriod time.Duration
}

// NewRegistry creates a room registry.
func NewRegistry(names NameResolver, gracePeriod time.Duration) *Registry {
	if gracePeriod == 0 {
		gracePeriod = DefaultGracePeriod
	}
	return &Registry{
		rooms:       make(map[string]*state),
		names:       names,
		gracePeriod: gracePeriod,
	}
}

// get returns the state for a code, or nil when the room does not exist.
func (r *Registry) get(code string) *state {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rooms[code]
}

// Create creates a room for the given host, holding the validated wallet
// client for the room's lifetime. Returns the room code and the host token.
func (r *Registry) Create(hostID string, w wallet.Client) (string, string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var code string
	for {
		code = room.GenerateCode()
		if _, taken := r.rooms[code]; !taken {
			break
		}
	}

	token := uuid.NewString()
	r.rooms[code] = &state{
		room:   room.New(code, hostID, token),
		wallet: w,
	}
	return code, token
}

// Exists reports whether a live room has the given code.
func (r *Registry) Exists(code string) bool {
	return r.get(code) != nil
}

// Codes returns the codes of all live rooms.
func (r *Registry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	codes := make([]string, 0, len(r.rooms))
	for code := range r.rooms {
		codes = append(codes, code)
	}
	return codes
}

// Wallet returns the wallet client held by a room.
func (r *Registry) Wallet(code string) (wallet.Client, bool) {
	s := r.get(code)
	if s == nil {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false
	}
	return s.wallet, true
}

// IsHost reports whether the client is the current host of the room.
func (r *Registry) IsHost(code, clientID string) bool {
	s := r.get(code)
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.room.IsHost(clientID)
}

// HostID returns the current host connection ID of a room.
func (r *Registry) HostID(code string) (string, bool) {
	s := r.get(code)
	if s == nil {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", false
	}
	return s.room.HostID, true
}

// AddMember adds a client to a room. Returns false if the room is gone.
func (r *Registry) AddMember(code, clientID string) bool {
	s := r.get(code)
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.room.AddMember(clientID)
	return true
}

// RemoveMember removes a client from a room. Returns false if the room is
// gone or the client was not a member.
func (r *Registry) RemoveMember(code, clientID string) bool {
	s := r.get(code)
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	return s.room.RemoveMember(clientID)
}

// Members returns the member client IDs of a room.
func (r *Registry) Members(code string) []string {
	s := r.get(code)
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	members := make([]string, len(s.room.Members))
	copy(members, s.room.Members)
	return members
}

// IsEmpty reports whether the room has no members. A missing room counts as
// empty.
func (r *Registry) IsEmpty(code string) bool {
	s := r.get(code)
	if s == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed || s.room.IsEmpty()
}

// StartGracePeriod marks the host as disconnected and arms the grace timer.
// onExpire runs at most once, off the room lock, and only if the host has
// not rejoined and the room still exists.
func (r *Registry) StartGracePeriod(code string, onExpire func(code string)) bool {
	s := r.get(code)
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}

	s.room.HostDisconnected = true
	if s.graceTimer != nil {
		s.graceTimer.Stop()
	}
	s.graceTimer = time.AfterFunc(r.gracePeriod, func() {
		s.mu.Lock()
		expired := !s.closed && s.room.HostDisconnected
		s.mu.Unlock()
		if expired {
			zlog.Info().Msgf("grace period expired: room=%s", code)
			onExpire(code)
		}
	})
	zlog.Info().Msgf("grace period started: room=%s window=%s", code, r.gracePeriod)
	return true
}

// CancelGracePeriod stops the grace timer and clears the disconnected flag.
// Safe to call when no grace period is running.
func (r *Registry) CancelGracePeriod(code string) bool {
	s := r.get(code)
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.cancelGraceLocked()
	return true
}

func (s *state) cancelGraceLocked() {
	if s.graceTimer != nil {
		s.graceTimer.Stop()
		s.graceTimer = nil
	}
	s.room.HostDisconnected = false
}

// RejoinAsHost validates the presented host token and, on success, promotes
// the new connection to host, cancels the grace period and re-adds the
// member. An invalid token leaves the room untouched.
func (r *Registry) RejoinAsHost(code, hostToken, newClientID string) bool {
	s := r.get(code)
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.room.HostToken != hostToken {
		return false
	}

	s.room.RemoveMember(s.room.HostID)
	s.room.HostID = newClientID
	s.room.AddMember(newClientID)
	s.cancelGraceLocked()
	zlog.Info().Msgf("host rejoined: room=%s host=%s", code, newClientID)
	return true
}

// AddToQueue inserts a request preserving the descending-amount order.
// Returns started=true when the request became the currently playing item
// because the room was idle, and ok=false when the room is gone.
func (r *Registry) AddToQueue(code string, req request.Request) (started, ok bool) {
	s := r.get(code)
	if s == nil {
		return false, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, false
	}
	return s.room.Enqueue(req), true
}

// Advance moves the currently playing request to history and promotes the
// queue head. Advancing an idle room with an empty queue is a no-op.
func (r *Registry) Advance(code string) bool {
	s := r.get(code)
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.room.Advance()
	return true
}

// Skip discards the currently playing request and promotes the queue head.
func (r *Registry) Skip(code string) bool {
	s := r.get(code)
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.room.SkipCurrent()
	return true
}

// AddPendingInvoice tracks an issued invoice on the room. Returns false when
// the room is gone or the payment hash is already pending.
func (r *Registry) AddPendingInvoice(code string, inv request.PendingInvoice) bool {
	s := r.get(code)
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	return s.room.AddPendingInvoice(inv)
}

// PendingSnapshot returns a copy of the room's pending invoices. The
// reconciler works from this snapshot so wallet lookups never run under the
// room lock.
func (r *Registry) PendingSnapshot(code string) ([]request.PendingInvoice, bool) {
	s := r.get(code)
	if s == nil {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false
	}
	pending := make([]request.PendingInvoice, len(s.room.PendingInvoices))
	copy(pending, s.room.PendingInvoices)
	return pending, true
}

// RemovePending removes a pending invoice, used for expiry and terminal
// failure. Returns false when the room is gone or the invoice was already
// removed concurrently.
func (r *Registry) RemovePending(code, paymentHash string) (request.PendingInvoice, bool) {
	s := r.get(code)
	if s == nil {
		return request.PendingInvoice{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return request.PendingInvoice{}, false
	}
	return s.room.RemovePendingInvoice(paymentHash)
}

// SettlePending converts a settled invoice into a queue request in one
// locked step, re-validating that the invoice is still pending. Returns the
// created request and whether it started playing immediately.
func (r *Registry) SettlePending(code, paymentHash string) (req request.Request, started, ok bool) {
	s := r.get(code)
	if s == nil {
		return request.Request{}, false, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return request.Request{}, false, false
	}

	inv, found := s.room.RemovePendingInvoice(paymentHash)
	if !found {
		return request.Request{}, false, false
	}

	req = request.New(inv.Amount, inv.RequesterURL, inv.RequesterID, inv.RequesterName)
	started = s.room.Enqueue(req)
	return req, started, true
}

// Delete closes a room and releases its resources: the grace timer is
// stopped and the wallet client is closed exactly once. Returns the final
// member list so callers can notify them, and false when the room was
// already gone.
func (r *Registry) Delete(code string) ([]string, bool) {
	r.mu.Lock()
	s := r.rooms[code]
	delete(r.rooms, code)
	r.mu.Unlock()

	if s == nil {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false
	}
	s.closed = true

	if s.graceTimer != nil {
		s.graceTimer.Stop()
		s.graceTimer = nil
	}
	s.wallet.Close()

	members := make([]string, len(s.room.Members))
	copy(members, s.room.Members)
	return members, true
}
