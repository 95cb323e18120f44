package ws

import (
	"context"
	"fmt"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/satsbox/internal/domain/request"
	"github.com/osa030/satsbox/internal/domain/room"
)

const makeInvoiceTimeout = 15 * time.Second

// handleMakeRequest creates an invoice for a guest's queue request. The
// request only enters the queue once the reconciler sees the invoice settle.
func (r *Router) handleMakeRequest(clientID string, env *Envelope) {
	var payload makeRequestPayload
	if err := decodePayload(env, &payload); err != nil {
		r.sendError(clientID, ErrInvoice, "malformed make-request payload", "")
		return
	}
	code, ok := r.clients.GetRoom(clientID)
	if !ok || (payload.RoomCode != "" && room.NormalizeCode(payload.RoomCode) != code) {
		r.sendError(clientID, ErrNotInRoom, "not in that room", payload.RoomCode)
		return
	}
	if payload.Amount <= 0 {
		r.sendError(clientID, ErrInvoice, "amount must be positive", code)
		return
	}
	if payload.URL == "" {
		r.sendError(clientID, ErrInvoice, "url is required", code)
		return
	}

	w, ok := r.rooms.Wallet(code)
	if !ok {
		r.sendError(clientID, ErrRoomNotFound, "no such room", code)
		return
	}

	description := fmt.Sprintf("room %s: %s", code, payload.URL)
	if payload.Comment != "" {
		description = fmt.Sprintf("room %s: %s (%s)", code, payload.URL, payload.Comment)
	}

	// The wallet call happens outside any room lock. The pending invoice is
	// re-checked against the room when it is registered below.
	ctx, cancel := context.WithTimeout(context.Background(), makeInvoiceTimeout)
	defer cancel()
	inv, err := w.MakeInvoice(ctx, payload.Amount, description)
	if err != nil {
		zlog.Warn().Msgf("invoice creation failed: room=%s client=%s err=%v", code, clientID, err)
		r.sendError(clientID, ErrInvoice, "could not create invoice", code)
		return
	}

	now := time.Now()
	pending := request.PendingInvoice{
		PaymentHash:   inv.PaymentHash,
		InvoiceText:   inv.PaymentRequest,
		Amount:        inv.Amount,
		Description:   inv.Description,
		CreatedAt:     now,
		ExpiresAt:     now.Add(time.Duration(r.walletCfg.InvoiceExpirySec) * time.Second),
		RequesterID:   clientID,
		RequesterURL:  payload.URL,
		RequesterName: r.clients.Name(clientID),
	}
	if !r.rooms.AddPendingInvoice(code, pending) {
		r.sendError(clientID, ErrInvoice, "room is no longer accepting requests", code)
		return
	}
	zlog.Info().Msgf("invoice generated: room=%s client=%s amount=%d", code, clientID, inv.Amount)

	r.send(clientID, "invoice-generated", invoiceGeneratedPayload{Invoice: generatedInvoice{
		PR:          inv.PaymentRequest,
		PaymentHash: inv.PaymentHash,
		Amount:      inv.Amount,
		Description: inv.Description,
		ExpiresAt:   pending.ExpiresAt.Unix(),
	}})
}

// handleHostRequest queues an item for the host directly, no payment
// involved.
func (r *Router) handleHostRequest(clientID string, env *Envelope) {
	var payload hostRequestPayload
	if err := decodePayload(env, &payload); err != nil {
		r.sendError(clientID, ErrInvoice, "malformed host-request payload", "")
		return
	}
	code, ok := r.clients.GetRoom(clientID)
	if !ok {
		r.sendError(clientID, ErrNotInRoom, "not in a room", "")
		return
	}
	if !r.rooms.IsHost(code, clientID) {
		r.sendError(clientID, ErrNotHost, "only the host can queue directly", code)
		return
	}
	if payload.URL == "" {
		r.sendError(clientID, ErrInvoice, "url is required", code)
		return
	}

	req := request.NewHostRequest(payload.URL, clientID, r.clients.Name(clientID))
	started, ok := r.rooms.AddToQueue(code, req)
	if !ok {
		r.sendError(clientID, ErrRoomNotFound, "no such room", code)
		return
	}
	if started {
		r.broadcastView(code, "now-playing")
		return
	}
	r.broadcastView(code, "item-queued")
}
