package ws

import (
	"context"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/satsbox/internal/app/invoice"
	"github.com/osa030/satsbox/internal/app/registry"
	"github.com/osa030/satsbox/internal/app/rooms"
	"github.com/osa030/satsbox/internal/domain/request"
	"github.com/osa030/satsbox/internal/domain/room"
	"github.com/osa030/satsbox/internal/infra/wallet"
)

// walletConnector creates and validates a wallet client from a
// host-presented connection string. Swapped out in tests.
type walletConnector func(ctx context.Context, conn string, settings *wallet.Settings) (wallet.Client, error)

// handlerFunc handles one decoded inbound envelope from a client.
type handlerFunc func(clientID string, env *Envelope)

// Router decodes inbound envelopes and dispatches them to per-type
// handlers. It owns the broadcast and error primitives built on the client
// and room registries.
type Router struct {
	clients *registry.ClientRegistry
	rooms   *rooms.Registry

	reconciler *invoice.Reconciler
	connect    walletConnector
	walletCfg  *wallet.Settings

	handlers map[string]handlerFunc
}

// NewRouter creates a router over the given registries. BindReconciler must
// be called before the first connection is served.
func NewRouter(clients *registry.ClientRegistry, reg *rooms.Registry, walletCfg *wallet.Settings) *Router {
	r := &Router{
		clients:   clients,
		rooms:     reg,
		connect:   wallet.Connect,
		walletCfg: walletCfg,
	}
	r.handlers = map[string]handlerFunc{
		"create-room":  r.handleCreateRoom,
		"join-room":    r.handleJoinRoom,
		"leave-room":   r.handleLeaveRoom,
		"close-room":   r.handleCloseRoom,
		"host-rejoin":  r.handleHostRejoin,
		"room-message": r.handleRoomMessage,
		"make-request": r.handleMakeRequest,
		"host-request": r.handleHostRequest,
		"play-next":    r.handlePlayNext,
		"skip-current": r.handleSkipCurrent,
		"ping":         r.handlePing,
	}
	return r
}

// BindReconciler attaches the invoice reconciler. The reconciler is created
// after the router because it notifies through it.
func (r *Router) BindReconciler(rec *invoice.Reconciler) {
	r.reconciler = rec
}

// HandleConnect registers a fresh connection and pushes its assigned id.
func (r *Router) HandleConnect(clientID string, c registry.Conn) {
	r.clients.Add(clientID, c, "")
	zlog.Info().Msgf("client connected: client=%s", clientID)
	r.send(clientID, "welcome", welcomePayload{ClientID: clientID})
}

// HandleMessage routes one inbound frame. Malformed envelopes and unknown
// types are dropped without a response.
func (r *Router) HandleMessage(clientID string, data []byte) {
	env, err := parseEnvelope(data)
	if err != nil {
		zlog.Debug().Msgf("dropping malformed frame: client=%s err=%v", clientID, err)
		return
	}

	handler, ok := r.handlers[env.Type]
	if !ok {
		zlog.Debug().Msgf("dropping unhandled message type: client=%s type=%s", clientID, env.Type)
		return
	}
	handler(clientID, env)
}

// HandleDisconnect runs the same membership-removal path as an explicit
// leave, with the host case entering the grace period instead of closing
// the room.
func (r *Router) HandleDisconnect(clientID string) {
	zlog.Info().Msgf("client disconnected: client=%s", clientID)

	if code, ok := r.clients.GetRoom(clientID); ok {
		r.removeFromRoom(clientID, code, true)
	}
	r.clients.Remove(clientID)
}

// removeFromRoom takes a client out of a room and settles the aftermath:
// grace period for a disconnected host, room teardown when empty, member
// notifications otherwise.
func (r *Router) removeFromRoom(clientID, code string, disconnected bool) {
	isHost := r.rooms.IsHost(code, clientID)

	if !r.rooms.RemoveMember(code, clientID) {
		r.clients.ClearRoom(clientID)
		return
	}
	r.clients.ClearRoom(clientID)
	r.send(clientID, "room-left", roomLeftPayload{RoomCode: code})

	if isHost {
		if disconnected {
			// Keep the room alive awaiting a host-rejoin.
			r.rooms.StartGracePeriod(code, func(code string) {
				r.closeRoom(code, room.CloseReasonHostDisconnected)
			})
			r.broadcastView(code, "now-playing")
			return
		}
		r.closeRoom(code, room.CloseReasonHostClosed)
		return
	}

	if r.rooms.IsEmpty(code) {
		r.closeRoom(code, room.CloseReasonAllLeft)
		return
	}

	r.broadcast(code, "user-left", userLeftPayload{RoomCode: code, ClientID: clientID}, "")
}

// closeRoom tears a room down: polling stops, members are notified and
// disassociated, resources released.
func (r *Router) closeRoom(code string, reason room.CloseReason) {
	r.reconciler.StopPolling(code)

	members, ok := r.rooms.Delete(code)
	if !ok {
		return
	}
	zlog.Info().Msgf("room closed: room=%s reason=%s", code, reason)

	data, err := encodeMessage("room-closed", roomClosedPayload{RoomCode: code, Reason: string(reason)})
	if err != nil {
		zlog.Error().Msgf("failed to encode room-closed: %v", err)
		return
	}
	for _, memberID := range members {
		r.clients.ClearRoom(memberID)
		r.clients.Send(memberID, data)
	}
}

// send unicasts a typed message to one client.
func (r *Router) send(clientID, msgType string, payload any) {
	data, err := encodeMessage(msgType, payload)
	if err != nil {
		zlog.Error().Msgf("failed to encode %s: %v", msgType, err)
		return
	}
	r.clients.Send(clientID, data)
}

// sendError reports a structured failure to one client.
func (r *Router) sendError(clientID string, kind ErrorKind, message, roomCode string) {
	r.send(clientID, "room-error", roomErrorPayload{Error: kind, Message: message, RoomCode: roomCode})
}

// broadcast fans the same serialized envelope out to every room member
// except the optional exclusion.
func (r *Router) broadcast(code, msgType string, payload any, excludeClientID string) {
	data, err := encodeMessage(msgType, payload)
	if err != nil {
		zlog.Error().Msgf("failed to encode %s: %v", msgType, err)
		return
	}
	for _, memberID := range r.rooms.Members(code) {
		if memberID == excludeClientID {
			continue
		}
		r.clients.Send(memberID, data)
	}
}

// broadcastView pushes each member its own view of the room (isHost is
// relative to the viewer, so the payload differs per recipient).
func (r *Router) broadcastView(code, msgType string) {
	for _, memberID := range r.rooms.Members(code) {
		view, ok := r.rooms.BuildClientView(code, memberID)
		if !ok {
			return
		}
		r.send(memberID, msgType, view)
	}
}

// InvoiceSettled implements invoice.Notifier: the settled request is already
// in the queue, push the new state and tell the requester.
func (r *Router) InvoiceSettled(code string, inv request.PendingInvoice) {
	r.broadcastView(code, "item-queued")
	r.send(inv.RequesterID, "invoice-paid", invoicePaidPayload{
		RoomCode: code,
		ClientID: inv.RequesterID,
		Success:  true,
		URL:      inv.RequesterURL,
		Amount:   inv.Amount,
	})
}

// InvoiceFailed implements invoice.Notifier: the queue is unaffected, only
// the requester learns the payment did not complete.
func (r *Router) InvoiceFailed(code string, inv request.PendingInvoice) {
	r.send(inv.RequesterID, "invoice-paid", invoicePaidPayload{
		RoomCode: code,
		ClientID: inv.RequesterID,
		Success:  false,
		URL:      inv.RequesterURL,
		Amount:   inv.Amount,
	})
}

// handlePing answers the liveness probe.
func (r *Router) handlePing(clientID string, env *Envelope) {
	var payload pingPayload
	decodePayload(env, &payload)
	r.send(clientID, "pong", pongPayload{
		OriginalTime: payload.Time,
		ServerTime:   time.Now().UnixMilli(),
	})
}
