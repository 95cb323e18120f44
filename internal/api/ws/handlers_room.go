package ws

import (
	"context"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/satsbox/internal/domain/room"
)

const walletConnectTimeout = 15 * time.Second

// handleCreateRoom validates the host's wallet connection, opens a room and
// hands the host its view plus the rejoin token.
func (r *Router) handleCreateRoom(clientID string, env *Envelope) {
	var payload createRoomPayload
	if err := decodePayload(env, &payload); err != nil {
		r.sendError(clientID, ErrInvalidWalletConn, "malformed create-room payload", "")
		return
	}
	if _, ok := r.clients.GetRoom(clientID); ok {
		r.sendError(clientID, ErrAlreadyInRoom, "already in a room", "")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), walletConnectTimeout)
	defer cancel()
	w, err := r.connect(ctx, payload.WalletConnection, r.walletCfg)
	if err != nil {
		zlog.Warn().Msgf("wallet connection rejected: client=%s err=%v", clientID, err)
		r.sendError(clientID, ErrInvalidWalletConn, "could not connect to wallet", "")
		return
	}

	code, hostToken := r.rooms.Create(clientID, w)
	r.rooms.AddMember(code, clientID)
	r.clients.SetRoom(clientID, code)
	if payload.Name != "" {
		r.clients.SetName(clientID, payload.Name)
	}
	r.reconciler.StartPolling(code)
	zlog.Info().Msgf("room created: room=%s host=%s", code, clientID)

	view, ok := r.rooms.BuildClientView(code, clientID)
	if !ok {
		return
	}
	r.send(clientID, "room-created", roomCreatedPayload{View: view, HostToken: hostToken})
}

// handleJoinRoom adds a guest to an existing room.
func (r *Router) handleJoinRoom(clientID string, env *Envelope) {
	var payload joinRoomPayload
	if err := decodePayload(env, &payload); err != nil {
		r.sendError(clientID, ErrInvalidCode, "malformed join-room payload", "")
		return
	}
	code := room.NormalizeCode(payload.RoomCode)
	if !room.IsValidCode(code) {
		r.sendError(clientID, ErrInvalidCode, "room code must be 6 characters", code)
		return
	}
	if _, ok := r.clients.GetRoom(clientID); ok {
		r.sendError(clientID, ErrAlreadyInRoom, "already in a room", code)
		return
	}
	if !r.rooms.AddMember(code, clientID) {
		r.sendError(clientID, ErrRoomNotFound, "no such room", code)
		return
	}
	r.clients.SetRoom(clientID, code)
	if payload.Name != "" {
		r.clients.SetName(clientID, payload.Name)
	}
	zlog.Info().Msgf("client joined room: room=%s client=%s", code, clientID)

	view, ok := r.rooms.BuildClientView(code, clientID)
	if !ok {
		return
	}
	r.send(clientID, "room-joined", view)
	r.broadcast(code, "user-joined", userJoinedPayload{
		RoomCode: code,
		ClientID: clientID,
		Name:     r.clients.Name(clientID),
	}, clientID)
}

// senderRoom resolves the sender's room and, when the payload names a room
// code, checks it against the association.
func (r *Router) senderRoom(clientID string, env *Envelope) (string, bool) {
	var payload roomCodePayload
	if err := decodePayload(env, &payload); err != nil {
		r.sendError(clientID, ErrNotInRoom, "malformed payload", "")
		return "", false
	}
	code, ok := r.clients.GetRoom(clientID)
	if !ok || (payload.RoomCode != "" && room.NormalizeCode(payload.RoomCode) != code) {
		r.sendError(clientID, ErrNotInRoom, "not in that room", payload.RoomCode)
		return "", false
	}
	return code, true
}

// handleLeaveRoom removes the sender from its room. A host leaving
// deliberately closes the room rather than starting a grace period.
func (r *Router) handleLeaveRoom(clientID string, env *Envelope) {
	code, ok := r.senderRoom(clientID, env)
	if !ok {
		return
	}
	r.removeFromRoom(clientID, code, false)
}

// handleCloseRoom lets the host tear the room down explicitly.
func (r *Router) handleCloseRoom(clientID string, env *Envelope) {
	code, ok := r.senderRoom(clientID, env)
	if !ok {
		return
	}
	if !r.rooms.IsHost(code, clientID) {
		r.sendError(clientID, ErrNotHost, "only the host can close the room", code)
		return
	}
	r.closeRoom(code, room.CloseReasonHostClosed)
}

// handleHostRejoin lets a reconnected host reclaim its room within the
// grace period using the token issued at creation.
func (r *Router) handleHostRejoin(clientID string, env *Envelope) {
	var payload hostRejoinPayload
	if err := decodePayload(env, &payload); err != nil {
		r.sendError(clientID, ErrInvalidCode, "malformed host-rejoin payload", "")
		return
	}
	code := room.NormalizeCode(payload.RoomCode)
	if !r.rooms.Exists(code) {
		r.sendError(clientID, ErrRoomNotFound, "no such room", code)
		return
	}
	if _, ok := r.clients.GetRoom(clientID); ok {
		r.sendError(clientID, ErrAlreadyInRoom, "already in a room", code)
		return
	}
	if !r.rooms.RejoinAsHost(code, payload.HostToken, clientID) {
		r.sendError(clientID, ErrNotHost, "host token rejected", code)
		return
	}
	r.clients.SetRoom(clientID, code)
	if payload.Name != "" {
		r.clients.SetName(clientID, payload.Name)
	}
	zlog.Info().Msgf("host rejoined room: room=%s host=%s", code, clientID)

	view, ok := r.rooms.BuildClientView(code, clientID)
	if !ok {
		return
	}
	r.send(clientID, "host-rejoined", view)
	r.broadcast(code, "user-joined", userJoinedPayload{
		RoomCode: code,
		ClientID: clientID,
		Name:     r.clients.Name(clientID),
	}, clientID)
}

// handleRoomMessage relays an opaque chat payload to the other members.
func (r *Router) handleRoomMessage(clientID string, env *Envelope) {
	var payload roomMessagePayload
	if err := decodePayload(env, &payload); err != nil {
		return
	}
	code, ok := r.clients.GetRoom(clientID)
	if !ok || (payload.RoomCode != "" && room.NormalizeCode(payload.RoomCode) != code) {
		r.sendError(clientID, ErrNotInRoom, "not in that room", payload.RoomCode)
		return
	}
	// Every member sees the message, the sender included.
	r.broadcast(code, "room-message", roomMessageBroadcast{
		RoomCode:   code,
		SenderID:   clientID,
		SenderName: r.clients.Name(clientID),
		Content:    payload.Content,
		IsHost:     r.rooms.IsHost(code, clientID),
	}, "")
}
