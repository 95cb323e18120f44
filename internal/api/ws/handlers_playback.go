package ws

// handlePlayNext finishes the current item and promotes the head of the
// queue.
func (r *Router) handlePlayNext(clientID string, env *Envelope) {
	code, ok := r.clients.GetRoom(clientID)
	if !ok {
		r.sendError(clientID, ErrNotInRoom, "not in a room", "")
		return
	}
	if !r.rooms.IsHost(code, clientID) {
		r.sendError(clientID, ErrNotHost, "only the host controls playback", code)
		return
	}
	if !r.rooms.Advance(code) {
		r.sendError(clientID, ErrRoomNotFound, "no such room", code)
		return
	}
	r.broadcastView(code, "now-playing")
}

// handleSkipCurrent discards the current item without recording it as
// played.
func (r *Router) handleSkipCurrent(clientID string, env *Envelope) {
	code, ok := r.clients.GetRoom(clientID)
	if !ok {
		r.sendError(clientID, ErrNotInRoom, "not in a room", "")
		return
	}
	if !r.rooms.IsHost(code, clientID) {
		r.sendError(clientID, ErrNotHost, "only the host controls playback", code)
		return
	}
	if !r.rooms.Skip(code) {
		r.sendError(clientID, ErrRoomNotFound, "no such room", code)
		return
	}
	r.broadcastView(code, "now-playing")
}
