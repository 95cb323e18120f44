package rooms

import (
	"github.com/osa030/satsbox/internal/domain/request"
)

// MemberView is the client-safe projection of a room member.
type MemberView struct {
	ClientID string `json:"clientId"`
	Name     string `json:"name"`
	IsHost   bool   `json:"isHost"`
}

// RequestView is the client-safe projection of a queue request.
type RequestView struct {
	CreatedAt     int64  `json:"createdAt"` // epoch ms
	Amount        int64  `json:"amount"`
	URL           string `json:"url"`
	RequesterID   string `json:"requesterId"`
	RequesterName string `json:"requesterName"`
	IsHostRequest bool   `json:"isHostRequest"`
}

// View is the client-safe read model of a room, built relative to a viewer.
// It never carries the host token or the wallet handle.
type View struct {
	RoomCode         string        `json:"roomCode"`
	IsHost           bool          `json:"isHost"`
	HostDisconnected bool          `json:"hostDisconnected"`
	Members          []MemberView  `json:"members"`
	CurrentlyPlaying *RequestView  `json:"currentlyPlaying"`
	RequestQueue     []RequestView `json:"requestQueue"`
	PlayedRequests   []RequestView `json:"playedRequests"`
}

func toRequestView(req *request.Request) *RequestView {
	if req == nil {
		return nil
	}
	return &RequestView{
		CreatedAt:     req.CreatedAt.UnixMilli(),
		Amount:        req.Amount,
		URL:           req.URL,
		RequesterID:   req.RequesterID,
		RequesterName: req.RequesterName,
		IsHostRequest: req.IsHostRequest,
	}
}

func toRequestViews(reqs []request.Request) []RequestView {
	views := make([]RequestView, len(reqs))
	for i := range reqs {
		views[i] = *toRequestView(&reqs[i])
	}
	return views
}

// BuildClientView projects a room into the read model for a specific viewer.
// Returns false when the room is gone.
func (r *Registry) BuildClientView(code, forClientID string) (*View, bool) {
	s := r.get(code)
	if s == nil {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false
	}

	members := make([]MemberView, len(s.room.Members))
	for i, id := range s.room.Members {
		members[i] = MemberView{
			ClientID: id,
			Name:     r.names.Name(id),
			IsHost:   s.room.IsHost(id),
		}
	}

	return &View{
		RoomCode:         s.room.Code,
		IsHost:           s.room.IsHost(forClientID),
		HostDisconnected: s.room.HostDisconnected,
		Members:          members,
		CurrentlyPlaying: toRequestView(s.room.CurrentlyPlaying),
		RequestQueue:     toRequestViews(s.room.RequestQueue),
		PlayedRequests:   toRequestViews(s.room.PlayedRequests),
	}, true
}
