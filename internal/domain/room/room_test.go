package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/satsbox/internal/domain/request"
)

func newTestRoom() *Room {
	return New("AB23CD", "host-1", "token-1")
}

func queueAmounts(r *Room) []int64 {
	amounts := make([]int64, len(r.RequestQueue))
	for i, req := range r.RequestQueue {
		amounts[i] = req.Amount
	}
	return amounts
}

func TestRoom_Enqueue_AutoStartWhenIdle(t *testing.T) {
	r := newTestRoom()

	started := r.Enqueue(request.New(500, "url-1", "guest-1", "Alice"))

	assert.True(t, started)
	require.NotNil(t, r.CurrentlyPlaying)
	assert.Equal(t, "url-1", r.CurrentlyPlaying.URL)
	assert.Empty(t, r.RequestQueue)
}

func TestRoom_Enqueue_SortedDescending(t *testing.T) {
	tests := []struct {
		name     string
		amounts  []int64
		expected []int64
	}{
		{name: "ascending input", amounts: []int64{100, 500, 5000}, expected: []int64{5000, 500, 100}},
		{name: "descending input", amounts: []int64{5000, 500, 100}, expected: []int64{5000, 500, 100}},
		{name: "mixed input", amounts: []int64{500, 5000, 100}, expected: []int64{5000, 500, 100}},
		{name: "single item", amounts: []int64{21}, expected: []int64{21}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRoom()
			// Occupy the playing slot so everything goes through the queue.
			r.Enqueue(request.New(1, "url-first", "guest-0", "Zero"))

			for i, amount := range tt.amounts {
				started := r.Enqueue(request.New(amount, "url", "guest", "Guest"))
				assert.False(t, started, "request %d should not auto-start", i)
			}

			assert.Equal(t, tt.expected, queueAmounts(r))
		})
	}
}

func TestRoom_Enqueue_StableTieBreak(t *testing.T) {
	r := newTestRoom()
	r.Enqueue(request.New(1, "url-first", "guest-0", "Zero"))

	r.Enqueue(request.New(100, "url-a", "guest-a", "A"))
	r.Enqueue(request.New(100, "url-b", "guest-b", "B"))
	r.Enqueue(request.New(100, "url-c", "guest-c", "C"))

	require.Len(t, r.RequestQueue, 3)
	assert.Equal(t, "url-a", r.RequestQueue[0].URL)
	assert.Equal(t, "url-b", r.RequestQueue[1].URL)
	assert.Equal(t, "url-c", r.RequestQueue[2].URL)
}

func TestRoom_Advance(t *testing.T) {
	r := newTestRoom()
	r.Enqueue(request.New(10, "url-1", "guest-1", "Alice"))
	r.Enqueue(request.New(50, "url-2", "guest-2", "Bob"))
	r.Enqueue(request.New(20, "url-3", "guest-3", "Carol"))

	r.Advance()

	require.NotNil(t, r.CurrentlyPlaying)
	assert.Equal(t, "url-2", r.CurrentlyPlaying.URL, "highest bid should play next")
	require.Len(t, r.PlayedRequests, 1)
	assert.Equal(t, "url-1", r.PlayedRequests[0].URL)
	assert.Equal(t, []int64{20}, queueAmounts(r))

	r.Advance()
	r.Advance()

	assert.Nil(t, r.CurrentlyPlaying)
	assert.Empty(t, r.RequestQueue)
	assert.Len(t, r.PlayedRequests, 3)
}

func TestRoom_Advance_IdleNoOp(t *testing.T) {
	r := newTestRoom()

	r.Advance()
	r.Advance()

	assert.Nil(t, r.CurrentlyPlaying)
	assert.Empty(t, r.RequestQueue)
	assert.Empty(t, r.PlayedRequests)
}

func TestRoom_Advance_EachRequestInExactlyOneContainer(t *testing.T) {
	r := newTestRoom()
	urls := []string{"u1", "u2", "u3", "u4"}
	for i, u := range urls {
		r.Enqueue(request.New(int64(10*(i+1)), u, "guest", "Guest"))
	}

	for step := 0; step <= len(urls); step++ {
		seen := make(map[string]int)
		for _, req := range r.RequestQueue {
			seen[req.URL]++
		}
		if r.CurrentlyPlaying != nil {
			seen[r.CurrentlyPlaying.URL]++
		}
		for _, req := range r.PlayedRequests {
			seen[req.URL]++
		}
		for _, u := range urls {
			assert.Equal(t, 1, seen[u], "step %d: request %s should be in exactly one container", step, u)
		}
		r.Advance()
	}
}

func TestRoom_SkipCurrent(t *testing.T) {
	r := newTestRoom()
	r.Enqueue(request.New(10, "url-1", "guest-1", "Alice"))
	r.Enqueue(request.New(20, "url-2", "guest-2", "Bob"))

	r.SkipCurrent()

	require.NotNil(t, r.CurrentlyPlaying)
	assert.Equal(t, "url-2", r.CurrentlyPlaying.URL)
	assert.Empty(t, r.PlayedRequests, "skipped request must not enter history")
}

func TestRoom_Members(t *testing.T) {
	r := newTestRoom()

	assert.True(t, r.HasMember("host-1"))
	assert.True(t, r.IsHost("host-1"))
	assert.False(t, r.IsEmpty())

	r.AddMember("guest-1")
	r.AddMember("guest-1") // duplicate add is a no-op
	assert.Equal(t, []string{"host-1", "guest-1"}, r.Members)

	assert.True(t, r.RemoveMember("guest-1"))
	assert.False(t, r.RemoveMember("guest-1"))
	assert.True(t, r.RemoveMember("host-1"))
	assert.True(t, r.IsEmpty())
}

func TestRoom_PendingInvoices(t *testing.T) {
	r := newTestRoom()

	inv := request.PendingInvoice{PaymentHash: "hash-1", Amount: 100, RequesterID: "guest-1"}
	assert.True(t, r.AddPendingInvoice(inv))
	assert.False(t, r.AddPendingInvoice(inv), "duplicate payment hash must be rejected")

	removed, ok := r.RemovePendingInvoice("hash-1")
	assert.True(t, ok)
	assert.Equal(t, int64(100), removed.Amount)

	_, ok = r.RemovePendingInvoice("hash-1")
	assert.False(t, ok)
	assert.Empty(t, r.PendingInvoices)
}
