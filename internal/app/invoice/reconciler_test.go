package invoice

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/satsbox/internal/app/rooms"
	"github.com/osa030/satsbox/internal/domain/request"
	"github.com/osa030/satsbox/internal/infra/wallet"
)

// scriptedWallet returns per-hash states and can simulate lookup errors.
type scriptedWallet struct {
	mu     sync.Mutex
	states map[string]wallet.State
	errs   map[string]error
}

func newScriptedWallet() *scriptedWallet {
	return &scriptedWallet{
		states: make(map[string]wallet.State),
		errs:   make(map[string]error),
	}
}

func (w *scriptedWallet) setState(hash string, s wallet.State) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.states[hash] = s
}

func (w *scriptedWallet) MakeInvoice(ctx context.Context, amountSats int64, description string) (*wallet.Invoice, error) {
	return &wallet.Invoice{PaymentHash: "unused", Amount: amountSats}, nil
}

func (w *scriptedWallet) LookupInvoice(ctx context.Context, paymentHash string) (wallet.State, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.errs[paymentHash]; err != nil {
		return wallet.StatePending, err
	}
	return w.states[paymentHash], nil
}

func (w *scriptedWallet) GetInfo(ctx context.Context) (*wallet.Info, error) {
	return &wallet.Info{Name: "scripted"}, nil
}

func (w *scriptedWallet) Close() {}

type recordingNotifier struct {
	mu      sync.Mutex
	settled []request.PendingInvoice
	failed  []request.PendingInvoice
}

func (n *recordingNotifier) InvoiceSettled(code string, inv request.PendingInvoice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.settled = append(n.settled, inv)
}

func (n *recordingNotifier) InvoiceFailed(code string, inv request.PendingInvoice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, inv)
}

func (n *recordingNotifier) counts() (int, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.settled), len(n.failed)
}

type noNames struct{}

func (noNames) Name(string) string { return "" }

func setup(t *testing.T, w wallet.Client) (*rooms.Registry, *Reconciler, *recordingNotifier, string) {
	t.Helper()
	reg := rooms.NewRegistry(noNames{}, time.Minute)
	code, _ := reg.Create("host-1", w)
	notifier := &recordingNotifier{}
	rec := NewReconciler(reg, notifier, 10*time.Millisecond)
	t.Cleanup(rec.Close)
	return reg, rec, notifier, code
}

func pendingInvoice(hash string, amount int64, ttl time.Duration) request.PendingInvoice {
	now := time.Now()
	return request.PendingInvoice{
		PaymentHash:  hash,
		Amount:       amount,
		RequesterID:  "guest-1",
		RequesterURL: "url-" + hash,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}
}

func TestReconciler_SettlesInvoice(t *testing.T) {
	w := newScriptedWallet()
	reg, rec, notifier, code := setup(t, w)

	require.True(t, reg.AddPendingInvoice(code, pendingInvoice("h-1", 500, time.Minute)))
	w.setState("h-1", wallet.StateSettled)

	rec.StartPolling(code)

	assert.Eventually(t, func() bool {
		s, _ := notifier.counts()
		return s == 1
	}, time.Second, 5*time.Millisecond)

	// Settled invoice was promoted into the room (idle room starts playing).
	view, ok := reg.BuildClientView(code, "guest-1")
	require.True(t, ok)
	require.NotNil(t, view.CurrentlyPlaying)
	assert.Equal(t, "url-h-1", view.CurrentlyPlaying.URL)

	pending, _ := reg.PendingSnapshot(code)
	assert.Empty(t, pending)

	// No duplicate notification on later ticks.
	time.Sleep(50 * time.Millisecond)
	s, f := notifier.counts()
	assert.Equal(t, 1, s)
	assert.Equal(t, 0, f)
}

func TestReconciler_FailedInvoice(t *testing.T) {
	w := newScriptedWallet()
	reg, rec, notifier, code := setup(t, w)

	require.True(t, reg.AddPendingInvoice(code, pendingInvoice("h-1", 500, time.Minute)))
	w.setState("h-1", wallet.StateFailed)

	rec.StartPolling(code)

	assert.Eventually(t, func() bool {
		_, f := notifier.counts()
		return f == 1
	}, time.Second, 5*time.Millisecond)

	// Failure never mutates the queue.
	view, _ := reg.BuildClientView(code, "guest-1")
	assert.Nil(t, view.CurrentlyPlaying)
	assert.Empty(t, view.RequestQueue)
}

func TestReconciler_ExpiredInvoiceDroppedSilently(t *testing.T) {
	w := newScriptedWallet()
	reg, rec, notifier, code := setup(t, w)

	require.True(t, reg.AddPendingInvoice(code, pendingInvoice("h-1", 500, -time.Second)))

	rec.StartPolling(code)

	assert.Eventually(t, func() bool {
		pending, _ := reg.PendingSnapshot(code)
		return len(pending) == 0
	}, time.Second, 5*time.Millisecond)

	s, f := notifier.counts()
	assert.Equal(t, 0, s)
	assert.Equal(t, 0, f)
}

func TestReconciler_TransientLookupErrorRetries(t *testing.T) {
	w := newScriptedWallet()
	reg, rec, notifier, code := setup(t, w)

	require.True(t, reg.AddPendingInvoice(code, pendingInvoice("h-1", 500, time.Minute)))
	w.mu.Lock()
	w.errs["h-1"] = errors.New("rail unreachable")
	w.mu.Unlock()

	rec.StartPolling(code)
	time.Sleep(50 * time.Millisecond)

	// Errors never remove the pending invoice.
	pending, _ := reg.PendingSnapshot(code)
	require.Len(t, pending, 1)

	// Once the rail recovers, the invoice settles on a later tick.
	w.mu.Lock()
	delete(w.errs, "h-1")
	w.mu.Unlock()
	w.setState("h-1", wallet.StateSettled)

	assert.Eventually(t, func() bool {
		s, _ := notifier.counts()
		return s == 1
	}, time.Second, 5*time.Millisecond)
}

func TestReconciler_OutOfOrderSettlement(t *testing.T) {
	w := newScriptedWallet()
	reg, rec, notifier, code := setup(t, w)

	// Occupy the playing slot so settlements go through the queue.
	reg.AddToQueue(code, request.NewHostRequest("url-live", "host-1", "Hank"))

	for _, inv := range []request.PendingInvoice{
		pendingInvoice("h-500", 500, time.Minute),
		pendingInvoice("h-5000", 5000, time.Minute),
		pendingInvoice("h-100", 100, time.Minute),
	} {
		require.True(t, reg.AddPendingInvoice(code, inv))
	}

	rec.StartPolling(code)

	// Settle in an order unrelated to the amounts.
	for _, hash := range []string{"h-100", "h-5000", "h-500"} {
		w.setState(hash, wallet.StateSettled)
		time.Sleep(25 * time.Millisecond)
	}

	assert.Eventually(t, func() bool {
		s, _ := notifier.counts()
		return s == 3
	}, time.Second, 5*time.Millisecond)

	view, _ := reg.BuildClientView(code, "guest-1")
	require.Len(t, view.RequestQueue, 3)
	assert.Equal(t, int64(5000), view.RequestQueue[0].Amount)
	assert.Equal(t, int64(500), view.RequestQueue[1].Amount)
	assert.Equal(t, int64(100), view.RequestQueue[2].Amount)
}

func TestReconciler_StopPollingIdempotent(t *testing.T) {
	w := newScriptedWallet()
	_, rec, _, code := setup(t, w)

	rec.StartPolling(code)
	rec.StartPolling(code) // double start is a no-op
	rec.StopPolling(code)
	rec.StopPolling(code) // double stop is safe
}
