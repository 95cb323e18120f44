// Package invoice provides the reconciler that bridges the external payment
// rail into queue mutations.
package invoice

import (
	"context"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/satsbox/internal/app/rooms"
	"github.com/osa030/satsbox/internal/domain/request"
	"github.com/osa030/satsbox/internal/infra/wallet"
)

// DefaultPollInterval is how often each room's pending invoices are checked.
const DefaultPollInterval = 3 * time.Second

// Notifier receives terminal invoice outcomes. Implemented by the websocket
// layer to push item-queued broadcasts and invoice-paid unicasts.
type Notifier interface {
	// InvoiceSettled is called after a settled invoice has been promoted
	// into the room queue.
	InvoiceSettled(code string, inv request.PendingInvoice)
	// InvoiceFailed is called after a terminally failed invoice has been
	// dropped. The queue is unaffected.
	InvoiceFailed(code string, inv request.PendingInvoice)
}

// Reconciler runs one polling loop per room against the room's wallet.
type Reconciler struct {
	rooms    *rooms.Registry
	notifier Notifier
	interval time.Duration

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewReconciler creates a reconciler. Polling loops are started per room
// with StartPolling.
func NewReconciler(reg *rooms.Registry, notifier Notifier, interval time.Duration) *Reconciler {
	if interval == 0 {
		interval = DefaultPollInterval
	}
	return &Reconciler{
		rooms:    reg,
		notifier: notifier,
		interval: interval,
		cancels:  make(map[string]context.CancelFunc),
	}
}

// StartPolling starts the poll loop for a room. Starting an already polled
// room is a no-op.
func (r *Reconciler) StartPolling(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, running := r.cancels[code]; running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancels[code] = cancel
	go r.loop(ctx, code)
}

// StopPolling stops the poll loop for a room. Safe to call more than once.
func (r *Reconciler) StopPolling(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cancel, running := r.cancels[code]; running {
		cancel()
		delete(r.cancels, code)
	}
}

// Close stops all poll loops.
func (r *Reconciler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for code, cancel := range r.cancels {
		cancel()
		delete(r.cancels, code)
	}
}

func (r *Reconciler) loop(ctx context.Context, code string) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.poll(ctx, code)
		}
	}
}

// poll checks every pending invoice of a room once. It works from a
// snapshot so wallet lookups never run under the room lock; each terminal
// outcome is re-validated against the live room state when applied.
func (r *Reconciler) poll(ctx context.Context, code string) {
	pending, ok := r.rooms.PendingSnapshot(code)
	if !ok || len(pending) == 0 {
		return
	}

	w, ok := r.rooms.Wallet(code)
	if !ok {
		return
	}

	now := time.Now()
	for _, inv := range pending {
		if inv.Expired(now) {
			if _, removed := r.rooms.RemovePending(code, inv.PaymentHash); removed {
				zlog.Info().Msgf("invoice expired: room=%s hash=%s", code, shortHash(inv.PaymentHash))
			}
			continue
		}

		state, err := w.LookupInvoice(ctx, inv.PaymentHash)
		if err != nil {
			// Transient; the invoice stays pending and is retried next tick.
			zlog.Warn().Msgf("invoice lookup failed, will retry: room=%s hash=%s err=%v", code, shortHash(inv.PaymentHash), err)
			continue
		}

		switch state {
		case wallet.StateSettled:
			req, started, applied := r.rooms.SettlePending(code, inv.PaymentHash)
			if !applied {
				continue
			}
			zlog.Info().Msgf("invoice settled: room=%s hash=%s amount=%d started=%t", code, shortHash(inv.PaymentHash), req.Amount, started)
			r.notifier.InvoiceSettled(code, inv)

		case wallet.StateFailed:
			removed, applied := r.rooms.RemovePending(code, inv.PaymentHash)
			if !applied {
				continue
			}
			zlog.Info().Msgf("invoice failed: room=%s hash=%s", code, shortHash(inv.PaymentHash))
			r.notifier.InvoiceFailed(code, removed)
		}
	}
}

// shortHash truncates a payment hash for logging.
func shortHash(hash string) string {
	if len(hash) <= 8 {
		return hash
	}
	return hash[:8] + "..."
}
