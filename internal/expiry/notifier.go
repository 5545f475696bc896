package expiry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/larderapp/larder/internal/model"
	"github.com/larderapp/larder/internal/push"
	"github.com/larderapp/larder/internal/store"
)

// DefaultInterval is how often the notifier scans the inventory.
const DefaultInterval = 15 * time.Minute

// Sender delivers one push notification. The push service implements it;
// tests substitute a recorder.
type Sender interface {
	Send(sub *model.PushSubscription, payload push.Payload) error
}

// Notifier periodically scans all products and pushes expiry alerts.
// Each alert is sent once per product per best-before date; the dedup
// ledger lives in the push store.
type Notifier struct {
	sender   Sender
	pushes   *store.PushStore
	products *store.ProductStore
	logger   *slog.Logger
	interval time.Duration
	horizon  int

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewNotifier(sender Sender, pushes *store.PushStore, products *store.ProductStore, logger *slog.Logger) *Notifier {
	return &Notifier{
		sender:   sender,
		pushes:   pushes,
		products: products,
		logger:   logger,
		interval: DefaultInterval,
		horizon:  DefaultHorizonDays,
	}
}

// Start begins the scan loop.
func (n *Notifier) Start(ctx context.Context) {
	n.mu.Lock()
	ctx, n.cancel = context.WithCancel(ctx)
	n.done = make(chan struct{})
	n.mu.Unlock()

	go func() {
		defer close(n.done)
		ticker := time.NewTicker(n.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n.Tick(time.Now().UTC())
			}
		}
	}()
}

// Stop gracefully stops the scan loop.
func (n *Notifier) Stop() {
	n.mu.Lock()
	cancel := n.cancel
	done := n.done
	n.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Tick runs one scan. A tick that starts while another is still running
// returns immediately; the next interval covers it.
func (n *Notifier) Tick(now time.Time) {
	n.mu.Lock()
	if n.running {
		n.mu.Unlock()
		return
	}
	n.running = true
	n.mu.Unlock()
	defer func() {
		n.mu.Lock()
		n.running = false
		n.mu.Unlock()
	}()

	products, err := n.products.ListAll()
	if err != nil {
		n.logger.Error("expiry scan: list products", "error", err)
		return
	}

	byHousehold := make(map[int64][]model.Product)
	for _, p := range products {
		byHousehold[p.HouseholdID] = append(byHousehold[p.HouseholdID], p)
	}

	for hid, items := range byHousehold {
		n.notifyHousehold(hid, items, now)
	}
}

func (n *Notifier) notifyHousehold(householdID int64, products []model.Product, now time.Time) {
	expiring := Expiring(products, now, n.horizon)
	if len(expiring) == 0 {
		return
	}

	subs, err := n.pushes.ListByHousehold(householdID)
	if err != nil {
		n.logger.Error("expiry scan: list subscriptions", "household_id", householdID, "error", err)
		return
	}
	if len(subs) == 0 {
		return
	}

	fresh := 0
	for _, p := range expiring {
		refID := fmt.Sprintf("expiry-%s-%s", p.ProductID, p.BestBefore.UTC().Format("2006-01-02"))
		sent, err := n.pushes.WasSent(householdID, model.NotifTypeExpiry, refID)
		if err != nil {
			n.logger.Error("expiry scan: check sent", "ref_id", refID, "error", err)
			continue
		}
		if sent {
			continue
		}

		n.sendAll(subs, push.Payload{
			Title: "Expiring Soon",
			Body:  AlertBody(p, now),
			URL:   "/products",
			Tag:   refID,
		})
		if err := n.pushes.RecordSent(householdID, model.NotifTypeExpiry, refID); err != nil {
			n.logger.Error("expiry scan: record sent", "ref_id", refID, "error", err)
		}
		fresh++
	}

	// When several products turned over at once, follow with one summary
	// so the day's alerts are scannable in the notification tray.
	if fresh > 1 {
		refID := fmt.Sprintf("expiry-summary-%s", now.UTC().Format("2006-01-02"))
		sent, err := n.pushes.WasSent(householdID, model.NotifTypeExpirySummary, refID)
		if err != nil || sent {
			return
		}
		n.sendAll(subs, push.Payload{
			Title: "Expiring Soon",
			Body:  fmt.Sprintf("%d products are expiring within %d days", len(expiring), n.horizon),
			URL:   "/products",
			Tag:   refID,
		})
		if err := n.pushes.RecordSent(householdID, model.NotifTypeExpirySummary, refID); err != nil {
			n.logger.Error("expiry scan: record summary sent", "ref_id", refID, "error", err)
		}
	}
}

func (n *Notifier) sendAll(subs []model.PushSubscription, payload push.Payload) {
	for _, sub := range subs {
		if err := n.sender.Send(&sub, payload); err != nil {
			if errors.Is(err, push.ErrExpired) {
				if derr := n.pushes.DeleteByEndpoint(sub.Endpoint); derr != nil {
					n.logger.Error("expiry scan: prune expired subscription", "error", derr)
				}
				continue
			}
			n.logger.Error("expiry scan: send", "endpoint", sub.Endpoint, "error", err)
		}
	}
}
