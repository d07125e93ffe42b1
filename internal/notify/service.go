package notify

import (
	"context"
	"sync"
	"time"

	"github.com/wolfman30/crystalcare-intake/pkg/logging"
)

// Observer records dispatch outcomes.
type Observer interface {
	ObserveNotification(status string)
}

// Dispatcher hands confirmations to an EmailSender without blocking the caller.
// Delivery runs on a context detached from the caller, so an abandoned request
// still completes its handoff.
type Dispatcher struct {
	sender    EmailSender
	recipient string
	timeout   time.Duration
	logger    *logging.Logger
	observer  Observer

	wg sync.WaitGroup
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	Recipient string
	Timeout   time.Duration
	Observer  Observer
}

// NewDispatcher creates a notification dispatcher.
func NewDispatcher(sender EmailSender, cfg DispatcherConfig, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	if sender == nil {
		sender = NewStubEmailSender(logger)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Dispatcher{
		sender:    sender,
		recipient: cfg.Recipient,
		timeout:   cfg.Timeout,
		logger:    logger,
		observer:  cfg.Observer,
	}
}

// Recipient is the fixed clinic address confirmations go to.
func (d *Dispatcher) Recipient() string {
	return d.recipient
}

// Dispatch hands the notification off and returns immediately.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) {
	msg := n.Message(d.recipient)
	sendCtx := context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(sendCtx, d.timeout)
		defer cancel()

		if err := d.sender.Send(ctx, msg); err != nil {
			d.logger.Warn("notification handoff failed", "error", err, "reference_id", n.ReferenceID)
			d.observe("failed")
			return
		}
		d.logger.Info("notification handed off", "reference_id", n.ReferenceID, "subject", msg.Subject)
		d.observe("sent")
	}()
}

// Wait blocks until in-flight handoffs finish. Used on shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) observe(status string) {
	if d.observer != nil {
		d.observer.ObserveNotification(status)
	}
}
