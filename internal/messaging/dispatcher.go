package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-autoresponder/internal/conversation"
	"github.com/wolfman30/clinic-autoresponder/internal/messaging/whatsappclient"
	"github.com/wolfman30/clinic-autoresponder/pkg/logging"
)

var dispatchTracer = otel.Tracer("clinic.internal.messaging.dispatch")

type whatsappSender interface {
	SendText(ctx context.Context, to, body string) (*whatsappclient.SendResponse, error)
	SendButtons(ctx context.Context, to, body string, buttons []whatsappclient.Button) (*whatsappclient.SendResponse, error)
}

// SendObserver records outbound send outcomes.
type SendObserver interface {
	ObserveOutbound(shape, status string, d time.Duration)
}

// Dispatcher delivers conversation replies through the WhatsApp Cloud API.
type Dispatcher struct {
	client   whatsappSender
	timeout  time.Duration
	observer SendObserver
	logger   *logging.Logger
}

var _ conversation.Dispatcher = (*Dispatcher)(nil)

// NewDispatcher wraps a WhatsApp client. Timeout bounds each send including its retry.
func NewDispatcher(client whatsappSender, timeout time.Duration, observer SendObserver, logger *logging.Logger) *Dispatcher {
	if client == nil {
		panic("messaging: whatsapp client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{client: client, timeout: timeout, observer: observer, logger: logger}
}

// Send posts one reply and returns the provider message id.
func (d *Dispatcher) Send(ctx context.Context, to string, reply conversation.Reply) (string, error) {
	recipient := WhatsAppRecipient(to)
	if recipient == "" {
		return "", errors.New("messaging: recipient required")
	}
	shape := "text"
	if reply.Interactive() {
		shape = "interactive"
	}

	ctx, span := dispatchTracer.Start(ctx, "messaging.whatsapp.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.to", to),
		attribute.String("clinic.shape", shape),
	)

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	var (
		resp *whatsappclient.SendResponse
		err  error
	)
	if reply.Interactive() {
		buttons := make([]whatsappclient.Button, 0, len(reply.Buttons))
		for _, b := range reply.Buttons {
			buttons = append(buttons, whatsappclient.Button{ID: b.ID, Title: b.Title})
		}
		resp, err = d.client.SendButtons(ctx, recipient, reply.Text, buttons)
	} else {
		resp, err = d.client.SendText(ctx, recipient, reply.Text)
	}
	elapsed := time.Since(start)
	if err != nil {
		d.observe(shape, "error", elapsed)
		span.RecordError(err)
		return "", fmt.Errorf("messaging: send %s: %w", shape, err)
	}
	d.observe(shape, "sent", elapsed)
	id := resp.MessageID()
	span.SetAttributes(attribute.String("clinic.provider_message_id", id))
	d.logger.Debug("whatsapp reply sent", "to", to, "shape", shape, "provider_message_id", id)
	return id, nil
}

func (d *Dispatcher) observe(shape, status string, elapsed time.Duration) {
	if d.observer != nil {
		d.observer.ObserveOutbound(shape, status, elapsed)
	}
}

// LogDispatcher logs replies instead of sending them. It backs local runs
// without WhatsApp credentials.
type LogDispatcher struct {
	logger *logging.Logger
	seq    atomic.Int64
}

var _ conversation.Dispatcher = (*LogDispatcher)(nil)

func NewLogDispatcher(logger *logging.Logger) *LogDispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogDispatcher{logger: logger.WithComponent("dry_run_dispatch")}
}

func (d *LogDispatcher) Send(_ context.Context, to string, reply conversation.Reply) (string, error) {
	id := fmt.Sprintf("dryrun.%d", d.seq.Add(1))
	buttons := make([]string, 0, len(reply.Buttons))
	for _, b := range reply.Buttons {
		buttons = append(buttons, b.ID)
	}
	d.logger.Info("reply not sent (dry run)", "to", to, "text", reply.Text, "buttons", buttons, "provider_message_id", id)
	return id, nil
}
