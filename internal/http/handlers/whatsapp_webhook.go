package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-autoresponder/internal/conversation"
	"github.com/wolfman30/clinic-autoresponder/internal/messaging"
	"github.com/wolfman30/clinic-autoresponder/internal/messaging/whatsappclient"
	"github.com/wolfman30/clinic-autoresponder/pkg/logging"
)

var webhookTracer = otel.Tracer("clinic.internal.http.handlers.whatsapp")

const maxWebhookBody = 2 << 20

type inboundHandler interface {
	Handle(ctx context.Context, in conversation.Inbound) (conversation.Outcome, error)
}

// WebhookObserver records webhook request outcomes.
type WebhookObserver interface {
	ObserveWebhook(status int, d time.Duration)
}

type WhatsAppWebhookConfig struct {
	Engine      inboundHandler
	VerifyToken string
	// AppSecret enables X-Hub-Signature-256 checks when set.
	AppSecret string
	Timeout   time.Duration
	Metrics   WebhookObserver
	Logger    *logging.Logger
}

// WhatsAppWebhookHandler serves the Cloud API verification handshake and
// inbound message deliveries.
type WhatsAppWebhookHandler struct {
	engine      inboundHandler
	verifyToken string
	appSecret   string
	timeout     time.Duration
	metrics     WebhookObserver
	logger      *logging.Logger
}

func NewWhatsAppWebhookHandler(cfg WhatsAppWebhookConfig) *WhatsAppWebhookHandler {
	if cfg.Engine == nil {
		panic("handlers: conversation engine required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &WhatsAppWebhookHandler{
		engine:      cfg.Engine,
		verifyToken: cfg.VerifyToken,
		appSecret:   cfg.AppSecret,
		timeout:     cfg.Timeout,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger.WithComponent("whatsapp_webhook"),
	}
}

// Verify answers the subscription handshake with the challenge.
func (h *WhatsAppWebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := firstParam(q.Get("hub.mode"), q.Get("mode"))
	token := firstParam(q.Get("hub.verify_token"), q.Get("verify_token"))
	challenge := firstParam(q.Get("hub.challenge"), q.Get("challenge"))

	if mode != "subscribe" || h.verifyToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(h.verifyToken)) != 1 {
		h.logger.Warn("whatsapp webhook verification rejected", "mode", mode)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, challenge)
}

// Receive handles a message delivery. Each message runs independently; a
// well-formed payload is acknowledged even when some messages fail.
func (h *WhatsAppWebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := webhookTracer.Start(r.Context(), "whatsapp.webhook.receive")
	defer span.End()

	status := h.receive(ctx, w, r)
	span.SetAttributes(attribute.Int("clinic.http_status", status))
	if h.metrics != nil {
		h.metrics.ObserveWebhook(status, time.Since(start))
	}
}

func (h *WhatsAppWebhookHandler) receive(ctx context.Context, w http.ResponseWriter, r *http.Request) int {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		jsonError(w, "invalid body", http.StatusBadRequest)
		return http.StatusBadRequest
	}
	if h.appSecret != "" {
		if err := whatsappclient.VerifySignature(h.appSecret, r.Header.Get("X-Hub-Signature-256"), body); err != nil {
			h.logger.Warn("invalid whatsapp webhook signature", "error", err)
			jsonError(w, "invalid signature", http.StatusUnauthorized)
			return http.StatusUnauthorized
		}
	}

	batch, err := messaging.ParseWebhook(body)
	if err != nil {
		h.logger.Warn("rejected whatsapp webhook payload", "error", err)
		jsonError(w, "invalid payload", http.StatusBadRequest)
		return http.StatusBadRequest
	}
	if batch.Dropped > 0 {
		h.logger.Warn("whatsapp messages without id or sender dropped", "count", batch.Dropped)
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	var handled, failed int
	for _, in := range batch.Messages {
		out, err := h.engine.Handle(ctx, in)
		if err != nil {
			failed++
			level := h.logger.Error
			if errors.Is(err, conversation.ErrStaleState) {
				level = h.logger.Warn
			}
			level("inbound message failed",
				"error", err,
				"message_id", in.MessageID,
				"phone", in.From,
				"kind", conversation.KindLabel(in.Kind),
			)
			continue
		}
		if !out.Duplicate {
			handled++
		}
	}

	writeJSON(w, http.StatusOK, map[string]int{
		"received": len(batch.Messages),
		"handled":  handled,
		"failed":   failed,
	})
	return http.StatusOK
}

func firstParam(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
