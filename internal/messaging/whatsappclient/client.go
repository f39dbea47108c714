package whatsappclient

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"log/slog"
)

const (
	defaultBaseURL   = "https://graph.facebook.com/v22.0"
	defaultUserAgent = "clinic-autoresponder/0.1"
	signaturePrefix  = "sha256="
)

// Config controls how the WhatsApp Cloud API client behaves.
type Config struct {
	BaseURL       string
	PhoneNumberID string
	APIKey        string
	AppSecret     string
	Timeout       time.Duration
	MaxRetries    int
	Backoff       time.Duration
	HTTPClient    *http.Client
	Logger        *slog.Logger
	UserAgent     string
}

// Client sends messages through the Graph API messages endpoint.
type Client struct {
	apiKey        string
	baseURL       string
	phoneNumberID string
	appSecret     string
	httpClient    *http.Client
	maxRetries    int
	backoff       time.Duration
	logger        *slog.Logger
	userAgent     string
}

// New creates a configured Client with sane defaults. MaxRetries defaults to
// one retry; pass a negative value to disable retries.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("whatsappclient: API key is required")
	}
	if strings.TrimSpace(cfg.PhoneNumberID) == "" {
		return nil, errors.New("whatsappclient: phone number id is required")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	} else if maxRetries == 0 {
		maxRetries = 1
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		apiKey:        cfg.APIKey,
		baseURL:       baseURL,
		phoneNumberID: strings.TrimSpace(cfg.PhoneNumberID),
		appSecret:     cfg.AppSecret,
		httpClient:    httpClient,
		maxRetries:    maxRetries,
		backoff:       backoff,
		logger:        logger,
		userAgent:     userAgent,
	}, nil
}

// SendText sends a plain text message with link previews disabled.
func (c *Client) SendText(ctx context.Context, to, body string) (*SendResponse, error) {
	if strings.TrimSpace(to) == "" {
		return nil, errors.New("whatsappclient: recipient required")
	}
	if strings.TrimSpace(body) == "" {
		return nil, errors.New("whatsappclient: body required")
	}
	return c.send(ctx, messageRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             &textBody{PreviewURL: false, Body: body},
	})
}

// SendButtons sends an interactive message with up to three reply buttons.
// Titles longer than the platform limit are truncated.
func (c *Client) SendButtons(ctx context.Context, to, body string, buttons []Button) (*SendResponse, error) {
	if strings.TrimSpace(to) == "" {
		return nil, errors.New("whatsappclient: recipient required")
	}
	if strings.TrimSpace(body) == "" {
		return nil, errors.New("whatsappclient: body required")
	}
	if len(buttons) == 0 || len(buttons) > maxButtons {
		return nil, fmt.Errorf("whatsappclient: between 1 and %d buttons required", maxButtons)
	}
	action := interactiveAction{Buttons: make([]interactiveButton, 0, len(buttons))}
	for _, b := range buttons {
		if strings.TrimSpace(b.ID) == "" {
			return nil, errors.New("whatsappclient: button id required")
		}
		action.Buttons = append(action.Buttons, interactiveButton{
			Type:  "reply",
			Reply: replyButton{ID: b.ID, Title: TruncateTitle(b.Title)},
		})
	}
	return c.send(ctx, messageRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "interactive",
		Interactive: &interactive{
			Type:   "button",
			Body:   interactiveBody{Text: body},
			Action: action,
		},
	})
}

func (c *Client) send(ctx context.Context, msg messageRequest) (*SendResponse, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("whatsappclient: marshal send body: %w", err)
	}
	data, err := c.invoke(ctx, http.MethodPost, "/"+c.phoneNumberID+"/messages", body)
	if err != nil {
		return nil, err
	}
	var resp SendResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("whatsappclient: decode response: %w", err)
	}
	return &resp, nil
}

// VerifySignature checks an X-Hub-Signature-256 header against payload.
func (c *Client) VerifySignature(header string, payload []byte) error {
	return VerifySignature(c.appSecret, header, payload)
}

// VerifySignature checks an X-Hub-Signature-256 header for the app secret.
func VerifySignature(appSecret, header string, payload []byte) error {
	if appSecret == "" {
		return errors.New("whatsappclient: app secret not configured")
	}
	sig := strings.TrimSpace(header)
	if sig == "" {
		return errors.New("whatsappclient: missing signature header")
	}
	if !strings.HasPrefix(strings.ToLower(sig), signaturePrefix) {
		return errors.New("whatsappclient: unsupported signature scheme")
	}
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	actual := strings.ToLower(sig[len(signaturePrefix):])
	if !hmac.Equal([]byte(expected), []byte(actual)) {
		return errors.New("whatsappclient: signature mismatch")
	}
	return nil
}

// Sign returns the header value the platform would send for payload.
func Sign(appSecret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(payload)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) invoke(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	fullURL := c.baseURL + "/" + strings.TrimLeft(path, "/")
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("whatsappclient: build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("User-Agent", c.userAgent)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !shouldRetry(0, err) || attempt == c.maxRetries {
				return nil, fmt.Errorf("whatsappclient: http error: %w", err)
			}
			lastErr = err
			c.logRetry(path, attempt, 0, err)
			if sleepErr := c.sleep(ctx, attempt); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}
		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("whatsappclient: read response: %w", readErr)
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return data, nil
		}
		apiErr := decodeAPIError(resp.StatusCode, data)
		if attempt < c.maxRetries && shouldRetry(resp.StatusCode, nil) {
			lastErr = apiErr
			c.logRetry(path, attempt, resp.StatusCode, apiErr)
			if sleepErr := c.sleep(ctx, attempt); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}
		return nil, apiErr
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.New("whatsappclient: request failed without response")
}

func (c *Client) sleep(ctx context.Context, attempt int) error {
	delay := c.backoff * time.Duration(1<<attempt)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) logRetry(path string, attempt int, status int, err error) {
	if c.logger == nil {
		return
	}
	c.logger.Warn("whatsapp retry",
		"path", path,
		"attempt", attempt+1,
		"status", status,
		"error", err,
	)
}

func shouldRetry(status int, err error) bool {
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return true
		}
		return !errors.Is(err, context.Canceled)
	}
	if status == http.StatusTooManyRequests {
		return true
	}
	if status >= 500 && status <= 599 {
		return true
	}
	return false
}

// APIError is a non-2xx Graph API response.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message,omitempty"`
	Type       string `json:"type,omitempty"`
	Code       int    `json:"code,omitempty"`
	Subcode    int    `json:"error_subcode,omitempty"`
	TraceID    string `json:"fbtrace_id,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("whatsappclient: %s (status=%d code=%d)", e.Message, e.StatusCode, e.Code)
	}
	return fmt.Sprintf("whatsappclient: http status %d", e.StatusCode)
}

// HTTPStatusCode exposes the response status for retry classification.
func (e *APIError) HTTPStatusCode() int {
	return e.StatusCode
}

func decodeAPIError(status int, body []byte) error {
	var wrapper struct {
		Error APIError `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
	}
	wrapper.Error.StatusCode = status
	return &wrapper.Error
}
