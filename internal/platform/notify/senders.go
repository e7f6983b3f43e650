package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vitalink/vitalink/internal/platform/retry"
)

const senderTimeout = 10 * time.Second

// unreachableError marks failures worth retrying and queueing for offline
// replay: network errors and 5xx responses. Client errors stay permanent.
type unreachableError struct{ err error }

func (e *unreachableError) Error() string { return e.err.Error() }
func (e *unreachableError) Unwrap() error { return e.err }

func isUnreachable(err error) bool {
	var u *unreachableError
	return errors.As(err, &u)
}

// providerResponse is the subset of a gateway/API response we care about.
// Providers report the delivery identifier as message_id or id.
type providerResponse struct {
	MessageID string `json:"message_id"`
	ID        string `json:"id"`
}

// postMessage performs one delivery attempt and returns the provider's
// message id, if any.
func postMessage(ctx context.Context, client *http.Client, url string, headers map[string]string, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("build request: %w", err))
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", &unreachableError{err: err}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 500 {
		return "", &unreachableError{err: fmt.Errorf("upstream returned status %d", resp.StatusCode)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", retry.Permanent(fmt.Errorf("upstream returned status %d", resp.StatusCode))
	}

	var pr providerResponse
	if err := json.Unmarshal(body, &pr); err == nil {
		if pr.MessageID != "" {
			return pr.MessageID, nil
		}
		return pr.ID, nil
	}
	return "", nil
}

// deliver posts the payload, running attempts through the coordinator when
// one is configured. A request that exhausts its attempts while the upstream
// is unreachable is captured in the offline queue for later replay; the
// caller still sees the delivery failure.
func deliver(ctx context.Context, coord *retry.Coordinator, queue *retry.Queue, client *http.Client, url string, headers map[string]string, payload []byte) (string, error) {
	attempt := func(ctx context.Context) (string, error) {
		return postMessage(ctx, client, url, headers, payload)
	}
	if coord == nil {
		return attempt(ctx)
	}

	id, err := retry.DoValue(ctx, coord, attempt)
	if err != nil && queue != nil && isUnreachable(err) {
		queued := &retry.QueuedRequest{
			Method:  http.MethodPost,
			URL:     url,
			Headers: headers,
			Body:    payload,
		}
		if qErr := queue.Enqueue(ctx, queued); qErr != nil {
			return "", fmt.Errorf("%w (offline enqueue failed: %v)", err, qErr)
		}
		return "", fmt.Errorf("queued for replay: %w", err)
	}
	return id, err
}

// GatewaySMSConfig configures the HTTP SMS gateway transport.
type GatewaySMSConfig struct {
	URL      string
	Username string
	Password string
	SenderID string
}

// GatewaySMSSender delivers SMS messages through an HTTP gateway using basic
// auth. Recipient numbers are validated before any network call.
type GatewaySMSSender struct {
	cfg    GatewaySMSConfig
	client *http.Client
	coord  *retry.Coordinator
	queue  *retry.Queue
}

// NewGatewaySMSSender creates an SMS sender for the given gateway.
func NewGatewaySMSSender(cfg GatewaySMSConfig) *GatewaySMSSender {
	return &GatewaySMSSender{
		cfg:    cfg,
		client: &http.Client{Timeout: senderTimeout},
	}
}

// WithRetry runs deliveries through the coordinator's backoff schedule and
// captures requests that exhaust their attempts while the gateway is
// unreachable in the offline queue.
func (s *GatewaySMSSender) WithRetry(coord *retry.Coordinator, queue *retry.Queue) *GatewaySMSSender {
	s.coord = coord
	s.queue = queue
	return s
}

func (s *GatewaySMSSender) headers() map[string]string {
	creds := base64.StdEncoding.EncodeToString([]byte(s.cfg.Username + ":" + s.cfg.Password))
	return map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Basic " + creds,
	}
}

type gatewaySMSRequest struct {
	To   string `json:"to"`
	From string `json:"from"`
	Body string `json:"body"`
}

// SendSMS posts the message to the gateway. Non-2xx responses are errors.
func (s *GatewaySMSSender) SendSMS(ctx context.Context, to, body string) (string, error) {
	if err := ValidatePhone(to); err != nil {
		return "", err
	}

	payload, err := json.Marshal(gatewaySMSRequest{
		To:   to,
		From: s.cfg.SenderID,
		Body: body,
	})
	if err != nil {
		return "", fmt.Errorf("marshal sms payload: %w", err)
	}

	id, err := deliver(ctx, s.coord, s.queue, s.client, s.cfg.URL, s.headers(), payload)
	if err != nil {
		return "", fmt.Errorf("sms gateway: %w", err)
	}
	return id, nil
}

// APIEmailConfig configures the HTTP email API transport.
type APIEmailConfig struct {
	URL    string
	APIKey string
	From   string
}

// APIEmailSender delivers email through an HTTP API using a bearer API key.
type APIEmailSender struct {
	cfg    APIEmailConfig
	client *http.Client
	coord  *retry.Coordinator
	queue  *retry.Queue
}

// NewAPIEmailSender creates an email sender for the given API.
func NewAPIEmailSender(cfg APIEmailConfig) *APIEmailSender {
	return &APIEmailSender{
		cfg:    cfg,
		client: &http.Client{Timeout: senderTimeout},
	}
}

// WithRetry runs deliveries through the coordinator's backoff schedule and
// captures requests that exhaust their attempts while the API is unreachable
// in the offline queue.
func (s *APIEmailSender) WithRetry(coord *retry.Coordinator, queue *retry.Queue) *APIEmailSender {
	s.coord = coord
	s.queue = queue
	return s
}

func (s *APIEmailSender) headers() map[string]string {
	return map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer " + s.cfg.APIKey,
	}
}

type apiEmailRequest struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// SendEmail posts the message to the email API. Non-2xx responses are errors.
func (s *APIEmailSender) SendEmail(ctx context.Context, to, subject, body string) (string, error) {
	payload, err := json.Marshal(apiEmailRequest{
		To:      to,
		From:    s.cfg.From,
		Subject: subject,
		Body:    body,
	})
	if err != nil {
		return "", fmt.Errorf("marshal email payload: %w", err)
	}

	id, err := deliver(ctx, s.coord, s.queue, s.client, s.cfg.URL, s.headers(), payload)
	if err != nil {
		return "", fmt.Errorf("email api: %w", err)
	}
	return id, nil
}
