package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	domainErrors "github.com/rafaelcosta/dunning/internal/domain/errors"
	"github.com/rafaelcosta/dunning/pkg/retry"
)

// WAPIConfig configures the WhatsApp gateway client
type WAPIConfig struct {
	BaseURL    string
	InstanceID string
	Token      string
	Timeout    time.Duration
}

// WAPIClient sends messages through a hosted WhatsApp gateway. Calls go
// through a circuit breaker so a dead gateway fails fast instead of stalling
// a whole dispatch batch.
type WAPIClient struct {
	cfg     WAPIConfig
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*Result]
	retry   retry.Config
	logger  zerolog.Logger
}

func NewWAPIClient(cfg WAPIConfig, logger zerolog.Logger) *WAPIClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = 3
	retryCfg.InitialDelay = 500 * time.Millisecond

	return &WAPIClient{
		cfg:   cfg,
		http:  &http.Client{Timeout: cfg.Timeout},
		retry: retryCfg,
		breaker: gobreaker.NewCircuitBreaker[*Result](gobreaker.Settings{
			Name:        "wapi",
			MaxRequests: 5,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 5 && failureRatio >= 0.6
			},
		}),
		logger: logger.With().Str("component", "wapi").Logger(),
	}
}

func (c *WAPIClient) Name() string { return "wapi" }

// Configured reports whether the client has the credentials it needs.
func (c *WAPIClient) Configured() bool {
	return c.cfg.BaseURL != "" && c.cfg.Token != ""
}

type wapiSendRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

type wapiSendResponse struct {
	MessageID string `json:"messageId"`
	Error     string `json:"error"`
}

// SendText delivers body to phone, retrying transient gateway failures.
func (c *WAPIClient) SendText(ctx context.Context, phone, body string) (*Result, error) {
	if !c.Configured() {
		return nil, domainErrors.ErrTransportUnconfigured
	}

	result, err := c.breaker.Execute(func() (*Result, error) {
		return retry.DoWithResult(ctx, c.retry, func() (*Result, error) {
			return c.send(ctx, phone, body)
		})
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("phone", phone).Msg("message delivery failed")
		return nil, err
	}

	c.logger.Debug().Str("phone", phone).Str("message_id", result.MessageID).Msg("message delivered")
	return result, nil
}

func (c *WAPIClient) send(ctx context.Context, phone, body string) (*Result, error) {
	payload, err := json.Marshal(wapiSendRequest{Phone: "55" + phone, Message: body})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s/send-message", c.cfg.BaseURL, c.cfg.InstanceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainErrors.ErrTransportUnavailable, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	var decoded wapiSendResponse
	_ = json.Unmarshal(raw, &decoded)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return &Result{MessageID: decoded.MessageID, Status: "sent"}, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// The gateway understood the request and rejected it; retrying the
		// same payload cannot help.
		return nil, retry.Unrecoverable(fmt.Errorf("%w: status %d: %s",
			domainErrors.ErrTransportRejected, resp.StatusCode, decoded.Error))
	default:
		return nil, fmt.Errorf("%w: status %d", domainErrors.ErrTransportUnavailable, resp.StatusCode)
	}
}
