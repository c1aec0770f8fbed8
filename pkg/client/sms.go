// pkg/client/sms.go
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"donation-service/config"
	"donation-service/internal/phone"

	"go.uber.org/zap"
)

// ErrSMSDisabled is returned by the no-op sender used when no gateway is configured.
var ErrSMSDisabled = errors.New("sms gateway not configured")

// SMSSender delivers a single text message.
type SMSSender interface {
	Send(ctx context.Context, to, message string) error
}

// SMSError is a non-200 answer from the SMS gateway.
type SMSError struct {
	StatusCode int
	Body       string
}

func (e *SMSError) Error() string {
	return fmt.Sprintf("sms api error: status %d: %s", e.StatusCode, e.Body)
}

// SMSClient talks to a HostPinnacle-style form API.
type SMSClient struct {
	config     config.SMSConfig
	httpClient *http.Client
	logger     *zap.Logger
}

func NewSMSClient(cfg config.SMSConfig, logger *zap.Logger) *SMSClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SMSClient{
		config:     cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// NewSMSSender returns an SMSClient when the gateway is configured and a
// disabled sender otherwise.
func NewSMSSender(cfg config.SMSConfig, logger *zap.Logger) SMSSender {
	if !cfg.Enabled() {
		return disabledSender{logger: logger}
	}
	return NewSMSClient(cfg, logger)
}

func (c *SMSClient) Send(ctx context.Context, to, message string) error {
	start := time.Now()

	form := url.Values{}
	form.Set("userid", c.config.UserID)
	form.Set("password", c.config.Password)
	form.Set("senderid", c.config.SenderID)
	form.Set("sendMethod", "quick")
	form.Set("msgType", "text")
	form.Set("msg", message)
	form.Set("mobile", to)
	form.Set("duplicatecheck", "true")
	form.Set("output", "json")

	ctx, cancel := context.WithTimeout(ctx, c.httpClient.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.config.APIKey != "" {
		req.Header.Set("apikey", c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("sms request failed",
			zap.String("recipient", phone.Mask(to)),
			zap.Error(err))
		return fmt.Errorf("http error: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("sms gateway rejected message",
			zap.String("recipient", phone.Mask(to)),
			zap.Int("status", resp.StatusCode),
			zap.Duration("duration", time.Since(start)),
			zap.String("response", string(body)))
		return &SMSError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	c.logger.Info("sms sent",
		zap.String("recipient", phone.Mask(to)),
		zap.String("sender_id", c.config.SenderID),
		zap.Duration("duration", time.Since(start)))
	return nil
}

type disabledSender struct {
	logger *zap.Logger
}

func (d disabledSender) Send(_ context.Context, to, _ string) error {
	d.logger.Debug("sms skipped, gateway not configured", zap.String("recipient", phone.Mask(to)))
	return ErrSMSDisabled
}
