// internal/provider/mpesa/mpesa.go
package mpesa

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

	"donation-service/config"

	"go.uber.org/zap"
)

const (
	productionBaseURL = "https://api.safaricom.co.ke"
	sandboxBaseURL    = "https://sandbox.safaricom.co.ke"

	tokenPath    = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushPath  = "/mpesa/stkpush/v1/processrequest"
	timestampFmt = "20060102150405"
)

// ErrMissingCredentials is returned before any network call when the consumer
// key or secret is not configured.
var ErrMissingCredentials = errors.New("missing M-Pesa API credentials")

type MpesaProvider struct {
	config     config.MpesaConfig
	baseURL    string
	httpClient *http.Client
	location   *time.Location
	now        func() time.Time
	logger     *zap.Logger
}

type Option func(*MpesaProvider)

// WithBaseURL points the provider at another Daraja host, e.g. a test server.
func WithBaseURL(u string) Option {
	return func(m *MpesaProvider) { m.baseURL = u }
}

func WithHTTPClient(c *http.Client) Option {
	return func(m *MpesaProvider) { m.httpClient = c }
}

// WithClock overrides the time source used for STK timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *MpesaProvider) { m.now = now }
}

func NewMpesaProvider(cfg config.MpesaConfig, logger *zap.Logger, opts ...Option) *MpesaProvider {
	baseURL := productionBaseURL
	if cfg.Environment == "sandbox" {
		baseURL = sandboxBaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil || cfg.Timezone == "" {
		// Nairobi has no DST, a fixed zone is exact
		loc = time.FixedZone("EAT", 3*60*60)
	}

	m := &MpesaProvider{
		config:     cfg,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		location:   loc,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MpesaProvider) GetName() string { return "mpesa" }

// ============================================
// TOKEN PROVIDER
// ============================================

// AccessToken exchanges the consumer key/secret for a bearer token.
// Tokens are not cached: every initiation fetches a fresh one.
func (m *MpesaProvider) AccessToken(ctx context.Context) (string, error) {
	if m.config.ConsumerKey == "" || m.config.ConsumerSecret == "" {
		m.logger.Error("MPESA_CONSUMER_KEY or MPESA_CONSUMER_SECRET is not set")
		return "", ErrMissingCredentials
	}

	ctx, cancel := context.WithTimeout(ctx, m.httpClient.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+tokenPath, nil)
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}

	auth := base64.StdEncoding.EncodeToString([]byte(
		m.config.ConsumerKey + ":" + m.config.ConsumerSecret,
	))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", &TokenError{Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return "", &TokenError{StatusCode: resp.StatusCode, Body: decodeBody(body)}
	}

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   string `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", &TokenError{StatusCode: resp.StatusCode, Body: string(body), Err: err}
	}
	if result.AccessToken == "" {
		return "", &TokenError{StatusCode: resp.StatusCode, Body: decodeBody(body), Err: errors.New("empty access token")}
	}

	m.logger.Debug("M-Pesa access token acquired", zap.String("expires_in", result.ExpiresIn))
	return result.AccessToken, nil
}

// ============================================
// STK PUSH (Lipa Na M-Pesa Online)
// ============================================

// STKPushRequest represents M-Pesa STK Push request
type STKPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

// Timestamp renders t in the Daraja YYYYMMDDHHMMSS form, in local time.
func (m *MpesaProvider) Timestamp(t time.Time) string {
	return t.In(m.location).Format(timestampFmt)
}

// Password is base64(shortCode + passkey + timestamp). Daraja recomputes it
// byte for byte, so no separators or trimming.
func Password(shortCode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passkey + timestamp))
}

// BuildSTKPushRequest assembles the push request for an already normalized phone.
func (m *MpesaProvider) BuildSTKPushRequest(phoneNumber string, amount int64) STKPushRequest {
	timestamp := m.Timestamp(m.now())
	return STKPushRequest{
		BusinessShortCode: m.config.ShortCode,
		Password:          Password(m.config.ShortCode, m.config.Passkey, timestamp),
		Timestamp:         timestamp,
		TransactionType:   m.config.TransactionType,
		Amount:            amount,
		PartyA:            phoneNumber,
		PartyB:            m.config.ShortCode,
		PhoneNumber:       phoneNumber,
		CallBackURL:       m.config.CallbackURL,
		AccountReference:  m.config.AccountReference,
		TransactionDesc:   m.config.TransactionDesc,
	}
}

// InitiateSTKPush asks the gateway to prompt the payer's handset. The returned
// map is the synchronous acknowledgment, not a payment result.
func (m *MpesaProvider) InitiateSTKPush(ctx context.Context, phoneNumber string, amount int64) (map[string]any, error) {
	token, err := m.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}

	request := m.BuildSTKPushRequest(phoneNumber, amount)

	m.logger.Info("submitting STK push",
		zap.String("short_code", request.BusinessShortCode),
		zap.Int64("amount", amount),
		zap.String("timestamp", request.Timestamp))

	return m.makeRequest(ctx, http.MethodPost, m.baseURL+stkPushPath, token, request)
}

// makeRequest makes HTTP request to M-Pesa API
func (m *MpesaProvider) makeRequest(ctx context.Context, method, url, token string, payload any) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, m.httpClient.Timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{Err: err}
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Payload: decodeBody(responseBody)}
	}

	var result map[string]any
	if err := json.Unmarshal(responseBody, &result); err != nil {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Payload: string(responseBody), Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	return result, nil
}

// decodeBody returns the upstream body as JSON when it is JSON, else as text.
func decodeBody(b []byte) any {
	var v any
	if err := json.Unmarshal(b, &v); err == nil {
		return v
	}
	return string(b)
}
