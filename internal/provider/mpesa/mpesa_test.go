package mpesa

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"donation-service/config"
	"donation-service/internal/domain"

	"go.uber.org/zap"
)

func testConfig() config.MpesaConfig {
	return config.MpesaConfig{
		Environment:      "sandbox",
		ConsumerKey:      "key",
		ConsumerSecret:   "secret",
		Passkey:          "passkey",
		ShortCode:        "174379",
		CallbackURL:      "https://example.org/api/callback",
		TransactionType:  "CustomerPayBillOnline",
		AccountReference: "Donation",
		TransactionDesc:  "Donation",
		Timezone:         "Africa/Nairobi",
		Timeout:          5 * time.Second,
	}
}

// darajaStub serves the token and STK endpoints. stkStatus/stkBody control the push reply.
func darajaStub(t *testing.T, tokenCalls *int32, stkStatus int, stkBody string, gotPush *STKPushRequest) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(tokenCalls, 1)
		want := "Basic " + base64.StdEncoding.EncodeToString([]byte("key:secret"))
		if r.Header.Get("Authorization") != want || r.URL.Query().Get("grant_type") != "client_credentials" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"errorMessage":"Invalid Authentication passed"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"tok-123","expires_in":"3599"}`))
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if gotPush != nil {
			if err := json.NewDecoder(r.Body).Decode(gotPush); err != nil {
				t.Errorf("decode push body: %v", err)
			}
		}
		w.WriteHeader(stkStatus)
		_, _ = w.Write([]byte(stkBody))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestPassword(t *testing.T) {
	got := Password("174379", "passkey", "20240101120000")
	want := base64.StdEncoding.EncodeToString([]byte("174379passkey20240101120000"))
	if got != want {
		t.Fatalf("Password() = %q, want %q", got, want)
	}
}

func TestTimestampUsesNairobiTime(t *testing.T) {
	m := NewMpesaProvider(testConfig(), zap.NewNop())
	utc := time.Date(2024, 1, 31, 22, 15, 9, 0, time.UTC)
	if got := m.Timestamp(utc); got != "20240201011509" {
		t.Fatalf("Timestamp() = %q, want 20240201011509", got)
	}
}

func TestAccessTokenMissingCredentials(t *testing.T) {
	var calls int32
	srv := darajaStub(t, &calls, http.StatusOK, `{}`, nil)

	cfg := testConfig()
	cfg.ConsumerSecret = ""
	m := NewMpesaProvider(cfg, zap.NewNop(), WithBaseURL(srv.URL))

	if _, err := m.AccessToken(context.Background()); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("AccessToken() err = %v, want ErrMissingCredentials", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("token endpoint called %d times, want 0", calls)
	}
}

func TestAccessTokenRejected(t *testing.T) {
	var calls int32
	srv := darajaStub(t, &calls, http.StatusOK, `{}`, nil)

	cfg := testConfig()
	cfg.ConsumerSecret = "wrong"
	m := NewMpesaProvider(cfg, zap.NewNop(), WithBaseURL(srv.URL))

	_, err := m.AccessToken(context.Background())
	var tokenErr *TokenError
	if !errors.As(err, &tokenErr) {
		t.Fatalf("AccessToken() err = %v, want *TokenError", err)
	}
	if tokenErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d", tokenErr.StatusCode)
	}
}

func TestInitiateSTKPush(t *testing.T) {
	var calls int32
	var push STKPushRequest
	ack := `{"MerchantRequestID":"29115-34620561-1","CheckoutRequestID":"ws_CO_191220191020363925","ResponseCode":"0","ResponseDescription":"Success. Request accepted for processing","CustomerMessage":"Success. Request accepted for processing"}`
	srv := darajaStub(t, &calls, http.StatusOK, ack, &push)

	fixed := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	m := NewMpesaProvider(testConfig(), zap.NewNop(), WithBaseURL(srv.URL), WithClock(func() time.Time { return fixed }))

	for i := 0; i < 2; i++ {
		res, err := m.InitiateSTKPush(context.Background(), "254712345678", 50)
		if err != nil {
			t.Fatalf("InitiateSTKPush() error: %v", err)
		}
		if res["CheckoutRequestID"] != "ws_CO_191220191020363925" {
			t.Fatalf("ack = %v", res)
		}
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("token fetched %d times, want one per push", calls)
	}

	if push.Timestamp != "20240501120000" {
		t.Fatalf("Timestamp = %q", push.Timestamp)
	}
	if push.Password != Password("174379", "passkey", "20240501120000") {
		t.Fatalf("Password = %q", push.Password)
	}
	if push.PartyA != "254712345678" || push.PhoneNumber != "254712345678" || push.PartyB != "174379" {
		t.Fatalf("parties = %+v", push)
	}
	if push.Amount != 50 || push.TransactionType != "CustomerPayBillOnline" || push.CallBackURL != "https://example.org/api/callback" {
		t.Fatalf("push body = %+v", push)
	}
}

func TestInitiateSTKPushUpstreamError(t *testing.T) {
	var calls int32
	body := `{"requestId":"1","errorCode":"400.002.02","errorMessage":"Bad Request - Invalid PhoneNumber"}`
	srv := darajaStub(t, &calls, http.StatusBadRequest, body, nil)
	m := NewMpesaProvider(testConfig(), zap.NewNop(), WithBaseURL(srv.URL))

	_, err := m.InitiateSTKPush(context.Background(), "254712345678", 50)
	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("err = %v, want *UpstreamError", err)
	}
	details, ok := upErr.Details().(map[string]any)
	if !ok || details["errorCode"] != "400.002.02" {
		t.Fatalf("Details() = %#v", upErr.Details())
	}
}

func TestParseSTKCallback(t *testing.T) {
	tests := []struct {
		name        string
		payload     string
		wantErr     bool
		wantCode    int
		wantAmount  string
		wantPhone   string
		wantReceipt string
	}{
		{
			name: "success with numeric values",
			payload: `{"Body":{"stkCallback":{"MerchantRequestID":"m1","CheckoutRequestID":"c1","ResultCode":0,"ResultDesc":"The service request is processed successfully.",
				"CallbackMetadata":{"Item":[{"Name":"Amount","Value":50},{"Name":"MpesaReceiptNumber","Value":"QWE123"},{"Name":"TransactionDate","Value":20240501120000},{"Name":"PhoneNumber","Value":254712345678}]}}}}`,
			wantAmount:  "50",
			wantPhone:   "254712345678",
			wantReceipt: "QWE123",
		},
		{
			name: "string values in any order",
			payload: `{"Body":{"stkCallback":{"ResultCode":0,"ResultDesc":"ok","CallbackMetadata":{"Item":[
				{"Name":"PhoneNumber","Value":"254712345678"},{"Name":"MpesaReceiptNumber","Value":"ABC9"},{"Name":"Amount","Value":"120.00"}]}}}}`,
			wantAmount:  "120",
			wantPhone:   "254712345678",
			wantReceipt: "ABC9",
		},
		{
			name:     "cancelled by user",
			payload:  `{"Body":{"stkCallback":{"ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`,
			wantCode: 1032,
		},
		{name: "missing stkCallback", payload: `{"Body":{}}`, wantErr: true},
		{name: "missing ResultCode", payload: `{"Body":{"stkCallback":{"ResultDesc":"x"}}}`, wantErr: true},
		{name: "missing ResultDesc", payload: `{"Body":{"stkCallback":{"ResultCode":0}}}`, wantErr: true},
		{name: "null ResultDesc", payload: `{"Body":{"stkCallback":{"ResultCode":1032,"ResultDesc":null}}}`, wantErr: true},
		{name: "empty ResultDesc", payload: `{"Body":{"stkCallback":{"ResultCode":1,"ResultDesc":""}}}`, wantCode: 1},
		{name: "not json", payload: `hello`, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := ParseSTKCallback([]byte(tc.payload))
			if tc.wantErr {
				if !errors.Is(err, domain.ErrInvalidCallback) {
					t.Fatalf("err = %v, want ErrInvalidCallback", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSTKCallback() error: %v", err)
			}
			if res.ResultCode != tc.wantCode || res.Success != (tc.wantCode == 0) {
				t.Fatalf("ResultCode = %d success=%v", res.ResultCode, res.Success)
			}
			if tc.wantAmount != "" && res.Amount.String() != tc.wantAmount {
				t.Fatalf("Amount = %s, want %s", res.Amount, tc.wantAmount)
			}
			if res.PhoneNumber != tc.wantPhone || res.ReceiptNumber != tc.wantReceipt {
				t.Fatalf("phone=%q receipt=%q", res.PhoneNumber, res.ReceiptNumber)
			}
			if tc.wantReceipt != "" && !strings.Contains(res.RawData["MpesaReceiptNumber"].(string), tc.wantReceipt) {
				t.Fatalf("RawData = %v", res.RawData)
			}
		})
	}
}
