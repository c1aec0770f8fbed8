package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"donation-service/config"

	"go.uber.org/zap"
)

func TestSMSClientSend(t *testing.T) {
	var got http.Header
	var form map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		got = r.Header.Clone()
		form = map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		_, _ = w.Write([]byte(`{"status":"success"}`))
	}))
	defer srv.Close()

	c := NewSMSClient(config.SMSConfig{
		URL: srv.URL, APIKey: "k", SenderID: "FEEDCOMRADE", UserID: "u", Password: "p", Timeout: time.Second,
	}, zap.NewNop())

	if err := c.Send(context.Background(), "254712345678", "Thank you"); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if got.Get("apikey") != "k" || got.Get("Content-Type") != "application/x-www-form-urlencoded" {
		t.Fatalf("headers = %v", got)
	}
	want := map[string]string{
		"userid": "u", "password": "p", "senderid": "FEEDCOMRADE", "sendMethod": "quick",
		"msgType": "text", "msg": "Thank you", "mobile": "254712345678",
		"duplicatecheck": "true", "output": "json",
	}
	for k, v := range want {
		if form[k] != v {
			t.Fatalf("form[%s] = %q, want %q", k, form[k], v)
		}
	}
}

func TestSMSClientGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	c := NewSMSClient(config.SMSConfig{URL: srv.URL, APIKey: "k"}, zap.NewNop())
	err := c.Send(context.Background(), "254712345678", "hi")

	var smsErr *SMSError
	if !errors.As(err, &smsErr) || smsErr.StatusCode != http.StatusBadGateway || smsErr.Body != "upstream down" {
		t.Fatalf("err = %v, want *SMSError 502", err)
	}
}

func TestNewSMSSenderDisabled(t *testing.T) {
	s := NewSMSSender(config.SMSConfig{}, zap.NewNop())
	if err := s.Send(context.Background(), "254712345678", "hi"); !errors.Is(err, ErrSMSDisabled) {
		t.Fatalf("err = %v, want ErrSMSDisabled", err)
	}
}
