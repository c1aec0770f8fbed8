package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDonationRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "string amount", body: `{"phone":"0712345678","amount":"50"}`},
		{name: "numeric amount", body: `{"phone":"0712345678","amount":50}`},
		{name: "whole float", body: `{"phone":"0712345678","amount":50.0}`},
		{name: "missing phone", body: `{"amount":"50"}`, wantErr: true},
		{name: "blank phone", body: `{"phone":"  ","amount":"50"}`, wantErr: true},
		{name: "missing amount", body: `{"phone":"0712345678"}`, wantErr: true},
		{name: "null amount", body: `{"phone":"0712345678","amount":null}`, wantErr: true},
		{name: "zero amount", body: `{"phone":"0712345678","amount":0}`, wantErr: true},
		{name: "negative amount", body: `{"phone":"0712345678","amount":"-5"}`, wantErr: true},
		{name: "fractional amount", body: `{"phone":"0712345678","amount":"10.5"}`, wantErr: true},
		{name: "text amount", body: `{"phone":"0712345678","amount":"fifty"}`, wantErr: true},
		{name: "largest amount", body: `{"phone":"0712345678","amount":9999999999}`},
		{name: "above column range", body: `{"phone":"0712345678","amount":10000000000}`, wantErr: true},
		{name: "overflows int64", body: `{"phone":"0712345678","amount":"18446744073709551617"}`, wantErr: true},
		{name: "exponent overflow", body: `{"phone":"0712345678","amount":1e30}`, wantErr: true},
		{name: "exponent in range", body: `{"phone":"0712345678","amount":5e2}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var req DonationRequest
			if err := json.Unmarshal([]byte(tc.body), &req); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			err := req.Validate()
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidDonationRequest) {
					t.Fatalf("Validate() = %v, want ErrInvalidDonationRequest", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() unexpected error: %v", err)
			}
		})
	}
}

func TestFlexibleAmountPositiveInt(t *testing.T) {
	n, err := NewFlexibleAmount("1500").PositiveInt()
	if err != nil || n != 1500 {
		t.Fatalf("PositiveInt() = %d, %v", n, err)
	}
	if _, err := (FlexibleAmount{}).PositiveInt(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero value PositiveInt() err = %v", err)
	}
	for _, raw := range []string{"18446744073709551617", "1e30", "-18446744073709551617", "10000000000"} {
		if n, err := NewFlexibleAmount(raw).PositiveInt(); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("PositiveInt(%q) = %d, %v, want ErrInvalidAmount", raw, n, err)
		}
	}
}

func TestValidReceiptNumber(t *testing.T) {
	valid := []string{"QWE123", "NLJ7RT61SV", "a"}
	invalid := []string{"", "../etc/passwd", "QWE 123", "QWE-123", "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"}

	for _, s := range valid {
		if !ValidReceiptNumber(s) {
			t.Fatalf("ValidReceiptNumber(%q) = false", s)
		}
	}
	for _, s := range invalid {
		if ValidReceiptNumber(s) {
			t.Fatalf("ValidReceiptNumber(%q) = true", s)
		}
	}
}
