// internal/provider/mpesa/stk_callback.go
package mpesa

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"donation-service/internal/domain"

	"github.com/shopspring/decimal"
)

// STKCallbackRequest is the envelope Daraja posts to CallBackURL.
type STKCallbackRequest struct {
	Body struct {
		StkCallback *STKCallback `json:"stkCallback"`
	} `json:"Body"`
}

type STKCallback struct {
	MerchantRequestID string       `json:"MerchantRequestID"`
	CheckoutRequestID string       `json:"CheckoutRequestID"`
	ResultCode        *json.Number `json:"ResultCode"`
	ResultDesc        *string      `json:"ResultDesc"`
	CallbackMetadata  struct {
		Item []CallbackItem `json:"Item"`
	} `json:"CallbackMetadata"`
}

type CallbackItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value"`
}

// CallbackResult is the parsed form of an STK callback. Metadata fields are
// left empty when the gateway did not send them; callers decide what is required.
type CallbackResult struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResultCode        int
	ResultDescription string
	Success           bool

	Amount        decimal.Decimal
	PhoneNumber   string
	ReceiptNumber string

	RawData map[string]any
}

// ParseSTKCallback validates the envelope and pulls the metadata items out by
// name, in whatever order they arrive.
func ParseSTKCallback(payload []byte) (*CallbackResult, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var callback STKCallbackRequest
	if err := dec.Decode(&callback); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCallback, err)
	}

	stk := callback.Body.StkCallback
	if stk == nil || stk.ResultCode == nil {
		return nil, fmt.Errorf("%w: missing Body.stkCallback.ResultCode", domain.ErrInvalidCallback)
	}
	if stk.ResultDesc == nil {
		return nil, fmt.Errorf("%w: missing Body.stkCallback.ResultDesc", domain.ErrInvalidCallback)
	}
	code, err := stk.ResultCode.Int64()
	if err != nil {
		return nil, fmt.Errorf("%w: non-integer ResultCode %q", domain.ErrInvalidCallback, stk.ResultCode.String())
	}

	result := &CallbackResult{
		MerchantRequestID: stk.MerchantRequestID,
		CheckoutRequestID: stk.CheckoutRequestID,
		ResultCode:        int(code),
		ResultDescription: *stk.ResultDesc,
		Success:           code == 0,
		RawData:           make(map[string]any),
	}

	for _, item := range stk.CallbackMetadata.Item {
		switch item.Name {
		case "Amount":
			if d, ok := decimalValue(item.Value); ok {
				result.Amount = d
			}
		case "MpesaReceiptNumber":
			result.ReceiptNumber = stringValue(item.Value)
		case "PhoneNumber":
			result.PhoneNumber = stringValue(item.Value)
		}
		if item.Name != "" {
			result.RawData[item.Name] = item.Value
		}
	}

	return result, nil
}

func decimalValue(v any) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(val))
		return d, err == nil
	}
	return decimal.Decimal{}, false
}

// stringValue renders numbers without exponent or fraction, so a phone sent as
// 254712345678 reads back as "254712345678".
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	}
	return ""
}
