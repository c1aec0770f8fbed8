// internal/domain/donation.go
package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	CurrencyKES    = "KES"
	AnonymousDonor = "Anonymous"
)

// MaxAmount is the largest whole amount the NUMERIC(12,2) amount column holds.
const MaxAmount int64 = 9_999_999_999

// Donation is the only persisted entity. It is written once, by the callback
// reconciler, and never updated.
type Donation struct {
	ID            int64           `json:"id" db:"id"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Phone         string          `json:"phone" db:"phone"`
	ReceiptNumber string          `json:"receipt_number" db:"receipt_number"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

var receiptNumberPattern = regexp.MustCompile(`^[A-Za-z0-9]{1,32}$`)

// ValidReceiptNumber reports whether s looks like a gateway receipt number.
// Receipt numbers end up in file names and URLs, so nothing else is accepted.
func ValidReceiptNumber(s string) bool {
	return receiptNumberPattern.MatchString(s)
}

// DonationRequest is the body of POST /donate.
type DonationRequest struct {
	Phone  string         `json:"phone"`
	Amount FlexibleAmount `json:"amount"`
}

// Validate checks presence of the phone and that amount is a positive integer.
func (r *DonationRequest) Validate() error {
	if strings.TrimSpace(r.Phone) == "" {
		return ErrInvalidDonationRequest
	}
	if _, err := r.Amount.PositiveInt(); err != nil {
		return ErrInvalidDonationRequest
	}
	return nil
}

// FlexibleAmount accepts a JSON number or a JSON string holding a number.
type FlexibleAmount struct {
	raw string
	set bool
}

func (a *FlexibleAmount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*a = FlexibleAmount{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = FlexibleAmount{raw: strings.TrimSpace(s), set: true}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*a = FlexibleAmount{raw: n.String(), set: true}
	return nil
}

// NewFlexibleAmount builds an amount from its textual form.
func NewFlexibleAmount(s string) FlexibleAmount {
	return FlexibleAmount{raw: s, set: true}
}

// PositiveInt returns the amount as a whole number of shillings.
// "50" and 50 are accepted; "50.5", "0", "-1", "abc" and anything above
// MaxAmount are not.
func (a FlexibleAmount) PositiveInt() (int64, error) {
	if !a.set || a.raw == "" {
		return 0, ErrInvalidAmount
	}
	n, err := strconv.ParseInt(a.raw, 10, 64)
	if errors.Is(err, strconv.ErrRange) {
		return 0, ErrInvalidAmount
	}
	if err != nil {
		// 50.0 is still a whole number
		d, derr := decimal.NewFromString(a.raw)
		if derr != nil || !d.IsInteger() || d.GreaterThan(decimal.NewFromInt(MaxAmount)) {
			return 0, ErrInvalidAmount
		}
		n = d.IntPart()
	}
	if n <= 0 || n > MaxAmount {
		return 0, ErrInvalidAmount
	}
	return n, nil
}
