// internal/domain/callback.go
package domain

import "time"

type CallbackStatus string

const (
	OutcomeSaved         CallbackStatus = "saved"
	OutcomeDuplicate     CallbackStatus = "duplicate"
	OutcomePaymentFailed CallbackStatus = "payment_failed"
)

// TaskResult records how a best-effort side effect went. A failed task never
// changes the callback outcome.
type TaskResult struct {
	Name    string        `json:"name"`
	Err     error         `json:"-"`
	Elapsed time.Duration `json:"elapsed"`
}

func (r TaskResult) OK() bool { return r.Err == nil }

// CallbackOutcome is what the reconciler decided for one gateway callback.
type CallbackOutcome struct {
	Status            CallbackStatus
	ResultCode        int
	ResultDescription string
	Donation          *Donation
	ReceiptPath       string
	Tasks             []TaskResult
}
