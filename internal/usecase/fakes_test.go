package usecase

import (
	"context"
	"sync"

	"donation-service/internal/domain"
	"donation-service/internal/receipt"
)

type fakeGateway struct {
	ack       map[string]any
	err       error
	calls     int
	lastPhone string
	lastAmt   int64
}

func (f *fakeGateway) GetName() string { return "fake" }

func (f *fakeGateway) InitiateSTKPush(_ context.Context, phone string, amount int64) (map[string]any, error) {
	f.calls++
	f.lastPhone, f.lastAmt = phone, amount
	return f.ack, f.err
}

// memRepo keeps donations keyed by receipt number.
type memRepo struct {
	mu     sync.Mutex
	rows   map[string]domain.Donation
	nextID int64
	err    error
}

func newMemRepo() *memRepo { return &memRepo{rows: map[string]domain.Donation{}} }

func (r *memRepo) CreateIfAbsent(_ context.Context, d *domain.Donation) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	if _, ok := r.rows[d.ReceiptNumber]; ok {
		return false, nil
	}
	r.nextID++
	d.ID = r.nextID
	r.rows[d.ReceiptNumber] = *d
	return true, nil
}

func (r *memRepo) GetByReceiptNumber(_ context.Context, rn string) (*domain.Donation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.rows[rn]
	if !ok {
		return nil, domain.ErrDonationNotFound
	}
	return &d, nil
}

func (r *memRepo) CountByReceiptNumber(_ context.Context, rn string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[rn]; ok {
		return 1, nil
	}
	return 0, nil
}

type fakeRenderer struct {
	mu       sync.Mutex
	rendered []receipt.Data
	err      error
	panicMsg string
}

func (f *fakeRenderer) Render(_ context.Context, data receipt.Data) (string, error) {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rendered = append(f.rendered, data)
	return "/tmp/receipt_" + data.ReceiptNumber + ".pdf", f.err
}

type sentSMS struct{ to, message string }

type fakeSMS struct {
	mu   sync.Mutex
	sent []sentSMS
	err  error
	// ctxErr records whether the context was already done when Send ran.
	ctxErr error
}

func (f *fakeSMS) Send(ctx context.Context, to, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctxErr = ctx.Err()
	f.sent = append(f.sent, sentSMS{to, message})
	return f.err
}

type fakePublisher struct {
	mu        sync.Mutex
	published []string
	err       error
}

func (f *fakePublisher) PublishDonationConfirmed(_ context.Context, d *domain.Donation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, d.ReceiptNumber)
	return f.err
}
