// internal/usecase/callback_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"donation-service/internal/domain"
	"donation-service/internal/metrics"
	"donation-service/internal/phone"
	"donation-service/internal/provider/mpesa"
	"donation-service/internal/receipt"
	"donation-service/internal/repository"
	"donation-service/pkg/client"

	"go.uber.org/zap"
)

const (
	TaskReceipt = "receipt"
	TaskSMS     = "sms"
	TaskEvent   = "event"
)

type ReceiptRenderer interface {
	Render(ctx context.Context, data receipt.Data) (string, error)
}

type EventPublisher interface {
	PublishDonationConfirmed(ctx context.Context, d *domain.Donation) error
}

// CallbackSettings are the knobs of the post-payment side effects.
type CallbackSettings struct {
	PublicBaseURL  string
	ReceiptTimeout time.Duration
	SMSTimeout     time.Duration
	EventTimeout   time.Duration
}

type CallbackUsecase struct {
	donationRepo repository.DonationRepository
	receipts     ReceiptRenderer
	sms          client.SMSSender
	events       EventPublisher
	settings     CallbackSettings
	now          func() time.Time
	logger       *zap.Logger
}

func NewCallbackUsecase(
	donationRepo repository.DonationRepository,
	receipts ReceiptRenderer,
	sms client.SMSSender,
	events EventPublisher,
	settings CallbackSettings,
	logger *zap.Logger,
) *CallbackUsecase {
	return &CallbackUsecase{
		donationRepo: donationRepo,
		receipts:     receipts,
		sms:          sms,
		events:       events,
		settings:     settings,
		now:          time.Now,
		logger:       logger,
	}
}

// ProcessSTKCallback reconciles one gateway callback. Redeliveries of the same
// receipt number are recognised and acknowledged without side effects.
func (uc *CallbackUsecase) ProcessSTKCallback(ctx context.Context, payload []byte) (*domain.CallbackOutcome, error) {
	result, err := mpesa.ParseSTKCallback(payload)
	if err != nil {
		metrics.Callbacks.WithLabelValues("invalid").Inc()
		uc.logger.Warn("invalid STK callback", zap.Int("payload_size", len(payload)), zap.Error(err))
		return nil, err
	}

	uc.logger.Info("M-Pesa STK callback parsed",
		zap.String("checkout_request_id", result.CheckoutRequestID),
		zap.Int("result_code", result.ResultCode),
		zap.Bool("success", result.Success),
		zap.String("mpesa_receipt", result.ReceiptNumber))

	if !result.Success {
		metrics.Callbacks.WithLabelValues(string(domain.OutcomePaymentFailed)).Inc()
		uc.logger.Info("M-Pesa payment failed or cancelled",
			zap.String("checkout_request_id", result.CheckoutRequestID),
			zap.Int("result_code", result.ResultCode),
			zap.String("result_desc", result.ResultDescription))
		return &domain.CallbackOutcome{
			Status:            domain.OutcomePaymentFailed,
			ResultCode:        result.ResultCode,
			ResultDescription: result.ResultDescription,
		}, nil
	}

	receiptPath, err := checkMetadata(result)
	if err != nil {
		metrics.Callbacks.WithLabelValues("incomplete").Inc()
		uc.logger.Warn("STK callback metadata incomplete",
			zap.String("checkout_request_id", result.CheckoutRequestID),
			zap.String("amount", result.Amount.String()),
			zap.Bool("phone_present", result.PhoneNumber != ""),
			zap.String("mpesa_receipt", result.ReceiptNumber),
			zap.Error(err))
		return nil, err
	}

	msisdn, err := phone.Mpesa(result.PhoneNumber)
	if err != nil {
		// the money has moved; keep the number as reported rather than drop the donation
		uc.logger.Warn("gateway reported an unrecognised phone number, storing as is",
			zap.String("mpesa_receipt", result.ReceiptNumber),
			zap.String("phone", phone.Mask(result.PhoneNumber)),
			zap.Error(err))
		msisdn = result.PhoneNumber
	}

	donation := &domain.Donation{
		Amount:        result.Amount,
		Phone:         msisdn,
		ReceiptNumber: result.ReceiptNumber,
	}

	created, err := uc.donationRepo.CreateIfAbsent(ctx, donation)
	if err != nil {
		metrics.Callbacks.WithLabelValues("error").Inc()
		uc.logger.Error("failed to save donation",
			zap.String("mpesa_receipt", donation.ReceiptNumber),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	if !created {
		metrics.Callbacks.WithLabelValues(string(domain.OutcomeDuplicate)).Inc()
		uc.logger.Info("duplicate receipt, skipping",
			zap.String("mpesa_receipt", donation.ReceiptNumber))
		if existing, err := uc.donationRepo.GetByReceiptNumber(ctx, donation.ReceiptNumber); err == nil {
			donation = existing
		}
		return &domain.CallbackOutcome{
			Status:     domain.OutcomeDuplicate,
			ResultCode: result.ResultCode,
			Donation:   donation,
		}, nil
	}

	uc.logger.Info("donation saved",
		zap.Int64("donation_id", donation.ID),
		zap.String("amount", donation.Amount.String()),
		zap.String("phone", phone.Mask(donation.Phone)),
		zap.String("mpesa_receipt", donation.ReceiptNumber))

	outcome := &domain.CallbackOutcome{
		Status:            domain.OutcomeSaved,
		ResultCode:        result.ResultCode,
		ResultDescription: result.ResultDescription,
		Donation:          donation,
		ReceiptPath:       receiptPath,
	}

	fields := []zap.Field{zap.String("mpesa_receipt", donation.ReceiptNumber)}
	for _, t := range uc.sideEffects(donation, receiptPath) {
		outcome.Tasks = append(outcome.Tasks, runTask(ctx, t, uc.logger, fields...))
	}

	metrics.Callbacks.WithLabelValues(string(domain.OutcomeSaved)).Inc()
	return outcome, nil
}

// sideEffects are run in order: the SMS links to the receipt, so the receipt goes first.
func (uc *CallbackUsecase) sideEffects(d *domain.Donation, receiptPath string) []task {
	return []task{
		{
			name:    TaskReceipt,
			timeout: uc.settings.ReceiptTimeout,
			run: func(ctx context.Context) error {
				_, err := uc.receipts.Render(ctx, receipt.Data{
					Donor:         domain.AnonymousDonor,
					Amount:        d.Amount,
					ReceiptNumber: d.ReceiptNumber,
					Date:          uc.now(),
				})
				return err
			},
		},
		{
			name:    TaskSMS,
			timeout: uc.settings.SMSTimeout,
			run: func(ctx context.Context) error {
				return uc.sms.Send(ctx, d.Phone, ThankYouMessage(d, uc.settings.PublicBaseURL+receiptPath))
			},
		},
		{
			name:    TaskEvent,
			timeout: uc.settings.EventTimeout,
			run: func(ctx context.Context) error {
				return uc.events.PublishDonationConfirmed(ctx, d)
			},
		},
	}
}

// ThankYouMessage is the SMS sent to a donor once the donation is stored.
func ThankYouMessage(d *domain.Donation, receiptURL string) string {
	return fmt.Sprintf("Thank you for donating %s %s. Download your receipt here: %s",
		domain.CurrencyKES, d.Amount.String(), receiptURL)
}

// checkMetadata reports which success fields are unusable and, when all are
// usable, returns the public receipt path for the receipt number.
func checkMetadata(r *mpesa.CallbackResult) (string, error) {
	var missing []string
	if !r.Amount.IsPositive() {
		missing = append(missing, "Amount")
	}
	if r.PhoneNumber == "" {
		missing = append(missing, "PhoneNumber")
	}
	receiptPath, err := receipt.URLPath(r.ReceiptNumber)
	if err != nil {
		missing = append(missing, "MpesaReceiptNumber")
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: missing or invalid %v", domain.ErrIncompleteMetadata, missing)
	}
	return receiptPath, nil
}
