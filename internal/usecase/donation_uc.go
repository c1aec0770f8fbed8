// internal/usecase/donation_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"

	"donation-service/internal/domain"
	"donation-service/internal/metrics"
	"donation-service/internal/phone"
	"donation-service/internal/provider"
	"donation-service/internal/provider/mpesa"

	"go.uber.org/zap"
)

type DonationUsecase struct {
	gateway provider.PushPaymentGateway
	logger  *zap.Logger
}

func NewDonationUsecase(gateway provider.PushPaymentGateway, logger *zap.Logger) *DonationUsecase {
	return &DonationUsecase{gateway: gateway, logger: logger}
}

// InitiateDonation validates the request and asks the gateway to push a
// payment prompt. Nothing is stored: the donation only exists once the
// gateway confirms it on the callback.
func (uc *DonationUsecase) InitiateDonation(ctx context.Context, req domain.DonationRequest) (map[string]any, error) {
	if err := req.Validate(); err != nil {
		metrics.STKPushRequests.WithLabelValues("invalid").Inc()
		return nil, err
	}
	amount, _ := req.Amount.PositiveInt()

	msisdn, err := phone.Mpesa(req.Phone)
	if err != nil {
		metrics.STKPushRequests.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("normalize phone: %w", err)
	}

	uc.logger.Info("initiating donation",
		zap.String("provider", uc.gateway.GetName()),
		zap.String("phone", phone.Mask(msisdn)),
		zap.Int64("amount", amount))

	ack, err := uc.gateway.InitiateSTKPush(ctx, msisdn, amount)
	if err != nil {
		if errors.Is(err, mpesa.ErrMissingCredentials) {
			metrics.STKPushRequests.WithLabelValues("config_error").Inc()
			uc.logger.Error("payment gateway credentials missing", zap.Error(err))
			return nil, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
		}
		metrics.STKPushRequests.WithLabelValues("failed").Inc()
		uc.logger.Error("STK push failed",
			zap.String("phone", phone.Mask(msisdn)),
			zap.Int64("amount", amount),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", domain.ErrPaymentInitiation, err)
	}

	metrics.STKPushRequests.WithLabelValues("accepted").Inc()
	uc.logger.Info("STK push accepted",
		zap.Any("checkout_request_id", ack["CheckoutRequestID"]),
		zap.Any("response_code", ack["ResponseCode"]))
	return ack, nil
}
