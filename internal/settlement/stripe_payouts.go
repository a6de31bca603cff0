package settlement

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gym-checkin/internal/logger"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

var ErrStripeClientInitFailed = errors.New("failed to initialize Stripe client")

// StripePayouts sends venue payouts as Stripe Connect transfers.
type StripePayouts struct {
	client   *client.API
	currency string
	log      *logger.Logger
}

func NewStripePayouts(secretKey, currency string, log *logger.Logger) (*StripePayouts, error) {
	if log == nil {
		log = logger.NewWithWriters(nil, nil)
	}
	if secretKey == "" {
		log.Error("STRIPE", "STRIPE_SECRET_KEY not set")
		return nil, ErrStripeClientInitFailed
	}

	sc := client.New(secretKey, nil)
	if sc == nil {
		log.Error("STRIPE", "Failed to initialize Stripe client")
		return nil, ErrStripeClientInitFailed
	}

	log.Info("STRIPE", "Stripe client initialized successfully")
	return &StripePayouts{client: sc, currency: strings.ToLower(currency), log: log}, nil
}

func (p *StripePayouts) Transfer(ctx context.Context, req TransferRequest) (string, error) {
	params := &stripe.TransferParams{
		Amount:        stripe.Int64(toMinorUnits(req.Amount)),
		Currency:      stripe.String(p.currency),
		Destination:   stripe.String(req.Destination),
		TransferGroup: stripe.String(req.CheckInID),
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey())
	params.AddMetadata("financial_record_id", req.FinancialRecordID)
	params.AddMetadata("check_in_id", req.CheckInID)

	tr, err := p.client.Transfers.New(params)
	if err != nil {
		p.log.Error("STRIPE", fmt.Sprintf("Transfer for %s failed: %v", req.FinancialRecordID, err))
		return "", classifyStripeError(err)
	}

	p.log.Info("STRIPE", fmt.Sprintf("Transfer %s created for %s", tr.ID, req.FinancialRecordID))
	return tr.ID, nil
}

// toMinorUnits converts an amount with two decimal places to cents.
func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// classifyStripeError marks client-side rejections as permanent. Rate limits,
// server errors and network failures stay retryable.
func classifyStripeError(err error) error {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return err
	}
	status := stripeErr.HTTPStatusCode
	if status >= 400 && status < 500 && status != http.StatusTooManyRequests && status != http.StatusConflict {
		return fmt.Errorf("%w: %s", ErrPayoutRejected, stripeErr.Msg)
	}
	return err
}
