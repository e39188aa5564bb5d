package payment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nhtruong/restaurant-pos/internal/events"
	"github.com/nhtruong/restaurant-pos/internal/order"
)

var ErrOrderAlreadyPaid = errors.New("order is already paid")

// BankAccount is the receiving account rendered into the VietQR image URL.
type BankAccount struct {
	BankCode    string
	Number      string
	HolderName  string
	QRImageHost string
}

// PaidStatus is the answer to a payment status poll.
type PaidStatus struct {
	Paid bool `json:"paid"`
}

type Service interface {
	CreateIntent(ctx context.Context, orderID int64) (*Intent, error)
	HandleWebhook(ctx context.Context, raw []byte) error
	CheckStatus(ctx context.Context, orderID int64) (*PaidStatus, error)
	GetInvoice(ctx context.Context, orderID int64) (*Invoice, error)
}

type service struct {
	repo      Repository
	orders    order.Repository
	account   BankAccount
	publisher events.Publisher
	now       func() time.Time
}

func NewService(repo Repository, orders order.Repository, account BankAccount, publisher events.Publisher) Service {
	return &service{
		repo:      repo,
		orders:    orders,
		account:   account,
		publisher: publisher,
		now:       time.Now,
	}
}

// CreateIntent registers a pending payment for the order and returns the QR
// payload the cashier screen renders. Re-requesting an intent for the same
// order issues a fresh pending payment with a fresh expiry; settlement only
// ever matches the newest one.
func (s *service) CreateIntent(ctx context.Context, orderID int64) (*Intent, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			return nil, order.ErrOrderNotFound
		}
		return nil, fmt.Errorf("service: failed to get order for payment intent: %w", err)
	}

	if o.Status == order.StatusPaid {
		return nil, ErrOrderAlreadyPaid
	}

	now := s.now().UTC()
	p := &Payment{
		OrderID:       o.ID,
		Amount:        o.TotalAmount,
		Method:        MethodQRIS,
		Status:        StatusPending,
		TransactionID: TransactionCode(o.ID),
		ExpiredAt:     now.Add(IntentTTL),
	}

	if err := s.repo.CreatePayment(ctx, p); err != nil {
		log.Error().Err(err).Int64("order_id", orderID).Msg("service: failed to create payment")
		return nil, fmt.Errorf("service: failed to create payment: %w", err)
	}

	log.Info().
		Int64("order_id", o.ID).
		Str("transaction_id", p.TransactionID).
		Str("amount", p.Amount.String()).
		Time("expired_at", p.ExpiredAt).
		Msg("service: payment intent created")

	return &Intent{
		QRURL:         s.qrImageURL(p),
		Amount:        p.Amount,
		TableNumber:   o.TableNumber,
		OrderID:       o.ID,
		TransactionID: p.TransactionID,
		ExpiresIn:     int(IntentTTL.Seconds()),
		ExpiredAt:     p.ExpiredAt,
	}, nil
}

// HandleWebhook reconciles an incoming bank-transfer notification. Every
// outcome short of an internal failure is a success from the aggregator's
// point of view: unmatched or stale notifications are acknowledged and
// dropped so the bank does not retry them forever.
func (s *service) HandleWebhook(ctx context.Context, raw []byte) error {
	notification, err := ParseNotification(raw)
	if err != nil {
		log.Warn().Err(err).Msg("service: dropping unparseable webhook payload")
		return nil
	}

	if !notification.Amount.IsPositive() {
		log.Warn().Str("amount", notification.Amount.String()).Msg("service: dropping webhook with non-positive amount")
		return nil
	}

	token, ok := ExtractToken(notification.Description)
	if !ok {
		log.Warn().Str("description", notification.Description).Msg("service: no order token in webhook description")
		return nil
	}

	settlement, err := s.repo.Settle(ctx, token, s.now().UTC())
	if err != nil {
		if errors.Is(err, ErrNoPendingPayment) {
			log.Info().Str("token", token).Msg("service: webhook matched no pending payment")
			return nil
		}
		log.Error().Err(err).Str("token", token).Msg("service: failed to settle payment")
		return fmt.Errorf("service: failed to settle payment: %w", err)
	}

	s.broadcast(ctx, events.TypePaymentCompleted, settlement)

	log.Info().
		Int64("order_id", settlement.Payment.OrderID).
		Int64("payment_id", settlement.Payment.ID).
		Str("invoice_number", settlement.Invoice.InvoiceNumber).
		Int("table_number", settlement.TableNumber).
		Msg("service: payment completed")

	return nil
}

func (s *service) CheckStatus(ctx context.Context, orderID int64) (*PaidStatus, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			return nil, order.ErrOrderNotFound
		}
		return nil, fmt.Errorf("service: failed to check payment status: %w", err)
	}

	return &PaidStatus{Paid: o.Status == order.StatusPaid}, nil
}

func (s *service) GetInvoice(ctx context.Context, orderID int64) (*Invoice, error) {
	invoice, err := s.repo.GetInvoiceByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrInvoiceNotFound) {
			return nil, ErrInvoiceNotFound
		}
		log.Error().Err(err).Int64("order_id", orderID).Msg("service: failed to fetch invoice")
		return nil, fmt.Errorf("service: failed to fetch invoice: %w", err)
	}

	return invoice, nil
}

// qrImageURL renders the img.vietqr.io image link for a pending payment.
// The transfer narration carries the transaction code so the webhook can
// match it back.
func (s *service) qrImageURL(p *Payment) string {
	host := s.account.QRImageHost
	if host == "" {
		host = "https://img.vietqr.io"
	}

	query := url.Values{}
	query.Set("amount", p.Amount.StringFixed(0))
	query.Set("addInfo", p.TransactionID)
	query.Set("accountName", s.account.HolderName)

	return fmt.Sprintf("%s/image/%s-%s-compact2.png?%s",
		host, s.account.BankCode, s.account.Number, query.Encode())
}

func (s *service) broadcast(ctx context.Context, eventType string, payload interface{}) {
	if err := s.publisher.Publish(ctx, events.New(eventType, payload)); err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("service: failed to publish event")
	}
}
