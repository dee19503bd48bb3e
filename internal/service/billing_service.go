package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"app/internal/config"
	"app/internal/mailer"
	"app/internal/model"
	"app/internal/pubsub"
	"app/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	customerpkg "github.com/stripe/stripe-go/v82/customer"
	paymentintentpkg "github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/webhook"
)

// ErrUnknownPack is returned for a payment-intent request naming a pack
// that is not in the policy table.
var ErrUnknownPack = errors.New("unknown credit pack")

// creditPacks is the purchasable pack policy table.
var creditPacks = map[string]model.CreditPack{
	"starter":  {ID: "starter", Credits: 10, AmountCents: 499, Currency: "usd"},
	"standard": {ID: "standard", Credits: 50, AmountCents: 1999, Currency: "usd"},
	"studio":   {ID: "studio", Credits: 120, AmountCents: 3999, Currency: "usd"},
}

// Packs returns the purchasable credit packs.
func Packs() []model.CreditPack {
	return []model.CreditPack{creditPacks["starter"], creditPacks["standard"], creditPacks["studio"]}
}

// BillingService manages Stripe integration: payment intents for credit
// packs and webhook settlement of completed payments into credits.
type BillingService struct {
	cfg       *config.Config
	accounts  repository.AccountRepository
	purchases repository.PurchaseRepository
	mail      mailer.Mailer // may be nil
	publisher pubsub.Publisher
	logger    zerolog.Logger
}

// NewBillingService initializes the Stripe key and returns the service
// with a scoped logger.
func NewBillingService(cfg *config.Config, accounts repository.AccountRepository, purchases repository.PurchaseRepository, mail mailer.Mailer, publisher pubsub.Publisher, logger zerolog.Logger) *BillingService {
	stripe.Key = cfg.StripeSecretKey
	lg := logger.With().Str("service", "BillingService").Logger()
	return &BillingService{cfg: cfg, accounts: accounts, purchases: purchases, mail: mail, publisher: publisher, logger: lg}
}

// getOrCreateCustomer ensures a Stripe customer exists for the account.
func (s *BillingService) getOrCreateCustomer(ctx context.Context, account *model.Account) (string, error) {
	if account.StripeCustomerID != nil && *account.StripeCustomerID != "" {
		return *account.StripeCustomerID, nil
	}
	s.logger.Warn().Str("user_id", account.ID).Msg("No Stripe customer ID found, creating customer")
	params := &stripe.CustomerParams{
		Email:    stripe.String(account.Email),
		Name:     stripe.String(account.FullName),
		Metadata: map[string]string{"user_id": account.ID},
	}
	cust, err := customerpkg.New(params)
	if err != nil {
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	if err := s.accounts.UpdateStripeCustomerID(ctx, account.ID, cust.ID); err != nil {
		return "", fmt.Errorf("store stripe customer id: %w", err)
	}
	return cust.ID, nil
}

// CreatePaymentIntent creates a Stripe PaymentIntent for the given credit
// pack and returns its client secret.
func (s *BillingService) CreatePaymentIntent(ctx context.Context, userID, packID string) (string, error) {
	pack, ok := creditPacks[packID]
	if !ok {
		return "", ErrUnknownPack
	}
	account, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("fetch account: %w", err)
	}
	if account == nil {
		return "", ErrAccountNotFound
	}
	customerID, err := s.getOrCreateCustomer(ctx, account)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to get or create Stripe customer")
		return "", err
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(pack.AmountCents),
		Currency: stripe.String(pack.Currency),
		Customer: stripe.String(customerID),
		Metadata: map[string]string{
			"user_id": userID,
			"pack_id": pack.ID,
		},
	}
	pi, err := paymentintentpkg.New(params)
	if err != nil {
		s.logger.Error().Err(err).Str("pack_id", packID).Msg("Failed to create payment intent")
		return "", fmt.Errorf("create payment intent: %w", err)
	}
	return pi.ClientSecret, nil
}

// resolveUserID resolves the account from webhook metadata, falling back
// to a customer-id lookup for events missing metadata.
func (s *BillingService) resolveUserID(ctx context.Context, metadata map[string]string, customerID string) (string, error) {
	if userID, ok := metadata["user_id"]; ok && userID != "" {
		return userID, nil
	}
	if customerID == "" {
		return "", errors.New("cannot determine user: missing metadata and customer id")
	}
	s.logger.Warn().Str("stripe_customer_id", customerID).Msg("Missing user_id metadata; looking up account by customer ID")
	account, err := s.accounts.GetByStripeCustomerID(ctx, customerID)
	if err != nil {
		return "", fmt.Errorf("lookup account by stripe customer: %w", err)
	}
	if account == nil {
		return "", fmt.Errorf("no account for customer ID: %s", customerID)
	}
	return account.ID, nil
}

// HandleWebhook processes Stripe webhook events. Settlement is idempotent
// on the payment-intent id, so Stripe's at-least-once delivery grants
// credits exactly once.
func (s *BillingService) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read Stripe webhook payload")
		http.Error(w, "failed to read payload", http.StatusBadRequest)
		return
	}
	sig := r.Header.Get("Stripe-Signature")
	event, err := webhook.ConstructEvent(payload, sig, s.cfg.StripeWebhookSecret)
	if err != nil {
		s.logger.Error().Err(err).Msg("Signature verification failed for Stripe webhook")
		http.Error(w, "signature verification failed", http.StatusBadRequest)
		return
	}
	s.logger.Info().Str("event_type", string(event.Type)).Msg("Stripe webhook received")

	ctx := r.Context()
	switch event.Type {
	case "payment_intent.succeeded":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			s.logger.Error().Err(err).Msg("Invalid payment_intent data")
			http.Error(w, "invalid payment_intent data", http.StatusBadRequest)
			return
		}
		if err := s.settle(ctx, &pi); err != nil {
			s.logger.Error().Err(err).Str("payment_intent", pi.ID).Msg("Failed to settle payment")
			http.Error(w, "failed to settle payment", http.StatusInternalServerError)
			return
		}

	case "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			s.logger.Error().Err(err).Msg("Invalid payment_intent data")
			http.Error(w, "invalid payment_intent data", http.StatusBadRequest)
			return
		}
		s.logger.Warn().Str("payment_intent", pi.ID).Msg("Payment failed; no credits granted")

	default:
		s.logger.Debug().Str("event_type", string(event.Type)).Msg("Ignoring unhandled webhook event")
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"received": true})
}

func (s *BillingService) settle(ctx context.Context, pi *stripe.PaymentIntent) error {
	customerID := ""
	if pi.Customer != nil {
		customerID = pi.Customer.ID
	}
	userID, err := s.resolveUserID(ctx, pi.Metadata, customerID)
	if err != nil {
		return err
	}
	packID := pi.Metadata["pack_id"]
	pack, ok := creditPacks[packID]
	if !ok {
		return fmt.Errorf("payment intent %s references unknown pack %q", pi.ID, packID)
	}

	purchase := &model.CreditPurchase{
		UserID:                userID,
		PackID:                pack.ID,
		Credits:               pack.Credits,
		AmountCents:           pi.Amount,
		StripePaymentIntentID: pi.ID,
	}
	applied, err := s.purchases.Settle(ctx, purchase)
	if err != nil {
		return fmt.Errorf("settling purchase: %w", err)
	}
	if !applied {
		s.logger.Info().Str("payment_intent", pi.ID).Msg("Webhook replay: purchase already settled")
		return nil
	}
	s.logger.Info().Str("user_id", userID).Int("credits", pack.Credits).Msg("Credits purchased")

	if s.publisher != nil {
		e := pubsub.Event{
			Type:       "credits.purchased",
			UserID:     userID,
			Credits:    pack.Credits,
			OccurredAt: time.Now().UTC(),
		}
		if payload, err := e.Marshal(); err == nil {
			if _, err := s.publisher.Publish(ctx, s.cfg.PubSubEventsTopic, payload); err != nil {
				s.logger.Error().Err(err).Msg("Failed to publish purchase event")
			}
		}
	}

	s.sendReceipt(ctx, userID, pack)
	return nil
}

// sendReceipt emails a purchase receipt. Best effort: a mail failure never
// fails the settlement.
func (s *BillingService) sendReceipt(ctx context.Context, userID string, pack model.CreditPack) {
	if s.mail == nil {
		return
	}
	account, err := s.accounts.GetByID(ctx, userID)
	if err != nil || account == nil || account.Email == "" {
		s.logger.Warn().Str("user_id", userID).Msg("Skipping receipt email: no account email")
		return
	}
	body := fmt.Sprintf("<p>Thanks for your purchase! %d credits have been added to your account.</p>", pack.Credits)
	if err := s.mail.Send(ctx, mailer.Email{
		To:      account.Email,
		Subject: "Your credit purchase",
		HTML:    body,
	}); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to send receipt email")
	}
}
