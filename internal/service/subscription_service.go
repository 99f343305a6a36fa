package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"plantspack/internal/cache"
	"plantspack/internal/models"
	"plantspack/internal/notifications"
	"plantspack/internal/repository"
)

// SignatureTolerance is how far a webhook timestamp may drift from now.
const SignatureTolerance = 5 * time.Minute

// Billing event types that change a subscription.
const (
	BillingSubscriptionUpdated  = "subscription.updated"
	BillingSubscriptionCanceled = "subscription.canceled"
)

// BillingEvent is the webhook envelope sent by the billing provider.
type BillingEvent struct {
	ID   string           `json:"id"`
	Type string           `json:"type"`
	Data BillingEventData `json:"data"`
}

type BillingEventData struct {
	UserID           uint   `json:"user_id"`
	ExternalID       string `json:"subscription_id"`
	Tier             string `json:"tier"`
	Status           string `json:"status"`
	CurrentPeriodEnd int64  `json:"current_period_end"`
}

// WebhookResult tells the caller what the webhook did.
type WebhookResult struct {
	EventID   string `json:"event_id"`
	Handled   bool   `json:"handled"`
	Duplicate bool   `json:"duplicate"`
}

type SubscriptionService struct {
	subscriptions repository.SubscriptionRepository
	users         repository.UserRepository
	secret        []byte
	publisher     EventPublisher
	now           func() time.Time
}

func NewSubscriptionService(
	subscriptions repository.SubscriptionRepository,
	users repository.UserRepository,
	secret string,
	publisher EventPublisher,
) *SubscriptionService {
	return &SubscriptionService{
		subscriptions: subscriptions,
		users:         users,
		secret:        []byte(secret),
		publisher:     publisherOrNoop(publisher),
		now:           time.Now,
	}
}

func (s *SubscriptionService) Get(ctx context.Context, userID uint) (*models.Subscription, error) {
	return s.subscriptions.GetByUserID(ctx, userID)
}

// SignPayload produces a signature header value for body at t.
func SignPayload(secret []byte, t time.Time, body []byte) string {
	ts := strconv.FormatInt(t.Unix(), 10)
	return "t=" + ts + ",v1=" + computeSignature(secret, ts, body)
}

func computeSignature(secret []byte, ts string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a "t=<unix>,v1=<hex>" header against body.
func (s *SubscriptionService) VerifySignature(header string, body []byte) error {
	if len(s.secret) == 0 {
		return models.NewUnavailableError("Billing webhooks are not configured", nil)
	}
	var ts string
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			sigs = append(sigs, v)
		}
	}
	if ts == "" || len(sigs) == 0 {
		return models.NewUnauthorizedError("Malformed billing signature")
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return models.NewUnauthorizedError("Malformed billing signature")
	}
	drift := s.now().Sub(time.Unix(unix, 0))
	if drift < -SignatureTolerance || drift > SignatureTolerance {
		return models.NewUnauthorizedError("Billing signature timestamp outside tolerance")
	}
	expected := computeSignature(s.secret, ts, body)
	for _, sig := range sigs {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return models.NewUnauthorizedError("Invalid billing signature")
}

// HandleWebhook verifies and applies a billing event. Redelivered events
// are acknowledged without being applied twice.
func (s *SubscriptionService) HandleWebhook(ctx context.Context, signature string, body []byte) (*WebhookResult, error) {
	if err := s.VerifySignature(signature, body); err != nil {
		return nil, err
	}
	var evt BillingEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, models.NewValidationError("Invalid webhook payload")
	}
	if evt.ID == "" {
		return nil, models.NewValidationError("Webhook event id is required")
	}
	res := &WebhookResult{EventID: evt.ID}
	if evt.Type != BillingSubscriptionUpdated && evt.Type != BillingSubscriptionCanceled {
		return res, nil
	}

	if client := cache.GetClient(); client != nil {
		fresh, err := client.SetNX(ctx, cache.BillingEventKey(evt.ID), "1", cache.BillingEventTTL).Result()
		if err == nil && !fresh {
			res.Duplicate = true
			return res, nil
		}
	}

	sub, err := s.applyEvent(ctx, evt)
	if err != nil {
		if client := cache.GetClient(); client != nil {
			client.Del(ctx, cache.BillingEventKey(evt.ID))
		}
		return nil, err
	}
	res.Handled = true
	s.publisher.PublishUser(ctx, sub.UserID, notifications.EventSubscriptionChanged, sub)
	return res, nil
}

func (s *SubscriptionService) applyEvent(ctx context.Context, evt BillingEvent) (*models.Subscription, error) {
	if evt.Data.UserID == 0 {
		return nil, models.NewValidationError("Webhook is missing user_id")
	}
	if _, err := s.users.GetByID(ctx, evt.Data.UserID); err != nil {
		return nil, err
	}

	sub := &models.Subscription{
		UserID:     evt.Data.UserID,
		ExternalID: evt.Data.ExternalID,
	}
	if evt.Data.CurrentPeriodEnd > 0 {
		end := time.Unix(evt.Data.CurrentPeriodEnd, 0).UTC()
		sub.CurrentPeriodEnd = &end
	}

	if evt.Type == BillingSubscriptionCanceled {
		sub.Tier = models.TierFree
		sub.Status = models.SubscriptionCanceled
	} else {
		tier, ok := models.ParseTier(evt.Data.Tier)
		if !ok {
			return nil, models.NewValidationError("Unknown tier " + evt.Data.Tier)
		}
		status := models.SubscriptionStatus(strings.ToLower(evt.Data.Status))
		switch status {
		case "":
			status = models.SubscriptionActive
		case models.SubscriptionActive, models.SubscriptionPastDue:
		case models.SubscriptionCanceled:
			tier = models.TierFree
		default:
			return nil, models.NewValidationError("Unknown status " + evt.Data.Status)
		}
		sub.Tier = tier
		sub.Status = status
	}

	if err := s.subscriptions.Upsert(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// SetTier is the admin override. It keeps the subscription active.
func (s *SubscriptionService) SetTier(ctx context.Context, userID uint, rawTier string) (*models.Subscription, error) {
	tier, ok := models.ParseTier(rawTier)
	if !ok {
		return nil, models.NewValidationError("tier must be free, medium or premium")
	}
	current, err := s.subscriptions.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	sub := &models.Subscription{
		UserID:           userID,
		Tier:             tier,
		Status:           models.SubscriptionActive,
		ExternalID:       current.ExternalID,
		CurrentPeriodEnd: current.CurrentPeriodEnd,
	}
	if err := s.subscriptions.Upsert(ctx, sub); err != nil {
		return nil, err
	}
	s.publisher.PublishUser(ctx, userID, notifications.EventSubscriptionChanged, sub)
	return sub, nil
}
