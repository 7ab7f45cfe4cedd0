package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"propledger/internal/common"
	"propledger/internal/models"

	"github.com/redis/go-redis/v9"
)

// notificationFeedKey holds the recent-activity feed shown on the admin
// dashboard. Best-effort only; losing entries is acceptable.
const (
	notificationFeedKey = "propledger:notifications"
	notificationFeedMax = 500
)

// NotificationService dispatches buyer-facing notifications for offer and
// payment transitions. Every method is fire-and-forget: dispatch failures
// are logged and swallowed, they never fail the transition that triggered
// them.
type NotificationService interface {
	OfferApproved(offer *models.Offer)
	OfferRejected(offer *models.Offer, reason string)
	PaymentVerified(payment *models.Payment)
	PaymentRejected(payment *models.Payment, reason string)
	RecentActivity(ctx context.Context, limit int) ([]string, error)
}

type notificationService struct {
	redisClient *redis.Client
}

// NewNotificationService creates a new notification service
func NewNotificationService(redisAddr, redisPassword string, redisDB int) NotificationService {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})

	return &notificationService{redisClient: redisClient}
}

func (s *notificationService) OfferApproved(offer *models.Offer) {
	s.dispatch("offer_approved", offer.BuyerID.String(),
		fmt.Sprintf("Your offer %s has been approved", offer.Reference))
}

func (s *notificationService) OfferRejected(offer *models.Offer, reason string) {
	s.dispatch("offer_rejected", offer.BuyerID.String(),
		fmt.Sprintf("Your offer %s was rejected: %s", offer.Reference, reason))
}

func (s *notificationService) PaymentVerified(payment *models.Payment) {
	s.dispatch("payment_verified", payment.BuyerID.String(),
		fmt.Sprintf("Your payment %s of %.2f %s has been verified", common.SafeString(payment.PaymentReference), payment.Amount, payment.Currency))
}

func (s *notificationService) PaymentRejected(payment *models.Payment, reason string) {
	s.dispatch("payment_rejected", payment.BuyerID.String(),
		fmt.Sprintf("Your payment %s was rejected: %s", common.SafeString(payment.PaymentReference), reason))
}

// dispatch runs asynchronously. A failed send surfaces only in the log, as
// an ExternalServiceError, and the feed write is equally best-effort.
func (s *notificationService) dispatch(eventType, recipient, body string) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("Panic in notification dispatch: %v", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.sendEmail(ctx, recipient, eventType, body); err != nil {
			log.Printf("notification dropped: %v", &common.ExternalServiceError{Service: "email", Err: err})
			return
		}

		entry, err := json.Marshal(map[string]string{
			"type":      eventType,
			"recipient": recipient,
			"body":      body,
			"sent_at":   time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return
		}
		if err := s.redisClient.LPush(ctx, notificationFeedKey, entry).Err(); err != nil {
			log.Printf("notification feed write failed: %v", err)
			return
		}
		s.redisClient.LTrim(ctx, notificationFeedKey, 0, notificationFeedMax-1)
	}()
}

// sendEmail sends an email notification (placeholder implementation)
func (s *notificationService) sendEmail(ctx context.Context, recipient, subject, body string) error {
	// TODO: Integration with email service (SendGrid, SES, etc.)
	log.Printf("[EMAIL] To=%s, Subject=%s, Body=%s", recipient, subject, body)
	return nil
}

// RecentActivity returns the latest dispatched notifications for the admin
// dashboard feed.
func (s *notificationService) RecentActivity(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 || limit > notificationFeedMax {
		limit = 50
	}
	entries, err := s.redisClient.LRange(ctx, notificationFeedKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	return entries, nil
}
