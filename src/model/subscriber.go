package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Subscriber is a user's plan state.
type Subscriber struct {
	UserID           string     `json:"user_id"`
	Email            string     `json:"email"`
	Subscribed       bool       `json:"subscribed"`
	Tier             string     `json:"subscription_tier,omitempty"`
	SubscriptionEnd  *time.Time `json:"subscription_end,omitempty"`
	StripeCustomerID string     `json:"stripe_customer_id,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Active reports whether the subscription is paid up at now.
func (s *Subscriber) Active(now time.Time) bool {
	return s.Subscribed && s.SubscriptionEnd != nil && s.SubscriptionEnd.After(now)
}

func UpsertSubscriber(ctx context.Context, db *sql.DB, s *Subscriber) error {
	s.UpdatedAt = time.Now().UTC()
	var end sql.NullTime
	if s.SubscriptionEnd != nil {
		end = sql.NullTime{Time: s.SubscriptionEnd.UTC(), Valid: true}
	}
	_, err := db.ExecContext(ctx, `
	INSERT INTO subscribers (user_id, email, subscribed, subscription_tier, subscription_end, stripe_customer_id, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (user_id) DO UPDATE SET
		email = excluded.email,
		subscribed = excluded.subscribed,
		subscription_tier = excluded.subscription_tier,
		subscription_end = excluded.subscription_end,
		stripe_customer_id = excluded.stripe_customer_id,
		updated_at = excluded.updated_at`,
		s.UserID, s.Email, s.Subscribed, nullString(s.Tier), end, nullString(s.StripeCustomerID), s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert subscriber %s: %w", s.UserID, err)
	}
	return nil
}

// GetSubscriber returns ErrNotFound for users that never subscribed.
func GetSubscriber(ctx context.Context, db *sql.DB, userID string) (*Subscriber, error) {
	var s Subscriber
	var tier, customer sql.NullString
	var end sql.NullTime
	err := db.QueryRowContext(ctx, `
	SELECT user_id, email, subscribed, subscription_tier, subscription_end, stripe_customer_id, updated_at
	FROM subscribers WHERE user_id = ?`, userID).
		Scan(&s.UserID, &s.Email, &s.Subscribed, &tier, &end, &customer, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get subscriber %s: %w", userID, err)
	}
	s.Tier = tier.String
	s.StripeCustomerID = customer.String
	if end.Valid {
		t := end.Time
		s.SubscriptionEnd = &t
	}
	return &s, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
