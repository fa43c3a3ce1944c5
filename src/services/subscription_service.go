package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/finwatch/src/ledger"
	"github.com/username/finwatch/src/logger"
	"github.com/username/finwatch/src/model"
)

const SubscriptionPeriod = 30 * 24 * time.Hour

type Plan struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Display  string          `json:"price_display"`
	Interval string          `json:"interval"`
	Popular  bool            `json:"popular,omitempty"`
	Features []string        `json:"features"`
}

func newPlan(id, name, price string, popular bool, features ...string) Plan {
	p := decimal.RequireFromString(price)
	return Plan{
		ID:       id,
		Name:     name,
		Price:    p,
		Display:  ledger.Format(p, "USD"),
		Interval: "month",
		Popular:  popular,
		Features: features,
	}
}

// Plans lists the premium tiers in display order.
func Plans() []Plan {
	return []Plan{
		newPlan("basic", "Basic", "9.99", false,
			"Real-time stock alerts via email",
			"Basic portfolio analytics",
			"Expense categorization",
			"Monthly financial reports",
			"Email support",
		),
		newPlan("pro", "Pro", "19.99", true,
			"All Basic features",
			"AI-powered expense insights",
			"Trending stocks suggestions",
			"Advanced portfolio optimization",
			"Real-time market notifications",
			"Custom alerts & reminders",
			"Export to Excel/PDF",
			"Priority support",
		),
		newPlan("enterprise", "Enterprise", "49.99", false,
			"All Pro features",
			"Personal AI financial advisor",
			"Advanced market analysis",
			"Custom investment strategies",
			"White-label reports",
			"API access for developers",
			"Dedicated account manager",
			"24/7 phone support",
		),
	}
}

func PlanByID(id string) (Plan, error) {
	for _, p := range Plans() {
		if p.ID == id {
			return p, nil
		}
	}
	return Plan{}, fmt.Errorf("%w: %q", ErrUnknownPlan, id)
}

// MockPaymentProvider accepts every charge.
type MockPaymentProvider struct {
	now func() time.Time
}

func NewMockPaymentProvider() *MockPaymentProvider {
	return &MockPaymentProvider{now: time.Now}
}

func (p *MockPaymentProvider) Charge(ctx context.Context, email string, plan Plan) (string, error) {
	logger.FromContext(ctx).Info("Mock payment accepted", "plan", plan.ID, "amount", plan.Display)
	return fmt.Sprintf("mock_%d", p.now().UnixNano()), nil
}

type SubscriptionService struct {
	db       *sql.DB
	payments PaymentProvider
	now      func() time.Time
}

func NewSubscriptionService(db *sql.DB, payments PaymentProvider) *SubscriptionService {
	return &SubscriptionService{db: db, payments: payments, now: time.Now}
}

// Subscribe charges the user for planID and records a subscription that
// ends one period from now.
func (s *SubscriptionService) Subscribe(ctx context.Context, userID, email, planID string) (*model.Subscriber, error) {
	plan, err := PlanByID(planID)
	if err != nil {
		return nil, err
	}
	customerID, err := s.payments.Charge(ctx, email, plan)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPaymentFailed, err)
	}
	end := s.now().UTC().Add(SubscriptionPeriod)
	sub := &model.Subscriber{
		UserID:           userID,
		Email:            email,
		Subscribed:       true,
		Tier:             plan.ID,
		SubscriptionEnd:  &end,
		StripeCustomerID: customerID,
	}
	if err := model.UpsertSubscriber(ctx, s.db, sub); err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("Subscription activated", "userID", userID, "plan", plan.ID, "until", end)
	return sub, nil
}

// Status returns the user's subscription, or an unsubscribed record.
func (s *SubscriptionService) Status(ctx context.Context, userID, email string) (*model.Subscriber, error) {
	sub, err := model.GetSubscriber(ctx, s.db, userID)
	if errors.Is(err, model.ErrNotFound) {
		return &model.Subscriber{UserID: userID, Email: email}, nil
	}
	if err != nil {
		return nil, err
	}
	if !sub.Active(s.now()) {
		sub.Subscribed = false
	}
	return sub, nil
}
