package billing

import (
	"context"
	"fmt"

	"github.com/launchkit/polarbridge/internal/auth"
	apperrors "github.com/launchkit/polarbridge/internal/errors"
	"github.com/launchkit/polarbridge/internal/logger"
	"github.com/launchkit/polarbridge/internal/models"
	"github.com/launchkit/polarbridge/internal/polar"
	"github.com/launchkit/polarbridge/internal/store"
)

// Provider is the slice of the Polar API the billing service needs.
// The concrete client lives in internal/polar; tests substitute a fake.
type Provider interface {
	ListProducts(ctx context.Context, organizationID string) ([]polar.Product, error)
	CreateCheckout(ctx context.Context, params polar.CheckoutParams) (*polar.Checkout, error)
	CreateCustomerSession(ctx context.Context, customerID string) (*polar.CustomerSession, error)
}

// Service implements the billing operations the API exposes: checkout
// creation, plan listing, status queries and portal session minting.
type Service struct {
	store          store.Store
	provider       Provider
	organizationID string
	frontendURL    string
}

func NewService(st store.Store, provider Provider, organizationID, frontendURL string) *Service {
	return &Service{
		store:          st,
		provider:       provider,
		organizationID: organizationID,
		frontendURL:    frontendURL,
	}
}

// Plan is the catalog entry shape returned to the frontend: the
// provider's product flattened to what a pricing page needs. Provider
// wire names stay inside internal/polar.
type Plan struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	IsRecurring bool        `json:"isRecurring"`
	Prices      []PlanPrice `json:"prices"`
}

// PlanPrice is one price of a plan. Interval is the recurring interval,
// or "one_time" when the price does not recur.
type PlanPrice struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Interval string `json:"interval"`
}

type PlanList struct {
	Items      []Plan     `json:"items"`
	Pagination Pagination `json:"pagination"`
}

type Pagination struct {
	TotalItems int `json:"totalItems"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
}

// SubscriptionStatus is the boolean gate the frontend uses to unlock
// paid features.
type SubscriptionStatus struct {
	HasActiveSubscription bool `json:"hasActiveSubscription"`
}

// CreateCheckoutSession provisions a hosted checkout for the identity's
// chosen price and returns the redirect URL. The caller's user record is
// upserted first so a webhook arriving seconds later finds it.
func (s *Service) CreateCheckoutSession(ctx context.Context, identity auth.Identity, priceID string) (string, error) {
	if priceID == "" {
		return "", fmt.Errorf("%w: priceId is required", apperrors.ErrInvalidInput)
	}
	if identity.Email == "" {
		return "", fmt.Errorf("%w: identity has no email", apperrors.ErrInvalidInput)
	}

	err := s.store.UpsertUser(ctx, models.User{
		TokenIdentifier: identity.Subject,
		Email:           identity.Email,
		Name:            identity.Name,
	})
	if err != nil {
		return "", fmt.Errorf("upsert user: %w", err)
	}

	product, err := s.findProductForPrice(ctx, priceID)
	if err != nil {
		return "", err
	}

	checkout, err := s.provider.CreateCheckout(ctx, polar.CheckoutParams{
		Products:      []string{product.ID},
		SuccessURL:    s.frontendURL + "/success",
		CustomerEmail: identity.Email,
		Metadata: map[string]string{
			"userId":  identity.Subject,
			"priceId": priceID,
		},
	})
	if err != nil {
		return "", err
	}
	if checkout.URL == "" {
		return "", fmt.Errorf("checkout %s has no url", checkout.ID)
	}
	return checkout.URL, nil
}

func (s *Service) findProductForPrice(ctx context.Context, priceID string) (*polar.Product, error) {
	products, err := s.provider.ListProducts(ctx, s.organizationID)
	if err != nil {
		return nil, err
	}
	for i := range products {
		for _, price := range products[i].Prices {
			if price.ID == priceID {
				return &products[i], nil
			}
		}
	}
	return nil, fmt.Errorf("%w: no product carries price %s", apperrors.ErrNotFound, priceID)
}

// GetAvailablePlans returns the billable catalog.
func (s *Service) GetAvailablePlans(ctx context.Context) (*PlanList, error) {
	products, err := s.provider.ListProducts(ctx, s.organizationID)
	if err != nil {
		return nil, err
	}
	plans := make([]Plan, 0, len(products))
	for _, product := range products {
		prices := make([]PlanPrice, 0, len(product.Prices))
		for _, price := range product.Prices {
			interval := price.RecurringInterval
			if interval == "" {
				interval = "one_time"
			}
			prices = append(prices, PlanPrice{
				ID:       price.ID,
				Amount:   price.PriceAmount,
				Currency: price.PriceCurrency,
				Interval: interval,
			})
		}
		plans = append(plans, Plan{
			ID:          product.ID,
			Name:        product.Name,
			Description: product.Description,
			IsRecurring: product.IsRecurring,
			Prices:      prices,
		})
	}
	return &PlanList{
		Items:      plans,
		Pagination: Pagination{TotalItems: len(plans), Page: 1, PageSize: len(plans)},
	}, nil
}

// CheckSubscriptionStatus reports whether userID holds an active
// subscription. An identity with no user record reads false even when a
// stray subscription row names it, and lookup failures degrade to false
// rather than erroring: the gate fails closed.
func (s *Service) CheckSubscriptionStatus(ctx context.Context, userID string) SubscriptionStatus {
	user, err := s.store.GetUserByToken(ctx, userID)
	if err != nil {
		logger.WithContext(ctx).Error("User lookup failed", "user_id", userID, "error", err)
		return SubscriptionStatus{HasActiveSubscription: false}
	}
	if user == nil {
		return SubscriptionStatus{HasActiveSubscription: false}
	}
	sub, err := s.store.GetSubscriptionByUserID(ctx, userID)
	if err != nil {
		logger.WithContext(ctx).Error("Subscription status lookup failed", "user_id", userID, "error", err)
		return SubscriptionStatus{HasActiveSubscription: false}
	}
	return SubscriptionStatus{
		HasActiveSubscription: sub != nil && sub.Status == "active",
	}
}

// FetchUserSubscription returns the caller's subscription record, or
// nil when the user or the subscription does not exist.
func (s *Service) FetchUserSubscription(ctx context.Context, userID string) (*models.Subscription, error) {
	user, err := s.store.GetUserByToken(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return nil, nil
	}
	return s.store.GetSubscriptionByUserID(ctx, userID)
}

// CreateCustomerPortal mints a provider-hosted portal URL for the
// identity's billing customer.
func (s *Service) CreateCustomerPortal(ctx context.Context, identity auth.Identity) (string, error) {
	sub, err := s.store.GetSubscriptionByUserID(ctx, identity.Subject)
	if err != nil {
		return "", fmt.Errorf("lookup subscription: %w", err)
	}
	if sub == nil || sub.CustomerID == "" {
		return "", fmt.Errorf("%w: no billing customer for user", apperrors.ErrNotFound)
	}

	session, err := s.provider.CreateCustomerSession(ctx, sub.CustomerID)
	if err != nil {
		return "", err
	}
	if session.CustomerPortalURL == "" {
		return "", fmt.Errorf("customer session has no portal url")
	}
	return session.CustomerPortalURL, nil
}
