package billing

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/launchkit/polarbridge/internal/auth"
	apperrors "github.com/launchkit/polarbridge/internal/errors"
	"github.com/launchkit/polarbridge/internal/models"
	"github.com/launchkit/polarbridge/internal/polar"
	"github.com/launchkit/polarbridge/internal/store"
)

type fakeProvider struct {
	products []polar.Product
	listErr  error

	checkout    *polar.Checkout
	checkoutErr error
	gotCheckout polar.CheckoutParams

	session    *polar.CustomerSession
	sessionErr error
	gotCustomer string
}

func (f *fakeProvider) ListProducts(ctx context.Context, organizationID string) ([]polar.Product, error) {
	return f.products, f.listErr
}

func (f *fakeProvider) CreateCheckout(ctx context.Context, params polar.CheckoutParams) (*polar.Checkout, error) {
	f.gotCheckout = params
	return f.checkout, f.checkoutErr
}

func (f *fakeProvider) CreateCustomerSession(ctx context.Context, customerID string) (*polar.CustomerSession, error) {
	f.gotCustomer = customerID
	return f.session, f.sessionErr
}

func catalog() []polar.Product {
	return []polar.Product{
		{
			ID:   "prod_basic",
			Name: "Basic",
			Prices: []polar.Price{
				{ID: "price_basic_month", PriceAmount: 900, RecurringInterval: "month"},
			},
		},
		{
			ID:   "prod_pro",
			Name: "Pro",
			Prices: []polar.Price{
				{ID: "price_pro_month", PriceAmount: 2900, RecurringInterval: "month"},
				{ID: "price_pro_year", PriceAmount: 29000, RecurringInterval: "year"},
			},
		},
	}
}

func identity() auth.Identity {
	return auth.Identity{Subject: "user_abc", Email: "dev@example.com", Name: "Dev"}
}

func TestCreateCheckoutSession_ReturnsURLAndUpsertsUser(t *testing.T) {
	st := store.NewInMemoryStore()
	provider := &fakeProvider{
		products: catalog(),
		checkout: &polar.Checkout{ID: "chk_1", URL: "https://polar.sh/checkout/chk_1"},
	}
	svc := NewService(st, provider, "org_1", "https://app.example.com")

	url, err := svc.CreateCheckoutSession(context.Background(), identity(), "price_pro_year")
	if err != nil {
		t.Fatalf("CreateCheckoutSession: %v", err)
	}
	if url != "https://polar.sh/checkout/chk_1" {
		t.Errorf("unexpected url %q", url)
	}

	if got := provider.gotCheckout; len(got.Products) != 1 || got.Products[0] != "prod_pro" {
		t.Errorf("expected product prod_pro, got %v", got.Products)
	}
	if provider.gotCheckout.SuccessURL != "https://app.example.com/success" {
		t.Errorf("unexpected success url %q", provider.gotCheckout.SuccessURL)
	}
	if provider.gotCheckout.Metadata["userId"] != "user_abc" || provider.gotCheckout.Metadata["priceId"] != "price_pro_year" {
		t.Errorf("unexpected metadata %v", provider.gotCheckout.Metadata)
	}

	user, err := st.GetUserByToken(context.Background(), "user_abc")
	if err != nil {
		t.Fatalf("GetUserByToken: %v", err)
	}
	if user == nil || user.Email != "dev@example.com" {
		t.Errorf("expected user upserted before checkout, got %+v", user)
	}
}

func TestCreateCheckoutSession_Validation(t *testing.T) {
	svc := NewService(store.NewInMemoryStore(), &fakeProvider{products: catalog()}, "org_1", "https://app.example.com")

	if _, err := svc.CreateCheckoutSession(context.Background(), identity(), ""); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty priceId, got %v", err)
	}

	noEmail := auth.Identity{Subject: "user_abc"}
	if _, err := svc.CreateCheckoutSession(context.Background(), noEmail, "price_basic_month"); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for missing email, got %v", err)
	}
}

func TestCreateCheckoutSession_UnknownPrice(t *testing.T) {
	svc := NewService(store.NewInMemoryStore(), &fakeProvider{products: catalog()}, "org_1", "https://app.example.com")

	_, err := svc.CreateCheckoutSession(context.Background(), identity(), "price_nope")
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err != nil && !strings.Contains(err.Error(), "price_nope") {
		t.Errorf("expected price id in error, got %v", err)
	}
}

func TestGetAvailablePlans(t *testing.T) {
	svc := NewService(store.NewInMemoryStore(), &fakeProvider{products: catalog()}, "org_1", "https://app.example.com")

	plans, err := svc.GetAvailablePlans(context.Background())
	if err != nil {
		t.Fatalf("GetAvailablePlans: %v", err)
	}
	if len(plans.Items) != 2 {
		t.Fatalf("expected 2 plans, got %d", len(plans.Items))
	}
	basic := plans.Items[0]
	if basic.ID != "prod_basic" || basic.Name != "Basic" {
		t.Errorf("unexpected first plan %+v", basic)
	}
	if len(basic.Prices) != 1 {
		t.Fatalf("expected 1 price, got %d", len(basic.Prices))
	}
	if p := basic.Prices[0]; p.ID != "price_basic_month" || p.Amount != 900 || p.Interval != "month" {
		t.Errorf("unexpected price %+v", p)
	}
	if pg := plans.Pagination; pg.TotalItems != 2 || pg.Page != 1 || pg.PageSize != 2 {
		t.Errorf("unexpected pagination %+v", pg)
	}
}

func TestGetAvailablePlans_OneTimePriceInterval(t *testing.T) {
	provider := &fakeProvider{products: []polar.Product{
		{
			ID:   "prod_lifetime",
			Name: "Lifetime",
			Prices: []polar.Price{
				{ID: "price_lifetime", PriceAmount: 19900, PriceCurrency: "usd"},
			},
		},
	}}
	svc := NewService(store.NewInMemoryStore(), provider, "org_1", "https://app.example.com")

	plans, err := svc.GetAvailablePlans(context.Background())
	if err != nil {
		t.Fatalf("GetAvailablePlans: %v", err)
	}
	if len(plans.Items) != 1 || len(plans.Items[0].Prices) != 1 {
		t.Fatalf("unexpected plans %+v", plans.Items)
	}
	if got := plans.Items[0].Prices[0].Interval; got != "one_time" {
		t.Errorf("expected one_time interval, got %q", got)
	}
}

func TestGetAvailablePlans_EmptyCatalogIsNotNil(t *testing.T) {
	svc := NewService(store.NewInMemoryStore(), &fakeProvider{}, "org_1", "https://app.example.com")

	plans, err := svc.GetAvailablePlans(context.Background())
	if err != nil {
		t.Fatalf("GetAvailablePlans: %v", err)
	}
	if plans.Items == nil {
		t.Errorf("expected empty slice, got nil")
	}
}

func TestCheckSubscriptionStatus(t *testing.T) {
	st := store.NewInMemoryStore()
	svc := NewService(st, &fakeProvider{}, "org_1", "https://app.example.com")
	ctx := context.Background()

	if err := st.UpsertUser(ctx, models.User{TokenIdentifier: "user_abc", Email: "dev@example.com"}); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}

	if got := svc.CheckSubscriptionStatus(ctx, "user_abc"); got.HasActiveSubscription {
		t.Errorf("expected false for user without subscription")
	}

	if err := st.UpsertSubscription(ctx, models.Subscription{PolarID: "sub_1", UserID: "user_abc", Status: "active"}); err != nil {
		t.Fatalf("UpsertSubscription: %v", err)
	}
	if got := svc.CheckSubscriptionStatus(ctx, "user_abc"); !got.HasActiveSubscription {
		t.Errorf("expected true for active subscription")
	}

	if err := st.UpdateSubscription(ctx, "sub_1", models.SubscriptionPatch{Status: strPtr("canceled")}); err != nil {
		t.Fatalf("UpdateSubscription: %v", err)
	}
	if got := svc.CheckSubscriptionStatus(ctx, "user_abc"); got.HasActiveSubscription {
		t.Errorf("expected false after cancellation")
	}
}

func TestCheckSubscriptionStatus_NoUserRecord(t *testing.T) {
	st := store.NewInMemoryStore()
	svc := NewService(st, &fakeProvider{}, "org_1", "https://app.example.com")
	ctx := context.Background()

	// A webhook can land before the user ever signs in, leaving a
	// subscription row with no matching user record.
	applier := NewApplier(st)
	if err := applier.Apply(ctx, envelope(t, "subscription.created", createdData(map[string]any{
		"status":   "active",
		"metadata": map[string]any{"userId": "user_ghost"},
	}))); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if got := svc.CheckSubscriptionStatus(ctx, "user_ghost"); got.HasActiveSubscription {
		t.Errorf("expected false for identity without a user record")
	}

	sub, err := svc.FetchUserSubscription(ctx, "user_ghost")
	if err != nil {
		t.Fatalf("FetchUserSubscription: %v", err)
	}
	if sub != nil {
		t.Errorf("expected nil subscription for identity without a user record")
	}
}

func TestFetchUserSubscription_NilWhenAbsent(t *testing.T) {
	svc := NewService(store.NewInMemoryStore(), &fakeProvider{}, "org_1", "https://app.example.com")

	sub, err := svc.FetchUserSubscription(context.Background(), "user_abc")
	if err != nil {
		t.Fatalf("FetchUserSubscription: %v", err)
	}
	if sub != nil {
		t.Errorf("expected nil subscription, got %+v", sub)
	}
}

func TestCreateCustomerPortal(t *testing.T) {
	st := store.NewInMemoryStore()
	provider := &fakeProvider{
		session: &polar.CustomerSession{ID: "cses_1", CustomerPortalURL: "https://polar.sh/portal/cses_1"},
	}
	svc := NewService(st, provider, "org_1", "https://app.example.com")
	ctx := context.Background()

	if _, err := svc.CreateCustomerPortal(ctx, identity()); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound without subscription, got %v", err)
	}

	if err := st.UpsertSubscription(ctx, models.Subscription{PolarID: "sub_1", UserID: "user_abc", Status: "active", CustomerID: "cus_1"}); err != nil {
		t.Fatalf("UpsertSubscription: %v", err)
	}

	url, err := svc.CreateCustomerPortal(ctx, identity())
	if err != nil {
		t.Fatalf("CreateCustomerPortal: %v", err)
	}
	if url != "https://polar.sh/portal/cses_1" {
		t.Errorf("unexpected portal url %q", url)
	}
	if provider.gotCustomer != "cus_1" {
		t.Errorf("expected session for cus_1, got %q", provider.gotCustomer)
	}
}

func strPtr(s string) *string { return &s }
