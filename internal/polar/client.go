package polar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/launchkit/polarbridge/config"
	apperrors "github.com/launchkit/polarbridge/internal/errors"
	"github.com/launchkit/polarbridge/internal/metrics"
	"github.com/launchkit/polarbridge/pkg/utils"
)

const (
	productionBaseURL = "https://api.polar.sh"
	sandboxBaseURL    = "https://sandbox-api.polar.sh"

	// listPageSize is the provider's page size for product listings
	listPageSize = 100
)

// Client is a thin typed client for the Polar REST API, covering the
// three operations this service consumes: product listing, checkout
// creation, and customer-session creation.
type Client struct {
	baseURL     string
	accessToken string
	client      *http.Client
}

// NewClient creates a Polar API client for the configured server
func NewClient(cfg config.PolarConfig) *Client {
	base := sandboxBaseURL
	if cfg.Server == "production" {
		base = productionBaseURL
	}
	return &Client{
		baseURL:     base,
		accessToken: cfg.AccessToken,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Product is one catalog entry with its prices
type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	IsRecurring bool    `json:"is_recurring"`
	IsArchived  bool    `json:"is_archived"`
	Prices      []Price `json:"prices"`
}

// Price is one price attached to a product
type Price struct {
	ID                string `json:"id"`
	PriceAmount       int64  `json:"price_amount"`
	PriceCurrency     string `json:"price_currency"`
	RecurringInterval string `json:"recurring_interval"`
}

type productListResponse struct {
	Items      []Product `json:"items"`
	Pagination struct {
		TotalCount int `json:"total_count"`
		MaxPage    int `json:"max_page"`
	} `json:"pagination"`
}

// Checkout is a provider-hosted payment flow instance
type Checkout struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CheckoutParams describes a checkout session to create
type CheckoutParams struct {
	Products      []string          `json:"products"`
	SuccessURL    string            `json:"success_url"`
	CustomerEmail string            `json:"customer_email"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// CustomerSession grants temporary access to the customer portal
type CustomerSession struct {
	ID                string `json:"id"`
	CustomerPortalURL string `json:"customer_portal_url"`
}

// ListProducts returns all non-archived products for the organization,
// walking every page of the listing.
func (c *Client) ListProducts(ctx context.Context, organizationID string) ([]Product, error) {
	var all []Product

	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("organization_id", organizationID)
		q.Set("is_archived", "false")
		q.Set("page", strconv.Itoa(page))
		q.Set("limit", strconv.Itoa(listPageSize))

		var resp productListResponse
		if err := c.do(ctx, http.MethodGet, "/v1/products?"+q.Encode(), nil, &resp); err != nil {
			return nil, apperrors.ProviderError{Operation: "products.list", Err: err}
		}

		all = append(all, resp.Items...)
		if page >= resp.Pagination.MaxPage || len(resp.Items) == 0 {
			break
		}
	}

	return all, nil
}

// CreateCheckout creates a hosted checkout session
func (c *Client) CreateCheckout(ctx context.Context, params CheckoutParams) (*Checkout, error) {
	var checkout Checkout
	if err := c.do(ctx, http.MethodPost, "/v1/checkouts", params, &checkout); err != nil {
		return nil, apperrors.ProviderError{Operation: "checkouts.create", Err: err}
	}
	return &checkout, nil
}

// CreateCustomerSession mints a customer portal session for customerID
func (c *Client) CreateCustomerSession(ctx context.Context, customerID string) (*CustomerSession, error) {
	body := map[string]string{"customer_id": customerID}
	var session CustomerSession
	if err := c.do(ctx, http.MethodPost, "/v1/customer-sessions", body, &session); err != nil {
		return nil, apperrors.ProviderError{Operation: "customer_sessions.create", Err: err}
	}
	return &session, nil
}

// do performs one authenticated API call. Failures propagate to the
// caller unchanged; there is no retry on this side.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	start := time.Now()
	operation := method + " " + path

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.RecordProviderCall(operation, "error", time.Since(start))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.RecordProviderCall(operation, "error", time.Since(start))
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, utils.Truncate(string(payload), 512))
	}

	metrics.RecordProviderCall(operation, "success", time.Since(start))
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
