package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/orbitacademy/subscription-service/internal/domain"
	"github.com/orbitacademy/subscription-service/internal/ports"
)

// Client talks to the payment provider's REST API for the two outbound calls
// this service makes: opening a hosted checkout and requesting a
// period-boundary cancel. Responses never mutate local subscription state.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	secretKey   string
	frontendURL string
}

type Config struct {
	HTTPClient  *http.Client
	BaseURL     string
	SecretKey   string
	FrontendURL string
}

func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.stripe.com"
	}
	return &Client{
		httpClient:  httpClient,
		baseURL:     baseURL,
		secretKey:   cfg.SecretKey,
		frontendURL: strings.TrimRight(cfg.FrontendURL, "/"),
	}
}

type checkoutSessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (c *Client) CreateCheckoutSession(ctx context.Context, email, plan, priceID string) (ports.CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "subscription")
	form.Set("customer_email", email)
	form.Set("payment_method_types[0]", "card")
	form.Set("line_items[0][price]", priceID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("metadata[plan]", plan)
	form.Set("success_url", c.frontendURL+"/store/success?email="+url.QueryEscape(email)+"&plan="+url.QueryEscape(plan))
	form.Set("cancel_url", c.frontendURL+"/store/cancel")

	var out checkoutSessionResponse
	if err := c.postForm(ctx, "/v1/checkout/sessions", form, &out); err != nil {
		return ports.CheckoutSession{}, err
	}
	if out.ID == "" || out.URL == "" {
		return ports.CheckoutSession{}, fmt.Errorf("%w: incomplete checkout session response", domain.ErrProviderUnavailable)
	}
	return ports.CheckoutSession{SessionID: out.ID, RedirectURL: out.URL}, nil
}

func (c *Client) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) error {
	form := url.Values{}
	form.Set("cancel_at_period_end", "true")
	return c.postForm(ctx, "/v1/subscriptions/"+url.PathEscape(subscriptionID), form, nil)
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", domain.ErrProviderUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: provider returned %d", domain.ErrProviderUnavailable, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrProviderUnavailable, err)
	}
	return nil
}
