package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Stripe intent statuses this flow reacts to.
const (
	IntentStatusSucceeded      = "succeeded"
	IntentStatusRequiresAction = "requires_action"
)

// StripeClient talks to the Stripe payment-intents API. Intents are
// created with manual confirmation and confirmed in the same call, so a
// single request either settles the charge or hands back a redirect for
// 3-D Secure.
type StripeClient struct {
	secretKey string
	baseURL   string
	hc        *http.Client
}

func NewStripeClient(secretKey, baseURL string) *StripeClient {
	return &StripeClient{
		secretKey: secretKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
		hc:        &http.Client{Timeout: 15 * time.Second},
	}
}

type stripeIntent struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	NextAction *struct {
		RedirectToURL struct {
			URL string `json:"url"`
		} `json:"redirect_to_url"`
	} `json:"next_action"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *StripeClient) CreateAndConfirmIntent(ctx context.Context, amountMinor int64, currency, paymentMethod, returnURL string) (Intent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amountMinor, 10))
	form.Set("currency", currency)
	form.Set("payment_method", paymentMethod)
	form.Set("confirmation_method", "manual")
	form.Set("confirm", "true")
	form.Set("return_url", returnURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/payment_intents", strings.NewReader(form.Encode()))
	if err != nil {
		return Intent{}, NewError(ReasonProviderRejected, "could not build intent request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *StripeClient) RetrieveIntent(ctx context.Context, id string) (Intent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/payment_intents/"+url.PathEscape(id), nil)
	if err != nil {
		return Intent{}, NewError(ReasonProviderRejected, "could not build retrieve request", err)
	}
	return c.do(req)
}

func (c *StripeClient) do(req *http.Request) (Intent, error) {
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	res, err := c.hc.Do(req)
	if err != nil {
		return Intent{}, NewError(ReasonProviderRejected, "card provider unreachable", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return Intent{}, NewError(ReasonProviderRejected, "could not read provider response", err)
	}

	var si stripeIntent
	if err := json.Unmarshal(body, &si); err != nil {
		return Intent{}, NewError(ReasonProviderRejected, "malformed provider response", err)
	}
	if res.StatusCode >= 400 {
		msg := fmt.Sprintf("card provider returned %d", res.StatusCode)
		if si.Error != nil && si.Error.Message != "" {
			msg = si.Error.Message
		}
		return Intent{}, NewError(ReasonProviderRejected, msg, nil)
	}

	out := Intent{ID: si.ID, Status: si.Status}
	if si.NextAction != nil {
		out.NextActionURL = si.NextAction.RedirectToURL.URL
	}
	return out, nil
}
