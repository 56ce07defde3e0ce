package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// CaptureStatusCompleted is the only capture status treated as payment
// success.
const CaptureStatusCompleted = "COMPLETED"

// PayPalClient talks to the PayPal checkout-orders API. Access tokens come
// from the client-credentials grant and are cached until shortly before
// expiry.
type PayPalClient struct {
	clientID string
	secret   string
	baseURL  string
	hc       *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewPayPalClient(clientID, secret, baseURL string) *PayPalClient {
	return &PayPalClient{
		clientID: clientID,
		secret:   secret,
		baseURL:  strings.TrimRight(baseURL, "/"),
		hc:       &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *PayPalClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.clientID, c.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := c.hc.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return "", fmt.Errorf("wallet provider auth returned %d", res.StatusCode)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(res.Body).Decode(&tok); err != nil {
		return "", err
	}
	c.accessToken = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn-60) * time.Second)
	return c.accessToken, nil
}

type paypalAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalPurchaseUnit struct {
	ReferenceID string       `json:"reference_id"`
	Amount      paypalAmount `json:"amount"`
}

type paypalAppContext struct {
	CancelURL string `json:"cancel_url"`
	ReturnURL string `json:"return_url"`
}

type paypalCreateOrder struct {
	Intent             string               `json:"intent"`
	PurchaseUnits      []paypalPurchaseUnit `json:"purchase_units"`
	ApplicationContext paypalAppContext     `json:"application_context"`
}

func (c *PayPalClient) CreateOrder(ctx context.Context, r CreateWalletOrderRequest) (WalletOrder, error) {
	body := paypalCreateOrder{
		Intent: "CAPTURE",
		PurchaseUnits: []paypalPurchaseUnit{{
			ReferenceID: r.ReferenceID,
			Amount:      paypalAmount{CurrencyCode: r.Currency, Value: r.Value},
		}},
		ApplicationContext: paypalAppContext{CancelURL: r.CancelURL, ReturnURL: r.ReturnURL},
	}

	var out WalletOrder
	if err := c.post(ctx, "/v2/checkout/orders", body, &out); err != nil {
		return WalletOrder{}, err
	}
	return out, nil
}

func (c *PayPalClient) CaptureOrder(ctx context.Context, token string) (Capture, error) {
	var out Capture
	if err := c.post(ctx, "/v2/checkout/orders/"+url.PathEscape(token)+"/capture", nil, &out); err != nil {
		return Capture{}, err
	}
	return out, nil
}

func (c *PayPalClient) post(ctx context.Context, path string, in, out any) error {
	tok, err := c.token(ctx)
	if err != nil {
		return NewError(ReasonProviderRejected, "wallet provider auth failed", err)
	}

	var buf bytes.Buffer
	if in != nil {
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return NewError(ReasonProviderRejected, "could not encode provider request", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return NewError(ReasonProviderRejected, "could not build provider request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok)

	res, err := c.hc.Do(req)
	if err != nil {
		return NewError(ReasonProviderRejected, "wallet provider unreachable", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return NewError(ReasonProviderRejected, "could not read provider response", err)
	}
	if res.StatusCode >= 400 {
		return NewError(ReasonProviderRejected, fmt.Sprintf("wallet provider returned %d: %s", res.StatusCode, raw), nil)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return NewError(ReasonProviderRejected, "malformed provider response", err)
	}
	return nil
}
