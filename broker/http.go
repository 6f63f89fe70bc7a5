package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// DefaultTimeout bounds every broker call. It is deliberately not paired
// with client-side automatic retries: retry policy belongs to the relay,
// which tracks attempts against max_retries.
const DefaultTimeout = 30 * time.Second

// HTTPClient talks to the broker's REST API:
//
//	POST /v1/orders                                -> 201 {order_id}
//	POST /v1/orders/{broker_order_id}/close        -> 200/201
//	GET  /v1/accounts/{broker_account_id}/balance  -> 200 {balance}
type HTTPClient struct {
	client *resty.Client
}

func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(apiKey).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	return &HTTPClient{client: client}
}

// orderPayload matches the broker wire format exactly; quantity and price go
// out as JSON numbers, not strings.
type orderPayload struct {
	AccountID     string   `json:"account_id"`
	Symbol        string   `json:"symbol"`
	Side          string   `json:"side"`
	Quantity      float64  `json:"quantity"`
	Type          string   `json:"type"`
	Price         *float64 `json:"price"`
	ClientOrderID string   `json:"client_order_id"`
}

func (c *HTTPClient) PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	payload := orderPayload{
		AccountID:     req.AccountID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Type:          req.Type,
		ClientOrderID: req.ClientOrderID,
	}
	payload.Quantity, _ = req.Quantity.Float64()
	if !req.Price.IsZero() {
		p, _ := req.Price.Float64()
		payload.Price = &p
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post("/v1/orders")
	if err != nil {
		return OrderResult{}, fmt.Errorf("place order: %w", err)
	}

	return decodeOrderResult(resp), nil
}

func (c *HTTPClient) CloseOrder(ctx context.Context, brokerOrderID string) (OrderResult, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", brokerOrderID).
		Post("/v1/orders/{id}/close")
	if err != nil {
		return OrderResult{}, fmt.Errorf("close order: %w", err)
	}

	return decodeOrderResult(resp), nil
}

func (c *HTTPClient) GetBalance(ctx context.Context, brokerAccountID string) (decimal.Decimal, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", brokerAccountID).
		Get("/v1/accounts/{id}/balance")
	if cerr := Classify(statusOf(resp), err); cerr != nil {
		return decimal.Zero, fmt.Errorf("get balance: %w", cerr)
	}

	// Accept both a JSON number and a quoted decimal string.
	var body struct {
		Balance json.Number `json:"balance"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return decimal.Zero, fmt.Errorf("%w: decode balance: %v", ErrTransient, err)
	}
	bal, err := decimal.NewFromString(body.Balance.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: parse balance %q: %v", ErrTransient, body.Balance, err)
	}
	return bal, nil
}

// decodeOrderResult keeps the raw body and decodes order_id defensively; the
// broker payload is never trusted to be schema-stable.
func decodeOrderResult(resp *resty.Response) OrderResult {
	res := OrderResult{
		StatusCode: resp.StatusCode(),
		RawBody:    resp.Body(),
	}

	var body struct {
		OrderID string `json:"order_id"`
	}
	if err := json.Unmarshal(res.RawBody, &body); err == nil {
		res.OrderID = body.OrderID
	}
	return res
}

func statusOf(resp *resty.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode()
}
