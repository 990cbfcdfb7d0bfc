package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/CoronovirusG10/zoho-order-processing/pkg/credentials"
	"github.com/CoronovirusG10/zoho-order-processing/pkg/resolver"
)

// AccountingConnectorID is the ZeroTrustGate policy key for the external
// accounting API.
const AccountingConnectorID = "external-accounting-api"

// AccountingClient implements resolver.Catalog and the draft-writer's
// create-salesorder call against the external accounting API's minimal
// contract (§6). Every call passes through a ZeroTrustGate and is
// authenticated via AccountingOAuth.
type AccountingClient struct {
	baseURL string
	oauth   *credentials.AccountingOAuth
	gate    *ZeroTrustGate
	http    *http.Client
}

// NewAccountingClient builds an AccountingClient. The caller must have
// already called SetPolicy(AccountingConnectorID, ...) on gate.
func NewAccountingClient(baseURL string, oauth *credentials.AccountingOAuth, gate *ZeroTrustGate) *AccountingClient {
	return &AccountingClient{
		baseURL: baseURL,
		oauth:   oauth,
		gate:    gate,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// customerListResponse is the external API's list-customers response shape.
type customerListResponse struct {
	Customers []struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		TaxID string `json:"tax_id"`
	} `json:"customers"`
}

// ListCustomers implements resolver.Catalog.
func (c *AccountingClient) ListCustomers(ctx context.Context, name string) ([]resolver.CatalogCustomer, error) {
	if decision := c.gate.CheckCall(ctx, AccountingConnectorID, "customer"); !decision.Allowed {
		return nil, fmt.Errorf("accounting: zero-trust gate denied list-customers: %s", decision.Reason)
	}

	body, err := c.get(ctx, "/list-customers", map[string]string{"name": name})
	if err != nil {
		return nil, err
	}

	var resp customerListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("accounting: decode list-customers: %w", err)
	}

	out := make([]resolver.CatalogCustomer, 0, len(resp.Customers))
	for _, cust := range resp.Customers {
		out = append(out, resolver.CatalogCustomer{ID: cust.ID, Name: cust.Name, TaxID: cust.TaxID})
	}
	return out, nil
}

type itemListResponse struct {
	Items []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		GTIN string `json:"gtin"`
		SKU  string `json:"sku"`
	} `json:"items"`
}

// ListItems implements resolver.Catalog.
func (c *AccountingClient) ListItems(ctx context.Context, gtin, sku string) ([]resolver.CatalogItem, error) {
	if decision := c.gate.CheckCall(ctx, AccountingConnectorID, "item"); !decision.Allowed {
		return nil, fmt.Errorf("accounting: zero-trust gate denied list-items: %s", decision.Reason)
	}

	params := map[string]string{}
	if gtin != "" {
		params["gtin"] = gtin
	}
	if sku != "" {
		params["sku"] = sku
	}

	body, err := c.get(ctx, "/list-items", params)
	if err != nil {
		return nil, err
	}

	var resp itemListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("accounting: decode list-items: %w", err)
	}

	out := make([]resolver.CatalogItem, 0, len(resp.Items))
	for _, it := range resp.Items {
		out = append(out, resolver.CatalogItem{ID: it.ID, Name: it.Name, GTIN: it.GTIN, SKU: it.SKU})
	}
	return out, nil
}

// SalesOrderRequest is the minimal create-salesorder payload (§6).
type SalesOrderRequest struct {
	CustomerID     string                   `json:"customer_id"`
	LineItems      []SalesOrderLine         `json:"line_items"`
	Status         string                   `json:"status"` // "draft"
	IdempotencyKey string                   `json:"idempotency_key"`
}

// SalesOrderLine is one resolved line item in a create-salesorder request.
type SalesOrderLine struct {
	ItemID   string `json:"item_id"`
	Quantity string `json:"quantity"`
}

// SalesOrderResponse carries the created (or pre-existing) draft reference.
type SalesOrderResponse struct {
	DraftReference string `json:"draft_reference"`
}

// APIError classifies a non-2xx response per §4.5's writer error
// classification.
type APIError struct {
	StatusCode int
	Kind       string // ZOHO_VALIDATION_ERROR, auth-invalid, EXTERNAL_SERVICE_UNAVAILABLE
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("accounting api: %s (status %d): %s", e.Kind, e.StatusCode, e.Body)
}

// Retryable reports whether the workflow's retry policy should retry this
// error (§4.2, §4.5: 429/5xx/network retryable, 4xx/401/403 are not).
func (e *APIError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
}

// CreateSalesOrder posts a draft sales order. The caller supplies
// req.IdempotencyKey equal to the order fingerprint so a retried or
// recovered call against the same order never creates a duplicate draft.
func (c *AccountingClient) CreateSalesOrder(ctx context.Context, req SalesOrderRequest) (SalesOrderResponse, error) {
	if decision := c.gate.CheckCall(ctx, AccountingConnectorID, "salesorder"); !decision.Allowed {
		return SalesOrderResponse{}, fmt.Errorf("accounting: zero-trust gate denied create-salesorder: %s", decision.Reason)
	}

	token, err := c.oauth.AccessToken(ctx)
	if err != nil {
		return SalesOrderResponse{}, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return SalesOrderResponse{}, fmt.Errorf("accounting: marshal create-salesorder: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/create-salesorder", bytes.NewReader(body))
	if err != nil {
		return SalesOrderResponse{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return SalesOrderResponse{}, &APIError{StatusCode: 0, Kind: "EXTERNAL_SERVICE_UNAVAILABLE", Body: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return SalesOrderResponse{}, &APIError{StatusCode: resp.StatusCode, Kind: "auth-invalid", Body: string(respBody)}
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return SalesOrderResponse{}, &APIError{StatusCode: resp.StatusCode, Kind: "ZOHO_VALIDATION_ERROR", Body: string(respBody)}
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return SalesOrderResponse{}, &APIError{StatusCode: resp.StatusCode, Kind: "EXTERNAL_SERVICE_UNAVAILABLE", Body: string(respBody)}
	}

	var out SalesOrderResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return SalesOrderResponse{}, fmt.Errorf("accounting: decode create-salesorder response: %w", err)
	}
	return out, nil
}

func (c *AccountingClient) get(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	token, err := c.oauth.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	q := req.URL.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	req.URL.RawQuery = q.Encode()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &APIError{StatusCode: 0, Kind: "EXTERNAL_SERVICE_UNAVAILABLE", Body: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		kind := "EXTERNAL_SERVICE_UNAVAILABLE"
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			kind = "auth-invalid"
		} else if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			kind = "ZOHO_VALIDATION_ERROR"
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Kind: kind, Body: string(body)}
	}
	return body, nil
}
