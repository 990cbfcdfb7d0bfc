package agent

import (
	"context"
	"fmt"

	"github.com/CoronovirusG10/zoho-order-processing/pkg/connector"
)

// SalesOrderDriver implements executor.ToolDriver over the one tool the
// executor is ever asked to run in this system: create-salesorder.
type SalesOrderDriver struct {
	client *connector.AccountingClient
}

// NewSalesOrderDriver wraps an AccountingClient as an executor.ToolDriver.
func NewSalesOrderDriver(client *connector.AccountingClient) *SalesOrderDriver {
	return &SalesOrderDriver{client: client}
}

// Execute implements executor.ToolDriver.
func (d *SalesOrderDriver) Execute(ctx context.Context, toolName string, params map[string]any) (any, error) {
	if toolName != toolNameCreateSalesOrder {
		return nil, fmt.Errorf("agent: unsupported tool %q", toolName)
	}

	req, ok := params["request"].(connector.SalesOrderRequest)
	if !ok {
		return nil, fmt.Errorf("agent: params[\"request\"] is not a connector.SalesOrderRequest")
	}

	resp, err := d.client.CreateSalesOrder(ctx, req)
	if err != nil {
		return nil, err
	}

	return map[string]any{"draft_reference": resp.DraftReference}, nil
}
