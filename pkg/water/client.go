// Package water is a typed client for the water service, which owns
// reservoirs, flow records and alerts, and relays pump start commands to the
// energy service.
package water

import (
	"context"
	"fmt"

	"irriflow.dev/dashboard/pkg/rest"
)

// ServiceName labels this client in metrics and errors.
const ServiceName = "water"

// DefaultBasePath is where the gateway exposes the water service.
const DefaultBasePath = "/water-service/api"

// Client talks to the water service.
type Client struct {
	rest *rest.Client
}

// NewClient builds a client for the water service rooted at baseURL,
// for example "http://gateway:8080/water-service/api".
func NewClient(baseURL string, opts ...rest.Option) (*Client, error) {
	rc, err := rest.NewClient(ServiceName, baseURL, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{rest: rc}, nil
}

// BaseURL returns the normalized service root.
func (c *Client) BaseURL() string {
	return c.rest.BaseURL()
}

// ListReservoirs returns every reservoir.
func (c *Client) ListReservoirs(ctx context.Context) ([]Reservoir, error) {
	var reservoirs []Reservoir
	if err := c.rest.Get(ctx, "ListReservoirs", "/reservoirs", &reservoirs); err != nil {
		return nil, err
	}
	return reservoirs, nil
}

// GetReservoir returns one reservoir; a missing one matches rest.ErrNotFound.
func (c *Client) GetReservoir(ctx context.Context, id int64) (*Reservoir, error) {
	var reservoir Reservoir
	if err := c.rest.Get(ctx, "GetReservoir", fmt.Sprintf("/reservoirs/%d", id), &reservoir); err != nil {
		return nil, err
	}
	return &reservoir, nil
}

// CreateReservoir registers a new reservoir.
func (c *Client) CreateReservoir(ctx context.Context, in ReservoirInput) (*Reservoir, error) {
	var reservoir Reservoir
	if err := c.rest.Post(ctx, "CreateReservoir", "/reservoirs", in, &reservoir); err != nil {
		return nil, err
	}
	return &reservoir, nil
}

// UpdateReservoir replaces every attribute of reservoir id.
func (c *Client) UpdateReservoir(ctx context.Context, id int64, in ReservoirInput) (*Reservoir, error) {
	var reservoir Reservoir
	if err := c.rest.Put(ctx, "UpdateReservoir", fmt.Sprintf("/reservoirs/%d", id), in, &reservoir); err != nil {
		return nil, err
	}
	return &reservoir, nil
}

// DeleteReservoir removes reservoir id.
func (c *Client) DeleteReservoir(ctx context.Context, id int64) error {
	return c.rest.Delete(ctx, "DeleteReservoir", fmt.Sprintf("/reservoirs/%d", id))
}

// FillLevel returns the service-computed fill percentage of reservoir id.
func (c *Client) FillLevel(ctx context.Context, id int64) (float64, error) {
	var level float64
	if err := c.rest.Get(ctx, "FillLevel", fmt.Sprintf("/reservoirs/%d/niveau", id), &level); err != nil {
		return 0, err
	}
	return level, nil
}

// ListFlows returns every flow record.
func (c *Client) ListFlows(ctx context.Context) ([]FlowRecord, error) {
	var flows []FlowRecord
	if err := c.rest.Get(ctx, "ListFlows", "/debits", &flows); err != nil {
		return nil, err
	}
	return flows, nil
}

// ListFlowsByPump returns the flow records measured on pump id.
func (c *Client) ListFlowsByPump(ctx context.Context, pumpID int64) ([]FlowRecord, error) {
	var flows []FlowRecord
	if err := c.rest.Get(ctx, "ListFlowsByPump", fmt.Sprintf("/debits/pompe/%d", pumpID), &flows); err != nil {
		return nil, err
	}
	return flows, nil
}

// CreateFlow records one flow measurement.
func (c *Client) CreateFlow(ctx context.Context, in FlowInput) (*FlowRecord, error) {
	var flow FlowRecord
	if err := c.rest.Post(ctx, "CreateFlow", "/debits", in, &flow); err != nil {
		return nil, err
	}
	return &flow, nil
}

// AverageFlow returns the service-computed mean flow rate of pump id.
func (c *Client) AverageFlow(ctx context.Context, pumpID int64) (float64, error) {
	var avg float64
	if err := c.rest.Get(ctx, "AverageFlow", fmt.Sprintf("/debits/pompe/%d/moyenne", pumpID), &avg); err != nil {
		return 0, err
	}
	return avg, nil
}

// ListAlerts returns every alert, resolved or not.
func (c *Client) ListAlerts(ctx context.Context) ([]Alert, error) {
	var alerts []Alert
	if err := c.rest.Get(ctx, "ListAlerts", "/alertes", &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

// ListUnresolvedAlerts returns the alerts not yet marked handled.
func (c *Client) ListUnresolvedAlerts(ctx context.Context) ([]Alert, error) {
	var alerts []Alert
	if err := c.rest.Get(ctx, "ListUnresolvedAlerts", "/alertes/non-traitees", &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

// ResolveAlert marks alert id handled. The service may answer with the
// updated alert or an empty body; the returned alert is nil in the latter case.
func (c *Client) ResolveAlert(ctx context.Context, id int64) (*Alert, error) {
	var alert *Alert
	if err := c.rest.Put(ctx, "ResolveAlert", fmt.Sprintf("/alertes/%d/traiter", id), nil, &alert); err != nil {
		return nil, err
	}
	return alert, nil
}

// StartPump asks the water service to start pump id through the energy
// service. The service reports refusals in the result, not as an HTTP error.
func (c *Client) StartPump(ctx context.Context, pumpID int64) (StartPumpResult, error) {
	var result StartPumpResult
	if err := c.rest.Post(ctx, "StartPump", fmt.Sprintf("/water/demarrer-pompe/%d", pumpID), nil, &result); err != nil {
		return StartPumpResult{}, err
	}
	return result, nil
}
