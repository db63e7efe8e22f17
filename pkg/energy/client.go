// Package energy is a typed client for the energy service, which owns pumps
// and their consumption records.
package energy

import (
	"context"
	"fmt"

	"irriflow.dev/dashboard/pkg/rest"
)

// ServiceName labels this client in metrics and errors.
const ServiceName = "energy"

// DefaultBasePath is where the gateway exposes the energy service.
const DefaultBasePath = "/energy-service/api"

// Client talks to the energy service.
type Client struct {
	rest *rest.Client
}

// NewClient builds a client for the energy service rooted at baseURL,
// for example "http://gateway:8080/energy-service/api".
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

// ListPumps returns every pump.
func (c *Client) ListPumps(ctx context.Context) ([]Pump, error) {
	var pumps []Pump
	if err := c.rest.Get(ctx, "ListPumps", "/pompes", &pumps); err != nil {
		return nil, err
	}
	return pumps, nil
}

// GetPump returns one pump; a missing pump matches rest.ErrNotFound.
func (c *Client) GetPump(ctx context.Context, id int64) (*Pump, error) {
	var pump Pump
	if err := c.rest.Get(ctx, "GetPump", fmt.Sprintf("/pompes/%d", id), &pump); err != nil {
		return nil, err
	}
	return &pump, nil
}

// CreatePump registers a new pump and returns it as stored.
func (c *Client) CreatePump(ctx context.Context, in PumpInput) (*Pump, error) {
	var pump Pump
	if err := c.rest.Post(ctx, "CreatePump", "/pompes", in, &pump); err != nil {
		return nil, err
	}
	return &pump, nil
}

// UpdatePump replaces every attribute of pump id.
func (c *Client) UpdatePump(ctx context.Context, id int64, in PumpInput) (*Pump, error) {
	var pump Pump
	if err := c.rest.Put(ctx, "UpdatePump", fmt.Sprintf("/pompes/%d", id), in, &pump); err != nil {
		return nil, err
	}
	return &pump, nil
}

// DeletePump removes pump id.
func (c *Client) DeletePump(ctx context.Context, id int64) error {
	return c.rest.Delete(ctx, "DeletePump", fmt.Sprintf("/pompes/%d", id))
}

// CheckAvailability asks the service whether pump id can be started.
func (c *Client) CheckAvailability(ctx context.Context, id int64) (bool, error) {
	var available bool
	if err := c.rest.Get(ctx, "CheckAvailability", fmt.Sprintf("/energy/disponibilite/%d", id), &available); err != nil {
		return false, err
	}
	return available, nil
}

// ListConsumption returns every consumption record.
func (c *Client) ListConsumption(ctx context.Context) ([]ConsumptionRecord, error) {
	var records []ConsumptionRecord
	if err := c.rest.Get(ctx, "ListConsumption", "/consommations", &records); err != nil {
		return nil, err
	}
	return records, nil
}

// ListConsumptionByPump returns the records measured on pump id.
func (c *Client) ListConsumptionByPump(ctx context.Context, pumpID int64) ([]ConsumptionRecord, error) {
	var records []ConsumptionRecord
	if err := c.rest.Get(ctx, "ListConsumptionByPump", fmt.Sprintf("/consommations/pompe/%d", pumpID), &records); err != nil {
		return nil, err
	}
	return records, nil
}

// CreateConsumption records one measurement.
func (c *Client) CreateConsumption(ctx context.Context, in ConsumptionInput) (*ConsumptionRecord, error) {
	var record ConsumptionRecord
	if err := c.rest.Post(ctx, "CreateConsumption", "/consommations", in, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// TotalConsumption returns the service-computed kWh total of pump id.
func (c *Client) TotalConsumption(ctx context.Context, pumpID int64) (float64, error) {
	var total float64
	if err := c.rest.Get(ctx, "TotalConsumption", fmt.Sprintf("/consommations/pompe/%d/total", pumpID), &total); err != nil {
		return 0, err
	}
	return total, nil
}
