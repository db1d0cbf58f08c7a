package rating

import (
	"encoding/json"
	"time"
)

// ServiceType is the Keystone catalog type of the CloudKitty API
const ServiceType = "rating"

// HashmapService is a billable category of the hashmap rating module
type HashmapService struct {
	ServiceID string `json:"service_id"`
	Name      string `json:"name"`
}

// HashmapMapping binds a cost rule to a service, field or group
type HashmapMapping struct {
	MappingID string      `json:"mapping_id"`
	ServiceID string      `json:"service_id,omitempty"`
	FieldID   string      `json:"field_id,omitempty"`
	GroupID   string      `json:"group_id,omitempty"`
	TenantID  string      `json:"tenant_id,omitempty"`
	Value     string      `json:"value,omitempty"`
	Cost      json.Number `json:"cost"`
	Type      string      `json:"map_type"`
}

// MappingOpts are the parameters of a new hashmap mapping
type MappingOpts struct {
	ServiceID string
	Cost      string
	// Type is "flat" or "rate"; empty lets the API pick its default (flat)
	Type string
}

func (o MappingOpts) body() map[string]any {
	body := map[string]any{
		"service_id": o.ServiceID,
		"cost":       json.Number(o.Cost),
	}
	if o.Type != "" {
		body["type"] = o.Type
	}
	return body
}

// Module is a rating module as reported by /v1/rating/modules
type Module struct {
	Name        string `json:"module_id"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`
	HotConfig   bool   `json:"hot-config,omitempty"`
	Priority    int    `json:"priority"`
}

// ModuleUpdate is the body of a module update
type ModuleUpdate struct {
	Enabled  bool `json:"enabled"`
	Priority int  `json:"priority"`
}

// DataframeQuery filters GET /v1/storage/dataframes. Zero fields are omitted.
type DataframeQuery struct {
	ResourceType string
	TenantID     string
	Begin        time.Time
	End          time.Time
}
