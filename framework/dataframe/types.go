package dataframe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Amount is a decimal quantity the rating API may send either as a JSON string or a number
type Amount string

// UnmarshalJSON accepts "1.5", 1.5 and null
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("amount must be a string or a number: %w", err)
	}
	*a = Amount(n.String())
	return nil
}

// Float parses the amount
func (a Amount) Float() (float64, error) {
	if a == "" {
		return 0, fmt.Errorf("empty amount")
	}
	return strconv.ParseFloat(string(a), 64)
}

// Desc describes the billed resource. Only the identity fields are typed;
// the collector's metadata is kept in Extra.
type Desc struct {
	ID        string         `json:"id"`
	ProjectID string         `json:"project_id"`
	UserID    string         `json:"user_id"`
	Extra     map[string]any `json:"-"`
}

// UnmarshalJSON keeps every desc key in Extra besides the typed identity fields
func (d *Desc) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.ID = stringField(raw, "id")
	d.ProjectID = stringField(raw, "project_id")
	d.UserID = stringField(raw, "user_id")
	delete(raw, "id")
	delete(raw, "project_id")
	delete(raw, "user_id")
	if len(raw) > 0 {
		d.Extra = raw
	}
	return nil
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Record is one billed resource-period produced by the rating pipeline.
//
// CloudKitty v1 storage wraps resources in frames ({begin, end, tenant_id, resources});
// such frames decode into a Record whose Resources are set, and Normalize flattens them.
type Record struct {
	Service   string   `json:"service"`
	Desc      Desc     `json:"desc"`
	Rating    Amount   `json:"rating"`
	Volume    Amount   `json:"volume,omitempty"`
	RateValue Amount   `json:"rate_value,omitempty"`
	Begin     string   `json:"begin,omitempty"`
	End       string   `json:"end,omitempty"`
	TenantID  string   `json:"tenant_id,omitempty"`
	Resources []Record `json:"resources,omitempty"`
}

// Kind classifies the shape of a dataframes response
type Kind int

const (
	// KindEmpty is an empty body, null, {} or []
	KindEmpty Kind = iota
	// KindEnvelope is an object carrying a "dataframes" key
	KindEnvelope
	// KindList is a bare JSON array of records
	KindList
	// KindSingle is a single record object
	KindSingle
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindEnvelope:
		return "envelope"
	case KindList:
		return "list"
	case KindSingle:
		return "single"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Response is a classified dataframes response. Records holds the decoded
// top-level records exactly as sent; use Normalize for the flat record list.
type Response struct {
	Kind    Kind
	Records []Record
	Raw     json.RawMessage
}

// Len returns the number of top-level records
func (r Response) Len() int {
	return len(r.Records)
}
