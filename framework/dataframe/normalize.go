package dataframe

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/samber/lo"
)

// Parse classifies a dataframes response body and decodes its records.
// The rating API has answered with an envelope, a bare list or a single
// record depending on its version; all three end up in one Response.
func Parse(body []byte) (Response, error) {
	trimmed := bytes.TrimSpace(body)
	resp := Response{Kind: KindEmpty, Raw: json.RawMessage(trimmed)}

	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return resp, nil
	}

	switch trimmed[0] {
	case '[':
		var records []Record
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return resp, fmt.Errorf("failed to decode dataframe list: %w", err)
		}
		if len(records) > 0 {
			resp.Kind = KindList
			resp.Records = records
		}
		return resp, nil

	case '{':
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &probe); err != nil {
			return resp, fmt.Errorf("failed to decode dataframe object: %w", err)
		}
		if len(probe) == 0 {
			return resp, nil
		}

		if inner, ok := probe["dataframes"]; ok {
			var records []Record
			if err := json.Unmarshal(inner, &records); err != nil {
				return resp, fmt.Errorf("failed to decode dataframes envelope: %w", err)
			}
			resp.Kind = KindEnvelope
			resp.Records = records
			return resp, nil
		}

		var record Record
		if err := json.Unmarshal(trimmed, &record); err != nil {
			return resp, fmt.Errorf("failed to decode dataframe record: %w", err)
		}
		resp.Kind = KindSingle
		resp.Records = []Record{record}
		return resp, nil

	default:
		return resp, fmt.Errorf("unexpected dataframes payload starting with %q", trimmed[0])
	}
}

// Normalize returns the flat list of billed records of a response, whatever its kind.
// Frames carrying nested resources are replaced by those resources, which inherit
// the frame's period and tenant when they do not set their own.
func Normalize(resp Response) []Record {
	if resp.Kind == KindEmpty {
		return nil
	}
	return lo.FlatMap(resp.Records, func(r Record, _ int) []Record {
		return flatten(r)
	})
}

func flatten(r Record) []Record {
	if len(r.Resources) == 0 {
		return []Record{r}
	}
	return lo.FlatMap(r.Resources, func(child Record, _ int) []Record {
		if child.Begin == "" {
			child.Begin = r.Begin
		}
		if child.End == "" {
			child.End = r.End
		}
		if child.TenantID == "" {
			child.TenantID = r.TenantID
		}
		return flatten(child)
	})
}

// Find returns the first record describing the given resource id
func Find(records []Record, resourceID string) (Record, bool) {
	return lo.Find(records, func(r Record) bool {
		return r.Desc.ID == resourceID
	})
}
