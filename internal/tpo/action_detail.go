package tpo

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ActionDetail is the response of get_action_details. Fields keeps the whole
// object; History and Metadata are the decoded nested lists.
type ActionDetail struct {
	Fields   Record
	History  []Record
	Metadata []MetadataEntry
}

// MetadataEntry is one auxiliary name/value pair attached to an action.
type MetadataEntry struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

func parseActionDetail(body []byte) (*ActionDetail, error) {
	var fields Record
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}

	detail := &ActionDetail{Fields: fields}

	if raw, ok := fields.Values["history"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &detail.History); err != nil {
			return nil, fmt.Errorf("history: %w", err)
		}
	}
	if raw, ok := fields.Values["metadata"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &detail.Metadata); err != nil {
			return nil, fmt.Errorf("metadata: %w", err)
		}
		for i, m := range detail.Metadata {
			if m.Name == "" {
				return nil, fmt.Errorf("metadata[%d]: missing name", i)
			}
		}
	}
	return detail, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
