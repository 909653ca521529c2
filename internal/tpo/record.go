package tpo

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Record is one JSON object from the API with its key order preserved, so
// flattened CSV columns come out in the order the API sends them.
type Record struct {
	Keys   []string
	Values map[string]json.RawMessage
}

// Has reports whether key is present, even with a null value.
func (r Record) Has(key string) bool {
	_, ok := r.Values[key]
	return ok
}

// String renders the value under key as a CSV cell: strings unquoted, null
// and absent keys empty, numbers and booleans as their JSON literal, objects
// and arrays as compact JSON.
func (r Record) String(key string) string {
	raw, ok := r.Values[key]
	if !ok {
		return ""
	}
	return Cell(raw)
}

// Cells returns every value rendered with String, in key order.
func (r Record) Cells() []string {
	out := make([]string, len(r.Keys))
	for i, k := range r.Keys {
		out[i] = r.String(k)
	}
	return out
}

// Cell renders a raw JSON value for a CSV cell.
func Cell(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err == nil {
			return buf.String()
		}
	}
	return string(trimmed)
}

// UnmarshalJSON decodes an object keeping key order.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	rec, err := decodeObject(dec)
	if err != nil {
		return err
	}
	*r = rec
	return nil
}

func decodeObject(dec *json.Decoder) (Record, error) {
	tok, err := dec.Token()
	if err != nil {
		return Record{}, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return Record{}, fmt.Errorf("expected JSON object, got %v", tok)
	}

	rec := Record{Values: make(map[string]json.RawMessage)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Record{}, err
		}
		key, ok := tok.(string)
		if !ok {
			return Record{}, fmt.Errorf("expected object key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return Record{}, fmt.Errorf("decode value of %q: %w", key, err)
		}
		if _, dup := rec.Values[key]; !dup {
			rec.Keys = append(rec.Keys, key)
		}
		rec.Values[key] = raw
	}
	if _, err := dec.Token(); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// MalformedRecord is an array element that is not a JSON object.
type MalformedRecord struct {
	Index int
	Err   error
}

// decodeRecords decodes each array element on its own so one bad element
// does not cost the rest of the batch.
func decodeRecords(elems []json.RawMessage) ([]Record, []MalformedRecord) {
	records := make([]Record, 0, len(elems))
	var bad []MalformedRecord
	for i, elem := range elems {
		rec, err := decodeObject(json.NewDecoder(bytes.NewReader(elem)))
		if err != nil {
			bad = append(bad, MalformedRecord{Index: i, Err: err})
			continue
		}
		records = append(records, rec)
	}
	return records, bad
}
