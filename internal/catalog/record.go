package catalog

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

var validate = validator.New()

// Record is the result of decoding one raw catalog row. A valid record holds
// a typed Product; an invalid one keeps the raw fields and the reason it was
// rejected so callers can report it without passing untyped data downstream.
type Record struct {
	Product Product
	Raw     map[string]any
	Err     error
}

// Valid reports whether the record decoded into a Product.
func (r Record) Valid() bool { return r.Err == nil }

// wireProduct accepts tags either as a JSON array or a comma-separated string.
type wireProduct struct {
	Product
	Tags json.RawMessage `json:"tags"`
}

// DecodeRecord decodes a single JSON object into a Record.
func DecodeRecord(data []byte) Record {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Record{Err: fmt.Errorf("decoding product row: %w", err)}
	}

	var w wireProduct
	if err := json.Unmarshal(data, &w); err != nil {
		return Record{Raw: raw, Err: fmt.Errorf("decoding product fields: %w", err)}
	}
	p := w.Product
	tags, err := decodeTags(w.Tags)
	if err != nil {
		return Record{Raw: raw, Err: err}
	}
	p.Tags = tags

	if err := validate.Struct(p); err != nil {
		return Record{Raw: raw, Err: fmt.Errorf("invalid product: %w", err)}
	}
	return Record{Product: p, Raw: raw}
}

func decodeTags(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var list []any
	if err := json.Unmarshal(raw, &list); err == nil {
		tags := make([]string, 0, len(list))
		for _, t := range list {
			if s := strings.TrimSpace(fmt.Sprintf("%v", t)); s != "" {
				tags = append(tags, s)
			}
		}
		return tags, nil
	}
	var joined string
	if err := json.Unmarshal(raw, &joined); err != nil {
		return nil, fmt.Errorf("tags must be an array or comma-separated string")
	}
	var tags []string
	for _, t := range strings.Split(joined, ",") {
		if s := strings.TrimSpace(t); s != "" {
			tags = append(tags, s)
		}
	}
	return tags, nil
}

// DecodeRecords decodes every row in rows.
func DecodeRecords(rows []json.RawMessage) []Record {
	out := make([]Record, len(rows))
	for i, row := range rows {
		out[i] = DecodeRecord(row)
	}
	return out
}

// Products returns the typed products from records, logging and skipping
// the ones that failed to decode.
func Products(records []Record) []Product {
	products := make([]Product, 0, len(records))
	for _, r := range records {
		if !r.Valid() {
			slog.Warn("catalog: skipping invalid product record", "error", r.Err, "id", r.Raw["id"])
			continue
		}
		products = append(products, r.Product)
	}
	return products
}
