// Package models defines data structures for the scraper.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// PriceUnavailable replaces the price when no candidate field holds a number.
const PriceUnavailable = "Price Unavailable"

// Product is the canonical record produced for every catalog entry.
// Every field is always populated: missing source data is carried as the
// field's sentinel string.
type Product struct {
	Code         Value `json:"code"`
	Name         Value `json:"name"`
	Brand        Value `json:"brand"`
	Description  Value `json:"description"`
	Price        Price `json:"price"`
	ImageURL     Value `json:"image_url"`
	Rating       Value `json:"rating"`
	RatingCount  Value `json:"rating_count"`
	Warranty     Value `json:"warranty"`
	IsOpenBox    Value `json:"is_open_box"`
	PrimeDetails Value `json:"prime_details"`
}

// Value is a raw catalog value passed through as-is, or the sentinel string
// used when the source omitted it.
type Value struct {
	raw      any
	sentinel string
}

// Present wraps a value found in the catalog. A nil value is treated as missing.
func Present(v any) Value {
	return Value{raw: v}
}

// Missing returns a Value holding only its sentinel.
func Missing(sentinel string) Value {
	return Value{sentinel: sentinel}
}

// Available reports whether the value came from the catalog.
func (v Value) Available() bool {
	return v.raw != nil
}

// Raw returns the catalog value, or nil when it is missing.
func (v Value) Raw() any {
	return v.raw
}

// Sentinel returns the placeholder used when the value is missing.
func (v Value) Sentinel() string {
	return v.sentinel
}

// String renders the value for flat outputs such as CSV columns.
func (v Value) String() string {
	switch raw := v.raw.(type) {
	case nil:
		return v.sentinel
	case string:
		return raw
	case json.Number:
		return raw.String()
	case bool:
		return strconv.FormatBool(raw)
	case float64:
		return strconv.FormatFloat(raw, 'f', -1, 64)
	case fmt.Stringer:
		return raw.String()
	default:
		encoded, err := json.Marshal(raw)
		if err != nil {
			return fmt.Sprint(raw)
		}
		return string(encoded)
	}
}

// MarshalJSON emits the raw value, or the sentinel string when missing.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.raw == nil {
		return marshalUnescaped(v.sentinel)
	}
	return marshalUnescaped(v.raw)
}

// marshalUnescaped encodes like json.Marshal but leaves <, > and & as is.
func marshalUnescaped(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Price is numeric when one of the catalog price fields resolved, otherwise
// it serializes as PriceUnavailable. Check Available before arithmetic.
type Price struct {
	amount decimal.Decimal
	ok     bool
}

// NewPrice wraps a resolved amount.
func NewPrice(amount decimal.Decimal) Price {
	return Price{amount: amount, ok: true}
}

// NoPrice returns the unresolved price.
func NoPrice() Price {
	return Price{}
}

// Available reports whether the price resolved to a number.
func (p Price) Available() bool {
	return p.ok
}

// Amount returns the resolved amount and whether there is one.
func (p Price) Amount() (decimal.Decimal, bool) {
	return p.amount, p.ok
}

// Float64 returns the amount as a float for callers that do not need exact decimals.
func (p Price) Float64() (float64, bool) {
	if !p.ok {
		return 0, false
	}
	f, _ := p.amount.Float64()
	return f, true
}

// Equal compares two prices by availability and amount.
func (p Price) Equal(other Price) bool {
	if p.ok != other.ok {
		return false
	}
	return !p.ok || p.amount.Equal(other.amount)
}

func (p Price) String() string {
	if !p.ok {
		return PriceUnavailable
	}
	return p.amount.String()
}

// MarshalJSON writes the amount as a bare JSON number or the sentinel string.
func (p Price) MarshalJSON() ([]byte, error) {
	if !p.ok {
		return json.Marshal(PriceUnavailable)
	}
	return []byte(p.amount.String()), nil
}

// StopReason records why a run stopped paginating.
type StopReason string

const (
	StopTerminalMarker StopReason = "terminal_marker"
	StopEmptyPage      StopReason = "empty_page"
	StopPageLimit      StopReason = "page_limit"
)

// ScrapeResult holds the overall result of a scraping run.
type ScrapeResult struct {
	RunID        string
	Category     string
	Mode         string
	Products     []Product
	StartTime    time.Time
	EndTime      time.Time
	PageCount    int
	RequestCount int
	RetryCount   int
	Cursor       Cursor
	StopReason   StopReason
}
