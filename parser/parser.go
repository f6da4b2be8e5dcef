// Package parser maps raw catalog entries onto the canonical Product record.
package parser

import (
	"encoding/json"
	"strings"

	"github.com/aluiziolira/go-scrape-kabum/models"
	"github.com/shopspring/decimal"
)

// Per-field sentinels substituted for missing catalog data.
const (
	CodeUnavailable         = "Code Unavailable"
	NameUnavailable         = "Name Unavailable"
	BrandUnavailable        = "Brand Unavailable"
	DescriptionUnavailable  = "Description Unavailable"
	ImageUnavailable        = "Image Unavailable"
	RatingUnavailable       = "Rating Unavailable"
	RatingCountUnavailable  = "Rating Count Unavailable"
	WarrantyUnavailable     = "Warranty Unavailable"
	OpenBoxUnavailable      = "Open Box Info Unavailable"
	PrimeDetailsUnavailable = "Prime Details Unavailable"
)

// NormalizeProduct builds a complete Product from one catalog entry.
// It never fails and has no side effects.
func NormalizeProduct(raw models.RawProduct) models.Product {
	return models.Product{
		Code:         field(raw, CodeUnavailable, "code"),
		Name:         field(raw, NameUnavailable, "name"),
		Brand:        field(raw, BrandUnavailable, "manufacturer", "name"),
		Description:  field(raw, DescriptionUnavailable, "description"),
		Price:        ResolvePrice(raw),
		ImageURL:     field(raw, ImageUnavailable, "image"),
		Rating:       field(raw, RatingUnavailable, "rating"),
		RatingCount:  field(raw, RatingCountUnavailable, "ratingCount"),
		Warranty:     field(raw, WarrantyUnavailable, "warranty"),
		IsOpenBox:    field(raw, OpenBoxUnavailable, "flags", "isOpenbox"),
		PrimeDetails: field(raw, PrimeDetailsUnavailable, "prime"),
	}
}

// ResolvePrice picks the first numeric candidate in this order:
// offer.priceWithDiscount (only when offer is truthy), priceWithDiscount,
// price. Candidates that are present but not numeric are skipped.
//
// The deprecated ordering checked priceWithDiscount before the offer price;
// offer-first is the supported behavior.
func ResolvePrice(raw models.RawProduct) models.Price {
	if offer, ok := raw.Lookup("offer"); ok && truthy(offer) {
		if price, ok := priceAt(raw, "offer", "priceWithDiscount"); ok {
			return price
		}
	}
	if price, ok := priceAt(raw, "priceWithDiscount"); ok {
		return price
	}
	if price, ok := priceAt(raw, "price"); ok {
		return price
	}
	return models.NoPrice()
}

// MissingFields lists the JSON names of fields holding their sentinel.
func MissingFields(p *models.Product) []string {
	if p == nil {
		return nil
	}
	var missing []string
	check := func(name string, available bool) {
		if !available {
			missing = append(missing, name)
		}
	}
	check("code", p.Code.Available())
	check("name", p.Name.Available())
	check("brand", p.Brand.Available())
	check("description", p.Description.Available())
	check("price", p.Price.Available())
	check("image_url", p.ImageURL.Available())
	check("rating", p.Rating.Available())
	check("rating_count", p.RatingCount.Available())
	check("warranty", p.Warranty.Available())
	check("is_open_box", p.IsOpenBox.Available())
	check("prime_details", p.PrimeDetails.Available())
	return missing
}

func field(raw models.RawProduct, sentinel string, path ...string) models.Value {
	if value, ok := raw.Lookup(path...); ok {
		return models.Present(value)
	}
	return models.Missing(sentinel)
}

func priceAt(raw models.RawProduct, path ...string) (models.Price, bool) {
	value, ok := raw.Lookup(path...)
	if !ok {
		return models.Price{}, false
	}
	amount, ok := toDecimal(value)
	if !ok {
		return models.Price{}, false
	}
	return models.NewPrice(amount), true
}

func toDecimal(value any) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		return d, err == nil
	default:
		return decimal.Decimal{}, false
	}
}

// truthy mirrors how the catalog treats an empty offer: absent.
func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case map[string]any:
		return len(v) > 0
	case []any:
		return len(v) > 0
	case json.Number:
		f, err := v.Float64()
		return err == nil && f != 0
	case float64:
		return v != 0
	default:
		return true
	}
}
