package parser

import (
	"encoding/json"
	"testing"

	"github.com/aluiziolira/go-scrape-kabum/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullRawProduct() models.RawProduct {
	return models.RawProduct{
		"code":              json.Number("520369"),
		"name":              "Processador AMD Ryzen 7 5700X3D",
		"manufacturer":      map[string]any{"name": "AMD"},
		"description":       "Processador para jogos",
		"price":             json.Number("1899.99"),
		"priceWithDiscount": json.Number("1614.99"),
		"offer":             map[string]any{"priceWithDiscount": json.Number("1499.99")},
		"image":             "https://images.kabum.com.br/produtos/520369.jpg",
		"rating":            json.Number("4.9"),
		"ratingCount":       json.Number("1380"),
		"warranty":          "3 meses",
		"flags":             map[string]any{"isOpenbox": false},
		"prime":             map[string]any{"price": json.Number("1589.99")},
	}
}

func TestNormalizeProductPassthrough(t *testing.T) {
	p := NormalizeProduct(fullRawProduct())

	assert.Equal(t, "520369", p.Code.String())
	assert.Equal(t, "Processador AMD Ryzen 7 5700X3D", p.Name.String())
	assert.Equal(t, "AMD", p.Brand.String())
	assert.Equal(t, "Processador para jogos", p.Description.String())
	assert.Equal(t, "1499.99", p.Price.String())
	assert.Equal(t, "https://images.kabum.com.br/produtos/520369.jpg", p.ImageURL.String())
	assert.Equal(t, "4.9", p.Rating.String())
	assert.Equal(t, "1380", p.RatingCount.String())
	assert.Equal(t, "3 meses", p.Warranty.String())
	assert.Equal(t, false, p.IsOpenBox.Raw())
	assert.Empty(t, MissingFields(&p))
}

func TestNormalizeProductSentinels(t *testing.T) {
	tests := []struct {
		field    string
		remove   []string
		get      func(models.Product) models.Value
		sentinel string
	}{
		{field: "code", remove: []string{"code"}, get: func(p models.Product) models.Value { return p.Code }, sentinel: CodeUnavailable},
		{field: "name", remove: []string{"name"}, get: func(p models.Product) models.Value { return p.Name }, sentinel: NameUnavailable},
		{field: "brand", remove: []string{"manufacturer"}, get: func(p models.Product) models.Value { return p.Brand }, sentinel: BrandUnavailable},
		{field: "description", remove: []string{"description"}, get: func(p models.Product) models.Value { return p.Description }, sentinel: DescriptionUnavailable},
		{field: "image_url", remove: []string{"image"}, get: func(p models.Product) models.Value { return p.ImageURL }, sentinel: ImageUnavailable},
		{field: "rating", remove: []string{"rating"}, get: func(p models.Product) models.Value { return p.Rating }, sentinel: RatingUnavailable},
		{field: "rating_count", remove: []string{"ratingCount"}, get: func(p models.Product) models.Value { return p.RatingCount }, sentinel: RatingCountUnavailable},
		{field: "warranty", remove: []string{"warranty"}, get: func(p models.Product) models.Value { return p.Warranty }, sentinel: WarrantyUnavailable},
		{field: "is_open_box", remove: []string{"flags"}, get: func(p models.Product) models.Value { return p.IsOpenBox }, sentinel: OpenBoxUnavailable},
		{field: "prime_details", remove: []string{"prime"}, get: func(p models.Product) models.Value { return p.PrimeDetails }, sentinel: PrimeDetailsUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			raw := fullRawProduct()
			for _, key := range tt.remove {
				delete(raw, key)
			}

			var p models.Product
			require.NotPanics(t, func() { p = NormalizeProduct(raw) })

			value := tt.get(p)
			assert.False(t, value.Available())
			assert.Equal(t, tt.sentinel, value.String())
			assert.Equal(t, []string{tt.field}, MissingFields(&p))

			encoded, err := json.Marshal(value)
			require.NoError(t, err)
			assert.JSONEq(t, `"`+tt.sentinel+`"`, string(encoded))
		})
	}
}

func TestNormalizeProductNestedParentVariants(t *testing.T) {
	raw := models.RawProduct{
		"manufacturer": nil,
		"flags":        map[string]any{},
	}

	p := NormalizeProduct(raw)
	assert.Equal(t, BrandUnavailable, p.Brand.String())
	assert.Equal(t, OpenBoxUnavailable, p.IsOpenBox.String())
	assert.Equal(t, models.PriceUnavailable, p.Price.String())
	assert.Len(t, MissingFields(&p), 11)
}

func TestNormalizeProductEmptyRecord(t *testing.T) {
	p := NormalizeProduct(models.RawProduct{})
	encoded, err := json.Marshal(p)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Len(t, decoded, 11)
	for key, value := range decoded {
		_, isString := value.(string)
		assert.Truef(t, isString, "field %s should carry a sentinel string, got %T", key, value)
	}
	assert.Equal(t, models.PriceUnavailable, decoded["price"])
}

func TestResolvePricePrecedence(t *testing.T) {
	tests := []struct {
		name string
		raw  models.RawProduct
		want string
	}{
		{
			name: "offer price wins over top-level discount",
			raw: models.RawProduct{
				"offer":             map[string]any{"priceWithDiscount": json.Number("100")},
				"priceWithDiscount": json.Number("200"),
				"price":             json.Number("300"),
			},
			want: "100",
		},
		{
			name: "top-level discount without offer",
			raw: models.RawProduct{
				"priceWithDiscount": json.Number("200"),
				"price":             json.Number("300"),
			},
			want: "200",
		},
		{
			name: "list price as last resort",
			raw:  models.RawProduct{"price": json.Number("300")},
			want: "300",
		},
		{
			name: "nothing resolvable",
			raw:  models.RawProduct{},
			want: models.PriceUnavailable,
		},
		{
			name: "empty offer is ignored",
			raw: models.RawProduct{
				"offer":             map[string]any{},
				"priceWithDiscount": json.Number("200"),
			},
			want: "200",
		},
		{
			name: "null offer price falls through",
			raw: models.RawProduct{
				"offer":             map[string]any{"priceWithDiscount": nil, "endsAt": json.Number("1700000000")},
				"priceWithDiscount": json.Number("200"),
			},
			want: "200",
		},
		{
			name: "null top-level discount falls through",
			raw: models.RawProduct{
				"priceWithDiscount": nil,
				"price":             json.Number("300"),
			},
			want: "300",
		},
		{
			name: "non-numeric candidate is skipped",
			raw: models.RawProduct{
				"priceWithDiscount": "consulte",
				"price":             "349.90",
			},
			want: "349.9",
		},
		{
			name: "zero is a valid price",
			raw:  models.RawProduct{"priceWithDiscount": json.Number("0")},
			want: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolvePrice(tt.raw).String())
		})
	}
}

func TestNormalizeProductIsIdempotent(t *testing.T) {
	raw := fullRawProduct()

	first := NormalizeProduct(raw)
	second := NormalizeProduct(raw)

	assert.True(t, first.Price.Equal(second.Price))
	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(firstJSON), string(secondJSON))
	assert.Equal(t, fullRawProduct(), raw, "input must not be modified")
}

func TestMissingFieldsNil(t *testing.T) {
	assert.Nil(t, MissingFields(nil))
}
