package payload

import (
	"strings"

	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/commerce"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/domain"
)

// CartLineInput is the canonical form of a client-held cart line.
type CartLineInput struct {
	ProductID string
	Quantity  int
	// VariantIndex selects an option of the primary variant group; commerce.NoVariant when
	// absent.
	VariantIndex int
	// VariantLabels maps group name to the chosen option label when the client sent labels
	// instead of indices.
	VariantLabels map[string]string
}

// CartLines decodes a client cart into canonical lines. Lines without a product reference are
// dropped; quantities are coerced leniently.
func CartLines(raw []byte) ([]CartLineInput, error) {
	records, err := Items(raw)
	if err != nil {
		return nil, err
	}
	out := make([]CartLineInput, 0, len(records))
	for _, rec := range records {
		line, ok := CartLineFromRecord(rec)
		if !ok {
			continue
		}
		out = append(out, line)
	}
	return out, nil
}

// CartLineFromRecord converts one record; ok is false when no product is referenced.
func CartLineFromRecord(rec Record) (CartLineInput, bool) {
	productID := rec.ProductRef()
	if productID == "" {
		return CartLineInput{}, false
	}
	line := CartLineInput{
		ProductID:    productID,
		Quantity:     commerce.CoerceQuantity(rec.Value("quantity", "qty", "count")),
		VariantIndex: commerce.NoVariant,
	}
	if v := rec.Value("variantIndex", "variant_index", "sizeIndex"); v != nil {
		line.VariantIndex = commerce.CoerceQuantity(v)
	}
	labels := make(map[string]string)
	if variant, ok := rec["variant"].(map[string]any); ok {
		addVariantLabel(labels, Record(variant))
	}
	for _, variant := range rec.Records("variants") {
		addVariantLabel(labels, variant)
	}
	if size := rec.String("size"); size != "" {
		labels["size"] = size
	}
	if len(labels) > 0 {
		line.VariantLabels = labels
	}
	return line, true
}

func addVariantLabel(labels map[string]string, rec Record) {
	name := rec.String("name", "group")
	value := rec.String("value", "label", "option")
	if name == "" || value == "" {
		return
	}
	labels[strings.ToLower(name)] = value
}

// Products decodes a catalog export into products. Records without a name are dropped.
func Products(raw []byte) ([]domain.Product, error) {
	records, err := Items(raw)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, len(records))
	for _, rec := range records {
		product, ok := ProductFromRecord(rec)
		if !ok {
			continue
		}
		out = append(out, product)
	}
	return out, nil
}

// ProductFromRecord converts one catalog record.
func ProductFromRecord(rec Record) (domain.Product, bool) {
	name := rec.String("name", "title")
	if name == "" {
		return domain.Product{}, false
	}
	product := domain.Product{
		ID:          rec.ID(),
		Name:        name,
		Slug:        rec.String("slug"),
		Description: rec.String("description", "desc"),
		BasePrice:   commerce.CoerceAmount(rec.Value("basePrice", "base_price", "price")),
		Currency:    strings.ToUpper(rec.String("currency")),
		Images:      rec.Strings("images"),
		Tags:        rec.Strings("tags"),
	}
	if img := rec.String("image", "imageUrl", "thumbnail"); img != "" && len(product.Images) == 0 {
		product.Images = []string{img}
	}
	switch category := rec["category"].(type) {
	case map[string]any:
		product.CategoryID = Record(category).ID()
	default:
		product.CategoryID = rec.String("categoryId", "category_id", "category")
	}
	if v := rec.Value("stock", "countInStock", "quantity"); v != nil {
		stock := commerce.CoerceQuantity(v)
		product.Stock = &stock
	}
	product.Status, _ = domain.ParseProductStatus(rec.String("status"))
	for _, group := range rec.Records("variants") {
		vg := domain.VariantGroup{Name: group.String("name", "group")}
		for _, opt := range group.Records("options") {
			vg.Options = append(vg.Options, domain.VariantOption{
				Label:      opt.String("label", "value", "name"),
				PriceDelta: commerce.CoerceAmount(opt.Value("priceDelta", "price_delta", "delta")),
			})
		}
		if vg.Name != "" && len(vg.Options) > 0 {
			product.VariantGroups = append(product.VariantGroups, vg)
		}
	}
	return product, true
}
