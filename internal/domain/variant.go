package domain

// SelectVariantInput holds the parameters for SelectNextSellableVariant.
type SelectVariantInput struct {
	Variants           []Variant
	PreferredVariantID string
	// UsedVariantIDs lists variants the shopper already holds, so repeated
	// quick adds rotate through the remaining stock.
	UsedVariantIDs []string
}

// SelectNextSellableVariant picks the variant to use when the shopper did not
// choose one explicitly. A preferred variant in stock wins. Otherwise the
// first in-stock variant not yet used is returned, and once every in-stock
// variant has been used the rotation restarts at the first one. It returns
// nil only when no variant has positive stock.
func SelectNextSellableVariant(in SelectVariantInput) *Variant {
	if in.PreferredVariantID != "" {
		for i := range in.Variants {
			if in.Variants[i].ID == in.PreferredVariantID && in.Variants[i].InStock() {
				v := in.Variants[i]
				return &v
			}
		}
	}

	inStock := make([]Variant, 0, len(in.Variants))
	for _, v := range in.Variants {
		if v.InStock() {
			inStock = append(inStock, v)
		}
	}
	if len(inStock) == 0 {
		return nil
	}

	used := make(map[string]struct{}, len(in.UsedVariantIDs))
	for _, id := range in.UsedVariantIDs {
		used[id] = struct{}{}
	}
	for i := range inStock {
		if _, ok := used[inStock[i].ID]; !ok {
			return &inStock[i]
		}
	}

	return &inStock[0]
}
