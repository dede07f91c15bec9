package dto

// CollectionItem is one collection as offered in the filter form.
type CollectionItem struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	Handle        string `json:"handle"`
	ProductsCount int    `json:"products_count"`
}

// CollectionListResponse wraps the collections listing.
type CollectionListResponse struct {
	Collections []CollectionItem `json:"collections"`
	Count       int              `json:"count"`
}

// ProductSampleResponse is the catalog debug sample: a few products plus
// the distinct product types and vendors usable as filter values.
type ProductSampleResponse struct {
	SampleProducts        []ProductSampleItem `json:"sample_products"`
	TotalFound            int                 `json:"total_found"`
	AvailableProductTypes []string            `json:"available_product_types"`
	AvailableVendors      []string            `json:"available_vendors"`
}

// ProductSampleItem is one product in the debug sample.
type ProductSampleItem struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	ProductType string `json:"product_type"`
	Vendor      string `json:"vendor"`
	UnitCount   int    `json:"unit_count"`
}
