package catalog

import (
	"context"
	"errors"
	"testing"

	"priceops/internal/infra"

	"github.com/stretchr/testify/assert"
)

type stubSource struct {
	products    []infra.ShopifyProduct
	collections []infra.ShopifyCollection
	err         error

	lastProductType string
	lastVendor      string
	resolvedWith    string
	collectionCalls int
}

func (s *stubSource) GetProducts(_ context.Context, _ int, productType, vendor string) ([]infra.ShopifyProduct, error) {
	s.lastProductType = productType
	s.lastVendor = vendor
	return s.products, s.err
}

func (s *stubSource) ResolveCollectionProducts(_ context.Context, identifier string, _ int) ([]infra.ShopifyProduct, error) {
	s.resolvedWith = identifier
	return s.products, s.err
}

func (s *stubSource) GetAllCollections(_ context.Context) ([]infra.ShopifyCollection, error) {
	s.collectionCalls++
	return s.collections, s.err
}

func strPtr(s string) *string { return &s }

func sampleProducts() []infra.ShopifyProduct {
	return []infra.ShopifyProduct{
		{ID: 1, Title: "Shirt", ProductType: "Apparel", Vendor: "Acme", Variants: []infra.ShopifyVariant{
			{ID: 11, Title: "S", Price: "100.00", CompareAtPrice: strPtr("120.00")},
			{ID: 12, Title: "M", Price: "100.00"},
		}},
	}
}

func TestListItems_AllFilter(t *testing.T) {
	src := &stubSource{products: sampleProducts()}
	svc := NewService(src, nil)

	items, err := svc.ListItems(context.Background(), FilterSpec{Type: FilterAll}, 50)

	assert.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, "Shirt", items[0].Title)
	assert.Len(t, items[0].Units, 2)
	assert.Equal(t, "100", items[0].Units[0].Price.String())
	assert.NotNil(t, items[0].Units[0].ComparePrice)
	assert.Nil(t, items[0].Units[1].ComparePrice)
	assert.Empty(t, src.lastProductType)
	assert.Empty(t, src.lastVendor)
}

func TestListItems_DispatchesByFilterType(t *testing.T) {
	src := &stubSource{products: sampleProducts()}
	svc := NewService(src, nil)

	_, err := svc.ListItems(context.Background(), FilterSpec{Type: FilterProductType, Value: "Apparel"}, 50)
	assert.NoError(t, err)
	assert.Equal(t, "Apparel", src.lastProductType)

	_, err = svc.ListItems(context.Background(), FilterSpec{Type: FilterVendor, Value: "Acme"}, 50)
	assert.NoError(t, err)
	assert.Equal(t, "Acme", src.lastVendor)

	_, err = svc.ListItems(context.Background(), FilterSpec{Type: FilterCollection, Value: "summer-sale"}, 50)
	assert.NoError(t, err)
	assert.Equal(t, "summer-sale", src.resolvedWith)
}

func TestListItems_SkipsUnparsablePrices(t *testing.T) {
	src := &stubSource{products: []infra.ShopifyProduct{
		{ID: 1, Title: "Broken", Variants: []infra.ShopifyVariant{
			{ID: 11, Price: "not-a-price"},
			{ID: 12, Price: "9.99"},
		}},
	}}
	svc := NewService(src, nil)

	items, err := svc.ListItems(context.Background(), FilterSpec{Type: FilterAll}, 50)

	assert.NoError(t, err)
	assert.Len(t, items[0].Units, 1, "unparsable variant is dropped, not fatal")
	assert.Equal(t, int64(12), items[0].Units[0].ID)
}

func TestListItems_PropagatesSourceError(t *testing.T) {
	src := &stubSource{err: errors.New("upstream 500")}
	svc := NewService(src, nil)

	_, err := svc.ListItems(context.Background(), FilterSpec{Type: FilterAll}, 50)
	assert.Error(t, err)
}

func TestListCollections_NoCacheStillWorks(t *testing.T) {
	src := &stubSource{collections: []infra.ShopifyCollection{{ID: 1, Title: "Sale"}}}
	svc := NewService(src, nil)

	cols, err := svc.ListCollections(context.Background())
	assert.NoError(t, err)
	assert.Len(t, cols, 1)
	assert.Equal(t, 1, src.collectionCalls)

	// No redis: every call goes to the source.
	_, err = svc.ListCollections(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 2, src.collectionCalls)
}
