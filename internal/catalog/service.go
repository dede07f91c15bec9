package catalog

import (
	"context"
	"encoding/json"
	"time"

	"priceops/internal/infra"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const collectionsCacheKey = "catalog:collections"
const collectionsCacheTTL = 10 * time.Minute

// Unit is the smallest entity carrying an independent price and optional
// compare-at price (a product variant).
type Unit struct {
	ID           int64
	Title        string
	Price        decimal.Decimal
	ComparePrice *decimal.Decimal
}

// Item is a product with its priced units.
type Item struct {
	ID          int64
	Title       string
	ProductType string
	Vendor      string
	Units       []Unit
}

// ProductSource is the slice of the Shopify client the catalog consumes.
type ProductSource interface {
	GetProducts(ctx context.Context, limit int, productType, vendor string) ([]infra.ShopifyProduct, error)
	ResolveCollectionProducts(ctx context.Context, identifier string, limit int) ([]infra.ShopifyProduct, error)
	GetAllCollections(ctx context.Context) ([]infra.ShopifyCollection, error)
}

// Service enumerates catalog items for previews and batch runs.
type Service struct {
	source ProductSource
	rdb    *redis.Client
}

func NewService(source ProductSource, rdb *redis.Client) *Service {
	return &Service{source: source, rdb: rdb}
}

// ListItems returns the items matching the filter, in the order the
// remote API returned them. An empty result is not an error.
func (s *Service) ListItems(ctx context.Context, filter FilterSpec, limit int) ([]Item, error) {
	var (
		products []infra.ShopifyProduct
		err      error
	)
	switch filter.Type {
	case FilterCollection:
		products, err = s.source.ResolveCollectionProducts(ctx, filter.Value, limit)
	case FilterProductType:
		products, err = s.source.GetProducts(ctx, limit, filter.Value, "")
	case FilterVendor:
		products, err = s.source.GetProducts(ctx, limit, "", filter.Value)
	default: // FilterAll — ParseFilter already rejected anything else
		products, err = s.source.GetProducts(ctx, limit, "", "")
	}
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(products))
	for _, p := range products {
		items = append(items, toItem(p))
	}
	return items, nil
}

// ListCollections returns every collection the shop exposes, cached in
// redis so repeated form loads do not burn admin API quota.
func (s *Service) ListCollections(ctx context.Context) ([]infra.ShopifyCollection, error) {
	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, collectionsCacheKey).Bytes(); err == nil {
			var cols []infra.ShopifyCollection
			if jsonErr := json.Unmarshal(cached, &cols); jsonErr == nil {
				return cols, nil
			}
		}
	}

	cols, err := s.source.GetAllCollections(ctx)
	if err != nil {
		return nil, err
	}

	// Populate cache — best effort, ignore errors
	if s.rdb != nil {
		if b, jsonErr := json.Marshal(cols); jsonErr == nil {
			_ = s.rdb.Set(ctx, collectionsCacheKey, b, collectionsCacheTTL).Err()
		}
	}
	return cols, nil
}

// toItem converts the wire product, dropping variants whose price does
// not parse rather than failing the whole enumeration.
func toItem(p infra.ShopifyProduct) Item {
	item := Item{
		ID:          p.ID,
		Title:       p.Title,
		ProductType: p.ProductType,
		Vendor:      p.Vendor,
		Units:       make([]Unit, 0, len(p.Variants)),
	}
	for _, v := range p.Variants {
		price, err := decimal.NewFromString(v.Price)
		if err != nil {
			log.Warn().Int64("variant_id", v.ID).Str("price", v.Price).Msg("skipping variant with unparsable price")
			continue
		}
		unit := Unit{ID: v.ID, Title: v.Title, Price: price}
		if v.CompareAtPrice != nil && *v.CompareAtPrice != "" {
			if cp, err := decimal.NewFromString(*v.CompareAtPrice); err == nil {
				unit.ComparePrice = &cp
			}
		}
		item.Units = append(item.Units, unit)
	}
	return item
}
