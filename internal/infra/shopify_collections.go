package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Collection discovery and resolution.
//
// Shops differ in which API surface actually exposes their collections
// (custom vs smart, REST vs GraphQL, some only via the public storefront
// JSON). Both GetAllCollections and ResolveCollectionProducts therefore
// run an ordered chain of independently fallible attempts: each attempt
// logs its own failure and the chain short-circuits on the first
// non-empty result.

// GetAllCollections lists every collection the shop exposes, trying the
// REST admin API, then GraphQL, then the public storefront JSON.
func (c *ShopifyClient) GetAllCollections(ctx context.Context) ([]ShopifyCollection, error) {
	attempts := []struct {
		name string
		fn   func(context.Context) ([]ShopifyCollection, error)
	}{
		{"rest", c.collectionsViaREST},
		{"graphql", c.collectionsViaGraphQL},
		{"public_json", c.collectionsViaPublicJSON},
	}

	for _, attempt := range attempts {
		cols, err := attempt.fn(ctx)
		if err != nil {
			log.Debug().Str("source", attempt.name).Err(err).Msg("collection listing attempt failed")
			continue
		}
		if len(cols) > 0 {
			log.Debug().Str("source", attempt.name).Int("count", len(cols)).Msg("collections resolved")
			return cols, nil
		}
	}
	return nil, nil
}

func (c *ShopifyClient) collectionsViaREST(ctx context.Context) ([]ShopifyCollection, error) {
	var resp struct {
		Collections []ShopifyCollection `json:"collections"`
	}
	if err := c.request(ctx, http.MethodGet, "collections.json", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Collections, nil
}

func (c *ShopifyClient) collectionsViaGraphQL(ctx context.Context) ([]ShopifyCollection, error) {
	query := `{
	  collections(first: 50) {
	    edges {
	      node {
	        id
	        title
	        handle
	        productsCount
	      }
	    }
	  }
	}`

	var resp struct {
		Data struct {
			Collections struct {
				Edges []struct {
					Node struct {
						ID            string `json:"id"`
						Title         string `json:"title"`
						Handle        string `json:"handle"`
						ProductsCount int    `json:"productsCount"`
					} `json:"node"`
				} `json:"edges"`
			} `json:"collections"`
		} `json:"data"`
	}

	body := map[string]string{"query": query}
	if err := c.request(ctx, http.MethodPost, "graphql.json", nil, body, &resp); err != nil {
		return nil, err
	}

	cols := make([]ShopifyCollection, 0, len(resp.Data.Collections.Edges))
	for _, edge := range resp.Data.Collections.Edges {
		// GraphQL ids are gids like gid://shopify/Collection/123.
		gid := edge.Node.ID
		numeric := gid
		if i := strings.LastIndex(gid, "/"); i >= 0 {
			numeric = gid[i+1:]
		}
		id, err := strconv.ParseInt(numeric, 10, 64)
		if err != nil {
			continue
		}
		cols = append(cols, ShopifyCollection{
			ID:            id,
			Title:         edge.Node.Title,
			Handle:        edge.Node.Handle,
			ProductsCount: edge.Node.ProductsCount,
		})
	}
	return cols, nil
}

// collectionsViaPublicJSON reads the unauthenticated storefront endpoint.
// Last resort: it works even when the access token lacks collection read
// scope.
func (c *ShopifyClient) collectionsViaPublicJSON(ctx context.Context) ([]ShopifyCollection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.publicURL+"/collections.json", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("shopify: public collections returned %d", resp.StatusCode)
	}

	var payload struct {
		Collections []ShopifyCollection `json:"collections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	return payload.Collections, nil
}

// SearchCollections matches collections whose title or handle loosely
// matches the query (substring in either direction, with space/hyphen
// normalization).
func (c *ShopifyClient) SearchCollections(ctx context.Context, title string) ([]ShopifyCollection, error) {
	all, err := c.GetAllCollections(ctx)
	if err != nil {
		return nil, err
	}

	query := strings.ToLower(strings.TrimSpace(title))
	var matched []ShopifyCollection
	for _, col := range all {
		colTitle := strings.ToLower(col.Title)
		colHandle := strings.ToLower(col.Handle)
		if strings.Contains(colTitle, query) ||
			strings.Contains(query, colTitle) ||
			strings.Contains(colHandle, query) ||
			strings.Contains(colHandle, strings.ReplaceAll(query, " ", "-")) ||
			strings.Contains(colTitle, strings.ReplaceAll(query, "-", " ")) {
			matched = append(matched, col)
		}
	}
	return matched, nil
}

// ResolveCollectionProducts fetches a collection's products given any
// identifier an operator might paste in: a handle, a numeric id, or a
// (partial) title. Attempts run in that order; the first non-empty
// result wins and a failed attempt never aborts the chain.
func (c *ShopifyClient) ResolveCollectionProducts(ctx context.Context, identifier string, limit int) ([]ShopifyProduct, error) {
	if products, err := c.GetProductsByCollectionHandle(ctx, identifier, limit); err != nil {
		log.Debug().Str("identifier", identifier).Err(err).Msg("collection-by-handle attempt failed")
	} else if len(products) > 0 {
		return products, nil
	}

	if id, err := strconv.ParseInt(identifier, 10, 64); err == nil {
		if products, err := c.GetProductsByCollectionID(ctx, id, limit); err != nil {
			log.Debug().Int64("collection_id", id).Err(err).Msg("collection-by-id attempt failed")
		} else if len(products) > 0 {
			return products, nil
		}
	}

	cols, err := c.SearchCollections(ctx, identifier)
	if err != nil {
		log.Debug().Str("identifier", identifier).Err(err).Msg("collection title search failed")
		return nil, nil
	}
	if len(cols) == 0 {
		return nil, nil
	}

	col := cols[0]
	if col.Handle != "" {
		if products, err := c.GetProductsByCollectionHandle(ctx, col.Handle, limit); err == nil && len(products) > 0 {
			return products, nil
		}
	}
	if col.ID != 0 {
		if products, err := c.GetProductsByCollectionID(ctx, col.ID, limit); err == nil && len(products) > 0 {
			return products, nil
		}
	}
	return nil, nil
}
