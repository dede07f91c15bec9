package handler

import (
	"net/http"
	"sort"

	"priceops/internal/apierror"
	"priceops/internal/catalog"
	"priceops/internal/dto"

	"github.com/gin-gonic/gin"
)

// CatalogHandler serves the read-only catalog endpoints backing the
// operator's filter form.
type CatalogHandler struct {
	catalog *catalog.Service
}

func NewCatalogHandler(cat *catalog.Service) *CatalogHandler {
	return &CatalogHandler{catalog: cat}
}

// Collections godoc
// @Summary List every collection the shop exposes
// @Tags catalog
// @Produce json
// @Success 200 {object} dto.CollectionListResponse
// @Router /v1/collections [get]
func (h *CatalogHandler) Collections(c *gin.Context) {
	cols, err := h.catalog.ListCollections(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, apierror.New("failed to list collections"))
		return
	}

	data := make([]dto.CollectionItem, 0, len(cols))
	for _, col := range cols {
		data = append(data, dto.CollectionItem{
			ID:            col.ID,
			Title:         col.Title,
			Handle:        col.Handle,
			ProductsCount: col.ProductsCount,
		})
	}
	c.JSON(http.StatusOK, dto.CollectionListResponse{Collections: data, Count: len(data)})
}

// ProductsSample godoc
// @Summary Sample products plus distinct product types and vendors
// @Tags catalog
// @Produce json
// @Success 200 {object} dto.ProductSampleResponse
// @Router /v1/products/sample [get]
func (h *CatalogHandler) ProductsSample(c *gin.Context) {
	items, err := h.catalog.ListItems(c.Request.Context(), catalog.FilterSpec{Type: catalog.FilterAll}, 5)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, apierror.New("failed to fetch products"))
		return
	}

	typeSet := make(map[string]struct{})
	vendorSet := make(map[string]struct{})
	sample := make([]dto.ProductSampleItem, 0, 3)
	for i, item := range items {
		if item.ProductType != "" {
			typeSet[item.ProductType] = struct{}{}
		}
		if item.Vendor != "" {
			vendorSet[item.Vendor] = struct{}{}
		}
		if i < 3 {
			sample = append(sample, dto.ProductSampleItem{
				ID:          item.ID,
				Title:       item.Title,
				ProductType: item.ProductType,
				Vendor:      item.Vendor,
				UnitCount:   len(item.Units),
			})
		}
	}

	c.JSON(http.StatusOK, dto.ProductSampleResponse{
		SampleProducts:        sample,
		TotalFound:            len(items),
		AvailableProductTypes: sortedKeys(typeSet),
		AvailableVendors:      sortedKeys(vendorSet),
	})
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
