package handler

import (
	"errors"
	"net/http"
	"reflect"

	"priceops/internal/apierror"
	"priceops/internal/batch"
	"priceops/internal/catalog"
	"priceops/internal/pricing"
	"priceops/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// gte=0, lt=100 work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails —
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid JSON: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		fields := make(map[string]string)
		for _, fe := range err.(validator.ValidationErrors) {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// writeServiceError maps known service errors onto HTTP statuses.
// Unknown errors become an opaque 500 — internals never leak to clients.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pricing.ErrUnknownStrategy),
		errors.Is(err, pricing.ErrTargetDiscountRequired),
		errors.Is(err, pricing.ErrInvalidTargetDiscount),
		errors.Is(err, catalog.ErrUnknownFilterType),
		errors.Is(err, catalog.ErrFilterValueRequired),
		errors.Is(err, service.ErrNothingToRollback):
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
	case errors.Is(err, service.ErrNoMatchingItems):
		c.JSON(http.StatusNotFound, apierror.New(err.Error()))
	case errors.Is(err, batch.ErrJobNotFound):
		c.JSON(http.StatusNotFound, apierror.New("job not found"))
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, apierror.New("session not found"))
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, apierror.New("internal server error"))
	}
}
