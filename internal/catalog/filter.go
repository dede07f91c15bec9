package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// FilterType selects how the candidate set for a batch run is chosen.
type FilterType string

const (
	FilterAll         FilterType = "all"
	FilterCollection  FilterType = "collection"
	FilterProductType FilterType = "product_type"
	FilterVendor      FilterType = "vendor"
)

// ErrUnknownFilterType is returned for filter types outside the closed set.
var ErrUnknownFilterType = errors.New("unknown filter type")

// ErrFilterValueRequired is returned when a non-all filter has no value.
var ErrFilterValueRequired = errors.New("filter value is required for this filter type")

// FilterSpec is the validated selection criterion for a batch or preview.
type FilterSpec struct {
	Type  FilterType
	Value string
}

// ParseFilter validates the wire values into a FilterSpec. Unknown types
// and missing values are rejected here, never inside the item loop.
func ParseFilter(filterType, filterValue string) (FilterSpec, error) {
	t := FilterType(strings.TrimSpace(filterType))
	if t == "" {
		t = FilterAll
	}
	switch t {
	case FilterAll:
		return FilterSpec{Type: FilterAll}, nil
	case FilterCollection, FilterProductType, FilterVendor:
		v := strings.TrimSpace(filterValue)
		if v == "" {
			return FilterSpec{}, fmt.Errorf("%w: %s", ErrFilterValueRequired, t)
		}
		return FilterSpec{Type: t, Value: v}, nil
	default:
		return FilterSpec{}, fmt.Errorf("%w: %q", ErrUnknownFilterType, filterType)
	}
}

func (f FilterSpec) String() string {
	if f.Type == FilterAll {
		return "all"
	}
	return fmt.Sprintf("%s=%s", f.Type, f.Value)
}
