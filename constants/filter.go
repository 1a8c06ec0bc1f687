package constants

import (
	"fmt"
	"strings"
)

// Filter is the color filter chosen for a captured image.
type Filter string

const (
	FilterNone       Filter = "none"
	FilterVintage    Filter = "vintage"
	FilterWarm       Filter = "warm"
	FilterCool       Filter = "cool"
	FilterBlackWhite Filter = "blackwhite"
	FilterSepia      Filter = "sepia"
	FilterVibrant    Filter = "vibrant"
	FilterPastel     Filter = "pastel"
)

var allFilters = []Filter{
	FilterNone,
	FilterVintage,
	FilterWarm,
	FilterCool,
	FilterBlackWhite,
	FilterSepia,
	FilterVibrant,
	FilterPastel,
}

// Filters returns every supported filter in display order.
func Filters() []Filter {
	out := make([]Filter, len(allFilters))
	copy(out, allFilters)
	return out
}

func FiltersAsStringSlice() []string {
	result := make([]string, len(allFilters))
	for i, f := range allFilters {
		result[i] = string(f)
	}
	return result
}

// ParseFilter canonicalizes user input into a Filter. Empty input means none.
func ParseFilter(input string) (Filter, error) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return FilterNone, nil
	}

	synonyms := map[string]Filter{
		"original":    FilterNone,
		"black-white": FilterBlackWhite,
		"black_white": FilterBlackWhite,
		"bw":          FilterBlackWhite,
		"b&w":         FilterBlackWhite,
		"grayscale":   FilterBlackWhite,
		"greyscale":   FilterBlackWhite,
		"mono":        FilterBlackWhite,
	}
	if f, ok := synonyms[normalized]; ok {
		return f, nil
	}

	for _, f := range allFilters {
		if normalized == string(f) {
			return f, nil
		}
	}
	return FilterNone, fmt.Errorf("unknown filter %q (allowed: %s)", input, strings.Join(FiltersAsStringSlice(), ", "))
}
