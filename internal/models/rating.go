package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Category is a textual feedback grade.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryExcellent
	CategoryGood
	CategoryAverage
	CategoryPoor
	CategoryVeryPoor
)

var categoryNames = map[Category]string{
	CategoryUnknown:   "unknown",
	CategoryExcellent: "excellent",
	CategoryGood:      "good",
	CategoryAverage:   "average",
	CategoryPoor:      "poor",
	CategoryVeryPoor:  "very poor",
}

// String returns the lowercase grade name.
func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "unknown"
}

// ParseCategory maps a grade name to a Category, ignoring case and
// surrounding whitespace. Unrecognized text yields CategoryUnknown.
func ParseCategory(s string) Category {
	normalized := strings.ToLower(strings.TrimSpace(s))
	for c, name := range categoryNames {
		if c != CategoryUnknown && name == normalized {
			return c
		}
	}
	return CategoryUnknown
}

type ratingKind uint8

const (
	ratingNumeric ratingKind = iota + 1
	ratingCategory
)

// Rating is external feedback about one agent: either a numeric value or a
// category. The zero value is an unknown category.
type Rating struct {
	kind     ratingKind
	value    float64
	category Category
}

// NumericRating wraps a numeric feedback value.
func NumericRating(v float64) Rating {
	return Rating{kind: ratingNumeric, value: v}
}

// CategoryRating wraps a categorical feedback value.
func CategoryRating(c Category) Rating {
	return Rating{kind: ratingCategory, category: c}
}

// ParseRating reads a rating from text. Text that parses as a finite float
// is numeric; anything else is treated as a category name, so "inf" and
// "nan" are unknown.
func ParseRating(s string) Rating {
	if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && isFinite(v) {
		return NumericRating(v)
	}
	return CategoryRating(ParseCategory(s))
}

// RatingFromAny converts a decoded JSON value into a Rating.
// Numbers become numeric ratings, strings go through ParseCategory, and any
// other value is an unknown category.
func RatingFromAny(v any) Rating {
	switch val := v.(type) {
	case float64:
		return NumericRating(val)
	case float32:
		return NumericRating(float64(val))
	case int:
		return NumericRating(float64(val))
	case int64:
		return NumericRating(float64(val))
	case json.Number:
		if f, err := val.Float64(); err == nil && isFinite(f) {
			return NumericRating(f)
		}
		return CategoryRating(CategoryUnknown)
	case string:
		return CategoryRating(ParseCategory(val))
	default:
		return CategoryRating(CategoryUnknown)
	}
}

// IsNumeric reports whether the rating carries a number.
func (r Rating) IsNumeric() bool { return r.kind == ratingNumeric }

// Numeric returns the numeric value and whether the rating is numeric.
func (r Rating) Numeric() (float64, bool) {
	return r.value, r.kind == ratingNumeric
}

// Category returns the category and whether the rating is categorical.
// The zero Rating reports CategoryUnknown.
func (r Rating) Category() (Category, bool) {
	if r.kind == ratingNumeric {
		return CategoryUnknown, false
	}
	return r.category, true
}

// String renders the rating for logs.
func (r Rating) String() string {
	if r.kind == ratingNumeric {
		return strconv.FormatFloat(r.value, 'g', -1, 64)
	}
	return r.category.String()
}

// MarshalJSON encodes numeric ratings as numbers and categories as strings.
func (r Rating) MarshalJSON() ([]byte, error) {
	if r.kind == ratingNumeric {
		return json.Marshal(r.value)
	}
	return json.Marshal(r.category.String())
}

// UnmarshalJSON accepts either a JSON number or a JSON string.
func (r *Rating) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding rating: %w", err)
	}
	*r = RatingFromAny(raw)
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
