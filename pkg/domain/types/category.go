package types

import "fmt"

// Category classifies what kind of knowledge a memory captures
type Category string

const (
	CategoryDecision     Category = "DECISION"
	CategoryPattern      Category = "PATTERN"
	CategoryAntipattern  Category = "ANTIPATTERN"
	CategoryDomain       Category = "DOMAIN"
	CategoryBug          Category = "BUG"
	CategoryOptimization Category = "OPTIMIZATION"
	CategoryIntegration  Category = "INTEGRATION"
)

// AllCategories returns all valid memory categories
func AllCategories() []Category {
	return []Category{
		CategoryDecision,
		CategoryPattern,
		CategoryAntipattern,
		CategoryDomain,
		CategoryBug,
		CategoryOptimization,
		CategoryIntegration,
	}
}

// IsValid checks if the category is valid
func (c Category) IsValid() bool {
	switch c {
	case CategoryDecision,
		CategoryPattern,
		CategoryAntipattern,
		CategoryDomain,
		CategoryBug,
		CategoryOptimization,
		CategoryIntegration:
		return true
	default:
		return false
	}
}

// String returns the string representation of the category
func (c Category) String() string {
	return string(c)
}

// ParseCategory parses a string into a Category
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.IsValid() {
		return "", fmt.Errorf("invalid memory category: %s", s)
	}
	return c, nil
}
