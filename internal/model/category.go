package model

import (
	"errors"
	"fmt"
	"strings"
)

// Category is the closed set of labels an email can be classified into.
type Category string

const (
	CategoryPromotional Category = "Promotional"
	CategoryWork        Category = "Work"
	CategoryPersonal    Category = "Personal"
)

// ErrUnknownCategory is returned when text does not name a known category.
var ErrUnknownCategory = errors.New("unknown category")

// AllCategories returns every category in a stable order.
func AllCategories() []Category {
	return []Category{CategoryPromotional, CategoryWork, CategoryPersonal}
}

// Valid reports whether c is a member of the closed set.
func (c Category) Valid() bool {
	switch c {
	case CategoryPromotional, CategoryWork, CategoryPersonal:
		return true
	}
	return false
}

// ParseCategory maps free text such as "work", "Work." or
// "Category: Personal" to a Category. An exact (case-insensitive) match
// wins; otherwise the text must mention exactly one category name.
func ParseCategory(text string) (Category, error) {
	cleaned := strings.Trim(strings.TrimSpace(text), ".!\"'`*")
	for _, c := range AllCategories() {
		if strings.EqualFold(cleaned, string(c)) {
			return c, nil
		}
	}

	lower := strings.ToLower(cleaned)
	var found []Category
	for _, c := range AllCategories() {
		if strings.Contains(lower, strings.ToLower(string(c))) {
			found = append(found, c)
		}
	}
	if len(found) == 1 {
		return found[0], nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, text)
}

// ParseCategories parses each name and silently drops the unknown ones,
// keeping the first occurrence of duplicates.
func ParseCategories(names []string) []Category {
	var out []Category
	seen := make(map[Category]bool)
	for _, n := range names {
		c, err := ParseCategory(n)
		if err != nil || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// CategoryNames converts categories to their string form.
func CategoryNames(cats []Category) []string {
	names := make([]string, 0, len(cats))
	for _, c := range cats {
		names = append(names, string(c))
	}
	return names
}
