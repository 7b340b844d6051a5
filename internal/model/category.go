package model

import "time"

// Category groups transactions for reporting and budgeting.
type Category struct {
	CreatedAt time.Time
	UpdatedAt time.Time
	ID        string
	Name      string
	Icon      string
	ColorHex  string
	IsDefault bool
}

// CategoryNames indexes categories by id.
func CategoryNames(categories []Category) map[string]string {
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}
	return names
}
