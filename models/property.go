package models

import "gorm.io/gorm"

// Property represents a listing used as a variable source for templates
type Property struct {
	gorm.Model
	AgentID uint `gorm:"not null;index" json:"agent_id"`

	Title      string  `gorm:"not null" json:"title"`
	Suburb     string  `json:"suburb"`
	City       string  `json:"city"`
	Price      float64 `gorm:"default:0" json:"price"`
	Bedrooms   int     `gorm:"default:0" json:"bedrooms"`
	Bathrooms  int     `gorm:"default:0" json:"bathrooms"`
	ErfSize    int     `gorm:"default:0" json:"erf_size"` // square metres
	ListingURL string  `json:"listing_url"`

	IsActive bool `gorm:"default:true" json:"is_active"`
}

// TemplateVariables exposes the property fields under the names templates use
func (p *Property) TemplateVariables() map[string]string {
	return map[string]string{
		"property_title":     p.Title,
		"property_suburb":    p.Suburb,
		"property_city":      p.City,
		"property_price":     formatRand(p.Price),
		"property_bedrooms":  itoa(p.Bedrooms),
		"property_bathrooms": itoa(p.Bathrooms),
		"property_url":       p.ListingURL,
	}
}
