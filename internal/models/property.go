// internal/models/property.go
package models

type Property struct {
	BaseModel
	Name           string `json:"name" gorm:"size:255;not null;index"`
	Address        string `json:"address" gorm:"size:500"`
	City           string `json:"city" gorm:"size:100"`
	State          string `json:"state" gorm:"size:50"`
	ZipCode        string `json:"zip_code" gorm:"size:20"`
	APContactName  string `json:"ap_contact_name" gorm:"size:255"`
	APContactEmail string `json:"ap_contact_email" gorm:"size:255"`
	APContactCc    string `json:"ap_contact_cc" gorm:"size:500"`
	IsActive       bool   `json:"is_active" gorm:"default:true"`

	// Relationships
	Jobs           []Job           `json:"jobs,omitempty" gorm:"foreignKey:PropertyID"`
	BillingDetails []BillingDetail `json:"billing_details,omitempty" gorm:"foreignKey:PropertyID"`
}

// UnitSize is a display label for apartment floor plans ("1 Bed 1 Bath",
// "3 Bed 2 Bath"...) that rate-card rows are keyed on.
type UnitSize struct {
	BaseModel
	Label     string `json:"label" gorm:"uniqueIndex;size:100;not null"`
	SortOrder int    `json:"sort_order" gorm:"default:0"`
}
