package models

import "time"

// Contact is one addressable recipient owned by a tenant
type Contact struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	CustomerID uint   `gorm:"not null;index:idx_contacts_customer_id" json:"customer_id"`
	FirstName  string `gorm:"size:100" json:"first_name"`
	LastName   string `gorm:"size:100" json:"last_name"`
	Phone      string `gorm:"size:20;not null;index:idx_contacts_phone" json:"phone"`

	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (Contact) TableName() string { return "contacts" }

// Group is a named set of contacts used as the recipient set of bulk campaigns
type Group struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	CustomerID uint   `gorm:"not null;index:idx_groups_customer_id" json:"customer_id"`
	Name       string `gorm:"size:100;not null" json:"name"`
	IsTest     bool   `gorm:"not null;default:false" json:"is_test"`

	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	// Relations
	Contacts []Contact `gorm:"many2many:group_contacts" json:"contacts,omitempty"`
}

// TableName returns the table name for the model
func (Group) TableName() string { return "groups" }

// ContactFilter represents filter criteria for contacts
type ContactFilter struct {
	ID         *uint   `json:"id,omitempty"`
	CustomerID *uint   `json:"customer_id,omitempty"`
	Phone      *string `json:"phone,omitempty"`
}
