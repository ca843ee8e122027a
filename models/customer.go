package models

import (
	"time"

	"github.com/google/uuid"
)

// CustomerRole enumerates the account roles relevant to owner resolution
type CustomerRole string

const (
	RoleAdmin   CustomerRole = "ADMIN"
	RolePartner CustomerRole = "PARTNER"
	RoleUser    CustomerRole = "USER"
)

// Customer is a tenant account. Authentication lives outside this service; the
// record exists so campaigns, subscriptions and contacts have an owner and so
// the effective owner of a request can be resolved once, uniformly.
type Customer struct {
	ID    uint         `gorm:"primaryKey" json:"id"`
	UUID  uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:uk_customers_uuid" json:"uuid"`
	Login string       `gorm:"size:100;not null;uniqueIndex:uk_customers_login" json:"login"`
	Role  CustomerRole `gorm:"size:20;not null;default:'USER'" json:"role"`

	// PartnerID links a managed account to the partner operating on its behalf
	PartnerID *uint `gorm:"index:idx_customers_partner_id" json:"partner_id,omitempty"`

	IsActive  bool       `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (Customer) TableName() string { return "customers" }

// BeforeCreate is called before creating a new record
func (c *Customer) BeforeCreate() error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	return nil
}

// CustomerFilter represents filter criteria for customers
type CustomerFilter struct {
	ID        *uint         `json:"id,omitempty"`
	UUID      *uuid.UUID    `json:"uuid,omitempty"`
	Login     *string       `json:"login,omitempty"`
	Role      *CustomerRole `json:"role,omitempty"`
	PartnerID *uint         `json:"partner_id,omitempty"`
}
