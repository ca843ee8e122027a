package models

import (
	"time"

	"github.com/lib/pq"
)

// Template is a reusable message body. SMS templates carry the final text;
// WhatsApp templates reference a provider-registered template name plus its
// ordered variable placeholders.
type Template struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	CustomerID uint           `gorm:"not null;index:idx_templates_customer_id" json:"customer_id"`
	Name       string         `gorm:"size:100;not null" json:"name"`
	Channel    MessageChannel `gorm:"type:message_channel;not null" json:"channel"`
	Content    string         `gorm:"type:text;not null" json:"content"`
	Variables  pq.StringArray `gorm:"type:text[]" json:"variables,omitempty"`
	Language   string         `gorm:"size:10;default:'fr'" json:"language"`

	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (Template) TableName() string { return "templates" }

// TemplateFilter represents filter criteria for templates
type TemplateFilter struct {
	ID         *uint           `json:"id,omitempty"`
	CustomerID *uint           `json:"customer_id,omitempty"`
	Name       *string         `json:"name,omitempty"`
	Channel    *MessageChannel `json:"channel,omitempty"`
}
