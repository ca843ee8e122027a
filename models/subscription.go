package models

import (
	"time"

	"github.com/google/uuid"
)

// Subscription holds the remaining message credit of one tenant, per channel.
// A nil credit means unlimited. Credit never goes below zero; decrements happen
// only after a confirmed successful send.
type Subscription struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UUID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_subscriptions_uuid" json:"uuid"`
	CustomerID uint      `gorm:"not null;uniqueIndex:uk_subscriptions_customer_id" json:"customer_id"`
	Label      string    `gorm:"size:100" json:"label"`

	SMSCredit      *int64 `json:"sms_credit,omitempty"`
	WhatsAppCredit *int64 `json:"whatsapp_credit,omitempty"`

	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (Subscription) TableName() string { return "subscriptions" }

// BeforeCreate is called before creating a new record
func (s *Subscription) BeforeCreate() error {
	if s.UUID == uuid.Nil {
		s.UUID = uuid.New()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	return nil
}

// RemainingFor returns the remaining credit for a channel, nil meaning unlimited
func (s *Subscription) RemainingFor(channel MessageChannel) *int64 {
	switch channel {
	case ChannelWhatsApp:
		return s.WhatsAppCredit
	default:
		return s.SMSCredit
	}
}

// IsUnlimited reports whether the subscription has no cap on the channel
func (s *Subscription) IsUnlimited(channel MessageChannel) bool {
	return s.RemainingFor(channel) == nil
}

// SubscriptionFilter represents filter criteria for subscriptions
type SubscriptionFilter struct {
	ID         *uint      `json:"id,omitempty"`
	UUID       *uuid.UUID `json:"uuid,omitempty"`
	CustomerID *uint      `json:"customer_id,omitempty"`
}
