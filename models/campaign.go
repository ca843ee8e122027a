package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// MessageChannel is the outbound channel of a campaign or message
type MessageChannel string

const (
	ChannelSMS      MessageChannel = "SMS"
	ChannelWhatsApp MessageChannel = "WHATSAPP"
)

// String returns the string representation of the channel
func (c MessageChannel) String() string {
	return string(c)
}

// Valid checks if the channel is valid
func (c MessageChannel) Valid() bool {
	switch c {
	case ChannelSMS, ChannelWhatsApp:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for MessageChannel
func (c *MessageChannel) Scan(value any) error {
	if value == nil {
		*c = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*c = MessageChannel(v)
	case []byte:
		*c = MessageChannel(string(v))
	default:
		return fmt.Errorf("cannot scan %T into MessageChannel", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for MessageChannel
func (c MessageChannel) Value() (driver.Value, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid MessageChannel: %s", c)
	}
	return string(c), nil
}

// Campaign represents one outbound send operation, either a single message or a
// bulk blast to a group. All per-recipient Message rows of a bulk campaign share
// its BulkID.
type Campaign struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UUID        uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uk_campaigns_uuid" json:"uuid"`
	BulkID      string         `gorm:"size:64;not null;uniqueIndex:uk_campaigns_bulk_id" json:"bulk_id"`
	CustomerID  uint           `gorm:"not null;index:idx_campaigns_customer_id" json:"customer_id"`
	SenderLogin string         `gorm:"size:100;not null" json:"sender_login"`
	Channel     MessageChannel `gorm:"type:message_channel;not null" json:"channel"`
	IsBulk      bool           `gorm:"not null;default:false" json:"is_bulk"`
	TemplateID  *uint          `gorm:"index:idx_campaigns_template_id" json:"template_id,omitempty"`
	GroupID     *uint          `json:"group_id,omitempty"`

	// Variables are the values supplied at creation, positionally matched to
	// the template's placeholder names. WhatsApp dispatch forwards them as the
	// template parameters; refresh renders new recipient bodies from them.
	Variables pq.StringArray `gorm:"type:text[]" json:"variables,omitempty"`

	// Aggregate delivery counters. TotalSuccess + TotalFailed + TotalPending
	// must equal TotalRecipients after every counter update.
	TotalRecipients int     `gorm:"not null;default:0" json:"total_recipients"`
	TotalSuccess    int     `gorm:"not null;default:0" json:"total_success"`
	TotalFailed     int     `gorm:"not null;default:0" json:"total_failed"`
	TotalPending    int     `gorm:"not null;default:0" json:"total_pending"`
	SuccessRate     float64 `gorm:"not null;default:0" json:"success_rate"`
	FailureRate     float64 `gorm:"not null;default:0" json:"failure_rate"`

	// InProcess marks the campaign as currently owned by a dispatch run. It acts
	// as a single-dispatcher-at-a-time lock at campaign granularity.
	InProcess     bool       `gorm:"not null;default:false;index:idx_campaigns_in_process" json:"in_process"`
	RetryCount    int        `gorm:"not null;default:0" json:"retry_count"`
	LastRetryDate *time.Time `json:"last_retry_date,omitempty"`

	// IsSent is tri-state: nil while the campaign has not reached a terminal
	// outcome, true/false once a terminal single-send outcome is known.
	IsSent *bool `json:"is_sent,omitempty"`

	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_campaigns_created_at" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	// Relations
	Messages []Message `gorm:"foreignKey:CampaignID;constraint:OnDelete:CASCADE" json:"messages,omitempty"`
	Template *Template `gorm:"foreignKey:TemplateID;references:ID" json:"template,omitempty"`
}

// TableName returns the table name for the model
func (Campaign) TableName() string {
	return "campaigns"
}

// BeforeCreate is called before creating a new record
func (c *Campaign) BeforeCreate() error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (c *Campaign) BeforeUpdate() error {
	now := time.Now().UTC()
	c.UpdatedAt = &now
	return nil
}

// CountersConsistent reports whether the aggregate counters still partition the
// recipient set.
func (c *Campaign) CountersConsistent() bool {
	return c.TotalSuccess >= 0 && c.TotalFailed >= 0 && c.TotalPending >= 0 &&
		c.TotalSuccess+c.TotalFailed+c.TotalPending == c.TotalRecipients
}

// RecomputeRates refreshes SuccessRate and FailureRate as percentages of the
// recipient total.
func (c *Campaign) RecomputeRates() {
	total := c.TotalSuccess + c.TotalFailed + c.TotalPending
	if total == 0 {
		c.SuccessRate = 0
		c.FailureRate = 0
		return
	}
	c.SuccessRate = float64(c.TotalSuccess) / float64(total) * 100
	c.FailureRate = float64(c.TotalFailed) / float64(total) * 100
}

// IsTerminal reports whether dispatching has nothing left to do
func (c *Campaign) IsTerminal() bool {
	return c.TotalPending == 0
}

// CampaignFilter represents filter criteria for campaigns
type CampaignFilter struct {
	ID            *uint           `json:"id,omitempty"`
	UUID          *uuid.UUID      `json:"uuid,omitempty"`
	BulkID        *string         `json:"bulk_id,omitempty"`
	CustomerID    *uint           `json:"customer_id,omitempty"`
	SenderLogin   *string         `json:"sender_login,omitempty"`
	Channel       *MessageChannel `json:"channel,omitempty"`
	IsBulk        *bool           `json:"is_bulk,omitempty"`
	InProcess     *bool           `json:"in_process,omitempty"`
	CreatedAfter  *time.Time      `json:"created_after,omitempty"`
	CreatedBefore *time.Time      `json:"created_before,omitempty"`
}
