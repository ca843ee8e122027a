package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// DeliveryStatus enumerates the delivery state of a recipient message record.
// Transitions only go pending -> {sent, failed}; a reset moves failed back to
// pending, never sent to anything.
type DeliveryStatus string

const (
	DeliveryStatusPending DeliveryStatus = "pending"
	DeliveryStatusSent    DeliveryStatus = "sent"
	DeliveryStatusFailed  DeliveryStatus = "failed"
)

// Valid checks if the status is valid
func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliveryStatusPending, DeliveryStatusSent, DeliveryStatusFailed:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for DeliveryStatus
func (s *DeliveryStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = DeliveryStatus(v)
	case []byte:
		*s = DeliveryStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into DeliveryStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for DeliveryStatus
func (s DeliveryStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid DeliveryStatus: %s", s)
	}
	return string(s), nil
}

// MessageStatus is the provider-facing terminal status of a message
type MessageStatus string

const (
	MessageStatusSent   MessageStatus = "SENT"
	MessageStatusFailed MessageStatus = "FAILED"
)

// Message records delivery outcome for one recipient within a campaign. Rows
// are owned by their parent campaign and deleted in cascade with it.
type Message struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	CampaignID     uint           `gorm:"not null;index:idx_messages_campaign_id" json:"campaign_id"`
	BulkID         string         `gorm:"size:64;not null;index:idx_messages_bulk_id" json:"bulk_id"`
	Receiver       string         `gorm:"size:20;not null;index:idx_messages_receiver" json:"receiver"`
	Body           string         `gorm:"type:text" json:"body"`
	Channel        MessageChannel `gorm:"type:message_channel;not null" json:"channel"`
	Status         *MessageStatus `gorm:"size:10" json:"status,omitempty"`
	DeliveryStatus DeliveryStatus `gorm:"type:delivery_status;not null;default:'pending';index:idx_messages_delivery_status" json:"delivery_status"`
	SendDate       *time.Time     `json:"send_date,omitempty"`
	MessageID      *string        `gorm:"size:64" json:"message_id,omitempty"`
	LastError      *string        `gorm:"type:text" json:"last_error,omitempty"`

	// TotalMessage is the SMS segment count used for pricing
	TotalMessage int `gorm:"not null;default:1" json:"total_message"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_messages_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

// TableName returns the table name for the model
func (Message) TableName() string { return "messages" }

// MessageFilter provides filter fields for repository queries
type MessageFilter struct {
	ID             *uint
	CampaignID     *uint
	BulkID         *string
	Receiver       *string
	ReceiverLike   *string
	DeliveryStatus *DeliveryStatus
	Channel        *MessageChannel
	SentAfter      *time.Time
	SentBefore     *time.Time
	CreatedAfter   *time.Time
	CreatedBefore  *time.Time
}

// StatusCounts is a per-campaign snapshot of recipient records grouped by
// delivery status, read straight from the message rows rather than the
// possibly-stale campaign counters.
type StatusCounts struct {
	Pending int64 `json:"pending"`
	Sent    int64 `json:"sent"`
	Failed  int64 `json:"failed"`
}

// Total returns the number of recipient records covered by the snapshot
func (s StatusCounts) Total() int64 {
	return s.Pending + s.Sent + s.Failed
}
