package models

import "time"

// CampaignAction enumerates audited lifecycle events of a campaign
type CampaignAction string

const (
	CampaignActionStopped CampaignAction = "stopped"
	CampaignActionRetried CampaignAction = "retried"
	CampaignActionReset   CampaignAction = "reset"
)

// CampaignHistory records one lifecycle event of a campaign with the counter
// snapshot observed when the event happened. Counts are taken from the message
// rows, not the campaign counters.
type CampaignHistory struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	CampaignID uint           `gorm:"not null;index:idx_campaign_histories_campaign_id" json:"campaign_id"`
	BulkID     string         `gorm:"size:64;not null;index:idx_campaign_histories_bulk_id" json:"bulk_id"`
	Action     CampaignAction `gorm:"size:20;not null" json:"action"`
	ActorLogin string         `gorm:"size:100;not null" json:"actor_login"`

	TotalSent    int64 `gorm:"not null;default:0" json:"total_sent"`
	TotalFailed  int64 `gorm:"not null;default:0" json:"total_failed"`
	TotalPending int64 `gorm:"not null;default:0" json:"total_pending"`

	Details *string `gorm:"type:text" json:"details,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_campaign_histories_created_at" json:"created_at"`
}

// TableName returns the table name for the model
func (CampaignHistory) TableName() string { return "campaign_histories" }

// CampaignHistoryFilter represents filter criteria for history entries
type CampaignHistoryFilter struct {
	ID         *uint           `json:"id,omitempty"`
	CampaignID *uint           `json:"campaign_id,omitempty"`
	BulkID     *string         `json:"bulk_id,omitempty"`
	Action     *CampaignAction `json:"action,omitempty"`
}
