package dto

import (
	"time"
)

// CreateBulkCampaignRequest represents the request to create a bulk campaign
// from a template and a recipient group.
type CreateBulkCampaignRequest struct {
	CustomerID uint     `json:"-"`
	Channel    string   `json:"channel" validate:"required,oneof=SMS WHATSAPP"`
	TemplateID uint     `json:"template_id" validate:"required"`
	GroupID    uint     `json:"group_id" validate:"required"`
	Variables  []string `json:"variables,omitempty"`
}

// CreateSingleCampaignRequest represents the request to send to a single contact
type CreateSingleCampaignRequest struct {
	CustomerID uint     `json:"-"`
	Channel    string   `json:"channel" validate:"required,oneof=SMS WHATSAPP"`
	TemplateID uint     `json:"template_id" validate:"required"`
	ContactID  uint     `json:"contact_id" validate:"required"`
	Variables  []string `json:"variables,omitempty"`
}

// CreateCampaignResponse represents the response to campaign creation
type CreateCampaignResponse struct {
	UUID            string `json:"uuid"`
	BulkID          string `json:"bulk_id"`
	TotalRecipients int    `json:"total_recipients"`
	CreatedAt       string `json:"created_at"`
}

// RefreshCampaignRequest represents the request to re-resolve group membership
type RefreshCampaignRequest struct {
	UUID       string `json:"-"`
	CustomerID uint   `json:"-"`
}

// RefreshCampaignResponse reports how many recipient records the refresh added
type RefreshCampaignResponse struct {
	AddedRecipients int `json:"added_recipients"`
	TotalRecipients int `json:"total_recipients"`
}

// SendCampaignRequest represents the request to dispatch a campaign
type SendCampaignRequest struct {
	UUID       string `json:"-"`
	CustomerID uint   `json:"-"`
	IsTest     bool   `json:"is_test"`
}

// SendCampaignResponse acknowledges an accepted dispatch
type SendCampaignResponse struct {
	BulkID  string `json:"bulk_id"`
	Pending int64  `json:"pending"`
}

// CampaignRequest identifies one owned campaign in read-only operations
type CampaignRequest struct {
	UUID       string `json:"-"`
	CustomerID uint   `json:"-"`
}

// StopCampaignRequest represents the request to stop an active dispatch
type StopCampaignRequest struct {
	UUID       string `json:"-"`
	CustomerID uint   `json:"-"`
}

// StopCampaignResponse carries the authoritative counts at stop time
type StopCampaignResponse struct {
	Stopped bool  `json:"stopped"`
	Sent    int64 `json:"sent"`
	Failed  int64 `json:"failed"`
	Pending int64 `json:"pending"`
}

// ResetCampaignRequest represents the request to reset failed recipients
type ResetCampaignRequest struct {
	UUID       string `json:"-"`
	CustomerID uint   `json:"-"`
}

// ResetCampaignResponse reports how many records moved back to pending
type ResetCampaignResponse struct {
	ResetCount int64 `json:"reset_count"`
}

// ResetNeededResponse reports whether any failed records exist
type ResetNeededResponse struct {
	ResetNeeded bool `json:"reset_needed"`
}

// ResetStatisticsResponse is the pending/success/failed snapshot
type ResetStatisticsResponse struct {
	Pending int64 `json:"pending"`
	Success int64 `json:"success"`
	Failed  int64 `json:"failed"`
}

// CampaignProgressResponse represents live dispatch progress
type CampaignProgressResponse struct {
	Total           int64   `json:"total"`
	Sent            int64   `json:"sent"`
	Failed          int64   `json:"failed"`
	Pending         int64   `json:"pending"`
	PercentComplete float64 `json:"percent_complete"`
	RatePerSecond   float64 `json:"rate_per_second"`
	ETASeconds      int64   `json:"eta_seconds"`
	InProcess       bool    `json:"in_process"`
}

// ListCampaignsRequest represents the paginated campaign listing request
type ListCampaignsRequest struct {
	CustomerID uint    `json:"-"`
	Channel    *string `json:"channel,omitempty" validate:"omitempty,oneof=SMS WHATSAPP"`
	Page       int     `json:"page" validate:"omitempty,min=1"`
	PageSize   int     `json:"page_size" validate:"omitempty,min=1,max=100"`
}

// CampaignDTO represents one campaign in listings
type CampaignDTO struct {
	UUID            string     `json:"uuid"`
	BulkID          string     `json:"bulk_id"`
	Channel         string     `json:"channel"`
	IsBulk          bool       `json:"is_bulk"`
	TotalRecipients int64      `json:"total_recipients"`
	TotalSuccess    int64      `json:"total_success"`
	TotalFailed     int64      `json:"total_failed"`
	TotalPending    int64      `json:"total_pending"`
	SuccessRate     float64    `json:"success_rate"`
	FailureRate     float64    `json:"failure_rate"`
	InProcess       bool       `json:"in_process"`
	RetryCount      int        `json:"retry_count"`
	LastRetryDate   *time.Time `json:"last_retry_date,omitempty"`
	IsSent          *bool      `json:"is_sent,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// ListCampaignsResponse represents the paginated campaign listing response
type ListCampaignsResponse struct {
	Items      []CampaignDTO `json:"items"`
	Pagination Pagination    `json:"pagination"`
}

// ListRecipientsRequest represents the filtered recipient listing request
type ListRecipientsRequest struct {
	UUID           string     `json:"-"`
	CustomerID     uint       `json:"-"`
	DeliveryStatus *string    `json:"delivery_status,omitempty" validate:"omitempty,oneof=pending sent failed"`
	Receiver       *string    `json:"receiver,omitempty"`
	SentAfter      *time.Time `json:"sent_after,omitempty"`
	SentBefore     *time.Time `json:"sent_before,omitempty"`
	Page           int        `json:"page" validate:"omitempty,min=1"`
	PageSize       int        `json:"page_size" validate:"omitempty,min=1,max=100"`
}

// RecipientDTO represents one recipient message record in listings and exports
type RecipientDTO struct {
	Receiver       string     `json:"receiver"`
	DeliveryStatus string     `json:"delivery_status"`
	Status         *string    `json:"status,omitempty"`
	SendDate       *time.Time `json:"send_date,omitempty"`
	MessageID      *string    `json:"message_id,omitempty"`
	LastError      *string    `json:"last_error,omitempty"`
	Segments       int        `json:"segments"`
}

// ListRecipientsResponse represents the filtered recipient listing response
type ListRecipientsResponse struct {
	Items      []RecipientDTO `json:"items"`
	Pagination Pagination     `json:"pagination"`
}

// DeleteCampaignRequest represents the request to delete a campaign
type DeleteCampaignRequest struct {
	UUID       string `json:"-"`
	CustomerID uint   `json:"-"`
}

// CampaignHistoryDTO represents one lifecycle event in history listings
type CampaignHistoryDTO struct {
	Action       string    `json:"action"`
	TotalSent    int64     `json:"total_sent"`
	TotalFailed  int64     `json:"total_failed"`
	TotalPending int64     `json:"total_pending"`
	ActorLogin   string    `json:"actor_login"`
	Details      string    `json:"details,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
