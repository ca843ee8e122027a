// Package businessflow contains the business logic for the application.
package businessflow

import (
	"time"

	"github.com/waxal-io/waxal/app/dto"
	"github.com/waxal-io/waxal/models"
)

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds client-related information for request tracking
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

func normalizePagination(page, pageSize int) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = 20
	}
	if page < 1 {
		return 0, 0, ErrInvalidPage
	}
	if pageSize < 1 || pageSize > 100 {
		return 0, 0, ErrInvalidPageSize
	}
	return page, pageSize, nil
}

// ToCampaignDTO converts a campaign model for listing responses
func ToCampaignDTO(c models.Campaign) dto.CampaignDTO {
	return dto.CampaignDTO{
		UUID:            c.UUID.String(),
		BulkID:          c.BulkID,
		Channel:         c.Channel.String(),
		IsBulk:          c.IsBulk,
		TotalRecipients: int64(c.TotalRecipients),
		TotalSuccess:    int64(c.TotalSuccess),
		TotalFailed:     int64(c.TotalFailed),
		TotalPending:    int64(c.TotalPending),
		SuccessRate:     c.SuccessRate,
		FailureRate:     c.FailureRate,
		InProcess:       c.InProcess,
		RetryCount:      c.RetryCount,
		LastRetryDate:   c.LastRetryDate,
		IsSent:          c.IsSent,
		CreatedAt:       c.CreatedAt,
	}
}

// ToRecipientDTO converts a message record for listing and export responses
func ToRecipientDTO(m models.Message) dto.RecipientDTO {
	out := dto.RecipientDTO{
		Receiver:       m.Receiver,
		DeliveryStatus: string(m.DeliveryStatus),
		SendDate:       m.SendDate,
		MessageID:      m.MessageID,
		LastError:      m.LastError,
		Segments:       m.TotalMessage,
	}
	if m.Status != nil {
		s := string(*m.Status)
		out.Status = &s
	}
	return out
}

// ToCampaignHistoryDTO converts a lifecycle event for history responses
func ToCampaignHistoryDTO(h models.CampaignHistory) dto.CampaignHistoryDTO {
	out := dto.CampaignHistoryDTO{
		Action:       string(h.Action),
		TotalSent:    h.TotalSent,
		TotalFailed:  h.TotalFailed,
		TotalPending: h.TotalPending,
		ActorLogin:   h.ActorLogin,
		CreatedAt:    h.CreatedAt.UTC().Truncate(time.Second),
	}
	if h.Details != nil {
		out.Details = *h.Details
	}
	return out
}
