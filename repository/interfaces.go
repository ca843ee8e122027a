// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/waxal-io/waxal/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Update(ctx context.Context, entity *T) error
	Count(ctx context.Context, filter F) (int64, error)
}

// CampaignRepository defines operations for campaign records
type CampaignRepository interface {
	Repository[models.Campaign, models.CampaignFilter]
	ByUUID(ctx context.Context, uuid uuid.UUID) (*models.Campaign, error)
	ByBulkID(ctx context.Context, bulkID string) (*models.Campaign, error)
	BulkIDExists(ctx context.Context, bulkID string) (bool, error)

	// ClaimDispatch atomically flips in_process false -> true. It returns false
	// when another dispatch run already owns the campaign.
	ClaimDispatch(ctx context.Context, campaignID uint) (bool, error)
	ReleaseDispatch(ctx context.Context, campaignID uint) error

	// ApplyResult atomically moves count recipients out of total_pending into
	// total_success (delivered) or total_failed, keeping the counter partition
	// intact under parallel workers.
	ApplyResult(ctx context.Context, campaignID uint, delivered bool, count int) error
	AddRecipients(ctx context.Context, campaignID uint, count int) error
	ApplyReset(ctx context.Context, campaignID uint, count int) error
	SyncRates(ctx context.Context, campaignID uint) error
	MarkRetry(ctx context.Context, campaignID uint) error
	SetIsSent(ctx context.Context, campaignID uint, isSent *bool) error
	Delete(ctx context.Context, campaignID uint) error
}

// MessageRepository defines operations for per-recipient message records
type MessageRepository interface {
	Repository[models.Message, models.MessageFilter]
	PendingBatch(ctx context.Context, bulkID string, size int) ([]*models.Message, error)
	CountByStatus(ctx context.Context, bulkID string) (models.StatusCounts, error)
	ExistingReceivers(ctx context.Context, bulkID string) ([]string, error)
	MarkSent(ctx context.Context, messageID uint, providerID string) error
	MarkFailed(ctx context.Context, messageID uint, reason string) error

	// ResetFailed moves every failed record of the campaign back to pending and
	// clears its last error, returning the number of rows moved.
	ResetFailed(ctx context.Context, bulkID string) (int64, error)
	HasFailed(ctx context.Context, bulkID string) (bool, error)
	DeleteByCampaign(ctx context.Context, campaignID uint) error
}

// SubscriptionRepository defines operations for quota ledgers
type SubscriptionRepository interface {
	Repository[models.Subscription, models.SubscriptionFilter]
	ByCustomerID(ctx context.Context, customerID uint) (*models.Subscription, error)

	// DecrementCredit atomically lowers the channel credit by count, floored at
	// zero. Unlimited subscriptions are left untouched.
	DecrementCredit(ctx context.Context, customerID uint, channel models.MessageChannel, count int64) error
}

// ContactRepository defines operations for contacts and groups
type ContactRepository interface {
	Repository[models.Contact, models.ContactFilter]
	ListByGroup(ctx context.Context, groupID uint) ([]*models.Contact, error)
	GroupByID(ctx context.Context, groupID uint) (*models.Group, error)
}

// CampaignHistoryRepository defines operations for campaign lifecycle events
type CampaignHistoryRepository interface {
	Repository[models.CampaignHistory, models.CampaignHistoryFilter]
	ByCampaign(ctx context.Context, campaignID uint) ([]*models.CampaignHistory, error)
}

// CustomerRepository defines operations for tenant accounts
type CustomerRepository interface {
	Repository[models.Customer, models.CustomerFilter]
	ByLogin(ctx context.Context, login string) (*models.Customer, error)
}

// TemplateRepository defines operations for message templates
type TemplateRepository interface {
	Repository[models.Template, models.TemplateFilter]
}
