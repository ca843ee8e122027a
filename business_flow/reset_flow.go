package businessflow

import (
	"context"

	"github.com/waxal-io/waxal/app/dto"
	"github.com/waxal-io/waxal/models"
	"github.com/waxal-io/waxal/repository"
	"github.com/waxal-io/waxal/utils"
)

// ResetFlow moves failed recipient records back to pending for manual retry
type ResetFlow interface {
	ResetFailed(ctx context.Context, req *dto.ResetCampaignRequest, metadata *ClientMetadata) (*dto.ResetCampaignResponse, error)
	IsResetNeeded(ctx context.Context, req *dto.ResetCampaignRequest, metadata *ClientMetadata) (*dto.ResetNeededResponse, error)
	ResetStatistics(ctx context.Context, req *dto.ResetCampaignRequest, metadata *ClientMetadata) (*dto.ResetStatisticsResponse, error)
}

// ResetFlowImpl implements the reset business flow
type ResetFlowImpl struct {
	campaignRepo  repository.CampaignRepository
	messageRepo   repository.MessageRepository
	historyRepo   repository.CampaignHistoryRepository
	ownerResolver OwnerResolver
	tx            repository.TxManager
}

// NewResetFlow creates a new reset flow instance
func NewResetFlow(
	campaignRepo repository.CampaignRepository,
	messageRepo repository.MessageRepository,
	historyRepo repository.CampaignHistoryRepository,
	ownerResolver OwnerResolver,
	tx repository.TxManager,
) ResetFlow {
	return &ResetFlowImpl{
		campaignRepo:  campaignRepo,
		messageRepo:   messageRepo,
		historyRepo:   historyRepo,
		ownerResolver: ownerResolver,
		tx:            tx,
	}
}

// ResetFailed transitions every failed record of the campaign back to pending
// and adjusts the campaign counters by the number of rows moved. A reset race
// against an active dispatch is a conflict.
func (f *ResetFlowImpl) ResetFailed(ctx context.Context, req *dto.ResetCampaignRequest, metadata *ClientMetadata) (*dto.ResetCampaignResponse, error) {
	owner, err := f.ownerResolver.Resolve(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}

	campaign, err := lookupOwnedCampaign(ctx, f.campaignRepo, req.UUID, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if campaign.InProcess {
		return nil, NewBusinessError("CONFLICT", "Cannot reset while campaign is being dispatched", ErrCampaignInProcess)
	}

	var resetCount int64
	err = f.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		resetCount, err = f.messageRepo.ResetFailed(txCtx, campaign.BulkID)
		if err != nil {
			return err
		}
		if resetCount == 0 {
			return nil
		}
		if err := f.campaignRepo.ApplyReset(txCtx, campaign.ID, int(resetCount)); err != nil {
			return err
		}
		return f.campaignRepo.SyncRates(txCtx, campaign.ID)
	})
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_RESET_FAILED", "Campaign reset failed", err)
	}

	if resetCount > 0 {
		counts, err := f.messageRepo.CountByStatus(ctx, campaign.BulkID)
		if err == nil {
			_ = f.historyRepo.Save(ctx, &models.CampaignHistory{
				CampaignID:   campaign.ID,
				BulkID:       campaign.BulkID,
				Action:       models.CampaignActionReset,
				ActorLogin:   owner.Login,
				TotalSent:    counts.Sent,
				TotalFailed:  counts.Failed,
				TotalPending: counts.Pending,
				Details:      utils.ToPtr("failed recipients reset to pending"),
			})
		}
	}

	return &dto.ResetCampaignResponse{ResetCount: resetCount}, nil
}

// IsResetNeeded reports whether the campaign has at least one failed record
func (f *ResetFlowImpl) IsResetNeeded(ctx context.Context, req *dto.ResetCampaignRequest, metadata *ClientMetadata) (*dto.ResetNeededResponse, error) {
	if _, err := f.ownerResolver.Resolve(ctx, req.CustomerID); err != nil {
		return nil, err
	}

	campaign, err := lookupOwnedCampaign(ctx, f.campaignRepo, req.UUID, req.CustomerID)
	if err != nil {
		return nil, err
	}

	hasFailed, err := f.messageRepo.HasFailed(ctx, campaign.BulkID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to check failed recipients", err)
	}

	return &dto.ResetNeededResponse{ResetNeeded: hasFailed}, nil
}

// ResetStatistics returns the authoritative pending/success/failed snapshot
// computed from the message records.
func (f *ResetFlowImpl) ResetStatistics(ctx context.Context, req *dto.ResetCampaignRequest, metadata *ClientMetadata) (*dto.ResetStatisticsResponse, error) {
	if _, err := f.ownerResolver.Resolve(ctx, req.CustomerID); err != nil {
		return nil, err
	}

	campaign, err := lookupOwnedCampaign(ctx, f.campaignRepo, req.UUID, req.CustomerID)
	if err != nil {
		return nil, err
	}

	counts, err := f.messageRepo.CountByStatus(ctx, campaign.BulkID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to snapshot campaign counts", err)
	}

	return &dto.ResetStatisticsResponse{
		Pending: counts.Pending,
		Success: counts.Sent,
		Failed:  counts.Failed,
	}, nil
}
