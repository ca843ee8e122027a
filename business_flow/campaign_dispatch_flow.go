package businessflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/waxal-io/waxal/app/dispatcher"
	"github.com/waxal-io/waxal/app/dto"
	"github.com/waxal-io/waxal/models"
	"github.com/waxal-io/waxal/repository"
	"github.com/waxal-io/waxal/utils"
)

// CampaignDispatchFlow starts and stops campaign dispatches
type CampaignDispatchFlow interface {
	SendCampaign(ctx context.Context, req *dto.SendCampaignRequest, metadata *ClientMetadata) (*dto.SendCampaignResponse, error)
	StopCampaign(ctx context.Context, req *dto.StopCampaignRequest, metadata *ClientMetadata) (*dto.StopCampaignResponse, error)
}

// CampaignDispatchFlowImpl implements the campaign dispatch business flow
type CampaignDispatchFlowImpl struct {
	campaignRepo  repository.CampaignRepository
	messageRepo   repository.MessageRepository
	templateRepo  repository.TemplateRepository
	historyRepo   repository.CampaignHistoryRepository
	quotaFlow     QuotaFlow
	ownerResolver OwnerResolver
	engine        dispatcher.Engine
}

// NewCampaignDispatchFlow creates a new campaign dispatch flow instance
func NewCampaignDispatchFlow(
	campaignRepo repository.CampaignRepository,
	messageRepo repository.MessageRepository,
	templateRepo repository.TemplateRepository,
	historyRepo repository.CampaignHistoryRepository,
	quotaFlow QuotaFlow,
	ownerResolver OwnerResolver,
	engine dispatcher.Engine,
) CampaignDispatchFlow {
	return &CampaignDispatchFlowImpl{
		campaignRepo:  campaignRepo,
		messageRepo:   messageRepo,
		templateRepo:  templateRepo,
		historyRepo:   historyRepo,
		quotaFlow:     quotaFlow,
		ownerResolver: ownerResolver,
		engine:        engine,
	}
}

// SendCampaign verifies quota against the pending count and hands the
// campaign to the dispatch engine. A re-dispatch after earlier results is
// tracked as a retry.
func (f *CampaignDispatchFlowImpl) SendCampaign(ctx context.Context, req *dto.SendCampaignRequest, metadata *ClientMetadata) (*dto.SendCampaignResponse, error) {
	owner, err := f.ownerResolver.Resolve(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}

	campaign, err := lookupOwnedCampaign(ctx, f.campaignRepo, req.UUID, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if campaign.InProcess {
		return nil, NewBusinessError("CONFLICT", "Campaign is already being dispatched", ErrCampaignAlreadyDispatching)
	}

	counts, err := f.messageRepo.CountByStatus(ctx, campaign.BulkID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_DISPATCH_FAILED", "Failed to count campaign recipients", err)
	}
	if counts.Pending == 0 {
		return nil, NewBusinessError("CAMPAIGN_NO_PENDING", "Campaign has no pending recipients", ErrCampaignNoPending)
	}

	// Quota check uses the pending count as worst-case consumption so partial
	// sends account for quota already consumed. Test dispatches skip it.
	if !req.IsTest {
		if err := f.quotaFlow.VerifyForSend(ctx, owner.CustomerID, campaign.Channel, counts.Pending); err != nil {
			return nil, err
		}
	}

	job := dispatcher.Job{
		CampaignID:  campaign.ID,
		BulkID:      campaign.BulkID,
		CustomerID:  owner.CustomerID,
		OwnerLogin:  owner.Login,
		SenderLogin: campaign.SenderLogin,
		Channel:     campaign.Channel,
		IsTest:      req.IsTest,
	}
	// Variables carry the values persisted at creation; the template only
	// contributes the provider-registered name.
	if campaign.TemplateID != nil {
		template, err := f.templateRepo.ByID(ctx, *campaign.TemplateID)
		if err != nil {
			return nil, NewBusinessError("TEMPLATE_LOOKUP_FAILED", "Failed to lookup template", err)
		}
		if template != nil {
			job.TemplateName = template.Name
		}
	}
	job.Variables = campaign.Variables

	isRetry := campaign.TotalSuccess+campaign.TotalFailed > 0

	if err := f.engine.Dispatch(ctx, job); err != nil {
		if errors.Is(err, dispatcher.ErrAlreadyDispatching) {
			return nil, NewBusinessError("CONFLICT", "Campaign is already being dispatched", ErrCampaignAlreadyDispatching)
		}
		return nil, NewBusinessError("CAMPAIGN_DISPATCH_FAILED", "Failed to start campaign dispatch", err)
	}

	if isRetry {
		if err := f.campaignRepo.MarkRetry(ctx, campaign.ID); err != nil {
			return nil, NewBusinessError("CAMPAIGN_DISPATCH_FAILED", "Failed to record retry", err)
		}
		f.recordHistory(ctx, campaign, owner, models.CampaignActionRetried, counts,
			fmt.Sprintf("re-dispatch attempt %d", campaign.RetryCount+1))
	}

	return &dto.SendCampaignResponse{
		BulkID:  campaign.BulkID,
		Pending: counts.Pending,
	}, nil
}

// StopCampaign signals the engine, waits for the in-flight batch to drain,
// then snapshots counts from the message records, which stay authoritative
// over the possibly stale campaign counters.
func (f *CampaignDispatchFlowImpl) StopCampaign(ctx context.Context, req *dto.StopCampaignRequest, metadata *ClientMetadata) (*dto.StopCampaignResponse, error) {
	owner, err := f.ownerResolver.Resolve(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}

	campaign, err := lookupOwnedCampaign(ctx, f.campaignRepo, req.UUID, req.CustomerID)
	if err != nil {
		return nil, err
	}

	signaled, err := f.engine.Stop(ctx, campaign.ID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_STOP_FAILED", "Failed to stop campaign dispatch", err)
	}

	counts, err := f.messageRepo.CountByStatus(ctx, campaign.BulkID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_STOP_FAILED", "Failed to snapshot campaign counts", err)
	}

	if signaled {
		f.recordHistory(ctx, campaign, owner, models.CampaignActionStopped, counts, "stopped by user")
	}

	return &dto.StopCampaignResponse{
		Stopped: signaled,
		Sent:    counts.Sent,
		Failed:  counts.Failed,
		Pending: counts.Pending,
	}, nil
}

// recordHistory persists a lifecycle event, best effort; a failed history
// write never aborts the triggering operation.
func (f *CampaignDispatchFlowImpl) recordHistory(ctx context.Context, campaign *models.Campaign, owner *EffectiveOwner, action models.CampaignAction, counts models.StatusCounts, details string) {
	_ = f.historyRepo.Save(ctx, &models.CampaignHistory{
		CampaignID:   campaign.ID,
		BulkID:       campaign.BulkID,
		Action:       action,
		ActorLogin:   owner.Login,
		TotalSent:    counts.Sent,
		TotalFailed:  counts.Failed,
		TotalPending: counts.Pending,
		Details:      utils.ToPtr(details),
	})
}
