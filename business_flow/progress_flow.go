package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/waxal-io/waxal/app/dto"
	"github.com/waxal-io/waxal/models"
	"github.com/waxal-io/waxal/repository"
	"github.com/waxal-io/waxal/utils"
)

// ProgressFlow computes live dispatch progress. Reads are lock-free snapshots
// of the campaign counters; eventual consistency is acceptable for monitoring.
type ProgressFlow interface {
	Progress(ctx context.Context, req *dto.CampaignRequest, metadata *ClientMetadata) (*dto.CampaignProgressResponse, error)
	History(ctx context.Context, req *dto.CampaignRequest, metadata *ClientMetadata) ([]dto.CampaignHistoryDTO, error)
}

// ProgressFlowImpl implements the progress business flow
type ProgressFlowImpl struct {
	campaignRepo  repository.CampaignRepository
	historyRepo   repository.CampaignHistoryRepository
	ownerResolver OwnerResolver
	redis         redis.UniversalClient // optional, nil disables caching and rate estimation
	redisPrefix   string
	cacheTTL      time.Duration
}

// progressSample is the cached snapshot used for rate estimation between reads
type progressSample struct {
	Processed int64     `json:"processed"`
	TakenAt   time.Time `json:"taken_at"`
}

// NewProgressFlow creates a new progress flow instance
func NewProgressFlow(
	campaignRepo repository.CampaignRepository,
	historyRepo repository.CampaignHistoryRepository,
	ownerResolver OwnerResolver,
	redisClient redis.UniversalClient,
	redisPrefix string,
	cacheTTL time.Duration,
) ProgressFlow {
	if cacheTTL <= 0 {
		cacheTTL = utils.ProgressCacheTTL
	}
	return &ProgressFlowImpl{
		campaignRepo:  campaignRepo,
		historyRepo:   historyRepo,
		ownerResolver: ownerResolver,
		redis:         redisClient,
		redisPrefix:   redisPrefix,
		cacheTTL:      cacheTTL,
	}
}

// Progress snapshots the campaign counters. The send rate is estimated from
// the previous sample when redis is available; without it rate and ETA are
// reported as zero.
func (f *ProgressFlowImpl) Progress(ctx context.Context, req *dto.CampaignRequest, metadata *ClientMetadata) (*dto.CampaignProgressResponse, error) {
	if _, err := f.ownerResolver.Resolve(ctx, req.CustomerID); err != nil {
		return nil, err
	}

	campaign, err := lookupOwnedCampaign(ctx, f.campaignRepo, req.UUID, req.CustomerID)
	if err != nil {
		return nil, err
	}

	total := int64(campaign.TotalRecipients)
	sent := int64(campaign.TotalSuccess)
	failed := int64(campaign.TotalFailed)
	pending := int64(campaign.TotalPending)
	processed := sent + failed

	var percent float64
	if total > 0 {
		percent = float64(processed) / float64(total) * 100
	}

	rate := f.estimateRate(ctx, campaign, processed)
	var eta int64
	if rate > 0 && pending > 0 {
		eta = int64(float64(pending) / rate)
	}

	return &dto.CampaignProgressResponse{
		Total:           total,
		Sent:            sent,
		Failed:          failed,
		Pending:         pending,
		PercentComplete: percent,
		RatePerSecond:   rate,
		ETASeconds:      eta,
		InProcess:       campaign.InProcess,
	}, nil
}

// History lists the campaign's lifecycle events, newest first
func (f *ProgressFlowImpl) History(ctx context.Context, req *dto.CampaignRequest, metadata *ClientMetadata) ([]dto.CampaignHistoryDTO, error) {
	if _, err := f.ownerResolver.Resolve(ctx, req.CustomerID); err != nil {
		return nil, err
	}

	campaign, err := lookupOwnedCampaign(ctx, f.campaignRepo, req.UUID, req.CustomerID)
	if err != nil {
		return nil, err
	}

	entries, err := f.historyRepo.ByCampaign(ctx, campaign.ID)
	if err != nil {
		return nil, NewBusinessError("HISTORY_LISTING_FAILED", "Failed to list campaign history", err)
	}

	out := make([]dto.CampaignHistoryDTO, 0, len(entries))
	for _, h := range entries {
		out = append(out, ToCampaignHistoryDTO(*h))
	}
	return out, nil
}

// estimateRate derives messages/second from the delta against the previous
// cached sample, then stores the current one.
func (f *ProgressFlowImpl) estimateRate(ctx context.Context, campaign *models.Campaign, processed int64) float64 {
	if f.redis == nil || !campaign.InProcess {
		return 0
	}

	key := fmt.Sprintf("%sprogress:%s", f.redisPrefix, campaign.BulkID)
	now := utils.UTCNow()

	var rate float64
	if raw, err := f.redis.Get(ctx, key).Bytes(); err == nil {
		var prev progressSample
		if json.Unmarshal(raw, &prev) == nil {
			elapsed := now.Sub(prev.TakenAt).Seconds()
			if elapsed > 0 && processed > prev.Processed {
				rate = float64(processed-prev.Processed) / elapsed
			}
		}
	}

	if raw, err := json.Marshal(progressSample{Processed: processed, TakenAt: now}); err == nil {
		_ = f.redis.Set(ctx, key, raw, f.cacheTTL).Err()
	}

	return rate
}
