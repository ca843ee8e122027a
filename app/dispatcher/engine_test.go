package dispatcher_test

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/waxal-io/waxal/app/dispatcher"
	"github.com/waxal-io/waxal/app/services"
	"github.com/waxal-io/waxal/config"
	"github.com/waxal-io/waxal/models"
	testutil "github.com/waxal-io/waxal/testing"
	"github.com/waxal-io/waxal/utils"
)

func testDispatcherConfig() config.DispatcherConfig {
	return config.DispatcherConfig{
		BatchSize:   25,
		WorkerCount: 4,
		SendRate:    0, // no pacing in tests
		SendTimeout: 5 * time.Second,
		LockTTL:     time.Minute,
		StopTimeout: 10 * time.Second,
	}
}

func newTestEngine(f *testutil.Fixtures, transport services.TransportAdapter, cfg config.DispatcherConfig) *dispatcher.EngineImpl {
	return dispatcher.NewEngine(
		f.Campaigns,
		f.Messages,
		f.Subscriptions,
		transport,
		nil,
		cfg,
		"test:",
		log.New(io.Discard, "", 0),
	)
}

func jobFor(campaign *models.Campaign) dispatcher.Job {
	return dispatcher.Job{
		CampaignID:  campaign.ID,
		BulkID:      campaign.BulkID,
		CustomerID:  campaign.CustomerID,
		OwnerLogin:  campaign.SenderLogin,
		SenderLogin: campaign.SenderLogin,
		Channel:     campaign.Channel,
	}
}

func waitForCompletion(t *testing.T, engine *dispatcher.EngineImpl, campaignID uint) {
	t.Helper()
	require.Eventually(t, func() bool {
		return !engine.Running(campaignID)
	}, 10*time.Second, 10*time.Millisecond, "dispatch did not finish in time")
}

func TestDispatchRecordsSuccessesAndFailures(t *testing.T) {
	f := testutil.NewFixtures()
	f.SeedCustomer(1, "acme", models.RoleUser)
	f.SeedSubscription(1, utils.ToPtr(int64(1000)), nil)
	campaign := f.SeedCampaign(1, models.ChannelSMS, 100)

	transport := services.NewMockTransport()
	transport.FailFor["+22177000003"] = "absent subscriber"
	transport.FailFor["+22177000041"] = "absent subscriber"
	transport.FailFor["+22177000077"] = "invalid number"

	engine := newTestEngine(f, transport, testDispatcherConfig())
	require.NoError(t, engine.Dispatch(context.Background(), jobFor(campaign)))
	waitForCompletion(t, engine, campaign.ID)

	counts, err := f.Messages.CountByStatus(context.Background(), campaign.BulkID)
	require.NoError(t, err)
	assert.Equal(t, int64(97), counts.Sent)
	assert.Equal(t, int64(3), counts.Failed)
	assert.Equal(t, int64(0), counts.Pending)

	updated, err := f.Campaigns.ByID(context.Background(), campaign.ID)
	require.NoError(t, err)
	assert.True(t, updated.CountersConsistent())
	assert.Equal(t, 97, updated.TotalSuccess)
	assert.Equal(t, 3, updated.TotalFailed)
	assert.Equal(t, 0, updated.TotalPending)
	assert.False(t, updated.InProcess)
	require.NotNil(t, updated.IsSent)
	assert.False(t, *updated.IsSent, "a campaign with failures is not fully sent")
	assert.InDelta(t, 97.0, updated.SuccessRate, 0.01)

	// Quota is consumed per confirmed delivery only
	sub, err := f.Subscriptions.ByCustomerID(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, sub.SMSCredit)
	assert.Equal(t, int64(1000-97), *sub.SMSCredit)

	// Failed records carry the provider reason
	failed, err := f.Messages.ByFilter(context.Background(), models.MessageFilter{
		BulkID:         &campaign.BulkID,
		DeliveryStatus: utils.ToPtr(models.DeliveryStatusFailed),
	}, "", 0, 0)
	require.NoError(t, err)
	require.Len(t, failed, 3)
	for _, msg := range failed {
		require.NotNil(t, msg.LastError)
		assert.NotEmpty(t, *msg.LastError)
	}
}

func TestDispatchAllDeliveredSetsTerminalFlag(t *testing.T) {
	f := testutil.NewFixtures()
	f.SeedSubscription(1, nil, nil) // unlimited
	campaign := f.SeedCampaign(1, models.ChannelSMS, 30)

	transport := services.NewMockTransport()
	engine := newTestEngine(f, transport, testDispatcherConfig())
	require.NoError(t, engine.Dispatch(context.Background(), jobFor(campaign)))
	waitForCompletion(t, engine, campaign.ID)

	updated, err := f.Campaigns.ByID(context.Background(), campaign.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.IsSent)
	assert.True(t, *updated.IsSent)
	assert.Equal(t, 30, transport.SentCount())
}

func TestDispatchTestModeSkipsTransportAndQuota(t *testing.T) {
	f := testutil.NewFixtures()
	f.SeedSubscription(1, utils.ToPtr(int64(50)), nil)
	campaign := f.SeedCampaign(1, models.ChannelSMS, 40)

	transport := services.NewMockTransport()
	transport.FailError = "gateway down" // must never be reached

	engine := newTestEngine(f, transport, testDispatcherConfig())
	job := jobFor(campaign)
	job.IsTest = true
	require.NoError(t, engine.Dispatch(context.Background(), job))
	waitForCompletion(t, engine, campaign.ID)

	counts, err := f.Messages.CountByStatus(context.Background(), campaign.BulkID)
	require.NoError(t, err)
	assert.Equal(t, int64(40), counts.Sent)
	assert.Equal(t, int64(0), counts.Failed)
	assert.Zero(t, transport.SentCount(), "test dispatches must not touch the transport")

	sub, err := f.Subscriptions.ByCustomerID(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, sub.SMSCredit)
	assert.Equal(t, int64(50), *sub.SMSCredit, "test dispatches must not consume quota")

	sent, err := f.Messages.ByFilter(context.Background(), models.MessageFilter{
		BulkID:         &campaign.BulkID,
		DeliveryStatus: utils.ToPtr(models.DeliveryStatusSent),
	}, "", 1, 0)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	require.NotNil(t, sent[0].MessageID)
	assert.Contains(t, *sent[0].MessageID, "test-")
}

func TestStopHaltsAtBatchBoundaryAndStaysResumable(t *testing.T) {
	f := testutil.NewFixtures()
	f.SeedSubscription(1, nil, nil)
	campaign := f.SeedCampaign(1, models.ChannelSMS, 100)

	transport := services.NewMockTransport()
	transport.Delay = 5 * time.Millisecond

	cfg := testDispatcherConfig()
	cfg.BatchSize = 10
	cfg.WorkerCount = 2

	engine := newTestEngine(f, transport, cfg)
	require.NoError(t, engine.Dispatch(context.Background(), jobFor(campaign)))

	// Let at least one batch land before stopping
	require.Eventually(t, func() bool {
		counts, err := f.Messages.CountByStatus(context.Background(), campaign.BulkID)
		return err == nil && counts.Sent >= 10
	}, 10*time.Second, 5*time.Millisecond)

	signaled, err := engine.Stop(context.Background(), campaign.ID)
	require.NoError(t, err)
	assert.True(t, signaled)
	assert.False(t, engine.Running(campaign.ID), "Stop must wait for the in-flight batch to drain")

	counts, err := f.Messages.CountByStatus(context.Background(), campaign.BulkID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), counts.Total(), "no record may be lost on stop")
	assert.Greater(t, counts.Pending, int64(0), "stop must leave the remaining batches pending")

	updated, err := f.Campaigns.ByID(context.Background(), campaign.ID)
	require.NoError(t, err)
	assert.False(t, updated.InProcess)
	assert.True(t, updated.CountersConsistent())
	assert.Nil(t, updated.IsSent, "a stopped campaign has no terminal outcome")

	// The campaign resumes from where it stopped
	transport.Delay = 0
	require.NoError(t, engine.Dispatch(context.Background(), jobFor(campaign)))
	waitForCompletion(t, engine, campaign.ID)

	counts, err = f.Messages.CountByStatus(context.Background(), campaign.BulkID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), counts.Sent)
	assert.Equal(t, int64(0), counts.Pending)
}

func TestStopWithoutActiveRunReportsNotRunning(t *testing.T) {
	f := testutil.NewFixtures()
	engine := newTestEngine(f, services.NewMockTransport(), testDispatcherConfig())

	signaled, err := engine.Stop(context.Background(), 42)
	require.NoError(t, err)
	assert.False(t, signaled)
}

func TestResetFailedThenRedispatchSendsOnlyFailed(t *testing.T) {
	f := testutil.NewFixtures()
	f.SeedSubscription(1, nil, nil)
	campaign := f.SeedCampaign(1, models.ChannelSMS, 80)

	transport := services.NewMockTransport()
	pending, err := f.Messages.PendingBatch(context.Background(), campaign.BulkID, 10)
	require.NoError(t, err)
	for _, msg := range pending {
		transport.FailFor[msg.Receiver] = "temporary failure"
	}

	engine := newTestEngine(f, transport, testDispatcherConfig())
	require.NoError(t, engine.Dispatch(context.Background(), jobFor(campaign)))
	waitForCompletion(t, engine, campaign.ID)

	counts, err := f.Messages.CountByStatus(context.Background(), campaign.BulkID)
	require.NoError(t, err)
	require.Equal(t, int64(10), counts.Failed)

	// Reset the failures and clear the fault, then dispatch again
	moved, err := f.Messages.ResetFailed(context.Background(), campaign.BulkID)
	require.NoError(t, err)
	require.Equal(t, int64(10), moved)
	require.NoError(t, f.Campaigns.ApplyReset(context.Background(), campaign.ID, int(moved)))
	transport.FailFor = map[string]string{}
	firstRunSends := transport.SentCount()

	require.NoError(t, engine.Dispatch(context.Background(), jobFor(campaign)))
	waitForCompletion(t, engine, campaign.ID)

	counts, err = f.Messages.CountByStatus(context.Background(), campaign.BulkID)
	require.NoError(t, err)
	assert.Equal(t, int64(80), counts.Sent)
	assert.Equal(t, int64(0), counts.Failed)
	assert.Equal(t, firstRunSends+10, transport.SentCount(), "the retry must only touch the reset records")

	updated, err := f.Campaigns.ByID(context.Background(), campaign.ID)
	require.NoError(t, err)
	assert.True(t, updated.CountersConsistent())
	require.NotNil(t, updated.IsSent)
	assert.True(t, *updated.IsSent)
}

func TestDispatchRejectsConcurrentClaim(t *testing.T) {
	f := testutil.NewFixtures()
	f.SeedSubscription(1, nil, nil)
	campaign := f.SeedCampaign(1, models.ChannelSMS, 5)

	// Another instance already owns the campaign
	claimed, err := f.Campaigns.ClaimDispatch(context.Background(), campaign.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	engine := newTestEngine(f, services.NewMockTransport(), testDispatcherConfig())
	err = engine.Dispatch(context.Background(), jobFor(campaign))
	assert.ErrorIs(t, err, dispatcher.ErrAlreadyDispatching)
	assert.False(t, engine.Running(campaign.ID))
}

func TestShutdownRejectsNewDispatches(t *testing.T) {
	f := testutil.NewFixtures()
	f.SeedSubscription(1, nil, nil)
	campaign := f.SeedCampaign(1, models.ChannelSMS, 5)

	engine := newTestEngine(f, services.NewMockTransport(), testDispatcherConfig())
	require.NoError(t, engine.Shutdown(context.Background()))

	err := engine.Dispatch(context.Background(), jobFor(campaign))
	assert.ErrorIs(t, err, dispatcher.ErrShuttingDown)
}

// flakyCampaignRepo fails the first success-side counter update, then delegates.
type flakyCampaignRepo struct {
	*testutil.InMemoryCampaignRepository
	mu     sync.Mutex
	failed bool
}

func (r *flakyCampaignRepo) ApplyResult(ctx context.Context, campaignID uint, delivered bool, count int) error {
	if delivered {
		r.mu.Lock()
		first := !r.failed
		r.failed = true
		r.mu.Unlock()
		if first {
			return errors.New("counter update lost")
		}
	}
	return r.InMemoryCampaignRepository.ApplyResult(ctx, campaignID, delivered, count)
}

func TestCounterErrorAfterSendIsRetriedNotDowngraded(t *testing.T) {
	f := testutil.NewFixtures()
	f.SeedSubscription(1, nil, nil)
	campaign := f.SeedCampaign(1, models.ChannelSMS, 3)

	repo := &flakyCampaignRepo{InMemoryCampaignRepository: f.Campaigns}
	transport := services.NewMockTransport()
	engine := dispatcher.NewEngine(
		repo,
		f.Messages,
		f.Subscriptions,
		transport,
		nil,
		testDispatcherConfig(),
		"test:",
		log.New(io.Discard, "", 0),
	)

	require.NoError(t, engine.Dispatch(context.Background(), jobFor(campaign)))
	waitForCompletion(t, engine, campaign.ID)

	counts, err := f.Messages.CountByStatus(context.Background(), campaign.BulkID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts.Sent, "a counter hiccup must not flip delivered rows to failed")
	assert.Equal(t, int64(0), counts.Failed)
	assert.Equal(t, 3, transport.SentCount())

	updated, err := f.Campaigns.ByID(context.Background(), campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, updated.TotalSuccess)
	assert.Equal(t, 0, updated.TotalFailed)
	assert.True(t, updated.CountersConsistent())
	require.NotNil(t, updated.IsSent)
	assert.True(t, *updated.IsSent)
}

func TestDispatchWhatsAppUsesTemplateTransport(t *testing.T) {
	f := testutil.NewFixtures()
	f.SeedSubscription(1, nil, utils.ToPtr(int64(100)))
	campaign := f.SeedCampaign(1, models.ChannelWhatsApp, 10)

	transport := services.NewMockTransport()
	engine := newTestEngine(f, transport, testDispatcherConfig())
	job := jobFor(campaign)
	job.TemplateName = "order_update"
	job.Variables = []string{"Awa", "12"}
	require.NoError(t, engine.Dispatch(context.Background(), job))
	waitForCompletion(t, engine, campaign.ID)

	sent := transport.SentMessages()
	require.Len(t, sent, 10)
	for _, msg := range sent {
		assert.Equal(t, "WHATSAPP", msg.Channel)
		assert.Equal(t, "order_update", msg.Template)
	}

	sub, err := f.Subscriptions.ByCustomerID(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, sub.WhatsAppCredit)
	assert.Equal(t, int64(90), *sub.WhatsAppCredit)
}
