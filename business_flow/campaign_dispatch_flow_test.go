package businessflow

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/waxal-io/waxal/app/dispatcher"
	"github.com/waxal-io/waxal/app/dto"
	"github.com/waxal-io/waxal/app/services"
	"github.com/waxal-io/waxal/config"
	"github.com/waxal-io/waxal/models"
	testutil "github.com/waxal-io/waxal/testing"
	"github.com/waxal-io/waxal/utils"
)

type dispatchHarness struct {
	fixtures  *testutil.Fixtures
	transport *services.MockTransport
	engine    *dispatcher.EngineImpl
	flow      CampaignDispatchFlow
}

func newDispatchHarness() *dispatchHarness {
	f := testutil.NewFixtures()
	transport := services.NewMockTransport()
	engine := dispatcher.NewEngine(
		f.Campaigns,
		f.Messages,
		f.Subscriptions,
		transport,
		nil,
		config.DispatcherConfig{
			BatchSize:   50,
			WorkerCount: 4,
			SendTimeout: 5 * time.Second,
			LockTTL:     time.Minute,
		},
		"test:",
		log.New(io.Discard, "", 0),
	)
	flow := NewCampaignDispatchFlow(
		f.Campaigns,
		f.Messages,
		f.Templates,
		f.Histories,
		NewQuotaFlow(f.Subscriptions),
		NewOwnerResolver(f.Customers),
		engine,
	)
	return &dispatchHarness{fixtures: f, transport: transport, engine: engine, flow: flow}
}

func (h *dispatchHarness) waitForCompletion(t *testing.T, campaignID uint) {
	t.Helper()
	require.Eventually(t, func() bool {
		return !h.engine.Running(campaignID)
	}, 10*time.Second, 10*time.Millisecond, "dispatch did not finish in time")
}

func TestSendCampaignRejectsQuotaShortfall(t *testing.T) {
	h := newDispatchHarness()
	h.fixtures.SeedCustomer(1, "acme", models.RoleUser)
	h.fixtures.SeedSubscription(1, utils.ToPtr(int64(40)), nil)
	campaign := h.fixtures.SeedCampaign(1, models.ChannelSMS, 100)

	_, err := h.flow.SendCampaign(context.Background(), &dto.SendCampaignRequest{
		UUID:       campaign.UUID.String(),
		CustomerID: 1,
	}, NewClientMetadata("127.0.0.1", "test"))
	require.Error(t, err)
	assert.True(t, IsQuotaExceeded(err))
	assert.False(t, h.engine.Running(campaign.ID), "a refused dispatch must not start")

	updated, repoErr := h.fixtures.Campaigns.ByID(context.Background(), campaign.ID)
	require.NoError(t, repoErr)
	assert.False(t, updated.InProcess)
	assert.Zero(t, h.transport.SentCount())
}

func TestSendCampaignTestModeBypassesQuota(t *testing.T) {
	h := newDispatchHarness()
	h.fixtures.SeedCustomer(1, "acme", models.RoleUser)
	h.fixtures.SeedSubscription(1, utils.ToPtr(int64(0)), nil)
	campaign := h.fixtures.SeedCampaign(1, models.ChannelSMS, 20)

	resp, err := h.flow.SendCampaign(context.Background(), &dto.SendCampaignRequest{
		UUID:       campaign.UUID.String(),
		CustomerID: 1,
		IsTest:     true,
	}, NewClientMetadata("127.0.0.1", "test"))
	require.NoError(t, err)
	assert.Equal(t, int64(20), resp.Pending)
	h.waitForCompletion(t, campaign.ID)

	counts, err := h.fixtures.Messages.CountByStatus(context.Background(), campaign.BulkID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), counts.Sent)
	assert.Zero(t, h.transport.SentCount())
}

func TestSendCampaignRejectsWithoutPendingRecipients(t *testing.T) {
	h := newDispatchHarness()
	h.fixtures.SeedCustomer(1, "acme", models.RoleUser)
	h.fixtures.SeedSubscription(1, nil, nil)
	campaign := h.fixtures.SeedCampaign(1, models.ChannelSMS, 0)

	_, err := h.flow.SendCampaign(context.Background(), &dto.SendCampaignRequest{
		UUID:       campaign.UUID.String(),
		CustomerID: 1,
	}, NewClientMetadata("127.0.0.1", "test"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCampaignNoPending)
}

func TestSendCampaignRejectsWhileInProcess(t *testing.T) {
	h := newDispatchHarness()
	h.fixtures.SeedCustomer(1, "acme", models.RoleUser)
	h.fixtures.SeedSubscription(1, nil, nil)
	campaign := h.fixtures.SeedCampaign(1, models.ChannelSMS, 10)

	claimed, err := h.fixtures.Campaigns.ClaimDispatch(context.Background(), campaign.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	_, err = h.flow.SendCampaign(context.Background(), &dto.SendCampaignRequest{
		UUID:       campaign.UUID.String(),
		CustomerID: 1,
	}, NewClientMetadata("127.0.0.1", "test"))
	assert.True(t, IsCampaignInProcess(err))
}

func TestSendCampaignDeniesForeignCampaign(t *testing.T) {
	h := newDispatchHarness()
	h.fixtures.SeedCustomer(1, "acme", models.RoleUser)
	h.fixtures.SeedCustomer(2, "intruder", models.RoleUser)
	h.fixtures.SeedSubscription(2, nil, nil)
	campaign := h.fixtures.SeedCampaign(1, models.ChannelSMS, 10)

	_, err := h.flow.SendCampaign(context.Background(), &dto.SendCampaignRequest{
		UUID:       campaign.UUID.String(),
		CustomerID: 2,
	}, NewClientMetadata("127.0.0.1", "test"))
	assert.True(t, IsCampaignAccessDenied(err))
}

func TestRedispatchAfterResultsIsRecordedAsRetry(t *testing.T) {
	h := newDispatchHarness()
	h.fixtures.SeedCustomer(1, "acme", models.RoleUser)
	h.fixtures.SeedSubscription(1, nil, nil)
	campaign := h.fixtures.SeedCampaign(1, models.ChannelSMS, 30)

	h.transport.FailFor["+22177000005"] = "absent subscriber"

	req := &dto.SendCampaignRequest{UUID: campaign.UUID.String(), CustomerID: 1}
	_, err := h.flow.SendCampaign(context.Background(), req, NewClientMetadata("127.0.0.1", "test"))
	require.NoError(t, err)
	h.waitForCompletion(t, campaign.ID)

	// Bring the failed record back and dispatch again
	moved, err := h.fixtures.Messages.ResetFailed(context.Background(), campaign.BulkID)
	require.NoError(t, err)
	require.Equal(t, int64(1), moved)
	require.NoError(t, h.fixtures.Campaigns.ApplyReset(context.Background(), campaign.ID, 1))
	h.transport.FailFor = map[string]string{}

	_, err = h.flow.SendCampaign(context.Background(), req, NewClientMetadata("127.0.0.1", "test"))
	require.NoError(t, err)
	h.waitForCompletion(t, campaign.ID)

	updated, err := h.fixtures.Campaigns.ByID(context.Background(), campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.RetryCount)
	require.NotNil(t, updated.LastRetryDate)

	histories, err := h.fixtures.Histories.ByCampaign(context.Background(), campaign.ID)
	require.NoError(t, err)
	require.Len(t, histories, 1)
	assert.Equal(t, models.CampaignActionRetried, histories[0].Action)
	assert.Equal(t, "acme", histories[0].ActorLogin)
}

func TestStopCampaignSnapshotsFromMessageRecords(t *testing.T) {
	h := newDispatchHarness()
	h.fixtures.SeedCustomer(1, "acme", models.RoleUser)
	h.fixtures.SeedSubscription(1, nil, nil)
	campaign := h.fixtures.SeedCampaign(1, models.ChannelSMS, 60)

	h.transport.Delay = 10 * time.Millisecond

	_, err := h.flow.SendCampaign(context.Background(), &dto.SendCampaignRequest{
		UUID:       campaign.UUID.String(),
		CustomerID: 1,
	}, NewClientMetadata("127.0.0.1", "test"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		counts, countErr := h.fixtures.Messages.CountByStatus(context.Background(), campaign.BulkID)
		return countErr == nil && counts.Sent > 0
	}, 10*time.Second, 5*time.Millisecond)

	resp, err := h.flow.StopCampaign(context.Background(), &dto.StopCampaignRequest{
		UUID:       campaign.UUID.String(),
		CustomerID: 1,
	}, NewClientMetadata("127.0.0.1", "test"))
	require.NoError(t, err)
	assert.True(t, resp.Stopped)
	assert.Equal(t, int64(60), resp.Sent+resp.Failed+resp.Pending, "the snapshot must cover every record")

	histories, err := h.fixtures.Histories.ByCampaign(context.Background(), campaign.ID)
	require.NoError(t, err)
	require.Len(t, histories, 1)
	assert.Equal(t, models.CampaignActionStopped, histories[0].Action)
	assert.Equal(t, resp.Sent, histories[0].TotalSent)
	assert.Equal(t, resp.Pending, histories[0].TotalPending)
}

func TestWhatsAppDispatchForwardsCreationValues(t *testing.T) {
	h := newDispatchHarness()
	f := h.fixtures
	f.SeedCustomer(1, "acme", models.RoleUser)
	f.SeedSubscription(1, nil, nil)
	template := f.SeedTemplate(1, models.ChannelWhatsApp, "Bonjour {name}, commande {order}", []string{"name", "order"})
	f.SeedGroup(3, 1, 4, false)

	creation := NewCampaignCreationFlow(f.Campaigns, f.Messages, f.Templates, f.Contacts, NewOwnerResolver(f.Customers), testutil.TxManager{})
	created, err := creation.CreateBulk(context.Background(), &dto.CreateBulkCampaignRequest{
		CustomerID: 1,
		Channel:    "WHATSAPP",
		TemplateID: template.ID,
		GroupID:    3,
		Variables:  []string{"Awa", "12"},
	}, NewClientMetadata("127.0.0.1", "test"))
	require.NoError(t, err)

	campaign, err := f.Campaigns.ByUUID(context.Background(), uuid.MustParse(created.UUID))
	require.NoError(t, err)
	require.NotNil(t, campaign)

	_, err = h.flow.SendCampaign(context.Background(), &dto.SendCampaignRequest{
		UUID:       created.UUID,
		CustomerID: 1,
	}, NewClientMetadata("127.0.0.1", "test"))
	require.NoError(t, err)
	h.waitForCompletion(t, campaign.ID)

	sent := h.transport.SentMessages()
	require.Len(t, sent, 4)
	for _, msg := range sent {
		assert.Equal(t, template.Name, msg.Template)
		assert.Equal(t, []string{"Awa", "12"}, msg.Variables, "recipients must get the supplied values, not the placeholder names")
	}
}

func TestStopCampaignWithoutActiveRun(t *testing.T) {
	h := newDispatchHarness()
	h.fixtures.SeedCustomer(1, "acme", models.RoleUser)
	campaign := h.fixtures.SeedCampaign(1, models.ChannelSMS, 10)

	resp, err := h.flow.StopCampaign(context.Background(), &dto.StopCampaignRequest{
		UUID:       campaign.UUID.String(),
		CustomerID: 1,
	}, NewClientMetadata("127.0.0.1", "test"))
	require.NoError(t, err)
	assert.False(t, resp.Stopped)
	assert.Equal(t, int64(10), resp.Pending)

	histories, err := h.fixtures.Histories.ByCampaign(context.Background(), campaign.ID)
	require.NoError(t, err)
	assert.Empty(t, histories, "no history entry when nothing was running")
}
