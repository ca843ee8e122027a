package businessflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/waxal-io/waxal/app/dto"
	"github.com/waxal-io/waxal/models"
	testutil "github.com/waxal-io/waxal/testing"
	"github.com/waxal-io/waxal/utils"
)

func newProgressFlow(f *testutil.Fixtures) ProgressFlow {
	return NewProgressFlow(f.Campaigns, f.Histories, NewOwnerResolver(f.Customers), nil, "test:", 0)
}

func TestProgressComputesPercentFromCounters(t *testing.T) {
	f := testutil.NewFixtures()
	f.SeedCustomer(1, "acme", models.RoleUser)
	campaign := f.SeedCampaign(1, models.ChannelSMS, 200)
	require.NoError(t, f.Campaigns.ApplyResult(context.Background(), campaign.ID, true, 70))
	require.NoError(t, f.Campaigns.ApplyResult(context.Background(), campaign.ID, false, 10))

	flow := newProgressFlow(f)
	resp, err := flow.Progress(context.Background(), &dto.CampaignRequest{
		UUID:       campaign.UUID.String(),
		CustomerID: 1,
	}, NewClientMetadata("127.0.0.1", "test"))
	require.NoError(t, err)
	assert.Equal(t, int64(200), resp.Total)
	assert.Equal(t, int64(70), resp.Sent)
	assert.Equal(t, int64(10), resp.Failed)
	assert.Equal(t, int64(120), resp.Pending)
	assert.InDelta(t, 40.0, resp.PercentComplete, 0.01)
	assert.False(t, resp.InProcess)

	// Without a cache there is no previous sample to derive a rate from
	assert.Zero(t, resp.RatePerSecond)
	assert.Zero(t, resp.ETASeconds)
}

func TestProgressEmptyCampaign(t *testing.T) {
	f := testutil.NewFixtures()
	f.SeedCustomer(1, "acme", models.RoleUser)
	campaign := f.SeedCampaign(1, models.ChannelSMS, 0)

	flow := newProgressFlow(f)
	resp, err := flow.Progress(context.Background(), &dto.CampaignRequest{
		UUID:       campaign.UUID.String(),
		CustomerID: 1,
	}, NewClientMetadata("127.0.0.1", "test"))
	require.NoError(t, err)
	assert.Zero(t, resp.PercentComplete)
}

func TestProgressRejectsUnknownCampaign(t *testing.T) {
	f := testutil.NewFixtures()
	f.SeedCustomer(1, "acme", models.RoleUser)

	flow := newProgressFlow(f)
	_, err := flow.Progress(context.Background(), &dto.CampaignRequest{
		UUID:       "0e4e7a5c-58c7-4f0e-9a43-52b0f5e0a111",
		CustomerID: 1,
	}, NewClientMetadata("127.0.0.1", "test"))
	assert.True(t, IsCampaignNotFound(err))
}

func TestHistoryListsLifecycleEvents(t *testing.T) {
	f := testutil.NewFixtures()
	f.SeedCustomer(1, "acme", models.RoleUser)
	campaign := f.SeedCampaign(1, models.ChannelSMS, 10)
	require.NoError(t, f.Histories.Save(context.Background(), &models.CampaignHistory{
		CampaignID:   campaign.ID,
		BulkID:       campaign.BulkID,
		Action:       models.CampaignActionStopped,
		ActorLogin:   "acme",
		TotalSent:    4,
		TotalPending: 6,
		Details:      utils.ToPtr("stopped by user"),
	}))

	flow := newProgressFlow(f)
	entries, err := flow.History(context.Background(), &dto.CampaignRequest{
		UUID:       campaign.UUID.String(),
		CustomerID: 1,
	}, NewClientMetadata("127.0.0.1", "test"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, string(models.CampaignActionStopped), entries[0].Action)
	assert.Equal(t, int64(4), entries[0].TotalSent)
	assert.Equal(t, "acme", entries[0].ActorLogin)
	assert.Equal(t, "stopped by user", entries[0].Details)
}
