package businessflow

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/waxal-io/waxal/app/dto"
	"github.com/waxal-io/waxal/models"
	testutil "github.com/waxal-io/waxal/testing"
)

func newResetFlow(f *testutil.Fixtures) ResetFlow {
	return NewResetFlow(f.Campaigns, f.Messages, f.Histories, NewOwnerResolver(f.Customers), testutil.TxManager{})
}

func failSomeMessages(t *testing.T, f *testutil.Fixtures, bulkID string, n int) {
	t.Helper()
	pending, err := f.Messages.PendingBatch(context.Background(), bulkID, n)
	require.NoError(t, err)
	require.Len(t, pending, n)
	for _, msg := range pending {
		require.NoError(t, f.Messages.MarkFailed(context.Background(), msg.ID, "absent subscriber"))
	}
}

func TestResetFailedMovesFailedBackToPending(t *testing.T) {
	f := testutil.NewFixtures()
	f.SeedCustomer(1, "acme", models.RoleUser)
	campaign := f.SeedCampaign(1, models.ChannelSMS, 10)

	// Simulate a completed dispatch: 6 delivered, 4 failed
	pending, err := f.Messages.PendingBatch(context.Background(), campaign.BulkID, 10)
	require.NoError(t, err)
	require.Len(t, pending, 10)
	for i, msg := range pending {
		if i < 6 {
			require.NoError(t, f.Messages.MarkSent(context.Background(), msg.ID, fmt.Sprintf("prov-%d", msg.ID)))
			require.NoError(t, f.Campaigns.ApplyResult(context.Background(), campaign.ID, true, 1))
		} else {
			require.NoError(t, f.Messages.MarkFailed(context.Background(), msg.ID, "absent subscriber"))
			require.NoError(t, f.Campaigns.ApplyResult(context.Background(), campaign.ID, false, 1))
		}
	}

	flow := newResetFlow(f)
	req := &dto.ResetCampaignRequest{UUID: campaign.UUID.String(), CustomerID: 1}
	resp, err := flow.ResetFailed(context.Background(), req, NewClientMetadata("127.0.0.1", "test"))
	require.NoError(t, err)
	assert.EqualValues(t, 4, resp.ResetCount)

	updated, err := f.Campaigns.ByID(context.Background(), campaign.ID)
	require.NoError(t, err)
	assert.True(t, updated.CountersConsistent())
	assert.Equal(t, 6, updated.TotalSuccess)
	assert.Equal(t, 0, updated.TotalFailed)
	assert.Equal(t, 4, updated.TotalPending)

	counts, err := f.Messages.CountByStatus(context.Background(), campaign.BulkID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), counts.Pending)
	assert.Equal(t, int64(6), counts.Sent)
	assert.Equal(t, int64(0), counts.Failed)

	histories, err := f.Histories.ByCampaign(context.Background(), campaign.ID)
	require.NoError(t, err)
	require.Len(t, histories, 1)
	assert.Equal(t, models.CampaignActionReset, histories[0].Action)
	assert.Equal(t, "acme", histories[0].ActorLogin)
	assert.Equal(t, int64(6), histories[0].TotalSent)
	assert.Equal(t, int64(4), histories[0].TotalPending)
}

func TestResetFailedWithoutFailedRecordsIsNoop(t *testing.T) {
	f := testutil.NewFixtures()
	f.SeedCustomer(1, "acme", models.RoleUser)
	campaign := f.SeedCampaign(1, models.ChannelSMS, 5)
	flow := newResetFlow(f)

	req := &dto.ResetCampaignRequest{UUID: campaign.UUID.String(), CustomerID: 1}
	resp, err := flow.ResetFailed(context.Background(), req, NewClientMetadata("127.0.0.1", "test"))
	require.NoError(t, err)
	assert.Zero(t, resp.ResetCount)

	histories, err := f.Histories.ByCampaign(context.Background(), campaign.ID)
	require.NoError(t, err)
	assert.Empty(t, histories, "a no-op reset must not be recorded")
}

func TestIsResetNeededReflectsFailedRecords(t *testing.T) {
	f := testutil.NewFixtures()
	f.SeedCustomer(1, "acme", models.RoleUser)
	campaign := f.SeedCampaign(1, models.ChannelSMS, 10)
	flow := newResetFlow(f)

	req := &dto.ResetCampaignRequest{UUID: campaign.UUID.String(), CustomerID: 1}
	resp, err := flow.IsResetNeeded(context.Background(), req, NewClientMetadata("127.0.0.1", "test"))
	require.NoError(t, err)
	assert.False(t, resp.ResetNeeded)

	failSomeMessages(t, f, campaign.BulkID, 3)

	resp, err = flow.IsResetNeeded(context.Background(), req, NewClientMetadata("127.0.0.1", "test"))
	require.NoError(t, err)
	assert.True(t, resp.ResetNeeded)
}

func TestResetStatisticsReadsFromMessageRecords(t *testing.T) {
	f := testutil.NewFixtures()
	f.SeedCustomer(1, "acme", models.RoleUser)
	campaign := f.SeedCampaign(1, models.ChannelSMS, 10)
	failSomeMessages(t, f, campaign.BulkID, 4)

	flow := newResetFlow(f)
	resp, err := flow.ResetStatistics(context.Background(), &dto.ResetCampaignRequest{
		UUID:       campaign.UUID.String(),
		CustomerID: 1,
	}, NewClientMetadata("127.0.0.1", "test"))
	require.NoError(t, err)
	assert.Equal(t, int64(6), resp.Pending)
	assert.Equal(t, int64(0), resp.Success)
	assert.Equal(t, int64(4), resp.Failed)
}

func TestResetFailedRejectsWhileInProcess(t *testing.T) {
	f := testutil.NewFixtures()
	f.SeedCustomer(1, "acme", models.RoleUser)
	campaign := f.SeedCampaign(1, models.ChannelSMS, 10)
	claimed, err := f.Campaigns.ClaimDispatch(context.Background(), campaign.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	flow := newResetFlow(f)
	_, err = flow.ResetFailed(context.Background(), &dto.ResetCampaignRequest{
		UUID:       campaign.UUID.String(),
		CustomerID: 1,
	}, NewClientMetadata("127.0.0.1", "test"))
	assert.True(t, IsCampaignInProcess(err))
}

func TestResetOperationsRejectForeignCampaign(t *testing.T) {
	f := testutil.NewFixtures()
	f.SeedCustomer(1, "acme", models.RoleUser)
	f.SeedCustomer(2, "intruder", models.RoleUser)
	campaign := f.SeedCampaign(1, models.ChannelSMS, 5)

	flow := newResetFlow(f)
	_, err := flow.IsResetNeeded(context.Background(), &dto.ResetCampaignRequest{
		UUID:       campaign.UUID.String(),
		CustomerID: 2,
	}, NewClientMetadata("127.0.0.1", "test"))
	assert.True(t, IsCampaignAccessDenied(err))
}
