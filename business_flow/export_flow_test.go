package businessflow

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/waxal-io/waxal/app/dto"
	"github.com/waxal-io/waxal/models"
	testutil "github.com/waxal-io/waxal/testing"
	"github.com/waxal-io/waxal/utils"
	"github.com/xuri/excelize/v2"
)

func newRecipientFlow(f *testutil.Fixtures) RecipientFlow {
	return NewRecipientFlow(f.Campaigns, f.Messages, NewOwnerResolver(f.Customers), testutil.TxManager{})
}

func TestListRecipientsFiltersByStatus(t *testing.T) {
	f := testutil.NewFixtures()
	f.SeedCustomer(1, "acme", models.RoleUser)
	campaign := f.SeedCampaign(1, models.ChannelSMS, 10)
	failSomeMessages(t, f, campaign.BulkID, 3)
	flow := newRecipientFlow(f)

	req := &dto.ListRecipientsRequest{
		UUID:           campaign.UUID.String(),
		CustomerID:     1,
		DeliveryStatus: utils.ToPtr("failed"),
	}
	resp, err := flow.ListRecipients(context.Background(), req, NewClientMetadata("127.0.0.1", "test"))
	require.NoError(t, err)
	assert.EqualValues(t, 3, resp.Pagination.Total)
	require.Len(t, resp.Items, 3)
	for _, item := range resp.Items {
		assert.Equal(t, "failed", item.DeliveryStatus)
		require.NotNil(t, item.LastError)
		assert.Equal(t, "absent subscriber", *item.LastError)
	}
}

func TestListRecipientsFiltersByReceiverAndPaginates(t *testing.T) {
	f := testutil.NewFixtures()
	f.SeedCustomer(1, "acme", models.RoleUser)
	campaign := f.SeedCampaign(1, models.ChannelSMS, 30)
	flow := newRecipientFlow(f)

	req := &dto.ListRecipientsRequest{
		UUID:       campaign.UUID.String(),
		CustomerID: 1,
		Receiver:   utils.ToPtr("0007"),
	}
	resp, err := flow.ListRecipients(context.Background(), req, NewClientMetadata("127.0.0.1", "test"))
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "+22177000007", resp.Items[0].Receiver)

	req.Receiver = nil
	req.PageSize = 5
	resp, err = flow.ListRecipients(context.Background(), req, NewClientMetadata("127.0.0.1", "test"))
	require.NoError(t, err)
	assert.Len(t, resp.Items, 5)
	assert.EqualValues(t, 30, resp.Pagination.Total)

	req.Page = 7
	resp, err = flow.ListRecipients(context.Background(), req, NewClientMetadata("127.0.0.1", "test"))
	require.NoError(t, err)
	assert.Len(t, resp.Items, 0)

	req.Page = -1
	_, err = flow.ListRecipients(context.Background(), req, NewClientMetadata("127.0.0.1", "test"))
	assert.Error(t, err)
}

func TestListRecipientsRejectsForeignCampaign(t *testing.T) {
	f := testutil.NewFixtures()
	f.SeedCustomer(1, "acme", models.RoleUser)
	f.SeedCustomer(2, "rival", models.RoleUser)
	campaign := f.SeedCampaign(1, models.ChannelSMS, 5)
	flow := newRecipientFlow(f)

	req := &dto.ListRecipientsRequest{UUID: campaign.UUID.String(), CustomerID: 2}
	_, err := flow.ListRecipients(context.Background(), req, NewClientMetadata("127.0.0.1", "test"))
	assert.True(t, IsCampaignAccessDenied(err))
}

func TestExportRecipientsWritesWorkbook(t *testing.T) {
	f := testutil.NewFixtures()
	f.SeedCustomer(1, "acme", models.RoleUser)
	campaign := f.SeedCampaign(1, models.ChannelSMS, 4)
	failSomeMessages(t, f, campaign.BulkID, 1)
	flow := newRecipientFlow(f)

	req := &dto.ListRecipientsRequest{UUID: campaign.UUID.String(), CustomerID: 1}
	filename, content, err := flow.ExportRecipients(context.Background(), req, NewClientMetadata("127.0.0.1", "test"))
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("campaign_%s_recipients.xlsx", campaign.UUID), filename)
	require.NotEmpty(t, content)

	xl, err := excelize.OpenReader(bytes.NewReader(content))
	require.NoError(t, err)
	defer func() { _ = xl.Close() }()

	rows, err := xl.GetRows("Recipients")
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "receiver", rows[0][0])
	assert.Equal(t, "delivery_status", rows[0][1])
	assert.Equal(t, "failed", rows[1][1])
	assert.Equal(t, "absent subscriber", rows[1][5])
}

func TestDeleteCampaignRejectsWhileInProcess(t *testing.T) {
	f := testutil.NewFixtures()
	f.SeedCustomer(1, "acme", models.RoleUser)
	campaign := f.SeedCampaign(1, models.ChannelSMS, 5)
	claimed, err := f.Campaigns.ClaimDispatch(context.Background(), campaign.ID)
	require.NoError(t, err)
	require.True(t, claimed)
	flow := newRecipientFlow(f)

	req := &dto.DeleteCampaignRequest{UUID: campaign.UUID.String(), CustomerID: 1}
	err = flow.DeleteCampaign(context.Background(), req, NewClientMetadata("127.0.0.1", "test"))
	assert.True(t, IsCampaignInProcess(err))
}
