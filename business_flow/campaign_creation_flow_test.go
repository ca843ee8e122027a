package businessflow

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/waxal-io/waxal/app/dto"
	"github.com/waxal-io/waxal/models"
	testutil "github.com/waxal-io/waxal/testing"
	"github.com/waxal-io/waxal/utils"
)

func newCreationFlow(f *testutil.Fixtures) CampaignCreationFlow {
	return NewCampaignCreationFlow(f.Campaigns, f.Messages, f.Templates, f.Contacts, NewOwnerResolver(f.Customers), testutil.TxManager{})
}

// linkGroup registers a group whose contacts carry exactly the campaign's
// existing receivers and points the campaign at it.
func linkGroup(t *testing.T, f *testutil.Fixtures, campaign *models.Campaign, groupID uint) {
	t.Helper()
	existing, err := f.Messages.ExistingReceivers(context.Background(), campaign.BulkID)
	require.NoError(t, err)

	contacts := make([]*models.Contact, 0, len(existing))
	for _, receiver := range existing {
		contacts = append(contacts, &models.Contact{
			CustomerID: campaign.CustomerID,
			Phone:      receiver,
		})
	}
	f.Contacts.AddGroup(&models.Group{ID: groupID, CustomerID: campaign.CustomerID, Name: "linked"}, contacts)

	campaign.GroupID = &groupID
	require.NoError(t, f.Campaigns.Update(context.Background(), campaign))
}

func TestCreateBulkRendersTemplateAndSeedsRecipients(t *testing.T) {
	f := testutil.NewFixtures()
	f.SeedCustomer(1, "acme", models.RoleUser)
	template := f.SeedTemplate(1, models.ChannelSMS, "Bonjour {name}, commande {order}", []string{"name", "order"})
	f.SeedGroup(3, 1, 5, false)
	flow := newCreationFlow(f)

	resp, err := flow.CreateBulk(context.Background(), &dto.CreateBulkCampaignRequest{
		CustomerID: 1,
		Channel:    "SMS",
		TemplateID: template.ID,
		GroupID:    3,
		Variables:  []string{"Awa", "12"},
	}, NewClientMetadata("127.0.0.1", "test"))
	require.NoError(t, err)
	assert.Len(t, resp.BulkID, utils.BulkIDLength)
	assert.Equal(t, 5, resp.TotalRecipients)

	campaign, err := f.Campaigns.ByUUID(context.Background(), uuid.MustParse(resp.UUID))
	require.NoError(t, err)
	require.NotNil(t, campaign)
	assert.True(t, campaign.CountersConsistent())
	assert.Equal(t, 5, campaign.TotalPending)
	assert.Equal(t, []string{"Awa", "12"}, []string(campaign.Variables))

	messages, err := f.Messages.PendingBatch(context.Background(), resp.BulkID, 10)
	require.NoError(t, err)
	require.Len(t, messages, 5)
	for _, msg := range messages {
		assert.Equal(t, "Bonjour Awa, commande 12", msg.Body)
		assert.Equal(t, 1, msg.TotalMessage)
	}
}

func TestCreateSingleSeedsOneRecipient(t *testing.T) {
	f := testutil.NewFixtures()
	f.SeedCustomer(1, "acme", models.RoleUser)
	template := f.SeedTemplate(1, models.ChannelSMS, "Code: {code}", []string{"code"})
	contact := &models.Contact{CustomerID: 1, Phone: "+221771234567"}
	require.NoError(t, f.Contacts.Save(context.Background(), contact))
	flow := newCreationFlow(f)

	resp, err := flow.CreateSingle(context.Background(), &dto.CreateSingleCampaignRequest{
		CustomerID: 1,
		Channel:    "SMS",
		TemplateID: template.ID,
		ContactID:  contact.ID,
		Variables:  []string{"4242"},
	}, NewClientMetadata("127.0.0.1", "test"))
	require.NoError(t, err)
	assert.Equal(t, 1, resp.TotalRecipients)

	campaign, err := f.Campaigns.ByUUID(context.Background(), uuid.MustParse(resp.UUID))
	require.NoError(t, err)
	require.NotNil(t, campaign)
	assert.False(t, campaign.IsBulk)
	assert.Equal(t, 1, campaign.TotalPending)

	messages, err := f.Messages.PendingBatch(context.Background(), resp.BulkID, 10)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "+221771234567", messages[0].Receiver)
	assert.Equal(t, "Code: 4242", messages[0].Body)
}

func TestRefreshRendersBodiesForAddedRecipients(t *testing.T) {
	f := testutil.NewFixtures()
	f.SeedCustomer(1, "acme", models.RoleUser)
	template := f.SeedTemplate(1, models.ChannelSMS, "Bonjour {name}", []string{"name"})
	group := f.SeedGroup(3, 1, 3, false)
	flow := newCreationFlow(f)

	created, err := flow.CreateBulk(context.Background(), &dto.CreateBulkCampaignRequest{
		CustomerID: 1,
		Channel:    "SMS",
		TemplateID: template.ID,
		GroupID:    3,
		Variables:  []string{"Awa"},
	}, NewClientMetadata("127.0.0.1", "test"))
	require.NoError(t, err)

	// The group gains a member after campaign creation
	grown := make([]*models.Contact, 0, 4)
	for i := 0; i < 4; i++ {
		grown = append(grown, &models.Contact{CustomerID: 1, Phone: fmt.Sprintf("+2217800%04d", i)})
	}
	f.Contacts.AddGroup(group, grown)

	resp, err := flow.Refresh(context.Background(), &dto.RefreshCampaignRequest{
		UUID:       created.UUID,
		CustomerID: 1,
	}, NewClientMetadata("127.0.0.1", "test"))
	require.NoError(t, err)
	assert.Equal(t, 1, resp.AddedRecipients)
	assert.Equal(t, 4, resp.TotalRecipients)

	messages, err := f.Messages.PendingBatch(context.Background(), created.BulkID, 10)
	require.NoError(t, err)
	require.Len(t, messages, 4)
	for _, msg := range messages {
		assert.Equal(t, "Bonjour Awa", msg.Body, "refreshed recipients must get the same rendered body")
	}

	campaign, err := f.Campaigns.ByUUID(context.Background(), uuid.MustParse(created.UUID))
	require.NoError(t, err)
	assert.Equal(t, 4, campaign.TotalRecipients)
	assert.True(t, campaign.CountersConsistent())
}

func TestRefreshWithUnchangedGroupAddsNothing(t *testing.T) {
	f := testutil.NewFixtures()
	f.SeedCustomer(1, "acme", models.RoleUser)
	campaign := f.SeedCampaign(1, models.ChannelSMS, 5)
	linkGroup(t, f, campaign, 7)
	flow := newCreationFlow(f)

	req := &dto.RefreshCampaignRequest{UUID: campaign.UUID.String(), CustomerID: 1}
	for i := 0; i < 2; i++ {
		resp, err := flow.Refresh(context.Background(), req, NewClientMetadata("127.0.0.1", "test"))
		require.NoError(t, err)
		assert.Equal(t, 0, resp.AddedRecipients)
		assert.Equal(t, 5, resp.TotalRecipients)
	}

	count, err := f.Messages.Count(context.Background(), models.MessageFilter{BulkID: &campaign.BulkID})
	require.NoError(t, err)
	assert.EqualValues(t, 5, count)
}

func TestRefreshRejectsCampaignWithoutGroup(t *testing.T) {
	f := testutil.NewFixtures()
	f.SeedCustomer(1, "acme", models.RoleUser)
	campaign := f.SeedCampaign(1, models.ChannelSMS, 3)
	flow := newCreationFlow(f)

	req := &dto.RefreshCampaignRequest{UUID: campaign.UUID.String(), CustomerID: 1}
	_, err := flow.Refresh(context.Background(), req, NewClientMetadata("127.0.0.1", "test"))
	require.Error(t, err)

	var bizErr *BusinessError
	require.ErrorAs(t, err, &bizErr)
	assert.Equal(t, "CAMPAIGN_NOT_REFRESHABLE", bizErr.Code)
}

func TestRefreshRejectsForeignCampaign(t *testing.T) {
	f := testutil.NewFixtures()
	f.SeedCustomer(1, "acme", models.RoleUser)
	f.SeedCustomer(2, "rival", models.RoleUser)
	campaign := f.SeedCampaign(1, models.ChannelSMS, 3)
	flow := newCreationFlow(f)

	req := &dto.RefreshCampaignRequest{UUID: campaign.UUID.String(), CustomerID: 2}
	_, err := flow.Refresh(context.Background(), req, NewClientMetadata("127.0.0.1", "test"))
	assert.True(t, IsCampaignAccessDenied(err))
}

func TestListCampaignsFiltersAndPaginates(t *testing.T) {
	f := testutil.NewFixtures()
	f.SeedCustomer(1, "acme", models.RoleUser)
	f.SeedCustomer(2, "rival", models.RoleUser)
	for i := 0; i < 3; i++ {
		f.SeedCampaign(1, models.ChannelSMS, 2)
	}
	f.SeedCampaign(1, models.ChannelWhatsApp, 2)
	f.SeedCampaign(2, models.ChannelSMS, 2)
	flow := newCreationFlow(f)

	req := &dto.ListCampaignsRequest{CustomerID: 1}
	resp, err := flow.ListCampaigns(context.Background(), req, NewClientMetadata("127.0.0.1", "test"))
	require.NoError(t, err)
	assert.EqualValues(t, 4, resp.Pagination.Total)
	assert.Len(t, resp.Items, 4)

	req.Channel = utils.ToPtr("WHATSAPP")
	resp, err = flow.ListCampaigns(context.Background(), req, NewClientMetadata("127.0.0.1", "test"))
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "WHATSAPP", resp.Items[0].Channel)

	req.Channel = nil
	req.PageSize = 3
	resp, err = flow.ListCampaigns(context.Background(), req, NewClientMetadata("127.0.0.1", "test"))
	require.NoError(t, err)
	assert.Len(t, resp.Items, 3)

	req.Page = 2
	resp, err = flow.ListCampaigns(context.Background(), req, NewClientMetadata("127.0.0.1", "test"))
	require.NoError(t, err)
	assert.Len(t, resp.Items, 1)
}
