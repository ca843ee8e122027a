package testing

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/waxal-io/waxal/models"
)

func TestApplyResultConcurrentKeepsCountersConsistent(t *testing.T) {
	f := NewFixtures()
	f.SeedCustomer(1, "acme", models.RoleUser)
	campaign := f.SeedCampaign(1, models.ChannelSMS, 200)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		delivered := w%4 != 0
		wg.Add(1)
		go func(delivered bool) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				_ = f.Campaigns.ApplyResult(context.Background(), campaign.ID, delivered, 1)
			}
		}(delivered)
	}
	wg.Wait()

	got, err := f.Campaigns.ByID(context.Background(), campaign.ID)
	require.NoError(t, err)
	assert.True(t, got.CountersConsistent())
	assert.Equal(t, 200, got.TotalRecipients)
	assert.Equal(t, 150, got.TotalSuccess)
	assert.Equal(t, 50, got.TotalFailed)
	assert.Equal(t, 0, got.TotalPending)
}

func TestDecrementCreditFloorsAtZero(t *testing.T) {
	f := NewFixtures()
	credit := int64(10)
	f.SeedSubscription(1, &credit, nil)

	require.NoError(t, f.Subscriptions.DecrementCredit(context.Background(), 1, models.ChannelSMS, 25))

	sub, err := f.Subscriptions.ByCustomerID(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, sub.SMSCredit)
	assert.EqualValues(t, 0, *sub.SMSCredit)
}

func TestListReturnsCopies(t *testing.T) {
	f := NewFixtures()
	f.SeedCustomer(1, "acme", models.RoleUser)
	campaign := f.SeedCampaign(1, models.ChannelSMS, 1)

	first, err := f.Campaigns.ByID(context.Background(), campaign.ID)
	require.NoError(t, err)
	first.TotalSuccess = 99

	second, err := f.Campaigns.ByID(context.Background(), campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, second.TotalSuccess)
}
