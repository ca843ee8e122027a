package testing

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/waxal-io/waxal/models"
	"github.com/waxal-io/waxal/utils"
)

// Fixtures bundles the in-memory repositories one test scenario operates on
type Fixtures struct {
	Campaigns     *InMemoryCampaignRepository
	Messages      *InMemoryMessageRepository
	Subscriptions *InMemorySubscriptionRepository
	Customers     *InMemoryCustomerRepository
	Templates     *InMemoryTemplateRepository
	Contacts      *InMemoryContactRepository
	Histories     *InMemoryCampaignHistoryRepository
}

// NewFixtures creates an empty repository set
func NewFixtures() *Fixtures {
	return &Fixtures{
		Campaigns:     NewInMemoryCampaignRepository(),
		Messages:      NewInMemoryMessageRepository(),
		Subscriptions: NewInMemorySubscriptionRepository(),
		Customers:     NewInMemoryCustomerRepository(),
		Templates:     NewInMemoryTemplateRepository(),
		Contacts:      NewInMemoryContactRepository(),
		Histories:     NewInMemoryCampaignHistoryRepository(),
	}
}

// SeedCustomer inserts an active customer with the given role
func (f *Fixtures) SeedCustomer(id uint, login string, role models.CustomerRole) *models.Customer {
	customer := &models.Customer{
		ID:       id,
		UUID:     uuid.New(),
		Login:    login,
		Role:     role,
		IsActive: true,
	}
	f.Customers.table.insert(customer)
	return customer
}

// SeedSubscription inserts a quota ledger. Nil credits mean unlimited.
func (f *Fixtures) SeedSubscription(customerID uint, smsCredit, whatsappCredit *int64) *models.Subscription {
	sub := &models.Subscription{
		UUID:           uuid.New(),
		CustomerID:     customerID,
		SMSCredit:      smsCredit,
		WhatsAppCredit: whatsappCredit,
	}
	f.Subscriptions.table.insert(sub)
	return sub
}

// SeedCampaign inserts a campaign plus one pending message row per recipient
// count, keeping the campaign counters consistent with the rows.
func (f *Fixtures) SeedCampaign(customerID uint, channel models.MessageChannel, recipients int) *models.Campaign {
	campaign := &models.Campaign{
		UUID:            uuid.New(),
		BulkID:          strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:utils.BulkIDLength],
		CustomerID:      customerID,
		SenderLogin:     fmt.Sprintf("customer-%d", customerID),
		Channel:         channel,
		IsBulk:          recipients > 1,
		TotalRecipients: recipients,
		TotalPending:    recipients,
		CreatedAt:       utils.UTCNow(),
	}
	f.Campaigns.table.insert(campaign)

	for i := 0; i < recipients; i++ {
		f.Messages.table.insert(&models.Message{
			CampaignID:     campaign.ID,
			BulkID:         campaign.BulkID,
			Receiver:       fmt.Sprintf("+2217700%04d", i),
			Body:           "hello",
			Channel:        channel,
			DeliveryStatus: models.DeliveryStatusPending,
			TotalMessage:   1,
			CreatedAt:      utils.UTCNow(),
		})
	}
	return campaign
}

// SeedTemplate inserts a message template for a customer
func (f *Fixtures) SeedTemplate(customerID uint, channel models.MessageChannel, content string, variables []string) *models.Template {
	template := &models.Template{
		CustomerID: customerID,
		Name:       fmt.Sprintf("template-%d", customerID),
		Channel:    channel,
		Content:    content,
		Variables:  variables,
		Language:   "fr",
	}
	f.Templates.table.insert(template)
	return template
}

// SeedGroup inserts a contact group with generated phone numbers
func (f *Fixtures) SeedGroup(groupID, customerID uint, size int, isTest bool) *models.Group {
	group := &models.Group{
		ID:         groupID,
		CustomerID: customerID,
		Name:       fmt.Sprintf("group-%d", groupID),
		IsTest:     isTest,
	}
	contacts := make([]*models.Contact, 0, size)
	for i := 0; i < size; i++ {
		contacts = append(contacts, &models.Contact{
			CustomerID: customerID,
			FirstName:  fmt.Sprintf("First%d", i),
			LastName:   fmt.Sprintf("Last%d", i),
			Phone:      fmt.Sprintf("+2217800%04d", i),
		})
	}
	f.Contacts.AddGroup(group, contacts)
	return group
}
