// Package testing provides in-memory repository implementations and fixtures
// for exercising flows and the dispatch engine without a database.
package testing

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/waxal-io/waxal/models"
)

// TxManager satisfies repository.TxManager without a database. The in-memory
// repositories apply writes immediately, so the function runs as-is.
type TxManager struct{}

// WithTransaction runs fn directly
func (TxManager) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

// memTable is a mutex-guarded map of entities keyed by ID. Reads hand out
// copies so callers never share memory with the store, matching the value
// semantics of rows loaded from the database.
type memTable[T any] struct {
	mu    sync.Mutex
	seq   uint
	items map[uint]*T
	getID func(*T) uint
	setID func(*T, uint)
}

func newMemTable[T any](getID func(*T) uint, setID func(*T, uint)) *memTable[T] {
	return &memTable[T]{
		items: make(map[uint]*T),
		getID: getID,
		setID: setID,
	}
}

func (t *memTable[T]) insert(entity *T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.insertLocked(entity)
}

func (t *memTable[T]) insertLocked(entity *T) {
	if t.getID(entity) == 0 {
		t.seq++
		t.setID(entity, t.seq)
	} else if t.getID(entity) > t.seq {
		t.seq = t.getID(entity)
	}
	cp := *entity
	t.items[t.getID(entity)] = &cp
}

func (t *memTable[T]) byID(id uint) *T {
	t.mu.Lock()
	defer t.mu.Unlock()
	if item, ok := t.items[id]; ok {
		cp := *item
		return &cp
	}
	return nil
}

func (t *memTable[T]) replace(entity *T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := *entity
	t.items[t.getID(entity)] = &cp
}

func (t *memTable[T]) delete(id uint) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.items, id)
}

// mutate applies fn to the stored entity under the table lock, the in-memory
// stand-in for an atomic UPDATE. It returns false when the entity does not
// exist or fn declines the mutation.
func (t *memTable[T]) mutate(id uint, fn func(*T) bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	item, ok := t.items[id]
	if !ok {
		return false
	}
	return fn(item)
}

// list returns copies of every entity matching fn, ordered by ID
func (t *memTable[T]) list(fn func(*T) bool) []*T {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]uint, 0, len(t.items))
	for id, item := range t.items {
		if fn == nil || fn(item) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	result := make([]*T, 0, len(ids))
	for _, id := range ids {
		cp := *t.items[id]
		result = append(result, &cp)
	}
	return result
}

func paginate[T any](items []*T, limit, offset int) []*T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// InMemoryCampaignRepository implements repository.CampaignRepository in memory
type InMemoryCampaignRepository struct {
	table *memTable[models.Campaign]
}

func NewInMemoryCampaignRepository() *InMemoryCampaignRepository {
	return &InMemoryCampaignRepository{
		table: newMemTable(
			func(c *models.Campaign) uint { return c.ID },
			func(c *models.Campaign, id uint) { c.ID = id },
		),
	}
}

func (r *InMemoryCampaignRepository) ByID(ctx context.Context, id uint) (*models.Campaign, error) {
	return r.table.byID(id), nil
}

func (r *InMemoryCampaignRepository) ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error) {
	items := r.table.list(func(c *models.Campaign) bool { return matchCampaign(c, filter) })
	return paginate(items, limit, offset), nil
}

func matchCampaign(c *models.Campaign, f models.CampaignFilter) bool {
	if f.ID != nil && c.ID != *f.ID {
		return false
	}
	if f.UUID != nil && c.UUID != *f.UUID {
		return false
	}
	if f.BulkID != nil && c.BulkID != *f.BulkID {
		return false
	}
	if f.CustomerID != nil && c.CustomerID != *f.CustomerID {
		return false
	}
	if f.Channel != nil && c.Channel != *f.Channel {
		return false
	}
	if f.IsBulk != nil && c.IsBulk != *f.IsBulk {
		return false
	}
	if f.InProcess != nil && c.InProcess != *f.InProcess {
		return false
	}
	return true
}

func (r *InMemoryCampaignRepository) Save(ctx context.Context, entity *models.Campaign) error {
	_ = entity.BeforeCreate()
	r.table.insert(entity)
	return nil
}

func (r *InMemoryCampaignRepository) SaveBatch(ctx context.Context, entities []*models.Campaign) error {
	for _, entity := range entities {
		if err := r.Save(ctx, entity); err != nil {
			return err
		}
	}
	return nil
}

func (r *InMemoryCampaignRepository) Update(ctx context.Context, entity *models.Campaign) error {
	_ = entity.BeforeUpdate()
	r.table.replace(entity)
	return nil
}

func (r *InMemoryCampaignRepository) Count(ctx context.Context, filter models.CampaignFilter) (int64, error) {
	return int64(len(r.table.list(func(c *models.Campaign) bool { return matchCampaign(c, filter) }))), nil
}

func (r *InMemoryCampaignRepository) ByUUID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	for _, c := range r.table.list(nil) {
		if c.UUID == id {
			return c, nil
		}
	}
	return nil, nil
}

func (r *InMemoryCampaignRepository) ByBulkID(ctx context.Context, bulkID string) (*models.Campaign, error) {
	for _, c := range r.table.list(nil) {
		if c.BulkID == bulkID {
			return c, nil
		}
	}
	return nil, nil
}

func (r *InMemoryCampaignRepository) BulkIDExists(ctx context.Context, bulkID string) (bool, error) {
	c, err := r.ByBulkID(ctx, bulkID)
	return c != nil, err
}

func (r *InMemoryCampaignRepository) ClaimDispatch(ctx context.Context, campaignID uint) (bool, error) {
	claimed := r.table.mutate(campaignID, func(c *models.Campaign) bool {
		if c.InProcess {
			return false
		}
		c.InProcess = true
		return true
	})
	return claimed, nil
}

func (r *InMemoryCampaignRepository) ReleaseDispatch(ctx context.Context, campaignID uint) error {
	r.table.mutate(campaignID, func(c *models.Campaign) bool {
		c.InProcess = false
		return true
	})
	return nil
}

func (r *InMemoryCampaignRepository) ApplyResult(ctx context.Context, campaignID uint, delivered bool, count int) error {
	r.table.mutate(campaignID, func(c *models.Campaign) bool {
		c.TotalPending -= count
		if delivered {
			c.TotalSuccess += count
		} else {
			c.TotalFailed += count
		}
		return true
	})
	return nil
}

func (r *InMemoryCampaignRepository) AddRecipients(ctx context.Context, campaignID uint, count int) error {
	r.table.mutate(campaignID, func(c *models.Campaign) bool {
		c.TotalRecipients += count
		c.TotalPending += count
		return true
	})
	return nil
}

func (r *InMemoryCampaignRepository) ApplyReset(ctx context.Context, campaignID uint, count int) error {
	r.table.mutate(campaignID, func(c *models.Campaign) bool {
		c.TotalFailed -= count
		c.TotalPending += count
		return true
	})
	return nil
}

func (r *InMemoryCampaignRepository) SyncRates(ctx context.Context, campaignID uint) error {
	r.table.mutate(campaignID, func(c *models.Campaign) bool {
		c.RecomputeRates()
		return true
	})
	return nil
}

func (r *InMemoryCampaignRepository) MarkRetry(ctx context.Context, campaignID uint) error {
	r.table.mutate(campaignID, func(c *models.Campaign) bool {
		now := time.Now().UTC()
		c.RetryCount++
		c.LastRetryDate = &now
		return true
	})
	return nil
}

func (r *InMemoryCampaignRepository) SetIsSent(ctx context.Context, campaignID uint, isSent *bool) error {
	r.table.mutate(campaignID, func(c *models.Campaign) bool {
		c.IsSent = isSent
		return true
	})
	return nil
}

func (r *InMemoryCampaignRepository) Delete(ctx context.Context, campaignID uint) error {
	r.table.delete(campaignID)
	return nil
}

// InMemoryMessageRepository implements repository.MessageRepository in memory
type InMemoryMessageRepository struct {
	table *memTable[models.Message]
}

func NewInMemoryMessageRepository() *InMemoryMessageRepository {
	return &InMemoryMessageRepository{
		table: newMemTable(
			func(m *models.Message) uint { return m.ID },
			func(m *models.Message, id uint) { m.ID = id },
		),
	}
}

func (r *InMemoryMessageRepository) ByID(ctx context.Context, id uint) (*models.Message, error) {
	return r.table.byID(id), nil
}

func (r *InMemoryMessageRepository) ByFilter(ctx context.Context, filter models.MessageFilter, orderBy string, limit, offset int) ([]*models.Message, error) {
	items := r.table.list(func(m *models.Message) bool { return matchMessage(m, filter) })
	return paginate(items, limit, offset), nil
}

func matchMessage(m *models.Message, f models.MessageFilter) bool {
	if f.ID != nil && m.ID != *f.ID {
		return false
	}
	if f.CampaignID != nil && m.CampaignID != *f.CampaignID {
		return false
	}
	if f.BulkID != nil && m.BulkID != *f.BulkID {
		return false
	}
	if f.Receiver != nil && m.Receiver != *f.Receiver {
		return false
	}
	if f.ReceiverLike != nil && !strings.Contains(m.Receiver, *f.ReceiverLike) {
		return false
	}
	if f.DeliveryStatus != nil && m.DeliveryStatus != *f.DeliveryStatus {
		return false
	}
	if f.Channel != nil && m.Channel != *f.Channel {
		return false
	}
	if f.SentAfter != nil && (m.SendDate == nil || m.SendDate.Before(*f.SentAfter)) {
		return false
	}
	if f.SentBefore != nil && (m.SendDate == nil || m.SendDate.After(*f.SentBefore)) {
		return false
	}
	return true
}

func (r *InMemoryMessageRepository) Save(ctx context.Context, entity *models.Message) error {
	if entity.DeliveryStatus == "" {
		entity.DeliveryStatus = models.DeliveryStatusPending
	}
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = time.Now().UTC()
	}
	r.table.insert(entity)
	return nil
}

func (r *InMemoryMessageRepository) SaveBatch(ctx context.Context, entities []*models.Message) error {
	for _, entity := range entities {
		if err := r.Save(ctx, entity); err != nil {
			return err
		}
	}
	return nil
}

func (r *InMemoryMessageRepository) Update(ctx context.Context, entity *models.Message) error {
	entity.UpdatedAt = time.Now().UTC()
	r.table.replace(entity)
	return nil
}

func (r *InMemoryMessageRepository) Count(ctx context.Context, filter models.MessageFilter) (int64, error) {
	return int64(len(r.table.list(func(m *models.Message) bool { return matchMessage(m, filter) }))), nil
}

func (r *InMemoryMessageRepository) PendingBatch(ctx context.Context, bulkID string, size int) ([]*models.Message, error) {
	pending := r.table.list(func(m *models.Message) bool {
		return m.BulkID == bulkID && m.DeliveryStatus == models.DeliveryStatusPending
	})
	return paginate(pending, size, 0), nil
}

func (r *InMemoryMessageRepository) CountByStatus(ctx context.Context, bulkID string) (models.StatusCounts, error) {
	var counts models.StatusCounts
	for _, m := range r.table.list(func(m *models.Message) bool { return m.BulkID == bulkID }) {
		switch m.DeliveryStatus {
		case models.DeliveryStatusSent:
			counts.Sent++
		case models.DeliveryStatusFailed:
			counts.Failed++
		default:
			counts.Pending++
		}
	}
	return counts, nil
}

func (r *InMemoryMessageRepository) ExistingReceivers(ctx context.Context, bulkID string) ([]string, error) {
	var receivers []string
	for _, m := range r.table.list(func(m *models.Message) bool { return m.BulkID == bulkID }) {
		receivers = append(receivers, m.Receiver)
	}
	return receivers, nil
}

func (r *InMemoryMessageRepository) MarkSent(ctx context.Context, messageID uint, providerID string) error {
	r.table.mutate(messageID, func(m *models.Message) bool {
		now := time.Now().UTC()
		status := models.MessageStatusSent
		m.DeliveryStatus = models.DeliveryStatusSent
		m.Status = &status
		m.SendDate = &now
		m.MessageID = &providerID
		m.LastError = nil
		return true
	})
	return nil
}

func (r *InMemoryMessageRepository) MarkFailed(ctx context.Context, messageID uint, reason string) error {
	r.table.mutate(messageID, func(m *models.Message) bool {
		now := time.Now().UTC()
		status := models.MessageStatusFailed
		m.DeliveryStatus = models.DeliveryStatusFailed
		m.Status = &status
		m.SendDate = &now
		m.LastError = &reason
		return true
	})
	return nil
}

func (r *InMemoryMessageRepository) ResetFailed(ctx context.Context, bulkID string) (int64, error) {
	var moved int64
	for _, m := range r.table.list(func(m *models.Message) bool {
		return m.BulkID == bulkID && m.DeliveryStatus == models.DeliveryStatusFailed
	}) {
		r.table.mutate(m.ID, func(msg *models.Message) bool {
			msg.DeliveryStatus = models.DeliveryStatusPending
			msg.Status = nil
			msg.LastError = nil
			return true
		})
		moved++
	}
	return moved, nil
}

func (r *InMemoryMessageRepository) HasFailed(ctx context.Context, bulkID string) (bool, error) {
	failed := r.table.list(func(m *models.Message) bool {
		return m.BulkID == bulkID && m.DeliveryStatus == models.DeliveryStatusFailed
	})
	return len(failed) > 0, nil
}

func (r *InMemoryMessageRepository) DeleteByCampaign(ctx context.Context, campaignID uint) error {
	for _, m := range r.table.list(func(m *models.Message) bool { return m.CampaignID == campaignID }) {
		r.table.delete(m.ID)
	}
	return nil
}

// InMemorySubscriptionRepository implements repository.SubscriptionRepository in memory
type InMemorySubscriptionRepository struct {
	table *memTable[models.Subscription]
}

func NewInMemorySubscriptionRepository() *InMemorySubscriptionRepository {
	return &InMemorySubscriptionRepository{
		table: newMemTable(
			func(s *models.Subscription) uint { return s.ID },
			func(s *models.Subscription, id uint) { s.ID = id },
		),
	}
}

func (r *InMemorySubscriptionRepository) ByID(ctx context.Context, id uint) (*models.Subscription, error) {
	return r.table.byID(id), nil
}

func (r *InMemorySubscriptionRepository) ByFilter(ctx context.Context, filter models.SubscriptionFilter, orderBy string, limit, offset int) ([]*models.Subscription, error) {
	items := r.table.list(func(s *models.Subscription) bool {
		if filter.ID != nil && s.ID != *filter.ID {
			return false
		}
		if filter.CustomerID != nil && s.CustomerID != *filter.CustomerID {
			return false
		}
		return true
	})
	return paginate(items, limit, offset), nil
}

func (r *InMemorySubscriptionRepository) Save(ctx context.Context, entity *models.Subscription) error {
	_ = entity.BeforeCreate()
	r.table.insert(entity)
	return nil
}

func (r *InMemorySubscriptionRepository) SaveBatch(ctx context.Context, entities []*models.Subscription) error {
	for _, entity := range entities {
		if err := r.Save(ctx, entity); err != nil {
			return err
		}
	}
	return nil
}

func (r *InMemorySubscriptionRepository) Update(ctx context.Context, entity *models.Subscription) error {
	r.table.replace(entity)
	return nil
}

func (r *InMemorySubscriptionRepository) Count(ctx context.Context, filter models.SubscriptionFilter) (int64, error) {
	items, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(items)), nil
}

func (r *InMemorySubscriptionRepository) ByCustomerID(ctx context.Context, customerID uint) (*models.Subscription, error) {
	for _, s := range r.table.list(nil) {
		if s.CustomerID == customerID {
			return s, nil
		}
	}
	return nil, nil
}

func (r *InMemorySubscriptionRepository) DecrementCredit(ctx context.Context, customerID uint, channel models.MessageChannel, count int64) error {
	sub, err := r.ByCustomerID(ctx, customerID)
	if err != nil || sub == nil {
		return err
	}
	r.table.mutate(sub.ID, func(s *models.Subscription) bool {
		var credit **int64
		if channel == models.ChannelWhatsApp {
			credit = &s.WhatsAppCredit
		} else {
			credit = &s.SMSCredit
		}
		if *credit == nil {
			return true // unlimited
		}
		remaining := **credit - count
		if remaining < 0 {
			remaining = 0
		}
		*credit = &remaining
		return true
	})
	return nil
}

// InMemoryCustomerRepository implements repository.CustomerRepository in memory
type InMemoryCustomerRepository struct {
	table *memTable[models.Customer]
}

func NewInMemoryCustomerRepository() *InMemoryCustomerRepository {
	return &InMemoryCustomerRepository{
		table: newMemTable(
			func(c *models.Customer) uint { return c.ID },
			func(c *models.Customer, id uint) { c.ID = id },
		),
	}
}

func (r *InMemoryCustomerRepository) ByID(ctx context.Context, id uint) (*models.Customer, error) {
	return r.table.byID(id), nil
}

func (r *InMemoryCustomerRepository) ByFilter(ctx context.Context, filter models.CustomerFilter, orderBy string, limit, offset int) ([]*models.Customer, error) {
	items := r.table.list(func(c *models.Customer) bool {
		if filter.ID != nil && c.ID != *filter.ID {
			return false
		}
		if filter.Login != nil && c.Login != *filter.Login {
			return false
		}
		if filter.Role != nil && c.Role != *filter.Role {
			return false
		}
		return true
	})
	return paginate(items, limit, offset), nil
}

func (r *InMemoryCustomerRepository) Save(ctx context.Context, entity *models.Customer) error {
	_ = entity.BeforeCreate()
	r.table.insert(entity)
	return nil
}

func (r *InMemoryCustomerRepository) SaveBatch(ctx context.Context, entities []*models.Customer) error {
	for _, entity := range entities {
		if err := r.Save(ctx, entity); err != nil {
			return err
		}
	}
	return nil
}

func (r *InMemoryCustomerRepository) Update(ctx context.Context, entity *models.Customer) error {
	r.table.replace(entity)
	return nil
}

func (r *InMemoryCustomerRepository) Count(ctx context.Context, filter models.CustomerFilter) (int64, error) {
	items, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(items)), nil
}

func (r *InMemoryCustomerRepository) ByLogin(ctx context.Context, login string) (*models.Customer, error) {
	for _, c := range r.table.list(nil) {
		if c.Login == login {
			return c, nil
		}
	}
	return nil, nil
}

// InMemoryTemplateRepository implements repository.TemplateRepository in memory
type InMemoryTemplateRepository struct {
	table *memTable[models.Template]
}

func NewInMemoryTemplateRepository() *InMemoryTemplateRepository {
	return &InMemoryTemplateRepository{
		table: newMemTable(
			func(t *models.Template) uint { return t.ID },
			func(t *models.Template, id uint) { t.ID = id },
		),
	}
}

func (r *InMemoryTemplateRepository) ByID(ctx context.Context, id uint) (*models.Template, error) {
	return r.table.byID(id), nil
}

func (r *InMemoryTemplateRepository) ByFilter(ctx context.Context, filter models.TemplateFilter, orderBy string, limit, offset int) ([]*models.Template, error) {
	items := r.table.list(func(t *models.Template) bool {
		if filter.ID != nil && t.ID != *filter.ID {
			return false
		}
		if filter.CustomerID != nil && t.CustomerID != *filter.CustomerID {
			return false
		}
		if filter.Channel != nil && t.Channel != *filter.Channel {
			return false
		}
		if filter.Name != nil && t.Name != *filter.Name {
			return false
		}
		return true
	})
	return paginate(items, limit, offset), nil
}

func (r *InMemoryTemplateRepository) Save(ctx context.Context, entity *models.Template) error {
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = time.Now().UTC()
	}
	r.table.insert(entity)
	return nil
}

func (r *InMemoryTemplateRepository) SaveBatch(ctx context.Context, entities []*models.Template) error {
	for _, entity := range entities {
		if err := r.Save(ctx, entity); err != nil {
			return err
		}
	}
	return nil
}

func (r *InMemoryTemplateRepository) Update(ctx context.Context, entity *models.Template) error {
	r.table.replace(entity)
	return nil
}

func (r *InMemoryTemplateRepository) Count(ctx context.Context, filter models.TemplateFilter) (int64, error) {
	items, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(items)), nil
}

// InMemoryContactRepository implements repository.ContactRepository in memory
type InMemoryContactRepository struct {
	table  *memTable[models.Contact]
	mu     sync.Mutex
	groups map[uint]*models.Group
	// members maps group ID to the ordered contact IDs of the group
	members map[uint][]uint
}

func NewInMemoryContactRepository() *InMemoryContactRepository {
	return &InMemoryContactRepository{
		table: newMemTable(
			func(c *models.Contact) uint { return c.ID },
			func(c *models.Contact, id uint) { c.ID = id },
		),
		groups:  make(map[uint]*models.Group),
		members: make(map[uint][]uint),
	}
}

// AddGroup registers a group and its member contacts
func (r *InMemoryContactRepository) AddGroup(group *models.Group, contacts []*models.Contact) {
	for _, contact := range contacts {
		r.table.insert(contact)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *group
	r.groups[group.ID] = &cp
	ids := make([]uint, 0, len(contacts))
	for _, contact := range contacts {
		ids = append(ids, contact.ID)
	}
	r.members[group.ID] = ids
}

func (r *InMemoryContactRepository) ByID(ctx context.Context, id uint) (*models.Contact, error) {
	return r.table.byID(id), nil
}

func (r *InMemoryContactRepository) ByFilter(ctx context.Context, filter models.ContactFilter, orderBy string, limit, offset int) ([]*models.Contact, error) {
	items := r.table.list(func(c *models.Contact) bool {
		if filter.ID != nil && c.ID != *filter.ID {
			return false
		}
		if filter.CustomerID != nil && c.CustomerID != *filter.CustomerID {
			return false
		}
		if filter.Phone != nil && c.Phone != *filter.Phone {
			return false
		}
		return true
	})
	return paginate(items, limit, offset), nil
}

func (r *InMemoryContactRepository) Save(ctx context.Context, entity *models.Contact) error {
	r.table.insert(entity)
	return nil
}

func (r *InMemoryContactRepository) SaveBatch(ctx context.Context, entities []*models.Contact) error {
	for _, entity := range entities {
		if err := r.Save(ctx, entity); err != nil {
			return err
		}
	}
	return nil
}

func (r *InMemoryContactRepository) Update(ctx context.Context, entity *models.Contact) error {
	r.table.replace(entity)
	return nil
}

func (r *InMemoryContactRepository) Count(ctx context.Context, filter models.ContactFilter) (int64, error) {
	items, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(items)), nil
}

func (r *InMemoryContactRepository) ListByGroup(ctx context.Context, groupID uint) ([]*models.Contact, error) {
	r.mu.Lock()
	ids := append([]uint(nil), r.members[groupID]...)
	r.mu.Unlock()
	contacts := make([]*models.Contact, 0, len(ids))
	for _, id := range ids {
		if contact := r.table.byID(id); contact != nil {
			contacts = append(contacts, contact)
		}
	}
	return contacts, nil
}

func (r *InMemoryContactRepository) GroupByID(ctx context.Context, groupID uint) (*models.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if group, ok := r.groups[groupID]; ok {
		cp := *group
		return &cp, nil
	}
	return nil, nil
}

// InMemoryCampaignHistoryRepository implements repository.CampaignHistoryRepository in memory
type InMemoryCampaignHistoryRepository struct {
	table *memTable[models.CampaignHistory]
}

func NewInMemoryCampaignHistoryRepository() *InMemoryCampaignHistoryRepository {
	return &InMemoryCampaignHistoryRepository{
		table: newMemTable(
			func(h *models.CampaignHistory) uint { return h.ID },
			func(h *models.CampaignHistory, id uint) { h.ID = id },
		),
	}
}

func (r *InMemoryCampaignHistoryRepository) ByID(ctx context.Context, id uint) (*models.CampaignHistory, error) {
	return r.table.byID(id), nil
}

func (r *InMemoryCampaignHistoryRepository) ByFilter(ctx context.Context, filter models.CampaignHistoryFilter, orderBy string, limit, offset int) ([]*models.CampaignHistory, error) {
	items := r.table.list(func(h *models.CampaignHistory) bool {
		if filter.ID != nil && h.ID != *filter.ID {
			return false
		}
		if filter.CampaignID != nil && h.CampaignID != *filter.CampaignID {
			return false
		}
		if filter.BulkID != nil && h.BulkID != *filter.BulkID {
			return false
		}
		if filter.Action != nil && h.Action != *filter.Action {
			return false
		}
		return true
	})
	return paginate(items, limit, offset), nil
}

func (r *InMemoryCampaignHistoryRepository) Save(ctx context.Context, entity *models.CampaignHistory) error {
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = time.Now().UTC()
	}
	r.table.insert(entity)
	return nil
}

func (r *InMemoryCampaignHistoryRepository) SaveBatch(ctx context.Context, entities []*models.CampaignHistory) error {
	for _, entity := range entities {
		if err := r.Save(ctx, entity); err != nil {
			return err
		}
	}
	return nil
}

func (r *InMemoryCampaignHistoryRepository) Update(ctx context.Context, entity *models.CampaignHistory) error {
	r.table.replace(entity)
	return nil
}

func (r *InMemoryCampaignHistoryRepository) Count(ctx context.Context, filter models.CampaignHistoryFilter) (int64, error) {
	items, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(items)), nil
}

func (r *InMemoryCampaignHistoryRepository) ByCampaign(ctx context.Context, campaignID uint) ([]*models.CampaignHistory, error) {
	return r.table.list(func(h *models.CampaignHistory) bool { return h.CampaignID == campaignID }), nil
}
