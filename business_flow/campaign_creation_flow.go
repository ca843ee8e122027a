package businessflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/waxal-io/waxal/app/dto"
	"github.com/waxal-io/waxal/models"
	"github.com/waxal-io/waxal/repository"
	"github.com/waxal-io/waxal/utils"
)

// CampaignCreationFlow handles campaign creation and membership refresh
type CampaignCreationFlow interface {
	CreateBulk(ctx context.Context, req *dto.CreateBulkCampaignRequest, metadata *ClientMetadata) (*dto.CreateCampaignResponse, error)
	CreateSingle(ctx context.Context, req *dto.CreateSingleCampaignRequest, metadata *ClientMetadata) (*dto.CreateCampaignResponse, error)
	Refresh(ctx context.Context, req *dto.RefreshCampaignRequest, metadata *ClientMetadata) (*dto.RefreshCampaignResponse, error)
	ListCampaigns(ctx context.Context, req *dto.ListCampaignsRequest, metadata *ClientMetadata) (*dto.ListCampaignsResponse, error)
}

// CampaignCreationFlowImpl implements the campaign creation business flow
type CampaignCreationFlowImpl struct {
	campaignRepo  repository.CampaignRepository
	messageRepo   repository.MessageRepository
	templateRepo  repository.TemplateRepository
	contactRepo   repository.ContactRepository
	ownerResolver OwnerResolver
	tx            repository.TxManager
}

// NewCampaignCreationFlow creates a new campaign creation flow instance
func NewCampaignCreationFlow(
	campaignRepo repository.CampaignRepository,
	messageRepo repository.MessageRepository,
	templateRepo repository.TemplateRepository,
	contactRepo repository.ContactRepository,
	ownerResolver OwnerResolver,
	tx repository.TxManager,
) CampaignCreationFlow {
	return &CampaignCreationFlowImpl{
		campaignRepo:  campaignRepo,
		messageRepo:   messageRepo,
		templateRepo:  templateRepo,
		contactRepo:   contactRepo,
		ownerResolver: ownerResolver,
		tx:            tx,
	}
}

// CreateBulk expands a template and a recipient group into one campaign row
// plus one pending message record per contact.
func (f *CampaignCreationFlowImpl) CreateBulk(ctx context.Context, req *dto.CreateBulkCampaignRequest, metadata *ClientMetadata) (*dto.CreateCampaignResponse, error) {
	owner, err := f.ownerResolver.Resolve(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}

	channel := models.MessageChannel(req.Channel)
	template, err := f.lookupTemplate(ctx, req.TemplateID, req.CustomerID, channel)
	if err != nil {
		return nil, err
	}

	group, err := f.contactRepo.GroupByID(ctx, req.GroupID)
	if err != nil {
		return nil, NewBusinessError("GROUP_LOOKUP_FAILED", "Failed to lookup recipient group", err)
	}
	if group == nil || group.CustomerID != req.CustomerID {
		return nil, NewBusinessError("GROUP_NOT_FOUND", "Recipient group not found", ErrGroupNotFound)
	}

	contacts, err := f.contactRepo.ListByGroup(ctx, req.GroupID)
	if err != nil {
		return nil, NewBusinessError("GROUP_LISTING_FAILED", "Failed to list group contacts", err)
	}
	if len(contacts) == 0 {
		return nil, NewBusinessError("GROUP_EMPTY", "Recipient group has no contacts", ErrGroupEmpty)
	}

	bulkID, err := f.generateBulkID(ctx)
	if err != nil {
		return nil, err
	}

	body := RenderTemplate(template.Content, template.Variables, req.Variables)
	segments := utils.SegmentCount(body)

	campaign := &models.Campaign{
		UUID:            uuid.New(),
		BulkID:          bulkID,
		CustomerID:      owner.CustomerID,
		SenderLogin:     owner.Login,
		Channel:         channel,
		IsBulk:          true,
		TemplateID:      &template.ID,
		GroupID:         &group.ID,
		Variables:       req.Variables,
		TotalRecipients: len(contacts),
		TotalPending:    len(contacts),
	}

	err = f.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := f.campaignRepo.Save(txCtx, campaign); err != nil {
			return err
		}
		messages := make([]*models.Message, 0, len(contacts))
		for _, contact := range contacts {
			messages = append(messages, &models.Message{
				CampaignID:     campaign.ID,
				BulkID:         bulkID,
				Receiver:       contact.Phone,
				Body:           body,
				Channel:        channel,
				DeliveryStatus: models.DeliveryStatusPending,
				TotalMessage:   segments,
			})
		}
		return f.messageRepo.SaveBatch(txCtx, messages)
	})
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_CREATION_FAILED", "Campaign creation failed", err)
	}

	return &dto.CreateCampaignResponse{
		UUID:            campaign.UUID.String(),
		BulkID:          campaign.BulkID,
		TotalRecipients: campaign.TotalRecipients,
		CreatedAt:       campaign.CreatedAt.Format(time.RFC3339),
	}, nil
}

// CreateSingle persists a campaign with exactly one recipient record
func (f *CampaignCreationFlowImpl) CreateSingle(ctx context.Context, req *dto.CreateSingleCampaignRequest, metadata *ClientMetadata) (*dto.CreateCampaignResponse, error) {
	owner, err := f.ownerResolver.Resolve(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}

	channel := models.MessageChannel(req.Channel)
	template, err := f.lookupTemplate(ctx, req.TemplateID, req.CustomerID, channel)
	if err != nil {
		return nil, err
	}

	contact, err := f.contactRepo.ByID(ctx, req.ContactID)
	if err != nil {
		return nil, NewBusinessError("CONTACT_LOOKUP_FAILED", "Failed to lookup contact", err)
	}
	if contact == nil || contact.CustomerID != req.CustomerID {
		return nil, NewBusinessError("CONTACT_NOT_FOUND", "Contact not found", ErrContactNotFound)
	}

	bulkID, err := f.generateBulkID(ctx)
	if err != nil {
		return nil, err
	}

	body := RenderTemplate(template.Content, template.Variables, req.Variables)

	campaign := &models.Campaign{
		UUID:            uuid.New(),
		BulkID:          bulkID,
		CustomerID:      owner.CustomerID,
		SenderLogin:     owner.Login,
		Channel:         channel,
		IsBulk:          false,
		TemplateID:      &template.ID,
		Variables:       req.Variables,
		TotalRecipients: 1,
		TotalPending:    1,
	}

	err = f.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := f.campaignRepo.Save(txCtx, campaign); err != nil {
			return err
		}
		return f.messageRepo.Save(txCtx, &models.Message{
			CampaignID:     campaign.ID,
			BulkID:         bulkID,
			Receiver:       contact.Phone,
			Body:           body,
			Channel:        channel,
			DeliveryStatus: models.DeliveryStatusPending,
			TotalMessage:   utils.SegmentCount(body),
		})
	})
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_CREATION_FAILED", "Campaign creation failed", err)
	}

	return &dto.CreateCampaignResponse{
		UUID:            campaign.UUID.String(),
		BulkID:          campaign.BulkID,
		TotalRecipients: 1,
		CreatedAt:       campaign.CreatedAt.Format(time.RFC3339),
	}, nil
}

// Refresh re-resolves the campaign's group and creates pending records only
// for contacts not already present, diffed by receiver. Calling it twice with
// an unchanged group adds nothing.
func (f *CampaignCreationFlowImpl) Refresh(ctx context.Context, req *dto.RefreshCampaignRequest, metadata *ClientMetadata) (*dto.RefreshCampaignResponse, error) {
	campaign, err := lookupOwnedCampaign(ctx, f.campaignRepo, req.UUID, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if !campaign.IsBulk || campaign.GroupID == nil {
		return nil, NewBusinessError("CAMPAIGN_NOT_REFRESHABLE", "Only group-backed bulk campaigns can be refreshed", ErrGroupNotFound)
	}

	contacts, err := f.contactRepo.ListByGroup(ctx, *campaign.GroupID)
	if err != nil {
		return nil, NewBusinessError("GROUP_LISTING_FAILED", "Failed to list group contacts", err)
	}

	existing, err := f.messageRepo.ExistingReceivers(ctx, campaign.BulkID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_REFRESH_FAILED", "Failed to list existing recipients", err)
	}
	known := make(map[string]struct{}, len(existing))
	for _, receiver := range existing {
		known[receiver] = struct{}{}
	}

	// New recipients get the same rendered body the original recipients got,
	// built from the values persisted on the campaign.
	var body string
	var segments int
	if campaign.TemplateID != nil {
		template, err := f.templateRepo.ByID(ctx, *campaign.TemplateID)
		if err != nil {
			return nil, NewBusinessError("TEMPLATE_LOOKUP_FAILED", "Failed to lookup template", err)
		}
		if template != nil {
			body = RenderTemplate(template.Content, template.Variables, campaign.Variables)
			segments = utils.SegmentCount(body)
		}
	}
	if segments == 0 {
		segments = 1
	}

	var added []*models.Message
	for _, contact := range contacts {
		if _, ok := known[contact.Phone]; ok {
			continue
		}
		known[contact.Phone] = struct{}{}
		added = append(added, &models.Message{
			CampaignID:     campaign.ID,
			BulkID:         campaign.BulkID,
			Receiver:       contact.Phone,
			Body:           body,
			Channel:        campaign.Channel,
			DeliveryStatus: models.DeliveryStatusPending,
			TotalMessage:   segments,
		})
	}

	if len(added) > 0 {
		err = f.tx.WithTransaction(ctx, func(txCtx context.Context) error {
			if err := f.messageRepo.SaveBatch(txCtx, added); err != nil {
				return err
			}
			return f.campaignRepo.AddRecipients(txCtx, campaign.ID, len(added))
		})
		if err != nil {
			return nil, NewBusinessError("CAMPAIGN_REFRESH_FAILED", "Campaign refresh failed", err)
		}
	}

	return &dto.RefreshCampaignResponse{
		AddedRecipients: len(added),
		TotalRecipients: campaign.TotalRecipients + len(added),
	}, nil
}

// ListCampaigns returns the owner's campaigns, newest first
func (f *CampaignCreationFlowImpl) ListCampaigns(ctx context.Context, req *dto.ListCampaignsRequest, metadata *ClientMetadata) (*dto.ListCampaignsResponse, error) {
	page, pageSize, err := normalizePagination(req.Page, req.PageSize)
	if err != nil {
		return nil, NewBusinessError("LIST_VALIDATION_FAILED", "Invalid pagination", err)
	}

	filter := models.CampaignFilter{CustomerID: &req.CustomerID}
	if req.Channel != nil {
		channel := models.MessageChannel(*req.Channel)
		filter.Channel = &channel
	}

	total, err := f.campaignRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LISTING_FAILED", "Failed to count campaigns", err)
	}

	campaigns, err := f.campaignRepo.ByFilter(ctx, filter, "created_at DESC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LISTING_FAILED", "Failed to list campaigns", err)
	}

	items := make([]dto.CampaignDTO, 0, len(campaigns))
	for _, c := range campaigns {
		items = append(items, ToCampaignDTO(*c))
	}

	return &dto.ListCampaignsResponse{
		Items: items,
		Pagination: dto.Pagination{
			Page:     page,
			PageSize: pageSize,
			Total:    total,
		},
	}, nil
}

func (f *CampaignCreationFlowImpl) lookupTemplate(ctx context.Context, templateID, customerID uint, channel models.MessageChannel) (*models.Template, error) {
	template, err := f.templateRepo.ByID(ctx, templateID)
	if err != nil {
		return nil, NewBusinessError("TEMPLATE_LOOKUP_FAILED", "Failed to lookup template", err)
	}
	if template == nil || template.CustomerID != customerID {
		return nil, NewBusinessError("TEMPLATE_NOT_FOUND", "Template not found", ErrTemplateNotFound)
	}
	if template.Channel != channel {
		return nil, NewBusinessError("TEMPLATE_CHANNEL_MISMATCH", "Template channel does not match campaign channel", ErrTemplateChannelMismatch)
	}
	return template, nil
}

// lookupOwnedCampaign parses the UUID, loads the campaign, and enforces
// ownership. Shared by every flow that operates on an existing campaign.
func lookupOwnedCampaign(ctx context.Context, campaignRepo repository.CampaignRepository, rawUUID string, customerID uint) (*models.Campaign, error) {
	if rawUUID == "" {
		return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign UUID is required", ErrCampaignUUIDRequired)
	}
	campaignUUID, err := uuid.Parse(rawUUID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign UUID is invalid", ErrCampaignUUIDRequired)
	}

	campaign, err := campaignRepo.ByUUID(ctx, campaignUUID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	if campaign == nil {
		return nil, NewBusinessError("CAMPAIGN_NOT_FOUND", "Campaign not found", ErrCampaignNotFound)
	}
	if campaign.CustomerID != customerID {
		return nil, NewBusinessError("CAMPAIGN_ACCESS_DENIED", "Access denied: campaign belongs to another customer", ErrCampaignAccessDenied)
	}
	return campaign, nil
}

// generateBulkID produces a short uppercase identifier, collision-checked
// against existing campaigns.
func (f *CampaignCreationFlowImpl) generateBulkID(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		candidate := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:utils.BulkIDLength]
		exists, err := f.campaignRepo.BulkIDExists(ctx, candidate)
		if err != nil {
			return "", NewBusinessError("BULK_ID_GENERATION_FAILED", "Failed to check bulk id uniqueness", err)
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", NewBusinessError("BULK_ID_GENERATION_FAILED", "Could not generate a unique bulk id", ErrBulkIDGenerationFailed)
}

// RenderTemplate substitutes template variables into the content. Variables
// appear in the content as {name}; values are matched to names by position.
func RenderTemplate(content string, names []string, values []string) string {
	out := content
	for i, name := range names {
		if i >= len(values) {
			break
		}
		out = strings.ReplaceAll(out, fmt.Sprintf("{%s}", name), values[i])
	}
	return out
}
