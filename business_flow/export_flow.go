package businessflow

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/waxal-io/waxal/app/dto"
	"github.com/waxal-io/waxal/models"
	"github.com/waxal-io/waxal/repository"
	"github.com/xuri/excelize/v2"
)

// RecipientFlow lists, exports, and deletes a campaign's recipient records
type RecipientFlow interface {
	ListRecipients(ctx context.Context, req *dto.ListRecipientsRequest, metadata *ClientMetadata) (*dto.ListRecipientsResponse, error)
	ExportRecipients(ctx context.Context, req *dto.ListRecipientsRequest, metadata *ClientMetadata) (string, []byte, error)
	DeleteCampaign(ctx context.Context, req *dto.DeleteCampaignRequest, metadata *ClientMetadata) error
}

// RecipientFlowImpl implements the recipient listing business flow
type RecipientFlowImpl struct {
	campaignRepo  repository.CampaignRepository
	messageRepo   repository.MessageRepository
	ownerResolver OwnerResolver
	tx            repository.TxManager
}

// NewRecipientFlow creates a new recipient flow instance
func NewRecipientFlow(
	campaignRepo repository.CampaignRepository,
	messageRepo repository.MessageRepository,
	ownerResolver OwnerResolver,
	tx repository.TxManager,
) RecipientFlow {
	return &RecipientFlowImpl{
		campaignRepo:  campaignRepo,
		messageRepo:   messageRepo,
		ownerResolver: ownerResolver,
		tx:            tx,
	}
}

// ListRecipients returns the campaign's recipient records matching the
// status, receiver substring, and send-date filters.
func (f *RecipientFlowImpl) ListRecipients(ctx context.Context, req *dto.ListRecipientsRequest, metadata *ClientMetadata) (*dto.ListRecipientsResponse, error) {
	page, pageSize, err := normalizePagination(req.Page, req.PageSize)
	if err != nil {
		return nil, NewBusinessError("LIST_VALIDATION_FAILED", "Invalid pagination", err)
	}

	filter, err := f.buildFilter(ctx, req)
	if err != nil {
		return nil, err
	}

	total, err := f.messageRepo.Count(ctx, *filter)
	if err != nil {
		return nil, NewBusinessError("RECIPIENT_LISTING_FAILED", "Failed to count recipients", err)
	}

	messages, err := f.messageRepo.ByFilter(ctx, *filter, "id ASC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("RECIPIENT_LISTING_FAILED", "Failed to list recipients", err)
	}

	items := make([]dto.RecipientDTO, 0, len(messages))
	for _, m := range messages {
		items = append(items, ToRecipientDTO(*m))
	}

	return &dto.ListRecipientsResponse{
		Items: items,
		Pagination: dto.Pagination{
			Page:     page,
			PageSize: pageSize,
			Total:    total,
		},
	}, nil
}

// ExportRecipients builds an XLSX workbook with every recipient record
// matching the filters, ignoring pagination.
func (f *RecipientFlowImpl) ExportRecipients(ctx context.Context, req *dto.ListRecipientsRequest, metadata *ClientMetadata) (string, []byte, error) {
	filter, err := f.buildFilter(ctx, req)
	if err != nil {
		return "", nil, err
	}

	messages, err := f.messageRepo.ByFilter(ctx, *filter, "id ASC", 0, 0)
	if err != nil {
		return "", nil, NewBusinessError("RECIPIENT_EXPORT_FAILED", "Failed to list recipients", err)
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	sheet := "Recipients"
	xl.SetSheetName(xl.GetSheetName(0), sheet)

	header := []string{"receiver", "delivery_status", "status", "send_date", "message_id", "last_error", "segments"}
	_ = xl.SetSheetRow(sheet, "A1", &header)

	for i, m := range messages {
		status := ""
		if m.Status != nil {
			status = string(*m.Status)
		}
		sendDate := ""
		if m.SendDate != nil {
			sendDate = m.SendDate.UTC().Format(time.RFC3339)
		}
		messageID := ""
		if m.MessageID != nil {
			messageID = *m.MessageID
		}
		lastError := ""
		if m.LastError != nil {
			lastError = *m.LastError
		}
		record := []string{
			m.Receiver,
			string(m.DeliveryStatus),
			status,
			sendDate,
			messageID,
			lastError,
			strconv.Itoa(m.TotalMessage),
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = xl.SetSheetRow(sheet, cellRef, &record)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("RECIPIENT_EXPORT_FAILED", "Failed to write Excel file", err)
	}

	filename := fmt.Sprintf("campaign_%s_recipients.xlsx", req.UUID)
	return filename, buf.Bytes(), nil
}

// DeleteCampaign removes the campaign and its recipient records. Deletion is
// refused while a dispatch is active.
func (f *RecipientFlowImpl) DeleteCampaign(ctx context.Context, req *dto.DeleteCampaignRequest, metadata *ClientMetadata) error {
	if _, err := f.ownerResolver.Resolve(ctx, req.CustomerID); err != nil {
		return err
	}

	campaign, err := lookupOwnedCampaign(ctx, f.campaignRepo, req.UUID, req.CustomerID)
	if err != nil {
		return err
	}
	if campaign.InProcess {
		return NewBusinessError("CONFLICT", "Cannot delete while campaign is being dispatched", ErrCampaignInProcess)
	}

	err = f.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := f.messageRepo.DeleteByCampaign(txCtx, campaign.ID); err != nil {
			return err
		}
		return f.campaignRepo.Delete(txCtx, campaign.ID)
	})
	if err != nil {
		return NewBusinessError("CAMPAIGN_DELETION_FAILED", "Campaign deletion failed", err)
	}

	return nil
}

// buildFilter resolves ownership and translates the request filters
func (f *RecipientFlowImpl) buildFilter(ctx context.Context, req *dto.ListRecipientsRequest) (*models.MessageFilter, error) {
	if _, err := f.ownerResolver.Resolve(ctx, req.CustomerID); err != nil {
		return nil, err
	}

	campaign, err := lookupOwnedCampaign(ctx, f.campaignRepo, req.UUID, req.CustomerID)
	if err != nil {
		return nil, err
	}

	filter := &models.MessageFilter{BulkID: &campaign.BulkID}
	if req.DeliveryStatus != nil {
		status := models.DeliveryStatus(*req.DeliveryStatus)
		filter.DeliveryStatus = &status
	}
	if req.Receiver != nil && *req.Receiver != "" {
		filter.ReceiverLike = req.Receiver
	}
	filter.SentAfter = req.SentAfter
	filter.SentBefore = req.SentBefore

	return filter, nil
}
