// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"log"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/waxal-io/waxal/app/dto"
	businessflow "github.com/waxal-io/waxal/business_flow"
)

// CampaignHandlerInterface defines the contract for campaign handlers
type CampaignHandlerInterface interface {
	CreateBulkCampaign(c fiber.Ctx) error
	CreateSingleCampaign(c fiber.Ctx) error
	RefreshCampaign(c fiber.Ctx) error
	SendCampaign(c fiber.Ctx) error
	StopCampaign(c fiber.Ctx) error
	ResetCampaign(c fiber.Ctx) error
	ResetNeeded(c fiber.Ctx) error
	ResetStatistics(c fiber.Ctx) error
	Progress(c fiber.Ctx) error
	History(c fiber.Ctx) error
	ListCampaigns(c fiber.Ctx) error
	ListRecipients(c fiber.Ctx) error
	ExportRecipients(c fiber.Ctx) error
	DeleteCampaign(c fiber.Ctx) error
}

// CampaignHandler handles campaign-related HTTP requests
type CampaignHandler struct {
	creationFlow  businessflow.CampaignCreationFlow
	dispatchFlow  businessflow.CampaignDispatchFlow
	resetFlow     businessflow.ResetFlow
	progressFlow  businessflow.ProgressFlow
	recipientFlow businessflow.RecipientFlow
	validator     *validator.Validate
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(
	creationFlow businessflow.CampaignCreationFlow,
	dispatchFlow businessflow.CampaignDispatchFlow,
	resetFlow businessflow.ResetFlow,
	progressFlow businessflow.ProgressFlow,
	recipientFlow businessflow.RecipientFlow,
) *CampaignHandler {
	return &CampaignHandler{
		creationFlow:  creationFlow,
		dispatchFlow:  dispatchFlow,
		resetFlow:     resetFlow,
		progressFlow:  progressFlow,
		recipientFlow: recipientFlow,
		validator:     validator.New(),
	}
}

func (h *CampaignHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *CampaignHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// businessErrorResponse maps well-known business errors to HTTP statuses.
// Anything unmapped is logged and reported as an internal error.
func (h *CampaignHandler) businessErrorResponse(c fiber.Ctx, err error, fallbackMsg, fallbackCode string) error {
	switch {
	case businessflow.IsCustomerNotFound(err):
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer not found", "CUSTOMER_NOT_FOUND", nil)
	case businessflow.IsAccountInactive(err):
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer account is inactive", "ACCOUNT_INACTIVE", nil)
	case businessflow.IsCampaignNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "CAMPAIGN_NOT_FOUND", nil)
	case businessflow.IsCampaignAccessDenied(err):
		return h.ErrorResponse(c, fiber.StatusForbidden, "Access denied: campaign belongs to another customer", "CAMPAIGN_ACCESS_DENIED", nil)
	case businessflow.IsTemplateNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Template not found", "TEMPLATE_NOT_FOUND", nil)
	case businessflow.IsGroupNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Recipient group not found", "GROUP_NOT_FOUND", nil)
	case businessflow.IsContactNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Contact not found", "CONTACT_NOT_FOUND", nil)
	case businessflow.IsSubscriptionNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Subscription not found", "SUBSCRIPTION_NOT_FOUND", nil)
	case businessflow.IsQuotaExceeded(err):
		return h.ErrorResponse(c, fiber.StatusUnprocessableEntity, "impossible d'envoyer, quota épuisé", "QUOTA_EXCEEDED", nil)
	case businessflow.IsCampaignNoPending(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign has no pending recipients", "NO_PENDING_RECIPIENTS", nil)
	case businessflow.IsCampaignInProcess(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "Campaign is currently being dispatched", "CONFLICT", nil)
	case businessflow.IsInvalidPage(err) || businessflow.IsInvalidPageSize(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid pagination", "VALIDATION_ERROR", nil)
	default:
		log.Println(fallbackMsg, err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, fallbackMsg, fallbackCode, nil)
	}
}

func (h *CampaignHandler) validateRequest(c fiber.Ctx, req any) error {
	if err := h.validator.Struct(req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}
	return nil
}

func (h *CampaignHandler) authenticatedCustomerID(c fiber.Ctx) (uint, error) {
	customerID, ok := c.Locals("customer_id").(uint)
	if !ok {
		return 0, h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer ID not found in context", "MISSING_CUSTOMER_ID", nil)
	}
	return customerID, nil
}

func clientMetadata(c fiber.Ctx) *businessflow.ClientMetadata {
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	if requestID := c.Get("X-Request-ID"); requestID != "" {
		metadata.SetRequestID(requestID)
	}
	return metadata
}

// CreateBulkCampaign expands a template and a recipient group into a campaign
func (h *CampaignHandler) CreateBulkCampaign(c fiber.Ctx) error {
	var req dto.CreateBulkCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validateRequest(c, &req); err != nil {
		return err
	}

	customerID, errResp := h.authenticatedCustomerID(c)
	if errResp != nil {
		return errResp
	}
	req.CustomerID = customerID

	result, err := h.creationFlow.CreateBulk(createRequestContext(c, "/api/v1/campaigns/bulk"), &req, clientMetadata(c))
	if err != nil {
		return h.businessErrorResponse(c, err, "Campaign creation failed", "CAMPAIGN_CREATION_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Campaign created successfully", result)
}

// CreateSingleCampaign creates a campaign with exactly one recipient
func (h *CampaignHandler) CreateSingleCampaign(c fiber.Ctx) error {
	var req dto.CreateSingleCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validateRequest(c, &req); err != nil {
		return err
	}

	customerID, errResp := h.authenticatedCustomerID(c)
	if errResp != nil {
		return errResp
	}
	req.CustomerID = customerID

	result, err := h.creationFlow.CreateSingle(createRequestContext(c, "/api/v1/campaigns/single"), &req, clientMetadata(c))
	if err != nil {
		return h.businessErrorResponse(c, err, "Campaign creation failed", "CAMPAIGN_CREATION_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Campaign created successfully", result)
}

// RefreshCampaign re-resolves group membership and adds new recipients
func (h *CampaignHandler) RefreshCampaign(c fiber.Ctx) error {
	campaignUUID := c.Params("uuid")
	if campaignUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign UUID is required", "MISSING_CAMPAIGN_UUID", nil)
	}

	customerID, errResp := h.authenticatedCustomerID(c)
	if errResp != nil {
		return errResp
	}

	req := dto.RefreshCampaignRequest{UUID: campaignUUID, CustomerID: customerID}
	result, err := h.creationFlow.Refresh(createRequestContext(c, "/api/v1/campaigns/"+campaignUUID+"/refresh"), &req, clientMetadata(c))
	if err != nil {
		return h.businessErrorResponse(c, err, "Campaign refresh failed", "CAMPAIGN_REFRESH_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign refreshed successfully", result)
}

// SendCampaign starts dispatching the campaign's pending recipients
func (h *CampaignHandler) SendCampaign(c fiber.Ctx) error {
	campaignUUID := c.Params("uuid")
	if campaignUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign UUID is required", "MISSING_CAMPAIGN_UUID", nil)
	}

	// The body is optional; it only carries the test-mode flag.
	var req dto.SendCampaignRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
	}

	customerID, errResp := h.authenticatedCustomerID(c)
	if errResp != nil {
		return errResp
	}
	req.UUID = campaignUUID
	req.CustomerID = customerID

	result, err := h.dispatchFlow.SendCampaign(createRequestContext(c, "/api/v1/campaigns/"+campaignUUID+"/send"), &req, clientMetadata(c))
	if err != nil {
		return h.businessErrorResponse(c, err, "Campaign dispatch failed", "CAMPAIGN_DISPATCH_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusAccepted, "Campaign dispatch started", result)
}

// StopCampaign signals the dispatch engine to stop the campaign
func (h *CampaignHandler) StopCampaign(c fiber.Ctx) error {
	campaignUUID := c.Params("uuid")
	if campaignUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign UUID is required", "MISSING_CAMPAIGN_UUID", nil)
	}

	customerID, errResp := h.authenticatedCustomerID(c)
	if errResp != nil {
		return errResp
	}

	req := dto.StopCampaignRequest{UUID: campaignUUID, CustomerID: customerID}
	result, err := h.dispatchFlow.StopCampaign(createRequestContext(c, "/api/v1/campaigns/"+campaignUUID+"/stop"), &req, clientMetadata(c))
	if err != nil {
		return h.businessErrorResponse(c, err, "Campaign stop failed", "CAMPAIGN_STOP_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign stopped", result)
}

// ResetCampaign moves failed recipients back to pending
func (h *CampaignHandler) ResetCampaign(c fiber.Ctx) error {
	campaignUUID := c.Params("uuid")
	if campaignUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign UUID is required", "MISSING_CAMPAIGN_UUID", nil)
	}

	customerID, errResp := h.authenticatedCustomerID(c)
	if errResp != nil {
		return errResp
	}

	req := dto.ResetCampaignRequest{UUID: campaignUUID, CustomerID: customerID}
	result, err := h.resetFlow.ResetFailed(createRequestContext(c, "/api/v1/campaigns/"+campaignUUID+"/reset"), &req, clientMetadata(c))
	if err != nil {
		return h.businessErrorResponse(c, err, "Campaign reset failed", "CAMPAIGN_RESET_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Failed recipients reset to pending", result)
}

// ResetNeeded reports whether the campaign has failed recipients
func (h *CampaignHandler) ResetNeeded(c fiber.Ctx) error {
	campaignUUID := c.Params("uuid")
	if campaignUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign UUID is required", "MISSING_CAMPAIGN_UUID", nil)
	}

	customerID, errResp := h.authenticatedCustomerID(c)
	if errResp != nil {
		return errResp
	}

	req := dto.ResetCampaignRequest{UUID: campaignUUID, CustomerID: customerID}
	result, err := h.resetFlow.IsResetNeeded(createRequestContext(c, "/api/v1/campaigns/"+campaignUUID+"/reset-needed"), &req, clientMetadata(c))
	if err != nil {
		return h.businessErrorResponse(c, err, "Reset check failed", "RESET_CHECK_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Reset check complete", result)
}

// ResetStatistics returns the authoritative pending/success/failed snapshot
func (h *CampaignHandler) ResetStatistics(c fiber.Ctx) error {
	campaignUUID := c.Params("uuid")
	if campaignUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign UUID is required", "MISSING_CAMPAIGN_UUID", nil)
	}

	customerID, errResp := h.authenticatedCustomerID(c)
	if errResp != nil {
		return errResp
	}

	req := dto.ResetCampaignRequest{UUID: campaignUUID, CustomerID: customerID}
	result, err := h.resetFlow.ResetStatistics(createRequestContext(c, "/api/v1/campaigns/"+campaignUUID+"/reset-statistics"), &req, clientMetadata(c))
	if err != nil {
		return h.businessErrorResponse(c, err, "Statistics lookup failed", "STATISTICS_LOOKUP_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Statistics computed", result)
}

// Progress returns a live dispatch progress snapshot
func (h *CampaignHandler) Progress(c fiber.Ctx) error {
	campaignUUID := c.Params("uuid")
	if campaignUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign UUID is required", "MISSING_CAMPAIGN_UUID", nil)
	}

	customerID, errResp := h.authenticatedCustomerID(c)
	if errResp != nil {
		return errResp
	}

	req := dto.CampaignRequest{UUID: campaignUUID, CustomerID: customerID}
	result, err := h.progressFlow.Progress(createRequestContext(c, "/api/v1/campaigns/"+campaignUUID+"/progress"), &req, clientMetadata(c))
	if err != nil {
		return h.businessErrorResponse(c, err, "Progress lookup failed", "PROGRESS_LOOKUP_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Progress computed", result)
}

// History lists the campaign's lifecycle events
func (h *CampaignHandler) History(c fiber.Ctx) error {
	campaignUUID := c.Params("uuid")
	if campaignUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign UUID is required", "MISSING_CAMPAIGN_UUID", nil)
	}

	customerID, errResp := h.authenticatedCustomerID(c)
	if errResp != nil {
		return errResp
	}

	req := dto.CampaignRequest{UUID: campaignUUID, CustomerID: customerID}
	result, err := h.progressFlow.History(createRequestContext(c, "/api/v1/campaigns/"+campaignUUID+"/history"), &req, clientMetadata(c))
	if err != nil {
		return h.businessErrorResponse(c, err, "History lookup failed", "HISTORY_LOOKUP_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "History retrieved", result)
}

// ListCampaigns returns the authenticated customer's campaigns
func (h *CampaignHandler) ListCampaigns(c fiber.Ctx) error {
	customerID, errResp := h.authenticatedCustomerID(c)
	if errResp != nil {
		return errResp
	}

	req := dto.ListCampaignsRequest{
		CustomerID: customerID,
		Page:       queryInt(c, "page", 1),
		PageSize:   queryInt(c, "page_size", 20),
	}
	if channel := c.Query("channel"); channel != "" {
		req.Channel = &channel
	}

	if err := h.validateRequest(c, &req); err != nil {
		return err
	}

	result, err := h.creationFlow.ListCampaigns(createRequestContext(c, "/api/v1/campaigns"), &req, clientMetadata(c))
	if err != nil {
		return h.businessErrorResponse(c, err, "Campaign listing failed", "CAMPAIGN_LISTING_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaigns retrieved", result)
}

// ListRecipients returns the campaign's recipient records matching the filters
func (h *CampaignHandler) ListRecipients(c fiber.Ctx) error {
	req, errResp := h.recipientListRequest(c)
	if errResp != nil {
		return errResp
	}

	result, err := h.recipientFlow.ListRecipients(createRequestContext(c, "/api/v1/campaigns/"+req.UUID+"/recipients"), req, clientMetadata(c))
	if err != nil {
		return h.businessErrorResponse(c, err, "Recipient listing failed", "RECIPIENT_LISTING_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Recipients retrieved", result)
}

// ExportRecipients streams the filtered recipient list as an XLSX workbook
func (h *CampaignHandler) ExportRecipients(c fiber.Ctx) error {
	req, errResp := h.recipientListRequest(c)
	if errResp != nil {
		return errResp
	}

	filename, content, err := h.recipientFlow.ExportRecipients(createRequestContext(c, "/api/v1/campaigns/"+req.UUID+"/recipients/export"), req, clientMetadata(c))
	if err != nil {
		return h.businessErrorResponse(c, err, "Recipient export failed", "RECIPIENT_EXPORT_FAILED")
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	return c.Send(content)
}

// DeleteCampaign removes the campaign and its recipient records
func (h *CampaignHandler) DeleteCampaign(c fiber.Ctx) error {
	campaignUUID := c.Params("uuid")
	if campaignUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign UUID is required", "MISSING_CAMPAIGN_UUID", nil)
	}

	customerID, errResp := h.authenticatedCustomerID(c)
	if errResp != nil {
		return errResp
	}

	req := dto.DeleteCampaignRequest{UUID: campaignUUID, CustomerID: customerID}
	if err := h.recipientFlow.DeleteCampaign(createRequestContext(c, "/api/v1/campaigns/"+campaignUUID), &req, clientMetadata(c)); err != nil {
		return h.businessErrorResponse(c, err, "Campaign deletion failed", "CAMPAIGN_DELETION_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign deleted", nil)
}

// recipientListRequest parses the shared path, query, and auth inputs of the
// recipient listing and export endpoints.
func (h *CampaignHandler) recipientListRequest(c fiber.Ctx) (*dto.ListRecipientsRequest, error) {
	campaignUUID := c.Params("uuid")
	if campaignUUID == "" {
		return nil, h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign UUID is required", "MISSING_CAMPAIGN_UUID", nil)
	}

	customerID, errResp := h.authenticatedCustomerID(c)
	if errResp != nil {
		return nil, errResp
	}

	req := &dto.ListRecipientsRequest{
		UUID:       campaignUUID,
		CustomerID: customerID,
		Page:       queryInt(c, "page", 1),
		PageSize:   queryInt(c, "page_size", 20),
	}
	if status := c.Query("delivery_status"); status != "" {
		req.DeliveryStatus = &status
	}
	if receiver := c.Query("receiver"); receiver != "" {
		req.Receiver = &receiver
	}
	if after := c.Query("sent_after"); after != "" {
		if t, err := time.Parse(time.RFC3339, after); err == nil {
			req.SentAfter = &t
		}
	}
	if before := c.Query("sent_before"); before != "" {
		if t, err := time.Parse(time.RFC3339, before); err == nil {
			req.SentBefore = &t
		}
	}

	if err := h.validateRequest(c, req); err != nil {
		return nil, err
	}
	return req, nil
}

func queryInt(c fiber.Ctx, key string, defaultValue int) int {
	if raw := c.Query(key); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			return parsed
		}
	}
	return defaultValue
}
