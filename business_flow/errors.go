// Package businessflow contains the core business logic and use cases for campaign workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Customer-related errors
	ErrCustomerNotFound = errors.New("customer not found")
	ErrAccountInactive  = errors.New("account is inactive")
	ErrPartnerNotFound  = errors.New("partner account not found")

	// Campaign-related errors
	ErrCampaignNotFound           = errors.New("campaign not found")
	ErrCampaignAccessDenied       = errors.New("campaign access denied")
	ErrCampaignUUIDRequired       = errors.New("campaign UUID is required")
	ErrCampaignAlreadyDispatching = errors.New("campaign is already being dispatched")
	ErrCampaignInProcess          = errors.New("campaign is currently being dispatched")
	ErrCampaignNoPending          = errors.New("campaign has no pending recipients")
	ErrBulkIDGenerationFailed     = errors.New("could not generate a unique bulk id")

	// Template and group errors
	ErrTemplateNotFound        = errors.New("template not found")
	ErrTemplateChannelMismatch = errors.New("template channel does not match campaign channel")
	ErrGroupNotFound           = errors.New("recipient group not found")
	ErrGroupEmpty              = errors.New("recipient group has no contacts")
	ErrContactNotFound         = errors.New("contact not found")

	// Quota errors
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrQuotaExceeded        = errors.New("impossible d'envoyer, quota épuisé")

	// Filter errors
	ErrInvalidPage           = errors.New("page must be at least 1")
	ErrInvalidPageSize       = errors.New("page size must be between 1 and 100")
	ErrStartDateAfterEndDate = errors.New("start date cannot be after end date")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

// QuotaExceededError carries the remaining and requested counts alongside the
// sentinel so callers can report both numbers.
type QuotaExceededError struct {
	Remaining int64
	Requested int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("%s (remaining=%d, requested=%d)", ErrQuotaExceeded.Error(), e.Remaining, e.Requested)
}

func (e *QuotaExceededError) Unwrap() error {
	return ErrQuotaExceeded
}

func IsCustomerNotFound(err error) bool {
	return errors.Is(err, ErrCustomerNotFound)
}

func IsAccountInactive(err error) bool {
	return errors.Is(err, ErrAccountInactive)
}

func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}

func IsCampaignAccessDenied(err error) bool {
	return errors.Is(err, ErrCampaignAccessDenied)
}

func IsCampaignInProcess(err error) bool {
	return errors.Is(err, ErrCampaignInProcess) || errors.Is(err, ErrCampaignAlreadyDispatching)
}

func IsCampaignNoPending(err error) bool {
	return errors.Is(err, ErrCampaignNoPending)
}

func IsTemplateNotFound(err error) bool {
	return errors.Is(err, ErrTemplateNotFound)
}

func IsGroupNotFound(err error) bool {
	return errors.Is(err, ErrGroupNotFound)
}

func IsContactNotFound(err error) bool {
	return errors.Is(err, ErrContactNotFound)
}

func IsSubscriptionNotFound(err error) bool {
	return errors.Is(err, ErrSubscriptionNotFound)
}

func IsQuotaExceeded(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}

func IsInvalidPage(err error) bool {
	return errors.Is(err, ErrInvalidPage)
}

func IsInvalidPageSize(err error) bool {
	return errors.Is(err, ErrInvalidPageSize)
}
