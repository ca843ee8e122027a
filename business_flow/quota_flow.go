package businessflow

import (
	"context"

	"github.com/waxal-io/waxal/models"
	"github.com/waxal-io/waxal/repository"
)

// QuotaFlow enforces per-subscription send quotas. VerifyForSend runs before
// every dispatch attempt with the pending count as worst-case consumption;
// DecrementAfterSend runs once per confirmed success, never for failures.
type QuotaFlow interface {
	VerifyForSend(ctx context.Context, customerID uint, channel models.MessageChannel, messageCount int64) error
	DecrementAfterSend(ctx context.Context, customerID uint, channel models.MessageChannel, count int64) error
	Remaining(ctx context.Context, customerID uint, channel models.MessageChannel) (*int64, error)
}

// QuotaFlowImpl implements QuotaFlow
type QuotaFlowImpl struct {
	subscriptionRepo repository.SubscriptionRepository
}

// NewQuotaFlow creates a new quota flow instance
func NewQuotaFlow(subscriptionRepo repository.SubscriptionRepository) QuotaFlow {
	return &QuotaFlowImpl{subscriptionRepo: subscriptionRepo}
}

// VerifyForSend checks that the subscription can cover messageCount sends on
// the channel. A nil credit means unlimited and always passes.
func (f *QuotaFlowImpl) VerifyForSend(ctx context.Context, customerID uint, channel models.MessageChannel, messageCount int64) error {
	if messageCount <= 0 {
		return nil
	}

	sub, err := f.subscriptionRepo.ByCustomerID(ctx, customerID)
	if err != nil {
		return NewBusinessError("SUBSCRIPTION_LOOKUP_FAILED", "Failed to lookup subscription", err)
	}
	if sub == nil {
		return NewBusinessError("SUBSCRIPTION_NOT_FOUND", "Subscription not found", ErrSubscriptionNotFound)
	}

	remaining := sub.RemainingFor(channel)
	if remaining == nil {
		return nil
	}
	if *remaining < messageCount {
		return NewBusinessError("QUOTA_EXCEEDED", ErrQuotaExceeded.Error(), &QuotaExceededError{
			Remaining: *remaining,
			Requested: messageCount,
		})
	}

	return nil
}

// DecrementAfterSend lowers the channel credit by count, floored at zero.
// Unlimited subscriptions are untouched.
func (f *QuotaFlowImpl) DecrementAfterSend(ctx context.Context, customerID uint, channel models.MessageChannel, count int64) error {
	if count <= 0 {
		return nil
	}
	if err := f.subscriptionRepo.DecrementCredit(ctx, customerID, channel, count); err != nil {
		return NewBusinessError("QUOTA_DECREMENT_FAILED", "Failed to decrement quota", err)
	}
	return nil
}

// Remaining returns the current credit for the channel, nil meaning unlimited
func (f *QuotaFlowImpl) Remaining(ctx context.Context, customerID uint, channel models.MessageChannel) (*int64, error) {
	sub, err := f.subscriptionRepo.ByCustomerID(ctx, customerID)
	if err != nil {
		return nil, NewBusinessError("SUBSCRIPTION_LOOKUP_FAILED", "Failed to lookup subscription", err)
	}
	if sub == nil {
		return nil, NewBusinessError("SUBSCRIPTION_NOT_FOUND", "Subscription not found", ErrSubscriptionNotFound)
	}
	return sub.RemainingFor(channel), nil
}
