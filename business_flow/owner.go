package businessflow

import (
	"context"

	"github.com/waxal-io/waxal/models"
	"github.com/waxal-io/waxal/repository"
)

// EffectiveOwner is the normalized identity every campaign operation runs as.
// Partner sub-accounts send on behalf of their partner, so the owner login is
// the partner's; admins act as themselves. Flows consume this value instead of
// re-deriving role branches.
type EffectiveOwner struct {
	CustomerID uint
	Login      string
	Role       models.CustomerRole
}

// OwnerResolver resolves authenticated customers into an EffectiveOwner
type OwnerResolver interface {
	Resolve(ctx context.Context, customerID uint) (*EffectiveOwner, error)
}

// OwnerResolverImpl implements OwnerResolver
type OwnerResolverImpl struct {
	customerRepo repository.CustomerRepository
}

// NewOwnerResolver creates a new owner resolver
func NewOwnerResolver(customerRepo repository.CustomerRepository) OwnerResolver {
	return &OwnerResolverImpl{customerRepo: customerRepo}
}

// Resolve looks up the customer and normalizes the sender identity
func (r *OwnerResolverImpl) Resolve(ctx context.Context, customerID uint) (*EffectiveOwner, error) {
	customer, err := r.customerRepo.ByID(ctx, customerID)
	if err != nil {
		return nil, NewBusinessError("CUSTOMER_LOOKUP_FAILED", "Failed to lookup customer", err)
	}
	if customer == nil {
		return nil, NewBusinessError("CUSTOMER_NOT_FOUND", "Customer not found", ErrCustomerNotFound)
	}
	if !customer.IsActive {
		return nil, NewBusinessError("CUSTOMER_INACTIVE", "Customer account is inactive", ErrAccountInactive)
	}

	owner := &EffectiveOwner{
		CustomerID: customer.ID,
		Login:      customer.Login,
		Role:       customer.Role,
	}

	// Sub-accounts of a partner dispatch under the partner's login so the
	// transport provider sees one sender per partner.
	if customer.Role == models.RoleUser && customer.PartnerID != nil {
		partner, err := r.customerRepo.ByID(ctx, *customer.PartnerID)
		if err != nil {
			return nil, NewBusinessError("PARTNER_LOOKUP_FAILED", "Failed to lookup partner account", err)
		}
		if partner == nil {
			return nil, NewBusinessError("PARTNER_NOT_FOUND", "Partner account not found", ErrPartnerNotFound)
		}
		if !partner.IsActive {
			return nil, NewBusinessError("PARTNER_INACTIVE", "Partner account is inactive", ErrAccountInactive)
		}
		owner.Login = partner.Login
	}

	return owner, nil
}
