package address

import (
	"context"

	"github.com/google/uuid"

	"github.com/rebookza/rebook-backend/pkg/db/models"
	"github.com/rebookza/rebook-backend/pkg/enums"
	pkgerrors "github.com/rebookza/rebook-backend/pkg/errors"
	"github.com/rebookza/rebook-backend/pkg/logger"
	"github.com/rebookza/rebook-backend/pkg/types"
)

// Purpose selects which side of the shipment is being resolved.
type Purpose string

const (
	PurposePickup   Purpose = "pickup"
	PurposeDelivery Purpose = "delivery"
)

// Resolved is the outcome of a resolution: exactly one of Locker or Address
// is set, mirroring the order's transport type for that side.
type Resolved struct {
	Type    enums.TransportType
	Locker  *types.Locker
	Address *types.Address
}

// BookFinder loads a book listing for the pickup fallback chain.
type BookFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Book, error)
}

// ProfileFinder loads a party profile for the last fallback step.
type ProfileFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
}

// Opener decrypts sealed address blobs.
type Opener interface {
	OpenAddress(blob *string) (types.Address, error)
}

// Resolver walks the cascading source chain for pickup and delivery data.
// Each step is independently failable; only exhausting the whole chain is
// fatal.
type Resolver struct {
	books    BookFinder
	profiles ProfileFinder
	box      Opener
	logg     *logger.Logger
}

// NewResolver wires the resolver's data sources.
func NewResolver(books BookFinder, profiles ProfileFinder, box Opener, logg *logger.Logger) *Resolver {
	return &Resolver{books: books, profiles: profiles, box: box, logg: logg}
}

// ResolvePickup resolves the seller's pickup point: order locker or order
// address, then the first listed book's pickup address, then the seller's
// profile address.
func (r *Resolver) ResolvePickup(ctx context.Context, order *models.Order) (*Resolved, error) {
	if order.PickupType == enums.TransportTypeLocker {
		locker := r.resolveLocker(ctx, order, PurposePickup)
		if locker == nil {
			return nil, missingErr(PurposePickup)
		}
		return &Resolved{Type: enums.TransportTypeLocker, Locker: locker}, nil
	}

	if addr, ok := r.openOrderAddress(ctx, order, PurposePickup); ok {
		return &Resolved{Type: enums.TransportTypeDoor, Address: addr}, nil
	}
	if addr, ok := r.openBookAddress(ctx, order); ok {
		return &Resolved{Type: enums.TransportTypeDoor, Address: addr}, nil
	}
	if addr, ok := r.openProfileAddress(ctx, order.SellerID); ok {
		return &Resolved{Type: enums.TransportTypeDoor, Address: addr}, nil
	}
	return nil, missingErr(PurposePickup)
}

// ResolveDelivery resolves the buyer's delivery point: order locker (with
// cached data and profile preferred-locker fallbacks) or order address, then
// the buyer's profile address. fallbackAddr carries the seller's resolved
// pickup address and is attached only to locker deliveries, so the courier
// payload always has usable address data; a door delivery must resolve a
// buyer address of its own or fail.
func (r *Resolver) ResolveDelivery(ctx context.Context, order *models.Order, fallbackAddr *types.Address) (*Resolved, error) {
	if order.DeliveryType == enums.TransportTypeLocker {
		locker := r.resolveLocker(ctx, order, PurposeDelivery)
		if locker == nil {
			return nil, missingErr(PurposeDelivery)
		}
		return &Resolved{Type: enums.TransportTypeLocker, Locker: locker, Address: fallbackAddr}, nil
	}

	if addr, ok := r.openOrderAddress(ctx, order, PurposeDelivery); ok {
		return &Resolved{Type: enums.TransportTypeDoor, Address: addr}, nil
	}
	if addr, ok := r.openProfileAddress(ctx, order.BuyerID); ok {
		return &Resolved{Type: enums.TransportTypeDoor, Address: addr}, nil
	}
	return nil, missingErr(PurposeDelivery)
}

// resolveLocker tries the order's locker columns, the cached locker blob,
// then the party profile's preferred locker. Returns nil when everything is
// exhausted.
func (r *Resolver) resolveLocker(ctx context.Context, order *models.Order, purpose Purpose) *types.Locker {
	var locationID, providerSlug *string
	var cached *types.JSONMap
	partyID := order.SellerID
	if purpose == PurposeDelivery {
		partyID = order.BuyerID
		locationID, providerSlug, cached = order.DeliveryLockerLocationID, order.DeliveryLockerProviderSlug, order.DeliveryLockerData
	} else {
		locationID, providerSlug, cached = order.PickupLockerLocationID, order.PickupLockerProviderSlug, order.PickupLockerData
	}

	if locationID != nil && providerSlug != nil {
		locker := types.Locker{LocationID: *locationID, ProviderSlug: *providerSlug}
		if locker.Complete() {
			return &locker
		}
	}

	if locker := lockerFromCache(cached); locker != nil {
		return locker
	}

	profile, err := r.profiles.FindByID(ctx, partyID)
	if err != nil {
		r.logg.Warn(r.logg.WithField(ctx, "party_id", partyID.String()), "locker fallback: profile lookup failed")
		return nil
	}
	if profile.PreferredDeliveryLockerLocationID != nil && profile.PreferredDeliveryLockerProviderSlug != nil {
		locker := types.Locker{
			LocationID:   *profile.PreferredDeliveryLockerLocationID,
			ProviderSlug: *profile.PreferredDeliveryLockerProviderSlug,
		}
		if profile.PreferredDeliveryLockerData != nil {
			locker.Metadata = *profile.PreferredDeliveryLockerData
		}
		if locker.Complete() {
			return &locker
		}
	}
	return nil
}

func lockerFromCache(cached *types.JSONMap) *types.Locker {
	if cached == nil {
		return nil
	}
	data := *cached
	id, _ := data["location_id"].(string)
	slug, _ := data["provider_slug"].(string)
	locker := types.Locker{LocationID: id, ProviderSlug: slug, Metadata: data}
	if !locker.Complete() {
		return nil
	}
	return &locker
}

func (r *Resolver) openOrderAddress(ctx context.Context, order *models.Order, purpose Purpose) (*types.Address, bool) {
	blob := order.PickupAddressEncrypted
	if purpose == PurposeDelivery {
		blob = order.ShippingAddressEncrypted
	}
	addr, err := r.box.OpenAddress(blob)
	if err != nil {
		r.logWalkFailure(ctx, "order", purpose, err)
		return nil, false
	}
	return &addr, true
}

func (r *Resolver) openBookAddress(ctx context.Context, order *models.Order) (*types.Address, bool) {
	if len(order.Items) == 0 {
		return nil, false
	}
	bookID, err := uuid.Parse(order.Items[0].BookID)
	if err != nil {
		return nil, false
	}
	book, err := r.books.FindByID(ctx, bookID)
	if err != nil {
		r.logWalkFailure(ctx, "book", PurposePickup, err)
		return nil, false
	}
	addr, err := r.box.OpenAddress(book.PickupAddressEncrypted)
	if err != nil {
		r.logWalkFailure(ctx, "book", PurposePickup, err)
		return nil, false
	}
	return &addr, true
}

func (r *Resolver) openProfileAddress(ctx context.Context, partyID uuid.UUID) (*types.Address, bool) {
	profile, err := r.profiles.FindByID(ctx, partyID)
	if err != nil {
		r.logWalkFailure(ctx, "profile", "", err)
		return nil, false
	}
	addr, err := r.box.OpenAddress(profile.AddressEncrypted)
	if err != nil {
		r.logWalkFailure(ctx, "profile", "", err)
		return nil, false
	}
	return &addr, true
}

func (r *Resolver) logWalkFailure(ctx context.Context, source string, purpose Purpose, err error) {
	ctx = r.logg.WithFields(ctx, map[string]any{
		"source":  source,
		"purpose": string(purpose),
		"reason":  err.Error(),
	})
	r.logg.Debug(ctx, "address fallback step skipped")
}

func missingErr(purpose Purpose) error {
	if purpose == PurposePickup {
		return pkgerrors.New(pkgerrors.CodeValidation, "no pickup information available").
			WithDetails(map[string]any{"reason": "missing_pickup_info"})
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "no delivery information available").
		WithDetails(map[string]any{"reason": "missing_delivery_info"})
}
