package service

import (
	"context"
	"errors"
	"slices"

	"go.uber.org/zap"

	"github.com/gardenjournal/gardenjournal/internal/errs"
	"github.com/gardenjournal/gardenjournal/internal/ident"
	"github.com/gardenjournal/gardenjournal/internal/model"
	"github.com/gardenjournal/gardenjournal/internal/repository"
)

// Authorizer answers whether a user holds one of a set of roles at a location.
type Authorizer interface {
	// RoleAtLocation fails closed: any error yields false.
	RoleAtLocation(ctx context.Context, locationID, userID string, allowed ...model.Role) bool
}

// RoleChecker implements Authorizer over the location collection.
type RoleChecker struct {
	locations repository.LocationRepository
	log       *zap.Logger
}

var _ Authorizer = (*RoleChecker)(nil)

// NewRoleChecker constructs a RoleChecker.
func NewRoleChecker(locations repository.LocationRepository, log *zap.Logger) *RoleChecker {
	if log == nil {
		log = zap.NewNop()
	}
	return &RoleChecker{locations: locations, log: log}
}

// RoleAtLocation returns true only when the location exists, userID is a
// member and the member's role is in allowed.
func (c *RoleChecker) RoleAtLocation(ctx context.Context, locationID, userID string, allowed ...model.Role) bool {
	_, _, role, err := membership(ctx, c.locations, locationID, userID)
	if err != nil {
		if isFault(err) {
			c.log.Error("role check failed",
				zap.String("op", "location.role"),
				zap.String("location_id", locationID),
				zap.String("user_id", userID),
				zap.Error(err))
		}
		return false
	}
	return slices.Contains(allowed, role)
}

// membership loads a location and the user's role there. A malformed id or a
// missing location is ErrNotFound; a user who is not a member is ErrForbidden.
func membership(ctx context.Context, locations repository.LocationRepository, locationID, userID string) (*model.LocationDoc, ident.ID, model.Role, error) {
	lid, err := ident.ToInternal(locationID)
	if err != nil {
		return nil, ident.Nil, "", errs.ErrNotFound
	}
	uid, err := ident.ToInternal(userID)
	if err != nil {
		return nil, ident.Nil, "", errs.ErrForbidden
	}
	loc, err := locations.GetByID(ctx, lid)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, ident.Nil, "", errs.ErrNotFound
		}
		return nil, ident.Nil, "", err
	}
	role, ok := loc.RoleOf(uid)
	if !ok {
		return loc, uid, "", errs.ErrForbidden
	}
	return loc, uid, role, nil
}
