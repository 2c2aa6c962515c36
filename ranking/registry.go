package ranking

import (
	"context"

	"rankbot/config"
	"rankbot/statstore"
)

// Registry answers who holds the capped leadership roles in a guild. Cap
// decisions are made by the state machine while holding the guild lock, so
// a count here and the matching assignment write act as one unit.
type Registry struct {
	store statstore.Store
}

// NewRegistry wraps the store's leadership rows.
func NewRegistry(store statstore.Store) *Registry {
	return &Registry{store: store}
}

// ListByType returns current assignments of one role type; pass the empty
// role type for all leadership seats.
func (r *Registry) ListByType(ctx context.Context, guildID string, roleType statstore.RoleType) ([]statstore.LeadershipAssignment, error) {
	return r.store.Leaders(ctx, guildID, roleType)
}

// IsLeader reports whether the member holds any leadership seat.
func (r *Registry) IsLeader(ctx context.Context, guildID, userID string) (bool, error) {
	return r.store.IsLeader(ctx, guildID, userID)
}

// Cap returns the slot limit for a role type.
func Cap(roleType statstore.RoleType) int {
	switch roleType {
	case statstore.RoleAdvisor:
		return config.MaxAdvisors
	case statstore.RoleRuler:
		return config.MaxRulers
	default:
		return 0
	}
}

// hasSlot reports whether the guild has a free seat for the role type.
func (r *Registry) hasSlot(ctx context.Context, guildID string, roleType statstore.RoleType) (bool, error) {
	current, err := r.store.Leaders(ctx, guildID, roleType)
	if err != nil {
		return false, err
	}
	return len(current) < Cap(roleType), nil
}
