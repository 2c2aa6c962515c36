package statstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no record exists for the requested key.
var ErrNotFound = errors.New("record not found")

// ErrDuplicateAssignment is returned when a leadership seat is already held
// by the same member.
var ErrDuplicateAssignment = errors.New("leadership role already assigned")

// Store is the narrow persistence interface the core depends on. Mutate
// gives read-modify-write atomicity per (guild, user) key: implementations
// must guarantee no concurrent Mutate on the same key observes a stale
// record.
type Store interface {
	// Get returns the record or ErrNotFound.
	Get(ctx context.Context, guildID, userID string) (StatRecord, error)
	// Create inserts a fresh rank-1 record with zeroed counters. Returns
	// the existing record if one is already present.
	Create(ctx context.Context, guildID, userID, displayName string) (StatRecord, error)
	// Mutate loads the record, applies fn, and writes the result back as
	// one atomic unit. fn returning an error aborts the write and the
	// error is returned unchanged.
	Mutate(ctx context.Context, guildID, userID string, fn func(*StatRecord) error) (StatRecord, error)

	ListByGuild(ctx context.Context, guildID string) ([]StatRecord, error)
	ListByRank(ctx context.Context, guildID string, rank int) ([]StatRecord, error)
	// ListInactive returns non-immune records whose last activity is
	// before cutoff.
	ListInactive(ctx context.Context, guildID string, cutoff time.Time) ([]StatRecord, error)

	Leaders(ctx context.Context, guildID string, roleType RoleType) ([]LeadershipAssignment, error)
	IsLeader(ctx context.Context, guildID, userID string) (bool, error)
	AssignLeader(ctx context.Context, guildID, userID string, roleType RoleType) error
	RemoveLeader(ctx context.Context, guildID, userID string, roleType RoleType) error

	// PendingRequest returns the pending promotion request for the member,
	// or nil when none exists.
	PendingRequest(ctx context.Context, guildID, userID string) (*PromotionRequest, error)
	CreateRequest(ctx context.Context, req PromotionRequest) (PromotionRequest, error)
	UpdateRequest(ctx context.Context, req PromotionRequest) error
}
