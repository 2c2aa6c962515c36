package ranking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"rankbot/config"
	"rankbot/statstore"
)

// RoleSync pushes a member's desired role state to the chat platform.
// Fire-and-forget: implementations log failures and never block a
// transition.
type RoleSync func(guildID, userID string, rank int, elite *statstore.EliteType)

// Service owns every rank transition. Mutations on one member serialize on
// a per-(guild, user) lock; leadership cap checks hold a guild-wide lock so
// count-then-insert acts as one unit. Lock order is always guild before
// member.
type Service struct {
	store    statstore.Store
	registry *Registry
	log      *slog.Logger
	roleSync RoleSync
	members  *keyedMutex
	guilds   *keyedMutex
	now      func() time.Time
}

// NewService wires the state machine. roleSync may be nil.
func NewService(store statstore.Store, log *slog.Logger, roleSync RoleSync) *Service {
	return &Service{
		store:    store,
		registry: NewRegistry(store),
		log:      log,
		roleSync: roleSync,
		members:  newKeyedMutex(),
		guilds:   newKeyedMutex(),
		now:      time.Now,
	}
}

// Registry exposes leadership lookups for presentation.
func (s *Service) Registry() *Registry { return s.registry }

// errSkip aborts a Mutate without surfacing an error to the caller.
var errSkip = errors.New("skip mutation")

func memberKey(guildID, userID string) string { return guildID + "/" + userID }

// wrap normalizes store failures: not-found becomes the business error,
// business errors pass through, anything else is a store fault.
func wrap(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, statstore.ErrNotFound) {
		return ErrNotFound
	}
	if IsBusiness(err) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// refreshImmunity applies the derived rule after a rank change: Elite and
// above are always immune; explicit grants are never cleared here.
func refreshImmunity(rec *statstore.StatRecord) {
	if config.ImmuneRank(rec.Rank) {
		rec.ImmuneToDecay = true
	}
}

func (s *Service) syncRoles(rec statstore.StatRecord) {
	if s.roleSync != nil {
		s.roleSync(rec.GuildID, rec.UserID, rec.Rank, rec.EliteType)
	}
}

// Onboard ensures a rank-1 record exists for a new member. Idempotent:
// rejoining members keep their stats.
func (s *Service) Onboard(ctx context.Context, guildID, userID, displayName string) (statstore.StatRecord, error) {
	unlock := s.members.lock(memberKey(guildID, userID))
	defer unlock()

	rec, err := s.store.Create(ctx, guildID, userID, displayName)
	if err != nil {
		return statstore.StatRecord{}, wrap(err)
	}
	s.syncRoles(rec)
	return rec, nil
}

// GetStats returns the member's record.
func (s *Service) GetStats(ctx context.Context, guildID, userID string) (statstore.StatRecord, error) {
	rec, err := s.store.Get(ctx, guildID, userID)
	if err != nil {
		return statstore.StatRecord{}, wrap(err)
	}
	return rec, nil
}

// ListGuild returns every record in the guild, for leaderboards.
func (s *Service) ListGuild(ctx context.Context, guildID string) ([]statstore.StatRecord, error) {
	recs, err := s.store.ListByGuild(ctx, guildID)
	if err != nil {
		return nil, wrap(err)
	}
	return recs, nil
}

// ListByRank returns every record holding the given rank.
func (s *Service) ListByRank(ctx context.Context, guildID string, rank int) ([]statstore.StatRecord, error) {
	recs, err := s.store.ListByRank(ctx, guildID, rank)
	if err != nil {
		return nil, wrap(err)
	}
	return recs, nil
}

// bump creates the record lazily, applies one counter change, and marks the
// member active.
func (s *Service) bump(ctx context.Context, guildID, userID, displayName string, apply func(*statstore.StatRecord)) error {
	unlock := s.members.lock(memberKey(guildID, userID))
	defer unlock()

	if _, err := s.store.Create(ctx, guildID, userID, displayName); err != nil {
		return wrap(err)
	}
	_, err := s.store.Mutate(ctx, guildID, userID, func(rec *statstore.StatRecord) error {
		apply(rec)
		if displayName != "" {
			rec.DisplayName = displayName
		}
		rec.Touch(s.now())
		return nil
	})
	return wrap(err)
}

// Activity recorders, one per event type the gateway delivers.

func (s *Service) RecordMessage(ctx context.Context, guildID, userID, displayName string) error {
	return s.bump(ctx, guildID, userID, displayName, func(r *statstore.StatRecord) { r.MessageCount++ })
}

func (s *Service) RecordReaction(ctx context.Context, guildID, userID, displayName string) error {
	return s.bump(ctx, guildID, userID, displayName, func(r *statstore.StatRecord) { r.ReactionCount++ })
}

func (s *Service) RecordInvite(ctx context.Context, guildID, userID, displayName string) error {
	return s.bump(ctx, guildID, userID, displayName, func(r *statstore.StatRecord) { r.InviteCount++ })
}

func (s *Service) RecordVoiceTime(ctx context.Context, guildID, userID, displayName string, seconds int64) error {
	if seconds < 0 {
		return ErrInvalidArgument
	}
	return s.bump(ctx, guildID, userID, displayName, func(r *statstore.StatRecord) { r.VoiceTimeSecs += seconds })
}

func (s *Service) RecordVideo(ctx context.Context, guildID, userID, displayName string) error {
	return s.bump(ctx, guildID, userID, displayName, func(r *statstore.StatRecord) { r.VideosShared++ })
}

func (s *Service) RecordSubjectPost(ctx context.Context, guildID, userID, displayName string) error {
	return s.bump(ctx, guildID, userID, displayName, func(r *statstore.StatRecord) { r.SubjectPosts++ })
}

func (s *Service) RecordSubjectReaction(ctx context.Context, guildID, userID, displayName string) error {
	return s.bump(ctx, guildID, userID, displayName, func(r *statstore.StatRecord) { r.SubjectReacts++ })
}

func (s *Service) RecordHostedSession(ctx context.Context, guildID, userID, displayName string) error {
	return s.bump(ctx, guildID, userID, displayName, func(r *statstore.StatRecord) { r.SessionsHosted++ })
}

// RequestContribute flips the contribute flag for a Viewer. Fails with
// ErrWrongRank above rank 1 and ErrAlreadyRequested when already set.
func (s *Service) RequestContribute(ctx context.Context, guildID, userID string) (statstore.StatRecord, error) {
	unlock := s.members.lock(memberKey(guildID, userID))
	defer unlock()

	rec, err := s.store.Mutate(ctx, guildID, userID, func(rec *statstore.StatRecord) error {
		if rec.Rank != config.RankViewer {
			return ErrWrongRank
		}
		if rec.WantsContribute {
			return ErrAlreadyRequested
		}
		rec.WantsContribute = true
		rec.Touch(s.now())
		return nil
	})
	return rec, wrap(err)
}

// ApproveLearner promotes a Viewer who asked to contribute. Admin-triggered,
// never automatic.
func (s *Service) ApproveLearner(ctx context.Context, guildID, userID string) (statstore.StatRecord, error) {
	unlock := s.members.lock(memberKey(guildID, userID))
	defer unlock()

	rec, err := s.store.Mutate(ctx, guildID, userID, func(rec *statstore.StatRecord) error {
		if rec.Rank != config.RankViewer || !rec.WantsContribute {
			return ErrPreconditionFailed
		}
		rec.Rank = config.RankLearner
		refreshImmunity(rec)
		return nil
	})
	if err != nil {
		return statstore.StatRecord{}, wrap(err)
	}
	s.syncRoles(rec)
	return rec, nil
}

// Promote advances the member one rank if the evaluator agrees. A concurrent
// duplicate call re-evaluates against the updated record and fails with
// ErrNotEligible; the rank can never advance twice for one threshold.
//
// When every requirement except leadership validations is met, a pending
// promotion request is opened so Advisors and Rulers can sign off.
func (s *Service) Promote(ctx context.Context, guildID, userID string) (statstore.StatRecord, error) {
	unlock := s.members.lock(memberKey(guildID, userID))
	rec, err := s.promoteLocked(ctx, guildID, userID)
	unlock()
	if err != nil {
		return statstore.StatRecord{}, err
	}
	s.syncRoles(rec)
	return rec, nil
}

func (s *Service) promoteLocked(ctx context.Context, guildID, userID string) (statstore.StatRecord, error) {
	var lastProgress map[Requirement]Check
	var target int
	rec, err := s.store.Mutate(ctx, guildID, userID, func(rec *statstore.StatRecord) error {
		eligible, t, progress := Evaluate(*rec)
		lastProgress, target = progress, t
		if !eligible {
			return ErrNotEligible
		}
		rec.Rank = t
		refreshImmunity(rec)
		return nil
	})
	if errors.Is(err, ErrNotEligible) {
		s.maybeOpenRequest(ctx, guildID, userID, target, lastProgress)
		return statstore.StatRecord{}, ErrNotEligible
	}
	if err != nil {
		return statstore.StatRecord{}, wrap(err)
	}

	s.settleRequest(ctx, guildID, userID, rec.Rank)
	s.log.Info("member promoted",
		slog.String("guild_id", guildID),
		slog.String("user_id", userID),
		slog.Int("rank", rec.Rank))
	return rec, nil
}

// maybeOpenRequest records a pending promotion request the first time a
// member is blocked only on validations. The received count is seeded from
// the record so validations collected before the request opened still count.
func (s *Service) maybeOpenRequest(ctx context.Context, guildID, userID string, target int, progress map[Requirement]Check) {
	if !onlyValidationsMissing(progress) {
		return
	}
	pending, err := s.store.PendingRequest(ctx, guildID, userID)
	if err != nil || pending != nil {
		return
	}
	_, err = s.store.CreateRequest(ctx, statstore.PromotionRequest{
		ID:             uuid.NewString(),
		UserID:         userID,
		GuildID:        guildID,
		CurrentRank:    target - 1,
		TargetRank:     target,
		ValidationsGot: int64(progress[ReqAdvisorValidations].Current),
		ValidationsReq: config.ValidationsNeeded(target),
		Status:         statstore.RequestPending,
	})
	if err != nil {
		s.log.Warn("open promotion request failed",
			slog.String("guild_id", guildID),
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
	}
}

// settleRequest closes any pending request once its target rank is held.
func (s *Service) settleRequest(ctx context.Context, guildID, userID string, rank int) {
	pending, err := s.store.PendingRequest(ctx, guildID, userID)
	if err != nil || pending == nil || pending.TargetRank > rank {
		return
	}
	pending.Status = statstore.RequestApproved
	if err := s.store.UpdateRequest(ctx, *pending); err != nil {
		s.log.Warn("settle promotion request failed",
			slog.String("guild_id", guildID),
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
	}
}

// AssignElite tags a rank-5 member with an Elite subtype.
func (s *Service) AssignElite(ctx context.Context, guildID, userID string, eliteType string) (statstore.StatRecord, error) {
	if _, ok := config.EliteTypes[eliteType]; !ok {
		return statstore.StatRecord{}, fmt.Errorf("%w: unknown elite type %q", ErrInvalidArgument, eliteType)
	}
	unlock := s.members.lock(memberKey(guildID, userID))
	defer unlock()

	et := statstore.EliteType(eliteType)
	rec, err := s.store.Mutate(ctx, guildID, userID, func(rec *statstore.StatRecord) error {
		if rec.Rank != config.RankElite {
			return ErrWrongRank
		}
		rec.EliteType = &et
		refreshImmunity(rec)
		return nil
	})
	if err != nil {
		return statstore.StatRecord{}, wrap(err)
	}
	s.syncRoles(rec)
	return rec, nil
}

// AssignLeadership seats a member as Advisor or Ruler. The guild lock makes
// the cap check and the seat write one unit: two concurrent assignments can
// never both pass a full cap.
func (s *Service) AssignLeadership(ctx context.Context, guildID, userID string, roleType statstore.RoleType) (statstore.StatRecord, error) {
	if roleType != statstore.RoleAdvisor && roleType != statstore.RoleRuler {
		return statstore.StatRecord{}, fmt.Errorf("%w: unknown role type %q", ErrInvalidArgument, roleType)
	}

	unlockGuild := s.guilds.lock(guildID)
	defer unlockGuild()

	free, err := s.registry.hasSlot(ctx, guildID, roleType)
	if err != nil {
		return statstore.StatRecord{}, wrap(err)
	}
	if !free {
		return statstore.StatRecord{}, ErrCapReached
	}

	unlock := s.members.lock(memberKey(guildID, userID))
	defer unlock()

	current, err := s.store.Get(ctx, guildID, userID)
	if err != nil {
		return statstore.StatRecord{}, wrap(err)
	}
	if current.Rank < config.RankElite {
		return statstore.StatRecord{}, ErrPreconditionFailed
	}
	// Advisor and Ruler are mutually exclusive: a sitting leader must be
	// removed from their seat before taking another.
	holdsSeat, err := s.registry.IsLeader(ctx, guildID, userID)
	if err != nil {
		return statstore.StatRecord{}, wrap(err)
	}
	if holdsSeat {
		return statstore.StatRecord{}, ErrPreconditionFailed
	}

	if err := s.store.AssignLeader(ctx, guildID, userID, roleType); err != nil {
		if errors.Is(err, statstore.ErrDuplicateAssignment) {
			return statstore.StatRecord{}, ErrPreconditionFailed
		}
		return statstore.StatRecord{}, wrap(err)
	}

	newRank := config.RankAdvisor
	if roleType == statstore.RoleRuler {
		newRank = config.RankRuler
	}
	rec, err := s.store.Mutate(ctx, guildID, userID, func(rec *statstore.StatRecord) error {
		rec.Rank = newRank
		refreshImmunity(rec)
		return nil
	})
	if err != nil {
		// Roll the seat back so the registry never disagrees with rank.
		if rmErr := s.store.RemoveLeader(ctx, guildID, userID, roleType); rmErr != nil {
			s.log.Error("leadership rollback failed",
				slog.String("guild_id", guildID),
				slog.String("user_id", userID),
				slog.String("error", rmErr.Error()))
		}
		return statstore.StatRecord{}, wrap(err)
	}

	s.log.Info("leadership assigned",
		slog.String("guild_id", guildID),
		slog.String("user_id", userID),
		slog.String("role_type", string(roleType)))
	s.syncRoles(rec)
	return rec, nil
}

// RemoveLeadership vacates a seat. The member always lands back at Elite,
// regardless of which rank they held.
func (s *Service) RemoveLeadership(ctx context.Context, guildID, userID string, roleType statstore.RoleType) (statstore.StatRecord, error) {
	unlockGuild := s.guilds.lock(guildID)
	defer unlockGuild()

	if err := s.store.RemoveLeader(ctx, guildID, userID, roleType); err != nil {
		if errors.Is(err, statstore.ErrNotFound) {
			return statstore.StatRecord{}, ErrNotAssigned
		}
		return statstore.StatRecord{}, wrap(err)
	}

	unlock := s.members.lock(memberKey(guildID, userID))
	defer unlock()

	rec, err := s.store.Mutate(ctx, guildID, userID, func(rec *statstore.StatRecord) error {
		rec.Rank = config.RankElite
		refreshImmunity(rec)
		return nil
	})
	if err != nil {
		return statstore.StatRecord{}, wrap(err)
	}
	s.syncRoles(rec)
	return rec, nil
}

// Validate records a leadership endorsement on the target member and
// advances any pending promotion request. Once a request has enough
// validations it is approved and promotion is attempted immediately.
func (s *Service) Validate(ctx context.Context, guildID, validatorID, targetID string) (statstore.StatRecord, error) {
	leader, err := s.registry.IsLeader(ctx, guildID, validatorID)
	if err != nil {
		return statstore.StatRecord{}, wrap(err)
	}
	if !leader {
		return statstore.StatRecord{}, ErrNotAuthorized
	}

	unlock := s.members.lock(memberKey(guildID, targetID))
	rec, err := s.store.Mutate(ctx, guildID, targetID, func(rec *statstore.StatRecord) error {
		rec.Validations++
		rec.Touch(s.now())
		return nil
	})
	if err != nil {
		unlock()
		return statstore.StatRecord{}, wrap(err)
	}
	approved := s.advanceRequest(ctx, guildID, targetID, rec.Validations)
	unlock()

	if approved {
		if promoted, err := s.Promote(ctx, guildID, targetID); err == nil {
			rec = promoted
		} else if !errors.Is(err, ErrNotEligible) {
			s.log.Warn("post-validation promotion failed",
				slog.String("guild_id", guildID),
				slog.String("user_id", targetID),
				slog.String("error", err.Error()))
		}
	}
	return rec, nil
}

// advanceRequest syncs a pending request with the record's validation count
// and reports whether it just got approved. The record is the source of
// truth for the count. Runs under the member lock so concurrent validations
// never lose an increment.
func (s *Service) advanceRequest(ctx context.Context, guildID, userID string, validations int64) bool {
	pending, err := s.store.PendingRequest(ctx, guildID, userID)
	if err != nil || pending == nil {
		return false
	}
	pending.ValidationsGot = validations
	if validations >= pending.ValidationsReq {
		pending.Status = statstore.RequestApproved
	}
	if err := s.store.UpdateRequest(ctx, *pending); err != nil {
		s.log.Warn("update promotion request failed",
			slog.String("guild_id", guildID),
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
		return false
	}
	return pending.Status == statstore.RequestApproved
}

// MaybeDemote drops an inactive member one rank. Fires only above rank 2,
// never on immune members, and only when recent raw activity is below the
// demotion thresholds (under half an hour of voice and ten messages).
// Demotion looks at raw thresholds only; eligibility plays no part.
func (s *Service) MaybeDemote(ctx context.Context, guildID, userID string) (statstore.StatRecord, bool, error) {
	unlock := s.members.lock(memberKey(guildID, userID))
	defer unlock()

	rec, err := s.store.Mutate(ctx, guildID, userID, func(rec *statstore.StatRecord) error {
		if rec.Rank <= config.RankLearner {
			return errSkip
		}
		if rec.ImmuneToDecay || config.ImmuneRank(rec.Rank) {
			return errSkip
		}
		if rec.VoiceHours() >= 0.5 || rec.MessageCount >= 10 {
			return errSkip
		}
		rec.Rank--
		return nil
	})
	if errors.Is(err, errSkip) {
		current, getErr := s.store.Get(ctx, guildID, userID)
		return current, false, wrap(getErr)
	}
	if err != nil {
		return statstore.StatRecord{}, false, wrap(err)
	}

	s.log.Info("member demoted for inactivity",
		slog.String("guild_id", guildID),
		slog.String("user_id", userID),
		slog.Int("rank", rec.Rank))
	s.syncRoles(rec)
	return rec, true, nil
}

// ApplyDecay shrinks the accruing counters by percent with integer
// truncation, leaving discrete accomplishments and last activity untouched.
// Invoked by the decay sweep only.
func (s *Service) ApplyDecay(ctx context.Context, guildID, userID string, percent int) (statstore.StatRecord, error) {
	if percent < 0 || percent > 100 {
		return statstore.StatRecord{}, fmt.Errorf("%w: decay percent %d", ErrInvalidArgument, percent)
	}
	unlock := s.members.lock(memberKey(guildID, userID))
	defer unlock()

	factor := float64(100-percent) / 100
	rec, err := s.store.Mutate(ctx, guildID, userID, func(rec *statstore.StatRecord) error {
		if rec.ImmuneToDecay || config.ImmuneRank(rec.Rank) {
			return errSkip
		}
		rec.VoiceTimeSecs = int64(float64(rec.VoiceTimeSecs) * factor)
		rec.MessageCount = int64(float64(rec.MessageCount) * factor)
		rec.ReactionCount = int64(float64(rec.ReactionCount) * factor)
		rec.VideosShared = int64(float64(rec.VideosShared) * factor)
		return nil
	})
	if errors.Is(err, errSkip) {
		current, getErr := s.store.Get(ctx, guildID, userID)
		return current, wrap(getErr)
	}
	if err != nil {
		return statstore.StatRecord{}, wrap(err)
	}
	return rec, nil
}
