package ranking

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rankbot/statstore"
)

const guild = "guild-1"

func newTestService(t *testing.T) (*Service, *statstore.Memory) {
	t.Helper()
	store := statstore.NewMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store, logger, nil), store
}

// seed creates a record and applies edits without going through transitions.
func seed(t *testing.T, store *statstore.Memory, userID string, edit func(*statstore.StatRecord)) statstore.StatRecord {
	t.Helper()
	ctx := context.Background()
	_, err := store.Create(ctx, guild, userID, userID)
	require.NoError(t, err)
	rec, err := store.Mutate(ctx, guild, userID, func(rec *statstore.StatRecord) error {
		edit(rec)
		return nil
	})
	require.NoError(t, err)
	return rec
}

func TestOnboard(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	rec, err := svc.Onboard(ctx, guild, "alice", "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Rank)
	assert.Zero(t, rec.MessageCount)
	assert.Zero(t, rec.VoiceTimeSecs)
	assert.False(t, rec.ImmuneToDecay)
	assert.False(t, rec.WantsContribute)

	// Rejoining keeps the existing record.
	require.NoError(t, svc.RecordMessage(ctx, guild, "alice", "alice"))
	rec, err = svc.Onboard(ctx, guild, "alice", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.MessageCount)
}

func TestRequestContribute(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.Onboard(ctx, guild, "alice", "alice")
	require.NoError(t, err)

	rec, err := svc.RequestContribute(ctx, guild, "alice")
	require.NoError(t, err)
	assert.True(t, rec.WantsContribute)

	_, err = svc.RequestContribute(ctx, guild, "alice")
	assert.ErrorIs(t, err, ErrAlreadyRequested)

	seed(t, store, "bob", func(rec *statstore.StatRecord) { rec.Rank = 3 })
	_, err = svc.RequestContribute(ctx, guild, "bob")
	assert.ErrorIs(t, err, ErrWrongRank)

	_, err = svc.RequestContribute(ctx, guild, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApproveLearner(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	seed(t, store, "alice", func(rec *statstore.StatRecord) { rec.WantsContribute = true })
	rec, err := svc.ApproveLearner(ctx, guild, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Rank)

	// Re-approving fails: no longer rank 1.
	_, err = svc.ApproveLearner(ctx, guild, "alice")
	assert.ErrorIs(t, err, ErrPreconditionFailed)

	seed(t, store, "bob", func(rec *statstore.StatRecord) {})
	_, err = svc.ApproveLearner(ctx, guild, "bob")
	assert.ErrorIs(t, err, ErrPreconditionFailed)
}

func rank3Ready(rec *statstore.StatRecord) {
	rec.Rank = 2
	rec.VoiceTimeSecs = 3600
	rec.MessageCount = 50
	rec.ReactionCount = 10
	rec.InviteCount = 5
	rec.SubjectPosts = 1
}

func TestPromote(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	seed(t, store, "alice", rank3Ready)
	rec, err := svc.Promote(ctx, guild, "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, rec.Rank)

	seed(t, store, "bob", func(rec *statstore.StatRecord) { rec.Rank = 2 })
	_, err = svc.Promote(ctx, guild, "bob")
	assert.ErrorIs(t, err, ErrNotEligible)
}

func TestPromoteToEliteGrantsImmunity(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	seed(t, store, "alice", func(rec *statstore.StatRecord) {
		rec.Rank = 4
		rec.VoiceTimeSecs = 5 * 3600
		rec.InviteCount = 25
		rec.MessageCount = 300
		rec.ReactionCount = 100
		rec.VideosShared = 25
		rec.Validations = 2
	})
	rec, err := svc.Promote(ctx, guild, "alice")
	require.NoError(t, err)
	assert.Equal(t, 5, rec.Rank)
	assert.True(t, rec.ImmuneToDecay)
}

func TestConcurrentPromoteAdvancesOnce(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	seed(t, store, "alice", rank3Ready)

	const callers = 8
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Promote(ctx, guild, "alice")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrNotEligible)
		}
	}
	assert.Equal(t, 1, succeeded)

	rec, err := store.Get(ctx, guild, "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, rec.Rank, "rank must advance exactly once")
}

func TestAssignElite(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	seed(t, store, "alice", func(rec *statstore.StatRecord) { rec.Rank = 5; rec.ImmuneToDecay = true })
	rec, err := svc.AssignElite(ctx, guild, "alice", "pillar")
	require.NoError(t, err)
	require.NotNil(t, rec.EliteType)
	assert.Equal(t, statstore.ElitePillar, *rec.EliteType)
	assert.True(t, rec.ImmuneToDecay)

	_, err = svc.AssignElite(ctx, guild, "alice", "diamond")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	seed(t, store, "bob", func(rec *statstore.StatRecord) { rec.Rank = 4 })
	_, err = svc.AssignElite(ctx, guild, "bob", "solid")
	assert.ErrorIs(t, err, ErrWrongRank)
}

func TestAssignLeadership(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	seed(t, store, "lowly", func(rec *statstore.StatRecord) { rec.Rank = 4 })
	_, err := svc.AssignLeadership(ctx, guild, "lowly", statstore.RoleRuler)
	assert.ErrorIs(t, err, ErrPreconditionFailed)

	seed(t, store, "alice", func(rec *statstore.StatRecord) { rec.Rank = 5; rec.ImmuneToDecay = true })
	rec, err := svc.AssignLeadership(ctx, guild, "alice", statstore.RoleRuler)
	require.NoError(t, err)
	assert.Equal(t, 7, rec.Rank)
	assert.True(t, rec.ImmuneToDecay)

	// A second ruler is refused and the first assignment is untouched.
	seed(t, store, "bob", func(rec *statstore.StatRecord) { rec.Rank = 5; rec.ImmuneToDecay = true })
	_, err = svc.AssignLeadership(ctx, guild, "bob", statstore.RoleRuler)
	assert.ErrorIs(t, err, ErrCapReached)

	rulers, err := store.Leaders(ctx, guild, statstore.RoleRuler)
	require.NoError(t, err)
	require.Len(t, rulers, 1)
	assert.Equal(t, "alice", rulers[0].UserID)

	_, err = svc.AssignLeadership(ctx, guild, "bob", "emperor")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestAdvisorCap(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	users := []string{"a1", "a2", "a3", "a4", "a5"}
	for _, u := range users {
		seed(t, store, u, func(rec *statstore.StatRecord) { rec.Rank = 5; rec.ImmuneToDecay = true })
	}
	for _, u := range users[:4] {
		_, err := svc.AssignLeadership(ctx, guild, u, statstore.RoleAdvisor)
		require.NoError(t, err)
	}
	_, err := svc.AssignLeadership(ctx, guild, "a5", statstore.RoleAdvisor)
	assert.ErrorIs(t, err, ErrCapReached)
}

func TestConcurrentRulerAssignment(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	users := []string{"alice", "bob", "carol", "dave"}
	for _, u := range users {
		seed(t, store, u, func(rec *statstore.StatRecord) { rec.Rank = 5; rec.ImmuneToDecay = true })
	}

	errs := make(chan error, len(users))
	var wg sync.WaitGroup
	for _, u := range users {
		u := u
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AssignLeadership(ctx, guild, u, statstore.RoleRuler)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrCapReached)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one ruler can ever be seated")

	rulers, err := store.Leaders(ctx, guild, statstore.RoleRuler)
	require.NoError(t, err)
	assert.Len(t, rulers, 1)
}

func TestRemoveLeadershipFloorsAtElite(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	seed(t, store, "alice", func(rec *statstore.StatRecord) { rec.Rank = 5; rec.ImmuneToDecay = true })
	_, err := svc.AssignLeadership(ctx, guild, "alice", statstore.RoleAdvisor)
	require.NoError(t, err)

	rec, err := svc.RemoveLeadership(ctx, guild, "alice", statstore.RoleAdvisor)
	require.NoError(t, err)
	assert.Equal(t, 5, rec.Rank)
	assert.True(t, rec.ImmuneToDecay)

	_, err = svc.RemoveLeadership(ctx, guild, "alice", statstore.RoleAdvisor)
	assert.ErrorIs(t, err, ErrNotAssigned)
}

func TestValidateRequiresLeadership(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	seed(t, store, "target", func(rec *statstore.StatRecord) { rec.Rank = 3 })
	seed(t, store, "random", func(rec *statstore.StatRecord) { rec.Rank = 3 })

	_, err := svc.Validate(ctx, guild, "random", "target")
	assert.ErrorIs(t, err, ErrNotAuthorized)

	require.NoError(t, store.AssignLeader(ctx, guild, "leader", statstore.RoleAdvisor))
	rec, err := svc.Validate(ctx, guild, "leader", "target")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Validations)
}

func TestValidationGatedPromotion(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	// Contributor with everything for Elite except the two validations.
	seed(t, store, "alice", func(rec *statstore.StatRecord) {
		rec.Rank = 4
		rec.VoiceTimeSecs = 5 * 3600
		rec.InviteCount = 25
		rec.MessageCount = 300
		rec.ReactionCount = 100
		rec.VideosShared = 25
	})
	require.NoError(t, store.AssignLeader(ctx, guild, "leader", statstore.RoleRuler))

	// The failed promotion opens a pending request for leadership sign-off.
	_, err := svc.Promote(ctx, guild, "alice")
	require.ErrorIs(t, err, ErrNotEligible)

	req, err := store.PendingRequest(ctx, guild, "alice")
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, 5, req.TargetRank)
	assert.Equal(t, int64(2), req.ValidationsReq)

	// A second failed attempt does not open a duplicate request.
	_, err = svc.Promote(ctx, guild, "alice")
	require.ErrorIs(t, err, ErrNotEligible)

	_, err = svc.Validate(ctx, guild, "leader", "alice")
	require.NoError(t, err)
	rec, err := store.Get(ctx, guild, "alice")
	require.NoError(t, err)
	assert.Equal(t, 4, rec.Rank, "one validation is not enough")

	rec, err = svc.Validate(ctx, guild, "leader", "alice")
	require.NoError(t, err)
	assert.Equal(t, 5, rec.Rank, "second validation approves and promotes")
	assert.True(t, rec.ImmuneToDecay)

	req, err = store.PendingRequest(ctx, guild, "alice")
	require.NoError(t, err)
	assert.Nil(t, req, "request is settled")
}

func TestValidationBeforeRequestCounts(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	seed(t, store, "alice", func(rec *statstore.StatRecord) {
		rec.Rank = 4
		rec.VoiceTimeSecs = 5 * 3600
		rec.InviteCount = 25
		rec.MessageCount = 300
		rec.ReactionCount = 100
		rec.VideosShared = 25
	})
	require.NoError(t, store.AssignLeader(ctx, guild, "leader", statstore.RoleRuler))

	// First validation lands before any request exists.
	_, err := svc.Validate(ctx, guild, "leader", "alice")
	require.NoError(t, err)

	_, err = svc.Promote(ctx, guild, "alice")
	require.ErrorIs(t, err, ErrNotEligible)

	req, err := store.PendingRequest(ctx, guild, "alice")
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, int64(1), req.ValidationsGot, "request opens with the validation already held")

	rec, err := svc.Validate(ctx, guild, "leader", "alice")
	require.NoError(t, err)
	assert.Equal(t, 5, rec.Rank, "early validation still counts toward approval")
}

func TestConcurrentValidationsNeverLoseCounts(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	seed(t, store, "alice", func(rec *statstore.StatRecord) {
		rec.Rank = 4
		rec.VoiceTimeSecs = 5 * 3600
		rec.InviteCount = 25
		rec.MessageCount = 300
		rec.ReactionCount = 100
		rec.VideosShared = 25
	})
	require.NoError(t, store.AssignLeader(ctx, guild, "leader", statstore.RoleRuler))

	_, err := svc.Promote(ctx, guild, "alice")
	require.ErrorIs(t, err, ErrNotEligible)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Validate(ctx, guild, "leader", "alice")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rec, err := store.Get(ctx, guild, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.Validations)
	assert.Equal(t, 5, rec.Rank, "both validations reach the request")

	req, err := store.PendingRequest(ctx, guild, "alice")
	require.NoError(t, err)
	assert.Nil(t, req)
}

func TestLeadershipSeatsAreExclusive(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	seed(t, store, "alice", func(rec *statstore.StatRecord) { rec.Rank = 5; rec.ImmuneToDecay = true })
	_, err := svc.AssignLeadership(ctx, guild, "alice", statstore.RoleAdvisor)
	require.NoError(t, err)

	_, err = svc.AssignLeadership(ctx, guild, "alice", statstore.RoleRuler)
	assert.ErrorIs(t, err, ErrPreconditionFailed)

	rec, err := store.Get(ctx, guild, "alice")
	require.NoError(t, err)
	assert.Equal(t, 6, rec.Rank)
	rulers, err := store.Leaders(ctx, guild, statstore.RoleRuler)
	require.NoError(t, err)
	assert.Empty(t, rulers, "refused assignment leaves no seat behind")

	// Vacating the advisor seat makes the member assignable again.
	_, err = svc.RemoveLeadership(ctx, guild, "alice", statstore.RoleAdvisor)
	require.NoError(t, err)
	rec, err = svc.AssignLeadership(ctx, guild, "alice", statstore.RoleRuler)
	require.NoError(t, err)
	assert.Equal(t, 7, rec.Rank)
}

func TestMaybeDemote(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	seed(t, store, "idle", func(rec *statstore.StatRecord) { rec.Rank = 4 })
	rec, demoted, err := svc.MaybeDemote(ctx, guild, "idle")
	require.NoError(t, err)
	assert.True(t, demoted)
	assert.Equal(t, 3, rec.Rank)

	rec, demoted, err = svc.MaybeDemote(ctx, guild, "idle")
	require.NoError(t, err)
	assert.True(t, demoted)
	assert.Equal(t, 2, rec.Rank)

	// Never below Learner.
	rec, demoted, err = svc.MaybeDemote(ctx, guild, "idle")
	require.NoError(t, err)
	assert.False(t, demoted)
	assert.Equal(t, 2, rec.Rank)
}

func TestMaybeDemoteSkipsActiveAndImmune(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	seed(t, store, "chatty", func(rec *statstore.StatRecord) {
		rec.Rank = 3
		rec.MessageCount = 10
	})
	_, demoted, err := svc.MaybeDemote(ctx, guild, "chatty")
	require.NoError(t, err)
	assert.False(t, demoted)

	seed(t, store, "talker", func(rec *statstore.StatRecord) {
		rec.Rank = 3
		rec.VoiceTimeSecs = 1800 // exactly half an hour
	})
	_, demoted, err = svc.MaybeDemote(ctx, guild, "talker")
	require.NoError(t, err)
	assert.False(t, demoted)

	seed(t, store, "protected", func(rec *statstore.StatRecord) {
		rec.Rank = 4
		rec.ImmuneToDecay = true
	})
	_, demoted, err = svc.MaybeDemote(ctx, guild, "protected")
	require.NoError(t, err)
	assert.False(t, demoted)
}

func TestApplyDecayTruncates(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	seed(t, store, "alice", func(rec *statstore.StatRecord) {
		rec.Rank = 3
		rec.VoiceTimeSecs = 1000
		rec.MessageCount = 100
		rec.ReactionCount = 5
		rec.VideosShared = 3
		rec.InviteCount = 7
		rec.SubjectPosts = 2
		rec.SessionsHosted = 1
		rec.Validations = 1
	})

	rec, err := svc.ApplyDecay(ctx, guild, "alice", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(900), rec.VoiceTimeSecs)
	assert.Equal(t, int64(90), rec.MessageCount)
	assert.Equal(t, int64(4), rec.ReactionCount, "truncates, never rounds up")
	assert.Equal(t, int64(2), rec.VideosShared)

	// Discrete accomplishments never decay.
	assert.Equal(t, int64(7), rec.InviteCount)
	assert.Equal(t, int64(2), rec.SubjectPosts)
	assert.Equal(t, int64(1), rec.SessionsHosted)
	assert.Equal(t, int64(1), rec.Validations)
}

func TestApplyDecaySkipsImmune(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	seed(t, store, "elite", func(rec *statstore.StatRecord) {
		rec.Rank = 5
		rec.ImmuneToDecay = true
		rec.MessageCount = 100
	})
	rec, err := svc.ApplyDecay(ctx, guild, "elite", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(100), rec.MessageCount)

	_, err = svc.ApplyDecay(ctx, guild, "elite", 200)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestImmunityInvariantAcrossTransitions(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	seed(t, store, "alice", func(rec *statstore.StatRecord) { rec.Rank = 5 })
	for _, step := range []func() (statstore.StatRecord, error){
		func() (statstore.StatRecord, error) { return svc.AssignElite(ctx, guild, "alice", "solid") },
		func() (statstore.StatRecord, error) {
			return svc.AssignLeadership(ctx, guild, "alice", statstore.RoleAdvisor)
		},
		func() (statstore.StatRecord, error) {
			return svc.RemoveLeadership(ctx, guild, "alice", statstore.RoleAdvisor)
		},
		func() (statstore.StatRecord, error) {
			return svc.AssignLeadership(ctx, guild, "alice", statstore.RoleRuler)
		},
		func() (statstore.StatRecord, error) {
			return svc.RemoveLeadership(ctx, guild, "alice", statstore.RoleRuler)
		},
	} {
		rec, err := step()
		require.NoError(t, err)
		require.GreaterOrEqual(t, rec.Rank, 5)
		assert.True(t, rec.ImmuneToDecay, "ranks 5-7 are always immune")
	}
}

func TestActivityRecordersTouch(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	past := time.Now().Add(-30 * 24 * time.Hour)
	seed(t, store, "alice", func(rec *statstore.StatRecord) { rec.LastActivity = past })

	require.NoError(t, svc.RecordMessage(ctx, guild, "alice", "alice"))
	rec, err := store.Get(ctx, guild, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.MessageCount)
	assert.True(t, rec.LastActivity.After(past))

	require.NoError(t, svc.RecordVoiceTime(ctx, guild, "alice", "alice", 120))
	rec, _ = store.Get(ctx, guild, "alice")
	assert.Equal(t, int64(120), rec.VoiceTimeSecs)

	assert.ErrorIs(t, svc.RecordVoiceTime(ctx, guild, "alice", "alice", -5), ErrInvalidArgument)

	// Lazy creation on first event.
	require.NoError(t, svc.RecordReaction(ctx, guild, "newcomer", "newcomer"))
	rec, err = store.Get(ctx, guild, "newcomer")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Rank)
	assert.Equal(t, int64(1), rec.ReactionCount)
}
