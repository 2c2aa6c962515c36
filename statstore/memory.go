package statstore

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Store used by tests and local runs without a
// database. A single mutex held across each Mutate gives the same
// per-key atomicity the Postgres store gets from row locks.
type Memory struct {
	mu       sync.Mutex
	records  map[string]StatRecord
	leaders  map[string][]LeadershipAssignment // keyed by guild
	requests map[string][]PromotionRequest     // keyed by guild
	now      func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		records:  make(map[string]StatRecord),
		leaders:  make(map[string][]LeadershipAssignment),
		requests: make(map[string][]PromotionRequest),
		now:      time.Now,
	}
}

// SetClock overrides the time source. Test helper.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func key(guildID, userID string) string { return guildID + "/" + userID }

func (m *Memory) Get(_ context.Context, guildID, userID string) (StatRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key(guildID, userID)]
	if !ok {
		return StatRecord{}, ErrNotFound
	}
	return rec, nil
}

func (m *Memory) Create(_ context.Context, guildID, userID, displayName string) (StatRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(guildID, userID)
	if rec, ok := m.records[k]; ok {
		return rec, nil
	}
	now := m.now()
	rec := StatRecord{
		UserID:       userID,
		GuildID:      guildID,
		DisplayName:  displayName,
		Rank:         1,
		LastActivity: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.records[k] = rec
	return rec, nil
}

func (m *Memory) Mutate(_ context.Context, guildID, userID string, fn func(*StatRecord) error) (StatRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(guildID, userID)
	rec, ok := m.records[k]
	if !ok {
		return StatRecord{}, ErrNotFound
	}
	if err := fn(&rec); err != nil {
		return StatRecord{}, err
	}
	rec.UpdatedAt = m.now()
	m.records[k] = rec
	return rec, nil
}

func (m *Memory) ListByGuild(_ context.Context, guildID string) ([]StatRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []StatRecord
	for _, rec := range m.records {
		if rec.GuildID == guildID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m *Memory) ListByRank(_ context.Context, guildID string, rank int) ([]StatRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []StatRecord
	for _, rec := range m.records {
		if rec.GuildID == guildID && rec.Rank == rank {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m *Memory) ListInactive(_ context.Context, guildID string, cutoff time.Time) ([]StatRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []StatRecord
	for _, rec := range m.records {
		if rec.GuildID == guildID && !rec.ImmuneToDecay && rec.LastActivity.Before(cutoff) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m *Memory) Leaders(_ context.Context, guildID string, roleType RoleType) ([]LeadershipAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []LeadershipAssignment
	for _, a := range m.leaders[guildID] {
		if roleType == "" || a.RoleType == roleType {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *Memory) IsLeader(_ context.Context, guildID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.leaders[guildID] {
		if a.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) AssignLeader(_ context.Context, guildID, userID string, roleType RoleType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.leaders[guildID] {
		if a.UserID == userID && a.RoleType == roleType {
			return ErrDuplicateAssignment
		}
	}
	m.leaders[guildID] = append(m.leaders[guildID], LeadershipAssignment{
		UserID:    userID,
		GuildID:   guildID,
		RoleType:  roleType,
		CreatedAt: m.now(),
	})
	return nil
}

func (m *Memory) RemoveLeader(_ context.Context, guildID, userID string, roleType RoleType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.leaders[guildID]
	for i, a := range list {
		if a.UserID == userID && a.RoleType == roleType {
			m.leaders[guildID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) PendingRequest(_ context.Context, guildID, userID string) (*PromotionRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, req := range m.requests[guildID] {
		if req.UserID == userID && req.Status == RequestPending {
			out := req
			return &out, nil
		}
	}
	return nil, nil
}

func (m *Memory) CreateRequest(_ context.Context, req PromotionRequest) (PromotionRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	req.CreatedAt = now
	req.UpdatedAt = now
	m.requests[req.GuildID] = append(m.requests[req.GuildID], req)
	return req, nil
}

func (m *Memory) UpdateRequest(_ context.Context, req PromotionRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.requests[req.GuildID]
	for i, existing := range list {
		if existing.ID == req.ID {
			req.UpdatedAt = m.now()
			list[i] = req
			return nil
		}
	}
	return ErrNotFound
}
