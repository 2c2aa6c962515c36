package statstore

import (
	"time"
)

// EliteType tags a rank-5 member with their Elite subtype.
type EliteType string

const (
	EliteSolid  EliteType = "solid"
	ElitePillar EliteType = "pillar"
	EliteTeamX  EliteType = "team_x"
)

// RoleType identifies one of the capped leadership positions.
type RoleType string

const (
	RoleAdvisor RoleType = "advisor"
	RoleRuler   RoleType = "ruler"
)

// RequestStatus is the lifecycle of a gated promotion request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// StatRecord is the per (user, guild) activity record. All counters start
// at zero and only decrease under decay. EliteType is meaningful only at
// rank 5.
type StatRecord struct {
	UserID          string     `json:"discord_user_id"`
	GuildID         string     `json:"guild_id"`
	DisplayName     string     `json:"discord_username"`
	Rank            int        `json:"rank"`
	VoiceTimeSecs   int64      `json:"voice_time_seconds"`
	MessageCount    int64      `json:"message_count"`
	InviteCount     int64      `json:"invite_count"`
	ReactionCount   int64      `json:"reaction_count"`
	SubjectPosts    int64      `json:"subject_posts"`
	SubjectReacts   int64      `json:"subject_reactions"`
	SessionsHosted  int64      `json:"voice_sessions_hosted"`
	VideosShared    int64      `json:"videos_shared"`
	Validations     int64      `json:"advisor_validations"`
	WantsContribute bool       `json:"wants_to_contribute"`
	ImmuneToDecay   bool       `json:"is_immune_to_decay"`
	EliteType       *EliteType `json:"elite_type,omitempty"`
	LastActivity    time.Time  `json:"last_activity"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// VoiceHours converts accumulated voice time to hours.
func (r StatRecord) VoiceHours() float64 {
	return float64(r.VoiceTimeSecs) / 3600
}

// Touch marks the record active now. Counter mutations call this; decay
// writes must not.
func (r *StatRecord) Touch(now time.Time) {
	r.LastActivity = now
}

// PromotionRequest tracks a validator-gated promotion. At most one pending
// request exists per (user, guild).
type PromotionRequest struct {
	ID             string        `json:"id"`
	UserID         string        `json:"discord_user_id"`
	GuildID        string        `json:"guild_id"`
	CurrentRank    int           `json:"current_rank"`
	TargetRank     int           `json:"target_rank"`
	ValidationsGot int64         `json:"validations_received"`
	ValidationsReq int64         `json:"validations_needed"`
	Status         RequestStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// LeadershipAssignment is one held leadership seat.
type LeadershipAssignment struct {
	UserID    string    `json:"discord_user_id"`
	GuildID   string    `json:"guild_id"`
	RoleType  RoleType  `json:"role_type"`
	CreatedAt time.Time `json:"created_at"`
}
