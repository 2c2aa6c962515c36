package ranking

import (
	"rankbot/config"
	"rankbot/statstore"
)

// Requirement names one promotion threshold.
type Requirement string

const (
	ReqWantsToContribute   Requirement = "wants_to_contribute"
	ReqVoiceTimeHours      Requirement = "voice_time_hours"
	ReqMessageCount        Requirement = "message_count"
	ReqInviteCount         Requirement = "invite_count"
	ReqReactionCount       Requirement = "reaction_count"
	ReqSubjectPosts        Requirement = "subject_posts"
	ReqSubjectReactions    Requirement = "subject_reactions"
	ReqVoiceSessionsHosted Requirement = "voice_sessions_hosted"
	ReqVideosShared        Requirement = "videos_shared"
	ReqAdvisorValidations  Requirement = "advisor_validations"
)

// RequirementOrder fixes display order for progress reports.
var RequirementOrder = []Requirement{
	ReqWantsToContribute,
	ReqVoiceTimeHours,
	ReqMessageCount,
	ReqInviteCount,
	ReqReactionCount,
	ReqSubjectPosts,
	ReqSubjectReactions,
	ReqVoiceSessionsHosted,
	ReqVideosShared,
	ReqAdvisorValidations,
}

// Check is one requirement's progress. Boolean requirements report 0 or 1.
type Check struct {
	Required float64
	Current  float64
	Passed   bool
}

// Evaluate reports whether the member can advance one rank, the rank they
// would advance to, and per-requirement progress. Ranks at or above Elite
// never advance automatically: the result is not-eligible with an empty
// progress map and target equal to the current rank.
//
// Thresholds are inclusive. Requirements absent from the table for the
// target rank are not checked. Voice time is compared at full floating
// precision. Pure: no side effects.
func Evaluate(rec statstore.StatRecord) (bool, int, map[Requirement]Check) {
	current := rec.Rank
	if current >= config.RankElite {
		return false, current, map[Requirement]Check{}
	}

	target := current + 1
	reqs, ok := config.PromotionRequirements[target]
	if !ok {
		return false, current, map[Requirement]Check{}
	}

	progress := make(map[Requirement]Check)
	add := func(key Requirement, required, got float64) {
		progress[key] = Check{Required: required, Current: got, Passed: got >= required}
	}

	if reqs.WantsToContribute {
		got := 0.0
		if rec.WantsContribute {
			got = 1
		}
		add(ReqWantsToContribute, 1, got)
	}
	if reqs.VoiceTimeHours > 0 {
		add(ReqVoiceTimeHours, reqs.VoiceTimeHours, rec.VoiceHours())
	}
	if reqs.MessageCount > 0 {
		add(ReqMessageCount, float64(reqs.MessageCount), float64(rec.MessageCount))
	}
	if reqs.InviteCount > 0 {
		add(ReqInviteCount, float64(reqs.InviteCount), float64(rec.InviteCount))
	}
	if reqs.ReactionCount > 0 {
		add(ReqReactionCount, float64(reqs.ReactionCount), float64(rec.ReactionCount))
	}
	if reqs.SubjectPosts > 0 {
		add(ReqSubjectPosts, float64(reqs.SubjectPosts), float64(rec.SubjectPosts))
	}
	if reqs.SubjectReactions > 0 {
		add(ReqSubjectReactions, float64(reqs.SubjectReactions), float64(rec.SubjectReacts))
	}
	if reqs.VoiceSessionsHosted > 0 {
		add(ReqVoiceSessionsHosted, float64(reqs.VoiceSessionsHosted), float64(rec.SessionsHosted))
	}
	if reqs.VideosShared > 0 {
		add(ReqVideosShared, float64(reqs.VideosShared), float64(rec.VideosShared))
	}
	if reqs.AdvisorValidations > 0 {
		add(ReqAdvisorValidations, float64(reqs.AdvisorValidations), float64(rec.Validations))
	}

	eligible := true
	for _, c := range progress {
		if !c.Passed {
			eligible = false
			break
		}
	}
	return eligible, target, progress
}

// onlyValidationsMissing reports whether every checked requirement except
// advisor validations has passed. Used to open a promotion request the
// first time a member is blocked only on leadership sign-off.
func onlyValidationsMissing(progress map[Requirement]Check) bool {
	blocked := false
	for key, c := range progress {
		if c.Passed {
			continue
		}
		if key != ReqAdvisorValidations {
			return false
		}
		blocked = true
	}
	return blocked
}
