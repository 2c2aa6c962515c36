package config

import "time"

// RankInfo describes one level of the rank ladder.
type RankInfo struct {
	Name        string
	Description string
	Color       int
	// MaxSlots bounds how many members may hold the rank at once.
	// Zero means unbounded.
	MaxSlots int
	Subtypes []string
}

// Rank ladder levels. Ranks 6 and 7 are capped leadership positions
// layered on top of Elite; they are never reached automatically.
const (
	RankViewer      = 1
	RankLearner     = 2
	RankMember      = 3
	RankContributor = 4
	RankElite       = 5
	RankAdvisor     = 6
	RankRuler       = 7
)

const (
	MaxAdvisors = 4
	MaxRulers   = 1
)

var Ranks = map[int]RankInfo{
	RankViewer: {
		Name:        "Viewer",
		Description: "Entry-level; basic member after onboarding.",
		Color:       0x95a5a6,
	},
	RankLearner: {
		Name:        "Learner",
		Description: "Shows curiosity and initial participation.",
		Color:       0x3498db,
	},
	RankMember: {
		Name:        "Member",
		Description: "Active participant in text and voice.",
		Color:       0x2ecc71,
	},
	RankContributor: {
		Name:        "Contributor",
		Description: "Gains right to vote.",
		Color:       0xf39c12,
	},
	RankElite: {
		Name:        "Elite",
		Description: "Divided into Solid, Pillar, and Team X. Immune to point decay.",
		Color:       0xe74c3c,
		Subtypes:    []string{"solid", "pillar", "team_x"},
	},
	RankAdvisor: {
		Name:        "Advisor",
		Description: "Senior mentors; max 4. Assist and advise.",
		Color:       0x9b59b6,
		MaxSlots:    MaxAdvisors,
	},
	RankRuler: {
		Name:        "Ruler",
		Description: "The single leader responsible for major decisions.",
		Color:       0xf1c40f,
		MaxSlots:    MaxRulers,
	},
}

// Requirements lists the thresholds a member must reach before holding a
// target rank. Absent fields are not checked.
type Requirements struct {
	WantsToContribute   bool
	VoiceTimeHours      float64
	MessageCount        int64
	InviteCount         int64
	ReactionCount       int64
	SubjectPosts        int64
	SubjectReactions    int64
	VoiceSessionsHosted int64
	VideosShared        int64
	AdvisorValidations  int64
	Description         string
}

// PromotionRequirements is keyed by target rank. Ranks above Elite have no
// entry: they are assigned manually through leadership commands.
var PromotionRequirements = map[int]Requirements{
	RankLearner: {
		WantsToContribute: true,
		Description:       `Show respect and work ethics + press button "I want to contribute"`,
	},
	RankMember: {
		VoiceTimeHours: 1,
		MessageCount:   50,
		ReactionCount:  10,
		InviteCount:    5,
		SubjectPosts:   1,
		Description:    "1 hour talk + 50 messages + 10 reactions + 5 invites + 1 subject post",
	},
	RankContributor: {
		VoiceTimeHours:      2,
		InviteCount:         15,
		MessageCount:        150,
		ReactionCount:       20,
		SubjectPosts:        1,
		SubjectReactions:    5,
		VoiceSessionsHosted: 1,
		VideosShared:        5,
		AdvisorValidations:  1,
		Description:         "2 hours talk + 15 invites + 150 texts + 20 reactions + 1 subject (5 reactions) + host 1 voice + 5 videos + Advisor/Ruler validation",
	},
	RankElite: {
		VoiceTimeHours:     5,
		InviteCount:        25,
		MessageCount:       300,
		ReactionCount:      100,
		VideosShared:       25,
		AdvisorValidations: 2,
		Description:        "5 hours talk + 25 invites + 300 texts + 100 reactions + 25 videos + 2 Advisor/Ruler validations",
	},
}

// Scoring weights applied by the score engine.
type ScoringWeights struct {
	VoicePerHour       float64
	MessagePerCount    float64
	InvitePerCount     float64
	ReactionPerCount   float64
	VideoPerCount      float64
	SubjectPerCount    float64
	VoiceSessionHosted float64
}

var Scoring = ScoringWeights{
	VoicePerHour:       10,
	MessagePerCount:    0.1,
	InvitePerCount:     20,
	ReactionPerCount:   0.5,
	VideoPerCount:      2,
	SubjectPerCount:    5,
	VoiceSessionHosted: 10,
}

// DecaySettings controls the inactivity sweep.
type DecaySettings struct {
	InactiveDays  int
	Percent       int
	CheckInterval time.Duration
}

var DefaultDecay = DecaySettings{
	InactiveDays:  7,
	Percent:       10,
	CheckInterval: 24 * time.Hour,
}

// ImmuneRank reports whether a rank is exempt from decay regardless of the
// per-member immunity flag.
func ImmuneRank(rank int) bool {
	return rank >= RankElite
}

// EliteTypeInfo describes an Elite subtype.
type EliteTypeInfo struct {
	Name        string
	Description string
}

var EliteTypes = map[string]EliteTypeInfo{
	"solid":  {Name: "Solid", Description: "Reliable and consistent Elite member"},
	"pillar": {Name: "Pillar", Description: "Core support Elite member"},
	"team_x": {Name: "Team X", Description: "Exceptional Elite member"},
}

// ValidationsNeeded returns how many leadership validations gate a
// promotion to the given target rank.
func ValidationsNeeded(targetRank int) int64 {
	return PromotionRequirements[targetRank].AdvisorValidations
}
