package ranking

import (
	"math"

	"rankbot/config"
	"rankbot/statstore"
)

// Score maps an activity record to its overall score. Pure: fixed weights,
// no side effects, monotonic in every counter.
func Score(rec statstore.StatRecord) float64 {
	w := config.Scoring
	score := rec.VoiceHours()*w.VoicePerHour +
		float64(rec.MessageCount)*w.MessagePerCount +
		float64(rec.InviteCount)*w.InvitePerCount +
		float64(rec.ReactionCount)*w.ReactionPerCount +
		float64(rec.VideosShared)*w.VideoPerCount +
		float64(rec.SubjectPosts)*w.SubjectPerCount +
		float64(rec.SessionsHosted)*w.VoiceSessionHosted
	return math.Round(score*100) / 100
}
