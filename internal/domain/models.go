package domain

import "math"

// ProgressRecord is one user's answer state for one phase.
// It is unique per (UserID, PhaseID) and never deleted; Completed is a
// one-way transition.
type ProgressRecord struct {
	UserID            string `json:"userId"`
	PhaseID           string `json:"phaseId"`
	TrailID           string `json:"trailId"`
	DisplayName       string `json:"displayName,omitempty"`
	Score             int    `json:"score"`
	TotalQuestions    int    `json:"totalQuestions"`
	AccuracyPercent   int    `json:"accuracyPercent"`
	ExperienceAwarded int    `json:"experienceAwarded"`
	Completed         bool   `json:"completed"`
	// Answers holds one slot per question index; -1 marks an unanswered slot.
	Answers []int `json:"answers"`
	// AnsweredIndices lists, in ascending order, the question indices that
	// carry a stored answer. An index is never removed or overwritten.
	AnsweredIndices []int `json:"answeredIndices"`
}

// NewProgressRecord seeds an empty record with every answer slot unanswered.
func NewProgressRecord(userID, phaseID, trailID string, totalQuestions int) ProgressRecord {
	answers := make([]int, totalQuestions)
	for i := range answers {
		answers[i] = -1
	}
	return ProgressRecord{
		UserID:         userID,
		PhaseID:        phaseID,
		TrailID:        trailID,
		TotalQuestions: totalQuestions,
		Answers:        answers,
	}
}

// HasAnswered reports whether questionIndex already holds a stored answer.
func (r *ProgressRecord) HasAnswered(questionIndex int) bool {
	for _, idx := range r.AnsweredIndices {
		if idx == questionIndex {
			return true
		}
	}
	return false
}

// AnswerAt returns the stored answer for questionIndex, or -1 when the slot
// is unanswered or absent.
func (r *ProgressRecord) AnswerAt(questionIndex int) int {
	if questionIndex < 0 || questionIndex >= len(r.Answers) {
		return -1
	}
	return r.Answers[questionIndex]
}

// SetAnswer stores the first answer for questionIndex and reports whether it
// was applied. Later calls for an already answered index are ignored.
func (r *ProgressRecord) SetAnswer(questionIndex, chosenIndex int) bool {
	if r.HasAnswered(questionIndex) {
		return false
	}
	for len(r.Answers) <= questionIndex {
		r.Answers = append(r.Answers, -1)
	}
	r.Answers[questionIndex] = chosenIndex
	for i, idx := range r.AnsweredIndices {
		if idx > questionIndex {
			r.AnsweredIndices = append(r.AnsweredIndices[:i], append([]int{questionIndex}, r.AnsweredIndices[i:]...)...)
			return true
		}
	}
	r.AnsweredIndices = append(r.AnsweredIndices, questionIndex)
	return true
}

// Rescore recomputes Score and AccuracyPercent from the full answer set
// against the phase's correct indices. The score stays a pure function of the
// stored answers, never an incrementally drifted counter.
func (r *ProgressRecord) Rescore(phase Phase) {
	score := 0
	for _, idx := range r.AnsweredIndices {
		if correct, ok := phase.CorrectAnswerOf(idx); ok && r.AnswerAt(idx) == correct {
			score++
		}
	}
	r.Score = score
	r.AccuracyPercent = AccuracyPercent(score, r.TotalQuestions)
}

// AccuracyPercent is round(score/total*100), or 0 when total is not positive.
func AccuracyPercent(score, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(score) / float64(total) * 100))
}

// ExperienceRecord is one user's cumulative experience plus cached leveling
// fields. ExperienceTotal is the source of truth; the derived fields are a
// cache recomputed whenever the total changes.
type ExperienceRecord struct {
	UserID                 string `json:"userId"`
	ExperienceTotal        int    `json:"experienceTotal"`
	Level                  int    `json:"level"`
	ExperienceInLevel      int    `json:"experienceInLevel"`
	ExperienceToNextLevel  int    `json:"experienceToNextLevel"`
	ExperienceAtLevelStart int    `json:"experienceAtLevelStart"`
}

// AccuracyRankingEntry is one row of the accuracy leaderboard.
type AccuracyRankingEntry struct {
	Rank                 int     `json:"rank"`
	UserID               string  `json:"userId"`
	DisplayName          string  `json:"displayName,omitempty"`
	TotalPhasesCompleted int     `json:"totalPhasesCompleted"`
	TotalCorrect         int     `json:"totalCorrect"`
	TotalQuestions       int     `json:"totalQuestions"`
	AverageAccuracy      float64 `json:"averageAccuracy"`
}

// LevelRankingEntry is one row of the level leaderboard.
type LevelRankingEntry struct {
	Rank            int    `json:"rank"`
	UserID          string `json:"userId"`
	DisplayName     string `json:"displayName,omitempty"`
	Level           int    `json:"level"`
	ExperienceTotal int    `json:"experienceTotal"`
}

// FinalizeResult is what a completed phase reports back: the committed record
// plus a leveling snapshot, which falls back to the documented defaults when
// the leveling service was unreachable.
type FinalizeResult struct {
	Record            ProgressRecord   `json:"record"`
	ExperienceAwarded int              `json:"experienceAwarded"`
	Leveling          ExperienceRecord `json:"leveling"`
	LevelingDegraded  bool             `json:"levelingDegraded,omitempty"`
}
