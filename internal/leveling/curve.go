// Package leveling holds the pure experience-to-level math shared by the
// leveling service and by callers that must synthesize defaults when that
// service is unreachable.
package leveling

import (
	"math"

	"trail-progress-service/internal/domain"
)

const (
	// baseThreshold is the experience needed to leave level 1.
	baseThreshold = 100
	// growthFactor scales each successive threshold.
	growthFactor = 1.1
	// maxAwardPerPhase is the experience granted for a 100% accurate phase.
	maxAwardPerPhase = 500
)

// Breakdown places a cumulative experience total on the level curve.
type Breakdown struct {
	Level                  int `json:"level"`
	ExperienceInLevel      int `json:"experienceInLevel"`
	ExperienceToNextLevel  int `json:"experienceToNextLevel"`
	ExperienceAtLevelStart int `json:"experienceAtLevelStart"`
}

// LevelOf maps a cumulative experience total to its level breakdown.
// Thresholds are generated iteratively: 100 to leave level 1, then each next
// threshold is round(100 + previous*1.1). The sequence is strictly
// increasing, so the walk terminates for any finite total. Negative totals
// are clamped to 0.
func LevelOf(experienceTotal int) Breakdown {
	if experienceTotal < 0 {
		experienceTotal = 0
	}
	level := 1
	cumulative := 0
	next := baseThreshold
	for experienceTotal >= cumulative+next {
		cumulative += next
		next = int(math.Round(baseThreshold + float64(next)*growthFactor))
		level++
	}
	return Breakdown{
		Level:                  level,
		ExperienceInLevel:      experienceTotal - cumulative,
		ExperienceToNextLevel:  next,
		ExperienceAtLevelStart: cumulative,
	}
}

// PercentToExperience converts an accuracy percentage to the experience a
// finished phase awards: linear, 100% -> 500.
func PercentToExperience(percent int) int {
	if percent < 0 {
		percent = 0
	}
	return int(math.Round(float64(percent) / 100 * maxAwardPerPhase))
}

// Apply recomputes the cached leveling fields on rec from its total.
func Apply(rec *domain.ExperienceRecord) {
	b := LevelOf(rec.ExperienceTotal)
	rec.Level = b.Level
	rec.ExperienceInLevel = b.ExperienceInLevel
	rec.ExperienceToNextLevel = b.ExperienceToNextLevel
	rec.ExperienceAtLevelStart = b.ExperienceAtLevelStart
}

// Consistent reports whether rec's cached fields match its total, letting
// readers heal a stale cache before returning it.
func Consistent(rec domain.ExperienceRecord) bool {
	b := LevelOf(rec.ExperienceTotal)
	return rec.Level == b.Level &&
		rec.ExperienceInLevel == b.ExperienceInLevel &&
		rec.ExperienceToNextLevel == b.ExperienceToNextLevel &&
		rec.ExperienceAtLevelStart == b.ExperienceAtLevelStart
}

// Default is the documented fallback snapshot used whenever the leveling
// service cannot be reached or a user has no stored record.
func Default(userID string) domain.ExperienceRecord {
	rec := domain.ExperienceRecord{UserID: userID}
	Apply(&rec)
	return rec
}
