package app

import (
	"context"
	"errors"
	"log"

	"trail-progress-service/internal/domain"
	"trail-progress-service/internal/leveling"
)

// PhaseRepository resolves read-only phase content (from cache/backing store).
type PhaseRepository interface {
	GetPhase(ctx context.Context, phaseID string) (domain.Phase, error)
}

// ProgressRepository abstracts how progress records are stored (in-memory, Redis, etc).
type ProgressRepository interface {
	Get(ctx context.Context, userID, phaseID string) (domain.ProgressRecord, error)
	ListByUserTrail(ctx context.Context, userID, trailID string) ([]domain.ProgressRecord, error)
	ListAll(ctx context.Context) ([]domain.ProgressRecord, error)
	// Mutate atomically applies fn to the record for (seed.UserID, seed.PhaseID),
	// creating it from seed when absent. fn runs under the store's per-record
	// serialization, so concurrent mutations cannot lose updates. When fn
	// returns an error nothing is written and the record is returned as the
	// store holds it.
	Mutate(ctx context.Context, seed domain.ProgressRecord, fn func(*domain.ProgressRecord) error) (domain.ProgressRecord, error)
}

// LevelingGateway is the progress side's port to the leveling service. Any
// returned error means the call degraded and callers substitute defaults.
type LevelingGateway interface {
	Credit(ctx context.Context, userID string, amount int) (domain.ExperienceRecord, error)
	Read(ctx context.Context, userID string) (domain.ExperienceRecord, error)
	BatchRead(ctx context.Context, userIDs []string) (map[string]domain.ExperienceRecord, error)
}

// ProgressService owns per-(user, phase) answer state: incremental scoring,
// single-shot completion and the best-effort experience credit.
type ProgressService struct {
	phases   PhaseRepository
	progress ProgressRepository
	leveling LevelingGateway
	feed     *RankingFeed
}

// NewProgressService wires the progress use cases. feed may be nil when no
// live ranking push is needed (tests, CLI tools).
func NewProgressService(phases PhaseRepository, progress ProgressRepository, gateway LevelingGateway, feed *RankingFeed) *ProgressService {
	return &ProgressService{phases: phases, progress: progress, leveling: gateway, feed: feed}
}

// SubmitAnswer records one answer for (userID, phaseID). The first answer for
// a question index is final: repeat submissions for the same index are no-ops
// returning the unchanged record. Score and accuracy are recomputed from the
// entire stored answer set on every accepted answer.
func (s *ProgressService) SubmitAnswer(ctx context.Context, userID, phaseID string, questionIndex, chosenIndex int, displayName string) (domain.ProgressRecord, error) {
	if userID == "" || phaseID == "" || questionIndex < 0 || chosenIndex < 0 {
		return domain.ProgressRecord{}, domain.ErrInvalidInput
	}

	phase, err := s.phases.GetPhase(ctx, phaseID)
	if err != nil {
		return domain.ProgressRecord{}, err
	}
	if questionIndex >= phase.TotalQuestions() {
		return domain.ProgressRecord{}, domain.ErrInvalidInput
	}
	if chosenIndex >= len(phase.Questions[questionIndex].Alternatives) {
		return domain.ProgressRecord{}, domain.ErrInvalidInput
	}

	seed := domain.NewProgressRecord(userID, phaseID, phase.TrailID, phase.TotalQuestions())
	seed.DisplayName = displayName

	return s.progress.Mutate(ctx, seed, func(rec *domain.ProgressRecord) error {
		if displayName != "" {
			rec.DisplayName = displayName
		}
		if rec.Completed {
			// Terminal records never grow their answer set.
			return nil
		}
		if !rec.SetAnswer(questionIndex, chosenIndex) {
			return nil
		}
		rec.Rescore(phase)
		return nil
	})
}

// Finalize transitions the record to completed, stamps the final score and
// experience award, then credits the award through the leveling gateway.
// Completion is strictly single-shot: a second finalize fails with
// domain.ErrAlreadyCompleted and the existing record rides along unchanged.
// The credit is best-effort; when the leveling service is unreachable the
// result carries the documented default snapshot and the missed credit is
// logged for manual reconciliation.
func (s *ProgressService) Finalize(ctx context.Context, userID, phaseID string, reportedScore, totalQuestions int, displayName string) (domain.FinalizeResult, error) {
	if userID == "" || phaseID == "" || reportedScore < 0 || totalQuestions < 0 {
		return domain.FinalizeResult{}, domain.ErrInvalidInput
	}

	phase, err := s.phases.GetPhase(ctx, phaseID)
	if err != nil {
		return domain.FinalizeResult{}, err
	}

	seed := domain.NewProgressRecord(userID, phaseID, phase.TrailID, totalQuestions)
	seed.DisplayName = displayName

	rec, err := s.progress.Mutate(ctx, seed, func(rec *domain.ProgressRecord) error {
		if rec.Completed {
			return domain.ErrAlreadyCompleted
		}
		if displayName != "" {
			rec.DisplayName = displayName
		}
		if len(rec.AnsweredIndices) > 0 {
			// Stored answers beat the client-reported score.
			rec.Rescore(phase)
		} else {
			score := reportedScore
			if score > rec.TotalQuestions {
				score = rec.TotalQuestions
			}
			rec.Score = score
			rec.AccuracyPercent = domain.AccuracyPercent(score, rec.TotalQuestions)
		}
		rec.ExperienceAwarded = leveling.PercentToExperience(rec.AccuracyPercent)
		rec.Completed = true
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyCompleted) {
			return domain.FinalizeResult{
				Record:            rec,
				ExperienceAwarded: rec.ExperienceAwarded,
				Leveling:          leveling.Default(userID),
			}, err
		}
		return domain.FinalizeResult{}, err
	}

	result := domain.FinalizeResult{Record: rec, ExperienceAwarded: rec.ExperienceAwarded}
	snapshot, err := s.leveling.Credit(ctx, userID, rec.ExperienceAwarded)
	if err != nil {
		// The completion stands; nothing re-drives the credit automatically.
		log.Printf("leveling credit degraded for user=%s phase=%s (missed %d xp): %v", userID, phaseID, rec.ExperienceAwarded, err)
		result.Leveling = leveling.Default(userID)
		result.LevelingDegraded = true
	} else {
		result.Leveling = snapshot
	}

	if s.feed != nil {
		s.feed.Refresh(ctx)
	}
	return result, nil
}

// GetProgress returns the stored record for (userID, phaseID), or
// domain.ErrProgressNotFound.
func (s *ProgressService) GetProgress(ctx context.Context, userID, phaseID string) (domain.ProgressRecord, error) {
	if userID == "" || phaseID == "" {
		return domain.ProgressRecord{}, domain.ErrInvalidInput
	}
	return s.progress.Get(ctx, userID, phaseID)
}

// GetTrailProgress maps each touched phase of a trail to its completion flag.
func (s *ProgressService) GetTrailProgress(ctx context.Context, userID, trailID string) (map[string]bool, error) {
	if userID == "" || trailID == "" {
		return nil, domain.ErrInvalidInput
	}
	records, err := s.progress.ListByUserTrail(ctx, userID, trailID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(records))
	for _, rec := range records {
		out[rec.PhaseID] = rec.Completed
	}
	return out, nil
}
