package app

import (
	"context"
	"log"
	"sort"

	"trail-progress-service/internal/domain"
	"trail-progress-service/internal/leveling"
)

// rankingLimit bounds both leaderboards.
const rankingLimit = 10

// RankingService builds bounded leaderboards from raw progress records and,
// for the level board, batch-joined leveling data. It only reads; it never
// mutates either store.
type RankingService struct {
	progress ProgressRepository
	leveling LevelingGateway
}

func NewRankingService(progress ProgressRepository, gateway LevelingGateway) *RankingService {
	return &RankingService{progress: progress, leveling: gateway}
}

type userAggregate struct {
	userID       string
	displayName  string
	phases       int
	totalCorrect int
	totalAsked   int
	accuracySum  int
}

// AccuracyLeaderboard returns the top users by mean per-phase accuracy,
// tie-broken by total correct answers. Every touched record counts toward a
// user's phase total, completed or not.
func (s *RankingService) AccuracyLeaderboard(ctx context.Context) ([]domain.AccuracyRankingEntry, error) {
	records, err := s.progress.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	byUser := make(map[string]*userAggregate)
	order := make([]string, 0)
	for _, rec := range records {
		agg, ok := byUser[rec.UserID]
		if !ok {
			agg = &userAggregate{userID: rec.UserID}
			byUser[rec.UserID] = agg
			order = append(order, rec.UserID)
		}
		agg.phases++
		agg.totalCorrect += rec.Score
		agg.totalAsked += rec.TotalQuestions
		agg.accuracySum += rec.AccuracyPercent
		if rec.DisplayName != "" {
			agg.displayName = rec.DisplayName
		}
	}

	aggs := make([]*userAggregate, 0, len(order))
	for _, id := range order {
		if byUser[id].phases > 0 {
			aggs = append(aggs, byUser[id])
		}
	}

	// Mean of per-phase percentages, deliberately not totalCorrect/totalAsked.
	avg := func(a *userAggregate) float64 {
		return float64(a.accuracySum) / float64(a.phases)
	}
	sort.Slice(aggs, func(i, j int) bool {
		if avg(aggs[i]) != avg(aggs[j]) {
			return avg(aggs[i]) > avg(aggs[j])
		}
		if aggs[i].totalCorrect != aggs[j].totalCorrect {
			return aggs[i].totalCorrect > aggs[j].totalCorrect
		}
		return aggs[i].userID < aggs[j].userID
	})
	if len(aggs) > rankingLimit {
		aggs = aggs[:rankingLimit]
	}

	entries := make([]domain.AccuracyRankingEntry, 0, len(aggs))
	for i, agg := range aggs {
		entries = append(entries, domain.AccuracyRankingEntry{
			Rank:                 i + 1,
			UserID:               agg.userID,
			DisplayName:          agg.displayName,
			TotalPhasesCompleted: agg.phases,
			TotalCorrect:         agg.totalCorrect,
			TotalQuestions:       agg.totalAsked,
			AverageAccuracy:      avg(agg),
		})
	}
	return entries, nil
}

// LevelLeaderboard returns the top users by level, tie-broken by total
// experience. Known users are the distinct users holding progress records;
// leveling data comes from a single batch read that degrades to per-user
// defaults when the leveling service is unreachable. Users with zero
// experience stay on the board, matching the accuracy board's eligibility.
func (s *RankingService) LevelLeaderboard(ctx context.Context) ([]domain.LevelRankingEntry, error) {
	records, err := s.progress.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	names := make(map[string]string)
	userIDs := make([]string, 0)
	for _, rec := range records {
		if !seen[rec.UserID] {
			seen[rec.UserID] = true
			userIDs = append(userIDs, rec.UserID)
		}
		if rec.DisplayName != "" {
			names[rec.UserID] = rec.DisplayName
		}
	}
	if len(userIDs) == 0 {
		return []domain.LevelRankingEntry{}, nil
	}

	experience, err := s.leveling.BatchRead(ctx, userIDs)
	if err != nil {
		log.Printf("level leaderboard degraded, using defaults: %v", err)
		experience = nil
	}

	entries := make([]domain.LevelRankingEntry, 0, len(userIDs))
	for _, id := range userIDs {
		rec, ok := experience[id]
		if !ok {
			rec = leveling.Default(id)
		}
		entries = append(entries, domain.LevelRankingEntry{
			UserID:          id,
			DisplayName:     names[id],
			Level:           rec.Level,
			ExperienceTotal: rec.ExperienceTotal,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Level != entries[j].Level {
			return entries[i].Level > entries[j].Level
		}
		if entries[i].ExperienceTotal != entries[j].ExperienceTotal {
			return entries[i].ExperienceTotal > entries[j].ExperienceTotal
		}
		return entries[i].UserID < entries[j].UserID
	})
	if len(entries) > rankingLimit {
		entries = entries[:rankingLimit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}
