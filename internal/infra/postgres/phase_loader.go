package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"trail-progress-service/internal/domain"
)

// PhaseLoader loads phase JSONB from Postgres. Decoding runs the
// correct-answer normalization, so callers only ever see canonical indices.
type PhaseLoader struct {
	pool *pgxpool.Pool
}

func NewPhaseLoader(pool *pgxpool.Pool) *PhaseLoader {
	return &PhaseLoader{pool: pool}
}

func (l *PhaseLoader) LoadPhase(ctx context.Context, phaseID string) (domain.Phase, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM phases WHERE id=$1`, phaseID).Scan(&raw)
	if err == pgx.ErrNoRows {
		return domain.Phase{}, domain.ErrPhaseNotFound
	}
	if err != nil {
		return domain.Phase{}, fmt.Errorf("load phase: %w", err)
	}
	var phase domain.Phase
	if err := json.Unmarshal(raw, &phase); err != nil {
		return domain.Phase{}, fmt.Errorf("unmarshal phase: %w", err)
	}
	if phase.ID == "" {
		phase.ID = phaseID
	}
	return phase, nil
}
