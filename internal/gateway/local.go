package gateway

import (
	"context"

	"trail-progress-service/internal/app"
	"trail-progress-service/internal/domain"
)

// Local satisfies app.LevelingGateway in-process, for single-binary
// deployments where no leveling URL is configured. The boundary stays in
// place; only the transport disappears.
type Local struct {
	svc *app.LevelingService
}

func NewLocal(svc *app.LevelingService) *Local {
	return &Local{svc: svc}
}

func (l *Local) Credit(ctx context.Context, userID string, amount int) (domain.ExperienceRecord, error) {
	return l.svc.CreditExperience(ctx, userID, amount)
}

func (l *Local) Read(ctx context.Context, userID string) (domain.ExperienceRecord, error) {
	return l.svc.ReadExperience(ctx, userID)
}

func (l *Local) BatchRead(ctx context.Context, userIDs []string) (map[string]domain.ExperienceRecord, error) {
	return l.svc.BatchReadExperience(ctx, userIDs)
}
