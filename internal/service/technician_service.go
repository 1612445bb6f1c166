package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/internal/repository"
	apperrors "github.com/spec-kit/ticket-engine/pkg/util/errorutil"
)

// TechnicianService manages technicians. It never touches ticket state.
type TechnicianService struct {
	store  repository.Store
	logger *zap.Logger
}

// TechnicianDependencies bundles collaborators.
type TechnicianDependencies struct {
	Store  repository.Store
	Logger *zap.Logger
}

// NewTechnicianService constructs the service.
func NewTechnicianService(deps TechnicianDependencies) *TechnicianService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TechnicianService{store: deps.Store, logger: logger}
}

// CreateTechnician adds an active technician.
func (s *TechnicianService) CreateTechnician(ctx context.Context, name string) (*domain.Technician, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("name is required", map[string]any{"field": "name"})
	}
	technician := &domain.Technician{Name: name, Active: true}
	if err := s.store.Technicians().Create(ctx, technician); err != nil {
		return nil, storageError(err)
	}
	return technician, nil
}

func (s *TechnicianService) GetTechnician(ctx context.Context, id int64) (*domain.Technician, error) {
	technician, err := s.store.Technicians().GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "technician", map[string]any{"technician_id": id})
	}
	return technician, nil
}

// SetActive flips the availability flag. Existing assignments are kept.
func (s *TechnicianService) SetActive(ctx context.Context, id int64, active bool) (*domain.Technician, error) {
	technician, err := s.store.Technicians().SetActive(ctx, id, active)
	if err != nil {
		return nil, notFoundOr(err, "technician", map[string]any{"technician_id": id})
	}
	s.logger.Info("technician availability changed", zap.Int64("technician_id", id), zap.Bool("active", active))
	return technician, nil
}

func (s *TechnicianService) ListTechnicians(ctx context.Context) ([]domain.Technician, error) {
	technicians, err := s.store.Technicians().List(ctx)
	if err != nil {
		return nil, storageError(err)
	}
	return technicians, nil
}

// DeleteTechnician removes a technician that owns no assignment.
func (s *TechnicianService) DeleteTechnician(ctx context.Context, id int64) error {
	err := s.store.Technicians().Delete(ctx, id)
	if errors.Is(err, repository.ErrReferenced) {
		return apperrors.NewConflict("technician still has assigned tickets", map[string]any{"technician_id": id})
	}
	if err != nil {
		return notFoundOr(err, "technician", map[string]any{"technician_id": id})
	}
	return nil
}
