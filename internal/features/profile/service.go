package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	common_models "go-hrflow/internal/common/models"
	"go-hrflow/internal/features/approval"
	"go-hrflow/internal/features/audit"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ProfileService is the employee directory. Besides its own endpoints it is the
// approval engine's profile source and directory.
type ProfileService interface {
	GetByLogin(ctx context.Context, loginID string) (*EmployeeProfile, error)
	GetByEmployeeID(ctx context.Context, employeeID string) (*EmployeeProfile, error)
	Upsert(ctx context.Context, employeeID string, input ProfileInput, actorID string) (*EmployeeProfile, error)

	FindProfileByLogin(ctx context.Context, loginID string) (*approval.Profile, error)
	LookupEmployees(ctx context.Context, employeeIDs []string) (map[string]approval.DirectoryEntry, error)
	PreferredLocale(ctx context.Context, loginID string) string
}

type ProfileServiceImpl struct {
	Repo         ProfileRepository
	Resolver     *approval.ModeResolver
	AuditService audit.AuditService
	Logger       *zap.Logger
	validate     *validator.Validate
}

func NewProfileService(repo ProfileRepository, resolver *approval.ModeResolver, auditService audit.AuditService, logger *zap.Logger) ProfileService {
	return &ProfileServiceImpl{
		Repo:         repo,
		Resolver:     resolver,
		AuditService: auditService,
		Logger:       logger,
		validate:     validator.New(),
	}
}

func (s *ProfileServiceImpl) GetByLogin(ctx context.Context, loginID string) (*EmployeeProfile, error) {
	p, err := s.Repo.FindByLogin(ctx, loginID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: no profile for login %s", approval.ErrNotFound, loginID)
	}
	return p, nil
}

func (s *ProfileServiceImpl) GetByEmployeeID(ctx context.Context, employeeID string) (*EmployeeProfile, error) {
	p, err := s.Repo.FindByEmployeeID(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: no profile for employee %s", approval.ErrNotFound, employeeID)
	}
	return p, nil
}

// Upsert validates the profile and rejects approval chains the engine could not resolve
func (s *ProfileServiceImpl) Upsert(ctx context.Context, employeeID string, input ProfileInput, actorID string) (*EmployeeProfile, error) {
	employeeID = strings.TrimSpace(employeeID)
	if employeeID == "" {
		return nil, fmt.Errorf("%w: employee id is required", approval.ErrValidation)
	}
	if err := s.validate.Struct(input); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return nil, fmt.Errorf("%w: %s failed %s", approval.ErrValidation, fieldErrs[0].Field(), fieldErrs[0].Tag())
		}
		return nil, fmt.Errorf("%w: %v", approval.ErrValidation, err)
	}

	mode := strings.TrimSpace(input.ApprovalMode)
	if mode != "" {
		parsed, ok := approval.ParseMode(mode)
		if !ok {
			return nil, fmt.Errorf("%w: unknown approval mode %q", approval.ErrValidation, mode)
		}
		mode = string(parsed)
	}

	now := time.Now().UTC()
	p := &EmployeeProfile{
		EmployeeID:     employeeID,
		LoginID:        strings.TrimSpace(input.LoginID),
		DisplayName:    strings.TrimSpace(input.DisplayName),
		Department:     strings.TrimSpace(input.Department),
		Locale:         input.Locale,
		ApprovalMode:   mode,
		ManagerLoginID: strings.TrimSpace(input.ManagerLoginID),
		GMLoginID:      strings.TrimSpace(input.GMLoginID),
		COOLoginID:     strings.TrimSpace(input.COOLoginID),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := s.Resolver.Resolve(p.ApprovalMode, p.ToApproval()); err != nil {
		return nil, err
	}

	old, err := s.Repo.FindByEmployeeID(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if err := s.Repo.Upsert(ctx, p); err != nil {
		return nil, err
	}

	if s.AuditService != nil {
		if err := s.AuditService.LogChange(ctx, common_models.AuditActionSettings, "profile", employeeID, actorID, map[string]common_models.Change{
			"profile": {Old: old, New: p},
		}); err != nil {
			s.Logger.Warn("Audit log failed",
				zap.String("employee_id", employeeID),
				zap.Error(err))
		}
	}
	return p, nil
}

func (s *ProfileServiceImpl) FindProfileByLogin(ctx context.Context, loginID string) (*approval.Profile, error) {
	p, err := s.Repo.FindByLogin(ctx, loginID)
	if err != nil || p == nil {
		return nil, err
	}
	return p.ToApproval(), nil
}

func (s *ProfileServiceImpl) LookupEmployees(ctx context.Context, employeeIDs []string) (map[string]approval.DirectoryEntry, error) {
	profiles, err := s.Repo.FindByEmployeeIDs(ctx, employeeIDs)
	if err != nil {
		return nil, err
	}
	entries := make(map[string]approval.DirectoryEntry, len(profiles))
	for _, p := range profiles {
		entries[p.EmployeeID] = approval.DirectoryEntry{DisplayName: p.DisplayName, Department: p.Department}
	}
	return entries, nil
}

// PreferredLocale returns the recipient's locale, or "" to use the default
func (s *ProfileServiceImpl) PreferredLocale(ctx context.Context, loginID string) string {
	p, err := s.Repo.FindByLogin(ctx, loginID)
	if err != nil || p == nil {
		return ""
	}
	return p.Locale
}
