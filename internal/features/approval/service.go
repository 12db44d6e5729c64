package approval

import (
	"context"
	"errors"
	"fmt"
	"time"

	common_models "go-hrflow/internal/common/models"
	"go-hrflow/internal/config"
	"go-hrflow/internal/features/audit"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Page is one window of the admin list
type Page struct {
	Items []Request `json:"items"`
	Total int64     `json:"total"`
	Skip  int64     `json:"skip"`
	Limit int64     `json:"limit"`
}

type ApprovalService interface {
	Create(ctx context.Context, kind RequestKind, actor Actor, fields map[string]any) (*Request, error)
	ListMine(ctx context.Context, kind RequestKind, actor Actor) ([]Request, error)
	Get(ctx context.Context, kind RequestKind, id string, actor Actor) (*Request, error)
	Cancel(ctx context.Context, kind RequestKind, id string, actor Actor) (*Request, error)
	Edit(ctx context.Context, kind RequestKind, id string, actor Actor, fields map[string]any) (*Request, error)
	Inbox(ctx context.Context, kind RequestKind, actor Actor, stage Role, scope Scope) ([]Request, error)
	Decide(ctx context.Context, kind RequestKind, id string, actor Actor, stage Role, decision Decision, comment string) (*Request, error)
	AdminList(ctx context.Context, kind RequestKind, actor Actor, filter AdminFilter) (*Page, error)

	// Cross-kind reporting
	Summary(ctx context.Context, actor Actor) ([]StatusCount, error)
	Export(ctx context.Context, kind string, actor Actor, filter AdminFilter) ([]byte, string, error)
	RemindStale(ctx context.Context) (int, error)

	// Wait drains in-flight notifications and broadcasts
	Wait()
}

type ApprovalServiceImpl struct {
	Repo         Repository
	Profiles     ProfileSource
	Resolver     *ModeResolver
	Dispatcher   *Dispatcher
	AuditService audit.AuditService
	Logger       *zap.Logger
	Config       *config.Config

	now func() time.Time
}

func NewApprovalService(
	repo Repository,
	profiles ProfileSource,
	resolver *ModeResolver,
	dispatcher *Dispatcher,
	auditService audit.AuditService,
	logger *zap.Logger,
	cfg *config.Config,
) ApprovalService {
	return &ApprovalServiceImpl{
		Repo:         repo,
		Profiles:     profiles,
		Resolver:     resolver,
		Dispatcher:   dispatcher,
		AuditService: auditService,
		Logger:       logger,
		Config:       cfg,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *ApprovalServiceImpl) Create(ctx context.Context, kind RequestKind, actor Actor, fields map[string]any) (*Request, error) {
	if actor.LoginID == "" {
		return nil, fmt.Errorf("%w: unknown caller", ErrForbidden)
	}

	profile, err := s.Profiles.FindProfileByLogin(ctx, actor.LoginID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, fmt.Errorf("%w: no employee profile for %s", ErrConfiguration, actor.LoginID)
	}

	subject, err := kind.Prepare(fields)
	if err != nil {
		return nil, err
	}

	res, err := s.Resolver.Resolve(profile.ApprovalMode, profile)
	if err != nil {
		return nil, err
	}

	now := s.now()
	req := Request{
		ID:               primitive.NewObjectID(),
		Kind:             kind.Kind(),
		EmployeeID:       profile.EmployeeID,
		RequesterLoginID: actor.LoginID,
		Subject:          subject.Fields,
		Summary:          subject.Summary,
		ApprovalMode:     res.Mode,
		ManagerLoginID:   res.ManagerLoginID,
		GMLoginID:        res.GMLoginID,
		COOLoginID:       res.COOLoginID,
		Status:           res.InitialStatus,
		Approvals:        res.Slots(),
		ReachedStages:    []Role{res.Roles[0]},
		Live:             true,
		NaturalKey:       subject.NaturalKey(profile.EmployeeID),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.Repo.Insert(ctx, &req); err != nil {
		return nil, err
	}

	s.Logger.Info("Request created",
		zap.String("kind", req.Kind),
		zap.String("request_id", req.ID.Hex()),
		zap.String("login_id", actor.LoginID),
		zap.String("status", string(req.Status)))

	s.audit(ctx, common_models.AuditActionCreate, &req, actor, map[string]common_models.Change{
		"status":  {New: req.Status},
		"subject": {New: req.Subject},
	})
	s.Dispatcher.Enrich(ctx, &req)
	s.Dispatcher.Committed(EventCreated, req, actor.LoginID)
	return &req, nil
}

func (s *ApprovalServiceImpl) ListMine(ctx context.Context, kind RequestKind, actor Actor) ([]Request, error) {
	if actor.LoginID == "" {
		return nil, fmt.Errorf("%w: unknown caller", ErrForbidden)
	}
	return s.list(ctx, MineQuery(kind.Kind(), actor))
}

func (s *ApprovalServiceImpl) Get(ctx context.Context, kind RequestKind, id string, actor Actor) (*Request, error) {
	req, err := s.load(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if !CanViewDetail(actor, req) {
		return nil, fmt.Errorf("%w: not a participant of this request", ErrForbidden)
	}
	s.Dispatcher.Enrich(ctx, req)
	return req, nil
}

func (s *ApprovalServiceImpl) Cancel(ctx context.Context, kind RequestKind, id string, actor Actor) (*Request, error) {
	req, err := s.load(ctx, kind, id)
	if err != nil {
		return nil, err
	}

	t, err := PlanCancel(req, actor, s.now())
	if err != nil {
		return nil, err
	}

	updated, err := s.Repo.ApplyCancel(ctx, req.ID, t)
	if errors.Is(err, errStale) {
		return nil, s.conflict(ctx, req.ID, t.Expected)
	}
	if err != nil {
		return nil, err
	}

	s.Logger.Info("Request cancelled",
		zap.String("kind", updated.Kind),
		zap.String("request_id", updated.ID.Hex()),
		zap.String("login_id", actor.LoginID))

	s.audit(ctx, common_models.AuditActionCancel, updated, actor, map[string]common_models.Change{
		"status": {Old: t.Expected, New: updated.Status},
	})
	s.Dispatcher.Enrich(ctx, updated)
	s.Dispatcher.Committed(EventCancelled, *updated, actor.LoginID)
	return updated, nil
}

func (s *ApprovalServiceImpl) Edit(ctx context.Context, kind RequestKind, id string, actor Actor, fields map[string]any) (*Request, error) {
	req, err := s.load(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if err := CheckEditable(req, actor); err != nil {
		return nil, err
	}

	subject, err := kind.Prepare(fields)
	if err != nil {
		return nil, err
	}

	updated, err := s.Repo.ApplyEdit(ctx, req.ID, actor.LoginID, subject, subject.NaturalKey(req.EmployeeID), s.now())
	if errors.Is(err, errStale) {
		current, findErr := s.Repo.FindByID(ctx, req.ID.Hex())
		if findErr != nil {
			return nil, conflictError(req.Status, nil)
		}
		if err := CheckEditable(current, actor); err != nil {
			return nil, err
		}
		return nil, conflictError(req.Status, current)
	}
	if err != nil {
		return nil, err
	}

	s.Logger.Info("Request edited",
		zap.String("kind", updated.Kind),
		zap.String("request_id", updated.ID.Hex()),
		zap.String("login_id", actor.LoginID))

	s.audit(ctx, common_models.AuditActionUpdate, updated, actor, map[string]common_models.Change{
		"subject": {Old: req.Subject, New: updated.Subject},
	})
	s.Dispatcher.Enrich(ctx, updated)
	s.Dispatcher.Committed(EventUpdated, *updated, actor.LoginID)
	return updated, nil
}

func (s *ApprovalServiceImpl) Inbox(ctx context.Context, kind RequestKind, actor Actor, stage Role, scope Scope) ([]Request, error) {
	q, err := InboxQuery(kind.Kind(), actor, stage, scope)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, q)
}

func (s *ApprovalServiceImpl) Decide(ctx context.Context, kind RequestKind, id string, actor Actor, stage Role, decision Decision, comment string) (*Request, error) {
	req, err := s.load(ctx, kind, id)
	if err != nil {
		return nil, err
	}

	t, err := PlanDecision(req, actor, stage, decision, comment, s.now())
	if err != nil {
		return nil, err
	}

	updated, err := s.Repo.ApplyDecision(ctx, req.ID, t)
	if errors.Is(err, errStale) {
		return nil, s.conflict(ctx, req.ID, t.Expected)
	}
	if err != nil {
		return nil, err
	}

	s.Logger.Info("Request decided",
		zap.String("kind", updated.Kind),
		zap.String("request_id", updated.ID.Hex()),
		zap.String("login_id", actor.LoginID),
		zap.String("stage", string(stage)),
		zap.String("decision", string(decision)),
		zap.String("status", string(updated.Status)))

	s.audit(ctx, common_models.AuditActionApproval, updated, actor, map[string]common_models.Change{
		"status":                     {Old: t.Expected, New: updated.Status},
		"approvals." + string(stage): {Old: SlotPending, New: t.SlotStatus},
	})

	event := EventAdvanced
	switch updated.Status {
	case StatusApproved:
		event = EventApproved
	case StatusRejected:
		event = EventRejected
	}
	s.Dispatcher.Enrich(ctx, updated)
	s.Dispatcher.Committed(event, *updated, actor.LoginID)
	return updated, nil
}

func (s *ApprovalServiceImpl) AdminList(ctx context.Context, kind RequestKind, actor Actor, filter AdminFilter) (*Page, error) {
	q, err := AdminQuery(kind.Kind(), actor, filter, s.Config.AdminListMaxLimit)
	if err != nil {
		return nil, err
	}
	return s.page(ctx, q)
}

func (s *ApprovalServiceImpl) Summary(ctx context.Context, actor Actor) ([]StatusCount, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	return s.Repo.CountByStatus(ctx)
}

func (s *ApprovalServiceImpl) Export(ctx context.Context, kind string, actor Actor, filter AdminFilter) ([]byte, string, error) {
	q, err := AdminQuery(kind, actor, filter, s.Config.AdminListMaxLimit)
	if err != nil {
		return nil, "", err
	}
	// export ignores paging but refuses sets larger than ExportMaxRows
	q.Skip, q.Limit = 0, 0
	total, err := s.Repo.Count(ctx, q)
	if err != nil {
		return nil, "", err
	}
	if total > s.Config.ExportMaxRows {
		return nil, "", fmt.Errorf("%w: export matches %d requests, at most %d allowed; narrow the filter", ErrValidation, total, s.Config.ExportMaxRows)
	}
	q.Limit = s.Config.ExportMaxRows
	requests, err := s.list(ctx, q)
	if err != nil {
		return nil, "", err
	}

	name := kind
	if name == "" {
		name = "requests"
	}
	return ExportToExcel(requests, fmt.Sprintf("%s_%s.xlsx", name, s.now().Format("20060102_150405")))
}

// RemindStale notifies current approvers of requests untouched for longer than ReminderAfter
func (s *ApprovalServiceImpl) RemindStale(ctx context.Context) (int, error) {
	requests, err := s.Repo.FindStalePending(ctx, s.now().Add(-s.Config.ReminderAfter))
	if err != nil {
		return 0, err
	}
	for _, req := range requests {
		s.Dispatcher.Remind(req)
	}
	return len(requests), nil
}

func (s *ApprovalServiceImpl) Wait() {
	s.Dispatcher.Wait()
}

// load fetches a request of the given kind; a request of another kind does not exist here
func (s *ApprovalServiceImpl) load(ctx context.Context, kind RequestKind, id string) (*Request, error) {
	req, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Kind != kind.Kind() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return req, nil
}

// conflict re-reads after a lost compare-and-swap so the caller sees the winning state
func (s *ApprovalServiceImpl) conflict(ctx context.Context, id primitive.ObjectID, expected Status) error {
	current, err := s.Repo.FindByID(ctx, id.Hex())
	if err != nil {
		return conflictError(expected, nil)
	}
	return conflictError(expected, current)
}

func (s *ApprovalServiceImpl) list(ctx context.Context, q Query) ([]Request, error) {
	requests, err := s.Repo.List(ctx, q)
	if err != nil {
		return nil, err
	}
	s.enrichAll(ctx, requests)
	return requests, nil
}

func (s *ApprovalServiceImpl) page(ctx context.Context, q Query) (*Page, error) {
	requests, err := s.list(ctx, q)
	if err != nil {
		return nil, err
	}
	total, err := s.Repo.Count(ctx, q)
	if err != nil {
		return nil, err
	}
	return &Page{Items: requests, Total: total, Skip: q.Skip, Limit: q.Limit}, nil
}

func (s *ApprovalServiceImpl) enrichAll(ctx context.Context, requests []Request) {
	ptrs := make([]*Request, len(requests))
	for i := range requests {
		ptrs[i] = &requests[i]
	}
	s.Dispatcher.Enrich(ctx, ptrs...)
}

func (s *ApprovalServiceImpl) audit(ctx context.Context, action common_models.AuditAction, req *Request, actor Actor, changes map[string]common_models.Change) {
	if s.AuditService == nil {
		return
	}
	if err := s.AuditService.LogChange(ctx, action, req.Kind, req.ID.Hex(), actor.LoginID, changes); err != nil {
		s.Logger.Warn("Audit log failed",
			zap.String("request_id", req.ID.Hex()),
			zap.String("action", string(action)),
			zap.Error(err))
	}
}
