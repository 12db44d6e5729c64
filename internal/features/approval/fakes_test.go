package approval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	common_models "go-hrflow/internal/common/models"
	"go-hrflow/internal/config"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// memRepo is an in-memory Repository with the same conditional-write semantics
// as the Mongo implementation.
type memRepo struct {
	mu   sync.Mutex
	docs map[primitive.ObjectID]*Request
}

func newMemRepo() *memRepo {
	return &memRepo{docs: map[primitive.ObjectID]*Request{}}
}

func clone(r *Request) *Request {
	c := *r
	c.Approvals = append([]ApprovalSlot(nil), r.Approvals...)
	c.ReachedStages = append([]Role(nil), r.ReachedStages...)
	if r.Subject != nil {
		c.Subject = make(map[string]any, len(r.Subject))
		for k, v := range r.Subject {
			c.Subject[k] = v
		}
	}
	return &c
}

func (m *memRepo) liveHolder(key NaturalKey, except primitive.ObjectID) bool {
	for id, doc := range m.docs {
		if id != except && doc.Live && doc.NaturalKey == key {
			return true
		}
	}
	return false
}

func (m *memRepo) EnsureIndexes(ctx context.Context) error { return nil }

func (m *memRepo) Insert(ctx context.Context, req *Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if req.ID.IsZero() {
		req.ID = primitive.NewObjectID()
	}
	if req.Live && m.liveHolder(req.NaturalKey, req.ID) {
		return fmt.Errorf("%w: a live %s request already exists for %s", ErrDuplicateRequest, req.Kind, req.NaturalKey.DateKey)
	}
	m.docs[req.ID] = clone(req)
	return nil
}

func (m *memRepo) FindByID(ctx context.Context, id string) (*Request, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[oid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return clone(doc), nil
}

func (m *memRepo) ApplyDecision(ctx context.Context, id primitive.ObjectID, t *Transition) (*Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok || doc.Status != t.Expected {
		return nil, errStale
	}
	slot := doc.Slot(t.Stage)
	if slot == nil || slot.LoginID != t.ActorLoginID || slot.Status != SlotPending {
		return nil, errStale
	}
	t.Apply(doc)
	return clone(doc), nil
}

func (m *memRepo) ApplyCancel(ctx context.Context, id primitive.ObjectID, t *CancelTransition) (*Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, errStale
	}
	if _, pending := doc.Status.Stage(); !pending {
		return nil, errStale
	}
	t.Apply(doc)
	return clone(doc), nil
}

func (m *memRepo) ApplyEdit(ctx context.Context, id primitive.ObjectID, requesterLoginID string, subject *Subject, naturalKey NaturalKey, at time.Time) (*Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok || doc.RequesterLoginID != requesterLoginID || doc.Acted {
		return nil, errStale
	}
	if _, pending := doc.Status.Stage(); !pending {
		return nil, errStale
	}
	for _, slot := range doc.Approvals {
		if slot.Status != SlotPending || slot.ActedAt != nil {
			return nil, errStale
		}
	}
	if m.liveHolder(naturalKey, id) {
		return nil, fmt.Errorf("%w: a live request already exists for %s", ErrDuplicateRequest, naturalKey.DateKey)
	}
	doc.Subject = subject.Fields
	doc.Summary = subject.Summary
	doc.NaturalKey = naturalKey
	doc.UpdatedAt = at
	return clone(doc), nil
}

func matches(q Query, r *Request) bool {
	if q.Kind != "" && r.Kind != q.Kind {
		return false
	}
	if q.RequesterLoginID != "" && r.RequesterLoginID != q.RequesterLoginID {
		return false
	}
	if q.EmployeeID != "" && r.EmployeeID != q.EmployeeID {
		return false
	}
	if q.Participant != nil && r.ParticipantLogin(q.Participant.Role) != q.Participant.LoginID {
		return false
	}
	if len(q.Statuses) > 0 {
		found := false
		for _, st := range q.Statuses {
			if st == r.Status {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	if q.ReachedStage != "" && !r.HasReached(q.ReachedStage) {
		return false
	}
	if q.CreatedFrom != nil && r.CreatedAt.Before(*q.CreatedFrom) {
		return false
	}
	if q.CreatedTo != nil && !r.CreatedAt.Before(*q.CreatedTo) {
		return false
	}
	return true
}

func (m *memRepo) filter(q Query) []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Request{}
	for _, doc := range m.docs {
		if matches(q, doc) {
			out = append(out, *clone(doc))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.Hex() > out[j].ID.Hex()
	})
	return out
}

func (m *memRepo) List(ctx context.Context, q Query) ([]Request, error) {
	out := m.filter(q)
	if q.Skip > 0 {
		if q.Skip >= int64(len(out)) {
			return []Request{}, nil
		}
		out = out[q.Skip:]
	}
	if q.Limit > 0 && int64(len(out)) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *memRepo) Count(ctx context.Context, q Query) (int64, error) {
	return int64(len(m.filter(q))), nil
}

func (m *memRepo) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	counts := map[[2]string]int64{}
	for _, r := range m.filter(Query{}) {
		counts[[2]string{r.Kind, string(r.Status)}]++
	}
	out := []StatusCount{}
	for k, n := range counts {
		out = append(out, StatusCount{Kind: k[0], Status: Status(k[1]), Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Status < out[j].Status
	})
	return out, nil
}

func (m *memRepo) FindStalePending(ctx context.Context, updatedBefore time.Time) ([]Request, error) {
	out := []Request{}
	for _, r := range m.filter(Query{Statuses: PendingStatuses}) {
		if r.UpdatedAt.Before(updatedBefore) {
			out = append(out, r)
		}
	}
	return out, nil
}

// staleRead serves one outdated snapshot, as a reader racing a concurrent writer would see
type staleRead struct {
	*memRepo
	snapshot *Request
	served   bool
}

func (s *staleRead) FindByID(ctx context.Context, id string) (*Request, error) {
	if !s.served && s.snapshot != nil && s.snapshot.ID.Hex() == id {
		s.served = true
		return clone(s.snapshot), nil
	}
	return s.memRepo.FindByID(ctx, id)
}

type profileMap map[string]*Profile

func (p profileMap) FindProfileByLogin(ctx context.Context, loginID string) (*Profile, error) {
	if profile, ok := p[loginID]; ok {
		c := *profile
		return &c, nil
	}
	return nil, nil
}

func (p profileMap) LookupEmployees(ctx context.Context, ids []string) (map[string]DirectoryEntry, error) {
	out := map[string]DirectoryEntry{}
	for _, profile := range p {
		for _, id := range ids {
			if profile.EmployeeID == id {
				out[id] = DirectoryEntry{DisplayName: profile.DisplayName, Department: profile.Department}
			}
		}
	}
	return out, nil
}

type brokenDirectory struct{}

func (brokenDirectory) LookupEmployees(ctx context.Context, ids []string) (map[string]DirectoryEntry, error) {
	return nil, errors.New("directory down")
}

type sent struct {
	Target string
	Key    string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (n *recordingNotifier) Send(ctx context.Context, target string, message Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sent{Target: target, Key: message.Key})
	return n.err
}

func (n *recordingNotifier) Sent() []sent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sent(nil), n.sent...)
}

func (n *recordingNotifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = nil
}

type published struct {
	Channel string
	Type    string
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []published
	panics bool
}

func (b *recordingBroadcaster) Publish(channel string, event Event) {
	if b.panics {
		panic("subscriber went away")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, published{Channel: channel, Type: event.Type})
}

func (b *recordingBroadcaster) Events() []published {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]published(nil), b.events...)
}

type recordingAudit struct {
	mu      sync.Mutex
	actions []common_models.AuditAction
}

func (a *recordingAudit) LogChange(ctx context.Context, action common_models.AuditAction, module string, recordID string, actorID string, changes map[string]common_models.Change) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, action)
	return nil
}

func (a *recordingAudit) ListLogs(ctx context.Context, filters map[string]interface{}, page, limit int64) ([]common_models.AuditLog, error) {
	return nil, nil
}

// clock advances one second per reading so creation order is total
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// testKind is a minimal RequestKind keyed on a single date
type testKind struct{}

func (testKind) Kind() string { return "test" }
func (testKind) Path() string { return "test" }

func (testKind) Prepare(fields map[string]any) (*Subject, error) {
	date, _ := fields["date"].(string)
	d, err := ParseDate("date", date)
	if err != nil {
		return nil, err
	}
	key := d.Format(time.DateOnly)
	return &Subject{
		Fields:  map[string]any{"date": key},
		DateKey: key,
		Variant: "test",
		Summary: "test on " + key,
	}, nil
}

type otherKind struct{ testKind }

func (otherKind) Kind() string { return "other" }

type harness struct {
	repo        *memRepo
	notifier    *recordingNotifier
	broadcaster *recordingBroadcaster
	audit       *recordingAudit
	clock       *clock
	svc         *ApprovalServiceImpl
}

func testConfig() *config.Config {
	return &config.Config{
		DefaultApprovalMode: "MANAGER_AND_GM",
		AdminListMaxLimit:   3,
		ExportMaxRows:       10,
		SideEffectTimeout:   time.Second,
		ReminderAfter:       time.Hour,
	}
}

func testProfiles() profileMap {
	return profileMap{
		"emp.alice": {
			EmployeeID: "E001", LoginID: "emp.alice", DisplayName: "Alice", Department: "Ops",
			ApprovalMode: "MANAGER_AND_GM", ManagerLoginID: "mgr.bob", GMLoginID: "gm.carol", COOLoginID: "coo.eve",
		},
		"emp.dan": {
			EmployeeID: "E002", LoginID: "emp.dan", DisplayName: "Dan", Department: "Sales",
			ApprovalMode: "GM_AND_COO", ManagerLoginID: "mgr.bob", GMLoginID: "gm.carol", COOLoginID: "coo.eve",
		},
		"emp.zed": {
			EmployeeID: "E003", LoginID: "emp.zed", ApprovalMode: "MANAGER_ONLY",
		},
		"emp.unset": {
			EmployeeID: "E004", LoginID: "emp.unset", ManagerLoginID: "mgr.bob", GMLoginID: "gm.carol",
		},
	}
}

func newHarness() *harness {
	return newHarnessWith(newMemRepo(), testProfiles())
}

func newHarnessWith(repo Repository, profiles profileMap) *harness {
	cfg := testConfig()
	h := &harness{
		notifier:    &recordingNotifier{},
		broadcaster: &recordingBroadcaster{},
		audit:       &recordingAudit{},
		clock:       &clock{t: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)},
	}
	if m, ok := repo.(*memRepo); ok {
		h.repo = m
	}
	dispatcher := NewDispatcher(profiles, h.notifier, h.broadcaster, zap.NewNop(), cfg)
	svc := NewApprovalService(repo, profiles, NewModeResolver(cfg), dispatcher, h.audit, zap.NewNop(), cfg).(*ApprovalServiceImpl)
	svc.now = h.clock.Now
	h.svc = svc
	return h
}

func on(date string) map[string]any {
	return map[string]any{"date": date}
}
