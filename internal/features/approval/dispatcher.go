package approval

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go-hrflow/internal/config"

	"go.uber.org/zap"
)

// ProfileSource supplies the approval configuration of the submitting employee.
// A missing profile is (nil, nil).
type ProfileSource interface {
	FindProfileByLogin(ctx context.Context, loginID string) (*Profile, error)
}

// DirectoryEntry is the cosmetic enrichment of an employee
type DirectoryEntry struct {
	DisplayName string
	Department  string
}

// Directory resolves employee ids to display data
type Directory interface {
	LookupEmployees(ctx context.Context, employeeIDs []string) (map[string]DirectoryEntry, error)
}

// Message is a localizable notification: a message key plus its template data
type Message struct {
	Key  string
	Data map[string]any
	Link string
}

// Notifier is the external notification sink
type Notifier interface {
	Send(ctx context.Context, target string, message Message) error
}

// Event is what subscribers receive after a committed transition
type Event struct {
	Type    string   `json:"type"`
	Request *Request `json:"request"`
}

// Broadcaster pushes events to realtime subscribers; it must not block
type Broadcaster interface {
	Publish(channel string, event Event)
}

const (
	EventCreated   = "request.created"
	EventUpdated   = "request.updated"
	EventAdvanced  = "request.advanced"
	EventApproved  = "request.approved"
	EventRejected  = "request.rejected"
	EventCancelled = "request.cancelled"
	EventReminder  = "request.reminder"
)

const AdminChannel = "admin"

func UserChannel(loginID string) string {
	return "user:" + loginID
}

type notice struct {
	target  string
	message Message
}

// Dispatcher runs the best-effort work that follows a committed transition:
// directory enrichment, notifications and realtime broadcast. None of it can fail
// the transition.
type Dispatcher struct {
	directory   Directory
	notifier    Notifier
	broadcaster Broadcaster
	log         *zap.Logger
	timeout     time.Duration
	wg          sync.WaitGroup
}

func NewDispatcher(directory Directory, notifier Notifier, broadcaster Broadcaster, log *zap.Logger, cfg *config.Config) *Dispatcher {
	timeout := cfg.SideEffectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{
		directory:   directory,
		notifier:    notifier,
		broadcaster: broadcaster,
		log:         log,
		timeout:     timeout,
	}
}

// Enrich attaches display name and department; lookup failures leave requests as they are
func (d *Dispatcher) Enrich(ctx context.Context, reqs ...*Request) {
	if d.directory == nil || len(reqs) == 0 {
		return
	}
	ids := make([]string, 0, len(reqs))
	seen := map[string]bool{}
	for _, r := range reqs {
		if !seen[r.EmployeeID] {
			seen[r.EmployeeID] = true
			ids = append(ids, r.EmployeeID)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	entries, err := d.directory.LookupEmployees(ctx, ids)
	if err != nil {
		d.log.Warn("Directory lookup failed", zap.Int("employees", len(ids)), zap.Error(err))
		return
	}
	for _, r := range reqs {
		if e, ok := entries[r.EmployeeID]; ok {
			r.EmployeeName = e.DisplayName
			r.Department = e.Department
		}
	}
}

// Committed fires notifications and broadcasts for a durably committed transition.
// It returns immediately; use Wait to drain.
func (d *Dispatcher) Committed(eventType string, req Request, actorLoginID string) {
	notices := noticesFor(eventType, &req, actorLoginID)
	d.fire(eventType, req, notices)
}

// Remind notifies the current approver of a long-pending request
func (d *Dispatcher) Remind(req Request) {
	approver := req.CurrentApprover()
	if approver == "" {
		return
	}
	d.fire(EventReminder, req, []notice{{target: approver, message: messageFor("request.reminder", &req, "")}})
}

func (d *Dispatcher) fire(eventType string, req Request, notices []notice) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.log.Error("Side effect panicked", zap.String("event", eventType), zap.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if d.notifier != nil {
			for _, n := range notices {
				if err := d.notifier.Send(ctx, n.target, n.message); err != nil {
					d.log.Warn("Notification failed",
						zap.String("event", eventType),
						zap.String("request_id", req.ID.Hex()),
						zap.String("target", n.target),
						zap.Error(err))
				}
			}
		}

		if d.broadcaster != nil && eventType != EventReminder {
			event := Event{Type: eventType, Request: &req}
			for _, ch := range broadcastChannels(&req) {
				d.broadcaster.Publish(ch, event)
			}
		}
	}()
}

// Wait blocks until every in-flight side effect has finished
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func broadcastChannels(req *Request) []string {
	channels := []string{AdminChannel, UserChannel(req.RequesterLoginID)}
	seen := map[string]bool{req.RequesterLoginID: true}
	for _, login := range req.Participants() {
		if !seen[login] {
			seen[login] = true
			channels = append(channels, UserChannel(login))
		}
	}
	return channels
}

func noticesFor(eventType string, req *Request, actorLoginID string) []notice {
	var notices []notice
	add := func(target, key string, note string) {
		if target != "" && target != actorLoginID {
			notices = append(notices, notice{target: target, message: messageFor(key, req, note)})
		}
	}

	switch eventType {
	case EventCreated, EventUpdated:
		add(req.CurrentApprover(), "request.pending_approval", "")
	case EventAdvanced:
		add(req.CurrentApprover(), "request.pending_approval", "")
		add(req.RequesterLoginID, "request.advanced", lastNote(req))
	case EventApproved:
		add(req.RequesterLoginID, "request.approved", lastNote(req))
	case EventRejected:
		add(req.RequesterLoginID, "request.rejected", lastNote(req))
	case EventCancelled:
		// the approver whose turn it was when the request was cancelled
		for _, slot := range req.Approvals {
			if slot.Status == SlotPending && req.HasReached(slot.Role) {
				add(slot.LoginID, "request.cancelled", "")
				break
			}
		}
		add(req.RequesterLoginID, "request.cancelled", "")
	}
	return notices
}

func lastNote(req *Request) string {
	var latest *ApprovalSlot
	for i := range req.Approvals {
		s := &req.Approvals[i]
		if s.ActedAt != nil && (latest == nil || s.ActedAt.After(*latest.ActedAt)) {
			latest = s
		}
	}
	if latest == nil {
		return ""
	}
	return latest.Note
}

func messageFor(key string, req *Request, note string) Message {
	return Message{
		Key: key,
		Data: map[string]any{
			"Kind":       req.Kind,
			"Summary":    req.Summary,
			"Status":     string(req.Status),
			"Requester":  req.RequesterLoginID,
			"EmployeeID": req.EmployeeID,
			"Comment":    note,
		},
		Link: fmt.Sprintf("/requests/%s/%s", req.Kind, req.ID.Hex()),
	}
}
