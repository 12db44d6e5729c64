package leave

import (
	"fmt"
	"strings"

	"go-hrflow/internal/features/approval"
)

const maxSpanDays = 366

type Input struct {
	StartDate string `bson:"start_date" validate:"required"`
	EndDate   string `bson:"end_date" validate:"required"`
	LeaveType string `bson:"leave_type" validate:"required,oneof=annual sick emergency unpaid"`
	HalfDay   string `bson:"half_day" validate:"omitempty,oneof=none morning afternoon"`
	Reason    string `bson:"reason" validate:"required,max=1000"`
}

// Kind is the leave RequestKind
type Kind struct{}

func (Kind) Kind() string { return "leave" }

func (Kind) Path() string { return "leave" }

func (Kind) Prepare(fields map[string]any) (*approval.Subject, error) {
	var in Input
	if err := approval.DecodeSubject(fields, &in); err != nil {
		return nil, err
	}

	start, err := approval.ParseDate("start_date", in.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := approval.ParseDate("end_date", in.EndDate)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end_date is before start_date", approval.ErrValidation)
	}
	days := int(end.Sub(start).Hours()/24) + 1
	if days > maxSpanDays {
		return nil, fmt.Errorf("%w: leave spans %d days, at most %d allowed", approval.ErrValidation, days, maxSpanDays)
	}

	halfDay := in.HalfDay
	if halfDay == "" {
		halfDay = "none"
	}
	if halfDay != "none" && days != 1 {
		return nil, fmt.Errorf("%w: half_day only applies to a single-day leave", approval.ErrValidation)
	}

	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: reason is required", approval.ErrValidation)
	}

	duration := float64(days)
	if halfDay != "none" {
		duration = 0.5
	}

	// morning and afternoon halves of one day are separate requests
	variant := "leave"
	if halfDay != "none" {
		variant = "leave:" + halfDay
	}

	startKey, endKey := start.Format("2006-01-02"), end.Format("2006-01-02")
	summary := fmt.Sprintf("%s leave %s", in.LeaveType, startKey)
	if days > 1 {
		summary = fmt.Sprintf("%s leave %s..%s (%d days)", in.LeaveType, startKey, endKey, days)
	} else if halfDay != "none" {
		summary = fmt.Sprintf("%s leave %s (%s)", in.LeaveType, startKey, halfDay)
	}

	return &approval.Subject{
		Fields: map[string]any{
			"start_date": startKey,
			"end_date":   endKey,
			"leave_type": in.LeaveType,
			"half_day":   halfDay,
			"days":       duration,
			"reason":     reason,
		},
		DateKey: startKey + "~" + endKey,
		Variant: variant,
		Summary: summary,
	}, nil
}
