package swap_day

import (
	"fmt"
	"strings"

	"go-hrflow/internal/features/approval"
)

type Input struct {
	WorkDate string `bson:"work_date" validate:"required"`
	OffDate  string `bson:"off_date" validate:"required"`
	Reason   string `bson:"reason" validate:"required,max=1000"`
}

// Kind swaps a scheduled day off (work_date is worked instead) for another day off (off_date)
type Kind struct{}

func (Kind) Kind() string { return "swap_day" }

func (Kind) Path() string { return "swap-day" }

func (Kind) Prepare(fields map[string]any) (*approval.Subject, error) {
	var in Input
	if err := approval.DecodeSubject(fields, &in); err != nil {
		return nil, err
	}

	work, err := approval.ParseDate("work_date", in.WorkDate)
	if err != nil {
		return nil, err
	}
	off, err := approval.ParseDate("off_date", in.OffDate)
	if err != nil {
		return nil, err
	}
	if work.Equal(off) {
		return nil, fmt.Errorf("%w: work_date and off_date must differ", approval.ErrValidation)
	}

	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: reason is required", approval.ErrValidation)
	}

	workKey, offKey := work.Format("2006-01-02"), off.Format("2006-01-02")
	return &approval.Subject{
		Fields: map[string]any{
			"work_date": workKey,
			"off_date":  offKey,
			"reason":    reason,
		},
		DateKey: workKey + ">" + offKey,
		Variant: "swap-day",
		Summary: fmt.Sprintf("work %s, off %s", workKey, offKey),
	}, nil
}
