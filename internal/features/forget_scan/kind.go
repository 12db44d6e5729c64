package forget_scan

import (
	"fmt"
	"strings"

	"go-hrflow/internal/features/approval"
)

const (
	ScanIn  = "in"
	ScanOut = "out"
)

type Input struct {
	Date         string   `bson:"date" validate:"required"`
	ScanTypes    []string `bson:"scan_types" validate:"required,min=1,max=2,dive,oneof=in out"`
	CheckInTime  string   `bson:"check_in_time"`
	CheckOutTime string   `bson:"check_out_time"`
	Reason       string   `bson:"reason" validate:"required,max=1000"`
}

// Kind is the forgotten clock-in/clock-out correction RequestKind.
// The selected scan types are part of the natural key, so an in-only and an
// out-only correction for the same day are distinct requests.
type Kind struct{}

func (Kind) Kind() string { return "forget_scan" }

func (Kind) Path() string { return "forget-scan" }

func (Kind) Prepare(fields map[string]any) (*approval.Subject, error) {
	var in Input
	if err := approval.DecodeSubject(fields, &in); err != nil {
		return nil, err
	}

	date, err := approval.ParseDate("date", in.Date)
	if err != nil {
		return nil, err
	}

	hasIn, hasOut := false, false
	for _, t := range in.ScanTypes {
		switch t {
		case ScanIn:
			hasIn = true
		case ScanOut:
			hasOut = true
		}
	}

	dateKey := date.Format("2006-01-02")
	out := map[string]any{"date": dateKey}
	var types []string

	if hasIn {
		clock, err := approval.ParseClock("check_in_time", in.CheckInTime)
		if err != nil {
			return nil, err
		}
		out["check_in_time"] = clock
		types = append(types, ScanIn)
	}
	if hasOut {
		clock, err := approval.ParseClock("check_out_time", in.CheckOutTime)
		if err != nil {
			return nil, err
		}
		out["check_out_time"] = clock
		types = append(types, ScanOut)
	}
	if hasIn && hasOut && out["check_out_time"].(string) <= out["check_in_time"].(string) {
		return nil, fmt.Errorf("%w: check_out_time must be after check_in_time", approval.ErrValidation)
	}

	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: reason is required", approval.ErrValidation)
	}
	out["reason"] = reason
	out["scan_types"] = types

	variant := strings.Join(types, "+")
	return &approval.Subject{
		Fields:  out,
		DateKey: dateKey,
		Variant: "forget-scan:" + variant,
		Summary: fmt.Sprintf("forgot to scan %s on %s", strings.Join(types, " and "), dateKey),
	}, nil
}
