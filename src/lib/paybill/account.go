// Package paybill parses and resolves structured paybill account references of the form GROUP-FUND.
//
// An invalid reference carries one of these reasons:
//
//	missing-delimiter      no "-" in the reference
//	wrong-segment-count    more than one "-"
//	empty-segment          nothing before or after the "-", e.g. "-TTH"
//	non-alphanumeric       a segment outside [A-Z0-9]
//	unknown-group          no group has the code
//	group-giving-disabled  the group exists but does not accept giving
//	unknown-fund           no fund category has the code
//	fund-inactive          the fund category exists but is inactive
//	lookup-failed          storage error while resolving
package paybill

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

const Delimiter = "-"

type Reason string

const (
	REASON_NONE                  Reason = ""
	REASON_MISSING_DELIMITER     Reason = "missing-delimiter"
	REASON_WRONG_SEGMENT_COUNT   Reason = "wrong-segment-count"
	REASON_EMPTY_SEGMENT         Reason = "empty-segment"
	REASON_NON_ALPHANUMERIC      Reason = "non-alphanumeric"
	REASON_UNKNOWN_GROUP         Reason = "unknown-group"
	REASON_GROUP_GIVING_DISABLED Reason = "group-giving-disabled"
	REASON_UNKNOWN_FUND          Reason = "unknown-fund"
	REASON_FUND_INACTIVE         Reason = "fund-inactive"
	REASON_LOOKUP_FAILED         Reason = "lookup-failed"
)

var alphanumeric = regexp.MustCompile(`^[A-Z0-9]+$`)

// Result always carries whatever was resolved before the first failing check.
type Result struct {
	IsValid        bool       `json:"is_valid"`
	GroupCode      string     `json:"group_code,omitempty"`
	FundCode       string     `json:"fund_code,omitempty"`
	GroupID        *uuid.UUID `json:"group_id,omitempty"`
	FundCategoryID *uuid.UUID `json:"fund_category_id,omitempty"`
	Reason         Reason     `json:"reason,omitempty"`
	Error          string     `json:"error,omitempty"`
}

type GroupRef struct {
	ID            uuid.UUID
	Name          string
	GivingEnabled bool
}

type FundRef struct {
	ID     uuid.UUID
	Name   string
	Active bool
}

// ErrNotFound is returned by a Directory when no row carries the code.
var ErrNotFound = errors.New("code not found")

type Directory interface {
	GroupByCode(ctx context.Context, code string) (*GroupRef, error)
	FundByCode(ctx context.Context, code string) (*FundRef, error)
}

func invalid(reason Reason, msg string) Result {
	return Result{Reason: reason, Error: msg}
}

// Parse splits a raw reference into its two codes without touching storage.
func Parse(raw string) (groupCode string, fundCode string, res Result) {
	trimmed := strings.ToUpper(strings.TrimSpace(raw))
	if !strings.Contains(trimmed, Delimiter) {
		return "", "", invalid(REASON_MISSING_DELIMITER, "Invalid format: missing delimiter")
	}
	parts := strings.Split(trimmed, Delimiter)
	if len(parts) != 2 {
		return "", "", invalid(REASON_WRONG_SEGMENT_COUNT, "Invalid format: expected GROUP_CODE-FUND_CODE with a single delimiter")
	}
	groupCode = strings.TrimSpace(parts[0])
	fundCode = strings.TrimSpace(parts[1])
	if groupCode == "" || fundCode == "" {
		return "", "", invalid(REASON_EMPTY_SEGMENT, "Invalid format: group code or fund code is empty, expected one on each side of the delimiter")
	}
	if !alphanumeric.MatchString(groupCode) || !alphanumeric.MatchString(fundCode) {
		return "", "", invalid(REASON_NON_ALPHANUMERIC, "Invalid format: codes must be alphanumeric only")
	}
	return groupCode, fundCode, Result{IsValid: true, GroupCode: groupCode, FundCode: fundCode}
}

// Resolve never panics and never returns an error: every failure is a Result with IsValid false.
func Resolve(ctx context.Context, dir Directory, raw string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = invalid(REASON_LOOKUP_FAILED, fmt.Sprintf("Lookup failed: %v", r))
		}
	}()
	groupCode, fundCode, parsed := Parse(raw)
	if !parsed.IsValid {
		return parsed
	}
	res = Result{GroupCode: groupCode, FundCode: fundCode}

	group, err := dir.GroupByCode(ctx, groupCode)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			res.Reason = REASON_UNKNOWN_GROUP
			res.Error = fmt.Sprintf("Unknown group code: %s", groupCode)
			return res
		}
		res.Reason = REASON_LOOKUP_FAILED
		res.Error = fmt.Sprintf("Lookup failed for group code %s: %s", groupCode, err.Error())
		return res
	}
	res.GroupID = &group.ID
	if !group.GivingEnabled {
		res.Reason = REASON_GROUP_GIVING_DISABLED
		res.Error = fmt.Sprintf("Group giving is not enabled for %s", group.Name)
		return res
	}

	fund, err := dir.FundByCode(ctx, fundCode)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			res.Reason = REASON_UNKNOWN_FUND
			res.Error = fmt.Sprintf("Unknown fund code: %s", fundCode)
			return res
		}
		res.Reason = REASON_LOOKUP_FAILED
		res.Error = fmt.Sprintf("Lookup failed for fund code %s: %s", fundCode, err.Error())
		return res
	}
	res.FundCategoryID = &fund.ID
	if !fund.Active {
		res.Reason = REASON_FUND_INACTIVE
		res.Error = fmt.Sprintf("Fund category %s is not active", fund.Name)
		return res
	}

	res.IsValid = true
	return res
}

func Generate(groupCode, fundCode string) string {
	return fmt.Sprintf("%s%s%s", strings.ToUpper(strings.TrimSpace(groupCode)), Delimiter, strings.ToUpper(strings.TrimSpace(fundCode)))
}

func validateCode(kind string, code string, min, max int) error {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" {
		return fmt.Errorf("%s code is required", kind)
	}
	if strings.Contains(trimmed, Delimiter) {
		return fmt.Errorf("%s code cannot contain the delimiter (%s)", kind, Delimiter)
	}
	if len(trimmed) < min || len(trimmed) > max {
		return fmt.Errorf("%s code must be %d-%d characters", kind, min, max)
	}
	if !alphanumeric.MatchString(trimmed) {
		return fmt.Errorf("%s code must be alphanumeric only", kind)
	}
	return nil
}

func ValidateGroupCode(code string) error {
	return validateCode("Group", code, 3, 10)
}

func ValidateFundCode(code string) error {
	return validateCode("Fund", code, 3, 5)
}

// SuggestGroupCode derives a candidate code from a display name, e.g. "Jericho Youth" -> "JERICHOYOU".
func SuggestGroupCode(name string) string {
	s := strings.NewReplacer("-", "", "_", "").Replace(slug.Make(name))
	s = strings.ToUpper(s)
	if len(s) > 10 {
		s = s[:10]
	}
	for len(s) < 3 {
		s += "0"
	}
	return s
}
