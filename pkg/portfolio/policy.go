package portfolio

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ajitpratap0/quantlens/pkg/errs"
)

// RebalancePolicy says when weights are reset to the target vector
type RebalancePolicy int

const (
	// RebalanceNone never resets: a single bucket spans the whole series
	RebalanceNone RebalancePolicy = iota + 1
	// RebalanceWeekly resets on the first row of every ISO week
	RebalanceWeekly
	// RebalanceMonthly resets on the first row of every calendar month
	RebalanceMonthly
)

// Policies lists the supported policies in display order
var Policies = []RebalancePolicy{RebalanceMonthly, RebalanceWeekly, RebalanceNone}

// ParseRebalancePolicy parses "None", "Weekly" or "Monthly" (case-insensitive).
// Anything else is a configuration error, never a silent default.
func ParseRebalancePolicy(s string) (RebalancePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return RebalanceNone, nil
	case "weekly":
		return RebalanceWeekly, nil
	case "monthly":
		return RebalanceMonthly, nil
	default:
		return 0, errs.Config("portfolio.ParseRebalancePolicy", "unknown rebalance policy %q (expected None, Weekly or Monthly)", s)
	}
}

// String returns the canonical name
func (p RebalancePolicy) String() string {
	switch p {
	case RebalanceNone:
		return "None"
	case RebalanceWeekly:
		return "Weekly"
	case RebalanceMonthly:
		return "Monthly"
	default:
		return fmt.Sprintf("RebalancePolicy(%d)", int(p))
	}
}

// Valid reports whether p is one of the defined policies
func (p RebalancePolicy) Valid() bool {
	for _, known := range Policies {
		if p == known {
			return true
		}
	}
	return false
}

// MarshalJSON encodes the canonical name
func (p RebalancePolicy) MarshalJSON() ([]byte, error) {
	if !p.Valid() {
		return nil, errs.Config("portfolio.RebalancePolicy", "cannot encode invalid policy %d", int(p))
	}
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes a policy name
func (p *RebalancePolicy) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("rebalance policy must be a string: %w", err)
	}
	parsed, err := ParseRebalancePolicy(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Bucket identifies the calendar span a date falls into under a policy
type Bucket struct {
	Year   int
	Period int // ISO week or month; 0 for RebalanceNone
}

// BucketKey maps a timestamp to its rebalance bucket. Weekly buckets use the
// ISO 8601 week of the UTC date, so late-December days that belong to ISO week
// 1 of the next year share a bucket with the following January days.
func BucketKey(t time.Time, policy RebalancePolicy) (Bucket, error) {
	t = t.UTC()
	switch policy {
	case RebalanceNone:
		return Bucket{}, nil
	case RebalanceWeekly:
		year, week := t.ISOWeek()
		return Bucket{Year: year, Period: week}, nil
	case RebalanceMonthly:
		return Bucket{Year: t.Year(), Period: int(t.Month())}, nil
	default:
		return Bucket{}, errs.Config("portfolio.BucketKey", "unknown rebalance policy %d", int(policy))
	}
}
