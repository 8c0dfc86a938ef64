package sequence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidScope = errors.New("invalid sequence scope")

const (
	DailyWidth  = 4
	YearlyWidth = 5
)

const (
	KindDaily  = "daily"
	KindYearly = "yearly"
)

// Scope is a numbering namespace: every name in it is Prefix followed by a
// zero-padded counter at least Width digits long.
type Scope struct {
	Prefix string
	Width  int
}

// Daily returns the global per-day scope DH{YYMMDD}. The date is taken in t's location.
func Daily(t time.Time) Scope {
	return Scope{Prefix: "DH" + t.Format("060102"), Width: DailyWidth}
}

// Yearly returns the per-branch yearly scope CN{branch}{YY}. Only single-digit
// branch ids are accepted so one scope's prefix never prefixes another's.
func Yearly(branchID int64, t time.Time) (Scope, error) {
	if branchID < 1 || branchID > 9 {
		return Scope{}, fmt.Errorf("%w: branch %d", ErrInvalidScope, branchID)
	}
	return Scope{Prefix: fmt.Sprintf("CN%d%s", branchID, t.Format("06")), Width: YearlyWidth}, nil
}

// Next formats the name following last. The counter is not bounded by Width;
// once it needs more digits the name simply grows.
func (s Scope) Next(last int64) string {
	if last < 0 {
		last = 0
	}
	return s.Format(last + 1)
}

func (s Scope) Format(n int64) string {
	return fmt.Sprintf("%s%0*d", s.Prefix, s.Width, n)
}

// Floor is the synthetic name used when a scope has no names yet.
func (s Scope) Floor() string {
	return s.Format(0)
}

// Counter extracts the numeric tail of name. ok is false for names outside the scope.
func (s Scope) Counter(name string) (int64, bool) {
	if !strings.HasPrefix(name, s.Prefix) {
		return 0, false
	}
	tail := name[len(s.Prefix):]
	if tail == "" {
		return 0, false
	}
	for _, r := range tail {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(tail, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Contains reports whether name belongs to the scope.
func (s Scope) Contains(name string) bool {
	_, ok := s.Counter(name)
	return ok
}
