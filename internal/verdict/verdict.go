// Package verdict holds the grading outcome enum and the parser that turns a
// judge model's free-text reply into a structured result.
package verdict

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Verdict is the outcome of one judge grading one answer.
// The zero value is Inconclusive.
type Verdict uint8

const (
	Inconclusive Verdict = iota
	Pass
	Fail
)

// All lists every verdict in display order.
var All = []Verdict{Pass, Fail, Inconclusive}

func (v Verdict) String() string {
	switch v {
	case Pass:
		return "pass"
	case Fail:
		return "fail"
	default:
		return "inconclusive"
	}
}

// ParseVerdict accepts exactly "pass", "fail" or "inconclusive" after
// trimming and lower-casing.
func ParseVerdict(s string) (Verdict, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pass":
		return Pass, true
	case "fail":
		return Fail, true
	case "inconclusive":
		return Inconclusive, true
	}
	return Inconclusive, false
}

func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *Verdict) UnmarshalText(b []byte) error {
	parsed, ok := ParseVerdict(string(b))
	if !ok {
		return fmt.Errorf("unknown verdict %q", string(b))
	}
	*v = parsed
	return nil
}

// Value stores the verdict as its text form.
func (v Verdict) Value() (driver.Value, error) {
	return v.String(), nil
}

// Scan rejects anything outside the three known values.
func (v *Verdict) Scan(src any) error {
	switch s := src.(type) {
	case string:
		return v.UnmarshalText([]byte(s))
	case []byte:
		return v.UnmarshalText(s)
	case nil:
		return fmt.Errorf("verdict: cannot scan NULL")
	default:
		return fmt.Errorf("verdict: unsupported scan type %T", src)
	}
}
