package typecheck

import "fmt"

// WarningKind identifies an advisory diagnostic.
type WarningKind int

// Warning kinds.
const (
	TypeMismatch WarningKind = iota + 1
)

func (k WarningKind) String() string {
	if k == TypeMismatch {
		return "type-mismatch"
	}
	return "none"
}

// MarshalText renders the kind by name.
func (k WarningKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Warning reports an equality between columns of incompatible families.
type Warning struct {
	Kind      WarningKind
	LeftType  string
	RightType string
	Left      Family
	Right     Family
}

// Message renders the warning for display.
func (w Warning) Message() string {
	return fmt.Sprintf("comparing %s (%s) with %s (%s) may require a conversion",
		w.LeftType, w.Left, w.RightType, w.Right)
}

// CheckEquality returns a warning when leftType = rightType mixes
// incompatible families.
func (p *Policy) CheckEquality(leftType, rightType string) (Warning, bool) {
	l, r := Classify(leftType), Classify(rightType)
	if p.Compatible(l, r) {
		return Warning{}, false
	}
	return Warning{
		Kind:      TypeMismatch,
		LeftType:  leftType,
		RightType: rightType,
		Left:      l,
		Right:     r,
	}, true
}

// CheckEqualityWarning checks under the default policy.
func CheckEqualityWarning(leftType, rightType string) (Warning, bool) {
	return defaultPolicy.CheckEquality(leftType, rightType)
}
