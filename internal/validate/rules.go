package validate

import (
	"errors"
	"fmt"
	"sort"
)

var ErrUnknownRule = errors.New("unknown rule")

// Rule is a single-argument check
type Rule func(string) bool

// Rules maps CLI rule names to checks. Length takes bounds and is exposed
// through LengthRule instead.
var Rules = map[string]Rule{
	"phone":   ValidPhone,
	"qq":      ValidQQ,
	"email":   ValidEmail,
	"chinese": ValidChinese,
	"ipv4":    ValidIPv4,
	"ipv6":    ValidIPv6,
	"idcard":  ValidIDCard,
}

// LengthRule binds ValidLength to fixed bounds
func LengthRule(min, max int) Rule {
	return func(s string) bool { return ValidLength(s, min, max) }
}

// RuleNames returns the registered rule names plus "length", sorted
func RuleNames() []string {
	names := make([]string, 0, len(Rules)+1)
	for name := range Rules {
		names = append(names, name)
	}
	names = append(names, "length")
	sort.Strings(names)
	return names
}

// Check runs the named rule against value
func Check(rule, value string) (bool, error) {
	fn, ok := Rules[rule]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownRule, rule)
	}
	return fn(value), nil
}
