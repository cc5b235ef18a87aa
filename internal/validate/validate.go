// Package validate holds regular-expression string checks.
//
// Every function is a pure full-string match and never panics: malformed or
// empty input simply yields false. The Pattern constants are part of the
// public contract and are matched as-is.
package validate

import (
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"myutils/internal/idcard"
)

const (
	PatternPhone   = `^1\d{10}$`
	PatternQQ      = `^\d{5,13}$`
	PatternEmail   = `^[a-zA-Z0-9_-]+@[a-zA-Z0-9_-]+(\.[a-zA-Z0-9_-]+)+$`
	PatternChinese = `^[\x{4e00}-\x{9fa5}]+$`
	PatternIPv4    = `^(1\d{2}|2[0-4]\d|25[0-5]|[1-9]\d|[1-9])\.` +
		`(1\d{2}|2[0-4]\d|25[0-5]|[1-9]\d|\d)\.` +
		`(1\d{2}|2[0-4]\d|25[0-5]|[1-9]\d|\d)\.` +
		`(1\d{2}|2[0-4]\d|25[0-5]|[1-9]\d|\d)$`
	// No "::" zero compression: exactly eight groups are required
	PatternIPv6 = `^([\dA-Fa-f]{1,4}:){7}[\dA-Fa-f]{1,4}$`
)

// MaxEmailLength bounds the whole address
const MaxEmailLength = 64

var (
	phoneRegex   = regexp.MustCompile(PatternPhone)
	qqRegex      = regexp.MustCompile(PatternQQ)
	emailRegex   = regexp.MustCompile(PatternEmail)
	chineseRegex = regexp.MustCompile(PatternChinese)
	ipv4Regex    = regexp.MustCompile(PatternIPv4)
	ipv6Regex    = regexp.MustCompile(PatternIPv6)

	// caller-supplied patterns, compiled once
	patternCache sync.Map
)

// ValidPattern reports whether the whole of content matches pattern, as if
// the pattern were anchored at both ends. An invalid pattern matches nothing.
func ValidPattern(content, pattern string) bool {
	re := compileAnchored(pattern)
	return re != nil && re.MatchString(content)
}

func compileAnchored(pattern string) *regexp.Regexp {
	if v, ok := patternCache.Load(pattern); ok {
		return v.(*regexp.Regexp)
	}
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		re = nil
	}
	patternCache.Store(pattern, re)
	return re
}

// ValidPhone checks an 11-digit mobile number starting with 1
func ValidPhone(phone string) bool {
	return phoneRegex.MatchString(phone)
}

// ValidQQ checks a 5 to 13 digit QQ number
func ValidQQ(qq string) bool {
	return qqRegex.MatchString(qq)
}

// ValidEmail checks a non-blank address of at most MaxEmailLength characters
func ValidEmail(email string) bool {
	if strings.TrimSpace(email) == "" || len(email) > MaxEmailLength {
		return false
	}
	return emailRegex.MatchString(email)
}

// ValidChinese reports whether s is non-empty and made only of CJK unified
// ideographs U+4E00..U+9FA5. Punctuation such as "。" is rejected.
func ValidChinese(s string) bool {
	return chineseRegex.MatchString(s)
}

// ValidLength reports min <= characters(s) <= max, counting runes
func ValidLength(s string, min, max int) bool {
	n := utf8.RuneCountInString(s)
	return n >= min && n <= max
}

// ValidIPv4 checks (1-255).(0-255).(0-255).(0-255)
func ValidIPv4(ip string) bool {
	return ipv4Regex.MatchString(ip)
}

// ValidIPv6 checks the full eight-group form only
func ValidIPv6(ip string) bool {
	return ipv6Regex.MatchString(ip)
}

// ValidIDCard checks an 18-digit resident identity number
func ValidIDCard(id string) bool {
	return idcard.Valid(id)
}
