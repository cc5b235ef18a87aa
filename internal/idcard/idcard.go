// Package idcard validates 18-digit resident identity numbers (GB 11643-1999).
//
// Layout of a number:
//
//	110105 19491231 002 X
//	region birth    seq check
//
// The check character is derived from the first 17 digits with the ISO 7064
// MOD 11-2 scheme. The sequence number is odd for men and even for women.
package idcard

import (
	"errors"
	"strings"
	"time"
)

const Length = 18

var (
	ErrLength    = errors.New("id number must be 18 characters")
	ErrFormat    = errors.New("id number must be 17 digits followed by a digit or X")
	ErrRegion    = errors.New("unknown province code")
	ErrBirthDate = errors.New("invalid birth date")
	ErrChecksum  = errors.New("check character mismatch")
)

var (
	weights    = [17]int{7, 9, 10, 5, 8, 4, 2, 1, 6, 3, 7, 9, 10, 5, 8, 4, 2}
	checkCodes = "10X98765432"

	// Province-level codes, the first two digits of the region code
	provinces = map[string]string{
		"11": "Beijing", "12": "Tianjin", "13": "Hebei", "14": "Shanxi", "15": "Inner Mongolia",
		"21": "Liaoning", "22": "Jilin", "23": "Heilongjiang",
		"31": "Shanghai", "32": "Jiangsu", "33": "Zhejiang", "34": "Anhui", "35": "Fujian", "36": "Jiangxi", "37": "Shandong",
		"41": "Henan", "42": "Hubei", "43": "Hunan", "44": "Guangdong", "45": "Guangxi", "46": "Hainan",
		"50": "Chongqing", "51": "Sichuan", "52": "Guizhou", "53": "Yunnan", "54": "Tibet",
		"61": "Shaanxi", "62": "Gansu", "63": "Qinghai", "64": "Ningxia", "65": "Xinjiang",
		"71": "Taiwan", "81": "Hong Kong", "82": "Macau",
		"91": "Overseas",
	}

	// earliest accepted birth date
	minBirth = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)
)

// Info is what a valid number encodes
type Info struct {
	Region   string
	Province string
	Birth    time.Time
	Male     bool
}

// Age returns the completed years at the given time
func (i Info) Age(at time.Time) int {
	years := at.Year() - i.Birth.Year()
	if !birthdayPassed(i.Birth, at) {
		years--
	}
	return years
}

func birthdayPassed(birth, at time.Time) bool {
	if at.Month() != birth.Month() {
		return at.Month() > birth.Month()
	}
	return at.Day() >= birth.Day()
}

// Valid reports whether id is a well-formed number with a correct check
// character and a birth date no later than today.
func Valid(id string) bool {
	_, err := Parse(id, time.Now())
	return err == nil
}

// Parse validates id against the calendar at now and returns its fields.
// A lowercase x check character is accepted.
func Parse(id string, now time.Time) (Info, error) {
	if len(id) != Length {
		return Info{}, ErrLength
	}
	for i := 0; i < Length-1; i++ {
		if !isDigit(id[i]) {
			return Info{}, ErrFormat
		}
	}
	last := id[Length-1]
	if !isDigit(last) && last != 'X' && last != 'x' {
		return Info{}, ErrFormat
	}

	province, ok := provinces[id[:2]]
	if !ok {
		return Info{}, ErrRegion
	}

	birth, err := time.Parse("20060102", id[6:14])
	if err != nil {
		return Info{}, ErrBirthDate
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if birth.Before(minBirth) || birth.After(today) {
		return Info{}, ErrBirthDate
	}

	want, _ := CheckCode(id[:Length-1])
	if strings.ToUpper(string(last))[0] != want {
		return Info{}, ErrChecksum
	}

	return Info{
		Region:   id[:6],
		Province: province,
		Birth:    birth,
		Male:     (id[16]-'0')%2 == 1,
	}, nil
}

// CheckCode computes the 18th character for the given first 17 digits
func CheckCode(first17 string) (byte, error) {
	if len(first17) != Length-1 {
		return 0, ErrLength
	}
	sum := 0
	for i := 0; i < Length-1; i++ {
		c := first17[i]
		if !isDigit(c) {
			return 0, ErrFormat
		}
		sum += int(c-'0') * weights[i]
	}
	return checkCodes[sum%11], nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
