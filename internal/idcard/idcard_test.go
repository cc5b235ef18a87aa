package idcard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

// withCheck appends the computed check character to 17 digits
func withCheck(t *testing.T, first17 string) string {
	t.Helper()
	c, err := CheckCode(first17)
	require.NoError(t, err)
	return first17 + string(c)
}

func TestCheckCode(t *testing.T) {
	c, err := CheckCode("11010519491231002")
	require.NoError(t, err)
	assert.Equal(t, byte('X'), c)

	c, err = CheckCode("44052418800101001")
	require.NoError(t, err)
	assert.Equal(t, byte('4'), c)

	_, err = CheckCode("1234")
	assert.ErrorIs(t, err, ErrLength)
	_, err = CheckCode("1101051949123100A")
	assert.ErrorIs(t, err, ErrFormat)
}

func TestParse(t *testing.T) {
	info, err := Parse("11010519491231002X", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "110105", info.Region)
	assert.Equal(t, "Beijing", info.Province)
	assert.Equal(t, time.Date(1949, time.December, 31, 0, 0, 0, 0, time.UTC), info.Birth)
	assert.False(t, info.Male)
	assert.Equal(t, 74, info.Age(fixedNow))

	info, err = Parse(withCheck(t, "32010619900601001"), fixedNow)
	require.NoError(t, err)
	assert.True(t, info.Male)
	assert.Equal(t, 34, info.Age(fixedNow))
	assert.Equal(t, 33, info.Age(fixedNow.AddDate(0, 0, -1)))
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want error
	}{
		{"empty", "", ErrLength},
		{"fifteen digit legacy", "110105491231002", ErrLength},
		{"letter inside", "1101051949123100AX", ErrFormat},
		{"bad check char", "11010519491231002Y", ErrFormat},
		{"unknown province", withCheck(t, "99010519491231002"), ErrRegion},
		{"impossible date", withCheck(t, "11010519490230002"), ErrBirthDate},
		{"before 1900", withCheck(t, "11010518991231002"), ErrBirthDate},
		{"born tomorrow", withCheck(t, "11010520240602002"), ErrBirthDate},
		{"wrong check", "110105194912310021", ErrChecksum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.id, fixedNow)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("11010519491231002X"))
	assert.True(t, Valid("11010519491231002x"), "lowercase check character")
	assert.False(t, Valid("110105194912310021"))
	assert.False(t, Valid("not an id"))
	assert.False(t, Valid(""))
}
