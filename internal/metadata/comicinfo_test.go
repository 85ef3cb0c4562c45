package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	data := []byte(`<?xml version="1.0"?>
<ComicInfo xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
  <Title> The Black Swordsman </Title>
  <Series>Berserk</Series>
  <Number>1.5</Number>
  <Count>41</Count>
  <PageCount>220</PageCount>
</ComicInfo>`)

	info, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "The Black Swordsman", info.Title)
	assert.Equal(t, "Berserk", info.Series)
	assert.Equal(t, 220, info.PageCount)

	n, ok := info.ParsedNumber()
	assert.True(t, ok)
	assert.Equal(t, 1.5, n)

	require.Len(t, info.Extra, 1)
	assert.Equal(t, "Count", info.Extra[0].XMLName.Local)
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte("<ComicInfo><Title>"))
	assert.Error(t, err)
}

func TestMarshal_PreservesUnknownElements(t *testing.T) {
	info, err := Parse([]byte(`<ComicInfo><Title>A</Title><Count>3</Count></ComicInfo>`))
	require.NoError(t, err)

	out, err := info.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(out), "<Count>3</Count>")
	assert.Contains(t, string(out), "<Title>A</Title>")

	again, err := Parse(out)
	require.NoError(t, err)
	again2, err := again.Marshal()
	require.NoError(t, err)
	assert.Equal(t, out, again2)
}

func TestParsedNumber_Invalid(t *testing.T) {
	_, ok := (&ComicInfo{Number: "one"}).ParsedNumber()
	assert.False(t, ok)
	_, ok = (&ComicInfo{}).ParsedNumber()
	assert.False(t, ok)
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "12", FormatNumber(12))
	assert.Equal(t, "12.5", FormatNumber(12.5))
}
