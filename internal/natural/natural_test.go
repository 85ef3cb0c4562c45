package natural

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"numeric runs compare by value", "a2", "a10", -1},
		{"case insensitive", "A2", "a2", 0},
		{"equal strings", "page", "page", 0},
		{"prefix sorts first", "page", "page1", -1},
		{"leading zeros equal value shorter is larger", "01", "1", -1},
		{"leading zeros reversed", "1", "01", 1},
		{"text before digits differ", "b1", "a2", 1},
		{"long digit runs do not overflow", "x123456789012345678901234567890", "x123456789012345678901234567891", -1},
		{"unicode case folding", "Ärger", "ärger", 0},
		{"nested paths", "vol1/page2.jpg", "vol1/page10.jpg", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.a, tt.b))
		})
	}
}

func TestSortPages(t *testing.T) {
	names := []string{"page10", "page2", "page1"}
	slices.SortStableFunc(names, Compare)
	assert.Equal(t, []string{"page1", "page2", "page10"}, names)
}

func TestLess(t *testing.T) {
	assert.True(t, Less("chapter 9", "Chapter 10"))
	assert.False(t, Less("Chapter 10", "chapter 9"))
}
