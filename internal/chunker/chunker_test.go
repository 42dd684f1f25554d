package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillworks/driveanswer/internal/core/domain"
)

var testSource = domain.FileRef{ID: "file-1", Name: "report.txt"}

func TestNewRejectsOverlapNotSmallerThanSize(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
	}{
		{"overlap equals size", 100, 100},
		{"overlap exceeds size", 100, 150},
		{"zero size", 0, 0},
		{"negative overlap", 100, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(WithChunkSize(tt.size), WithOverlap(tt.overlap))
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrChunkConfig)
		})
	}
}

func TestSplitEmptyTextYieldsNoChunks(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	assert.Empty(t, s.Split(testSource, ""))
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	s, err := New(WithChunkSize(100), WithOverlap(20))
	require.NoError(t, err)

	chunks := s.Split(testSource, "hello world")
	require.Len(t, chunks, 1)
	assert.Equal(t, "hello world", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].SequenceIndex)
	assert.Equal(t, 0, chunks[0].OverlapWithPrevious)
	assert.Equal(t, "file-1", chunks[0].SourceID)
	assert.Equal(t, "report.txt", chunks[0].SourceName)
}

func TestSplitWindowsShareOverlap(t *testing.T) {
	s, err := New(WithChunkSize(10), WithOverlap(4))
	require.NoError(t, err)

	text := "abcdefghijklmnopqrstuvwxyz"
	chunks := s.Split(testSource, text)
	require.True(t, len(chunks) > 1)

	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1].Text)
		cur := []rune(chunks[i].Text)
		assert.Equal(t, 4, chunks[i].OverlapWithPrevious)
		assert.Equal(t, string(prev[len(prev)-4:]), string(cur[:4]),
			"chunk %d should start with the tail of chunk %d", i, i-1)
	}
}

// Concatenating the chunks minus their overlapping prefixes must
// reconstruct the original text exactly.
func TestSplitRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		text    string
	}{
		{"no overlap", 10, 0, strings.Repeat("abcdefg ", 40)},
		{"small overlap", 10, 4, "the quick brown fox jumps over the lazy dog"},
		{"large overlap", 10, 8, strings.Repeat("0123456789", 7) + "xyz"},
		{"multibyte runes", 7, 3, strings.Repeat("héllo wörld ", 11)},
		{"exact multiple", 10, 5, strings.Repeat("x", 20)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(WithChunkSize(tt.size), WithOverlap(tt.overlap))
			require.NoError(t, err)

			chunks := s.Split(testSource, tt.text)
			require.NotEmpty(t, chunks)

			var b strings.Builder
			for i, c := range chunks {
				runes := []rune(c.Text)
				if i == 0 {
					b.WriteString(c.Text)
					continue
				}
				b.WriteString(string(runes[c.OverlapWithPrevious:]))
			}
			assert.Equal(t, tt.text, b.String())
		})
	}
}

func TestSplitSequenceIndicesAreOrdered(t *testing.T) {
	s, err := New(WithChunkSize(5), WithOverlap(1))
	require.NoError(t, err)

	chunks := s.Split(testSource, strings.Repeat("a", 50))
	for i, c := range chunks {
		assert.Equal(t, i, c.SequenceIndex)
		assert.NotEmpty(t, c.ID)
	}
}

func TestSplitChunkIDsAreUnique(t *testing.T) {
	s, err := New(WithChunkSize(5), WithOverlap(0))
	require.NoError(t, err)

	chunks := s.Split(testSource, strings.Repeat("b", 40))
	seen := make(map[string]bool, len(chunks))
	for _, c := range chunks {
		assert.False(t, seen[c.ID])
		seen[c.ID] = true
	}
}
