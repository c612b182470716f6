package embedding

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	short := "hello"
	assert.Equal(t, short, truncate(short, 100))

	long := strings.Repeat("a", 200)
	got := truncate(long, 100)
	assert.Len(t, got, 100)

	// Deterministic: same input, same prefix.
	assert.Equal(t, got, truncate(long, 100))
}

func TestTruncate_RuneBoundary(t *testing.T) {
	// "é" is two bytes; a cut inside the sequence must back off.
	s := strings.Repeat("é", 10)
	got := truncate(s, 5)
	assert.Len(t, got, 4)
	for _, r := range got {
		assert.Equal(t, 'é', r)
	}
}

func TestNewEmbedder_Defaults(t *testing.T) {
	e := NewEmbedder(&Client{model: DefaultModel}, 0, 0)
	assert.Equal(t, DefaultBatchSize, e.batchSize)
	assert.Equal(t, DefaultDimension, e.Dimension())
}
