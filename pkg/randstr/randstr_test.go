package randstr

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	const alphabet = "ABC123"
	g := New(alphabet)

	for i := 0; i < 100; i++ {
		s, err := g.Generate(8)
		require.NoError(t, err)
		assert.Len(t, s, 8)
		for _, r := range s {
			assert.True(t, strings.ContainsRune(alphabet, r), "unexpected rune %q", r)
		}
	}
}
