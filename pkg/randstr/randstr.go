package randstr

import (
	"crypto/rand"
	"math/big"
)

type Generator struct {
	alphabet []rune
}

func New(alphabet string) *Generator {
	return &Generator{alphabet: []rune(alphabet)}
}

// Generate returns a string of length n drawn uniformly from the alphabet.
func (g *Generator) Generate(n int) (string, error) {
	size := big.NewInt(int64(len(g.alphabet)))
	out := make([]rune, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", err
		}
		out[i] = g.alphabet[idx.Int64()]
	}

	return string(out), nil
}
