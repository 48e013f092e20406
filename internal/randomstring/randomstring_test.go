package randomstring_test

import (
	"strings"
	"testing"

	"github.com/mauriceling/serebo/internal/randomstring"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Length(t *testing.T) {
	for _, l := range []int{0, 1, 10, 32, 512} {
		s := randomstring.Generate(l)
		require.Len(t, s, l)
	}
}

func TestGenerate_AlphabetOnly(t *testing.T) {
	s := randomstring.Generate(2048)
	for _, c := range s {
		require.True(t, strings.ContainsRune(randomstring.Alphabet, c), "unexpected char %q", c)
	}
}

func TestGenerate_Uniqueness(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		s := randomstring.Generate(32)
		require.False(t, seen[s], "collision at 32 chars is astronomically unlikely")
		seen[s] = true
	}
}

func TestGenerateLegacy_DistinctAlphabet(t *testing.T) {
	require.NotEqual(t, randomstring.Alphabet, randomstring.LegacyAlphabet)
	require.Len(t, randomstring.Alphabet, 80)
	require.Len(t, randomstring.LegacyAlphabet, 74)
	s := randomstring.GenerateLegacy(256)
	for _, c := range s {
		require.True(t, strings.ContainsRune(randomstring.LegacyAlphabet, c))
	}
}
