// Package randomstring generates uniform random strings over the SEREBO
// alphabets. The canonical alphabet is 80 characters; a 74-character
// legacy alphabet is retained only so audit/migration code can recognize
// strings written by older black boxes. New writes must always use
// Generate, never GenerateLegacy.
package randomstring

import (
	"crypto/rand"
	"math/big"
)

// Alphabet is the canonical 80-character alphabet used for every new
// random string: all writes (block nonces, fIDs, blackboxID, description
// suffixes) draw from this set.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789~!@#$%^&*()<>=+[]?"

// LegacyAlphabet is the 74-character alphabet used by one legacy writer.
// It is documented here only for migration/audit tooling that needs to
// recognize strings generated by that older code path; it must not be
// used to generate new records.
const LegacyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789!@#$%&<>=[]?"

// Generate returns a string of length l drawn uniformly, with
// replacement, from Alphabet. l == 0 returns "".
func Generate(l int) string {
	return generate(Alphabet, l)
}

// GenerateLegacy returns a string drawn from LegacyAlphabet. It exists
// only to reproduce/validate records written by the legacy 74-character
// writer; new code must call Generate instead.
func GenerateLegacy(l int) string {
	return generate(LegacyAlphabet, l)
}

func generate(alphabet string, l int) string {
	if l <= 0 {
		return ""
	}
	n := big.NewInt(int64(len(alphabet)))
	out := make([]byte, l)
	for i := 0; i < l; i++ {
		idx, err := rand.Int(rand.Reader, n)
		if err != nil {
			// crypto/rand.Reader failing is a fatal environment error;
			// there is no sane degraded-but-correct fallback for a
			// function whose entire contract is uniform randomness.
			panic(err)
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out)
}
