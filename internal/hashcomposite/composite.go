// Package hashcomposite computes the SEREBO composite hash: a fixed,
// ordered list of digests joined into one string. The ordering is part of
// the on-disk and wire format — auditors and notaries both depend on it,
// so it must never be reordered or shortened in place.
package hashcomposite

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"io"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/sha3"
)

// Separator joins each digest in the composite string.
const Separator = ":"

func full() []func() hash.Hash {
	return []func() hash.Hash{
		md5.New,
		sha1.New,
		sha256.New224,
		sha3.New224,
		sha256.New,
		sha3.New256,
		sha512.New384,
		sha3.New384,
		sha512.New,
		sha3.New512,
		newBlake2b,
		newBlake2s,
	}
}

func newBlake2b() hash.Hash {
	h, err := blake2b.New512(nil)
	if err != nil {
		// blake2b.New512 only fails for a too-long key; we pass none.
		panic(err)
	}
	return h
}

func newBlake2s() hash.Hash {
	h, err := blake2s.New256(nil)
	if err != nil {
		panic(err)
	}
	return h
}

// short returns the six hashers used for the notary's codeCommon digest:
// md5:sha1:sha224:sha256:sha384:sha512.
func short() []func() hash.Hash {
	return []func() hash.Hash{
		md5.New,
		sha1.New,
		sha256.New224,
		sha256.New,
		sha512.New384,
		sha512.New,
	}
}

// Compute returns the twelve-digest composite hash of data.
func Compute(data []byte) string {
	return join(full(), data)
}

// ComputeShort returns the six-digest composite hash used by the notary
// cross-signing code (codeCommon).
func ComputeShort(data []byte) string {
	return join(short(), data)
}

// ComputeReader streams r through all twelve hashers at once via
// io.MultiWriter, so the caller never has to buffer the whole input (used
// by the file-logging front end for arbitrarily large files).
func ComputeReader(r io.Reader) (string, error) {
	ctors := full()
	hashers := make([]hash.Hash, len(ctors))
	writers := make([]io.Writer, len(ctors))
	for i, ctor := range ctors {
		hashers[i] = ctor()
		writers[i] = hashers[i]
	}
	if _, err := io.Copy(io.MultiWriter(writers...), r); err != nil {
		return "", err
	}
	return joinDigests(hashers), nil
}

func join(ctors []func() hash.Hash, data []byte) string {
	hashers := make([]hash.Hash, len(ctors))
	for i, ctor := range ctors {
		hashers[i] = ctor()
		hashers[i].Write(data)
	}
	return joinDigests(hashers)
}

func joinDigests(hashers []hash.Hash) string {
	parts := make([]string, len(hashers))
	for i, h := range hashers {
		parts[i] = hex.EncodeToString(h.Sum(nil))
	}
	return strings.Join(parts, Separator)
}
