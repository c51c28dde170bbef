package domain

import (
	"crypto/sha1" //nolint:gosec // sha1 is only used to verify legacy registry shasums
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"hash"
	"strings"

	"go.trai.ch/zerr"
)

// HashAlgorithm names a digest algorithm used by registry integrity strings.
type HashAlgorithm string

const (
	// SHA512 is the algorithm npm uses for dist.integrity.
	SHA512 HashAlgorithm = "sha512"
	// SHA384 is accepted in subresource integrity strings.
	SHA384 HashAlgorithm = "sha384"
	// SHA256 is accepted in subresource integrity strings.
	SHA256 HashAlgorithm = "sha256"
	// SHA1 is the algorithm of the legacy dist.shasum field.
	SHA1 HashAlgorithm = "sha1"
)

// strength orders algorithms so that the strongest one in a multi-hash
// integrity string wins.
var strength = map[HashAlgorithm]int{
	SHA1:   1,
	SHA256: 2,
	SHA384: 3,
	SHA512: 4,
}

var sizes = map[HashAlgorithm]int{
	SHA1:   sha1.Size,
	SHA256: sha256.Size,
	SHA384: sha512.Size384,
	SHA512: sha512.Size,
}

// Integrity is a content digest: an algorithm and the raw sum.
type Integrity struct {
	Algorithm HashAlgorithm
	Sum       []byte
}

// ParseIntegrity parses a subresource integrity string such as
// "sha512-<base64>". Several space separated hashes may be given, in which
// case the strongest supported one is kept. Unknown algorithms are ignored as
// long as at least one known algorithm is present.
func ParseIntegrity(sri string) (Integrity, error) {
	var best Integrity
	for _, field := range strings.Fields(sri) {
		algo, encoded, ok := strings.Cut(field, "-")
		if !ok {
			continue
		}
		alg := HashAlgorithm(strings.ToLower(algo))
		if _, known := strength[alg]; !known {
			continue
		}
		// Options after "?" are part of the SRI grammar and carry no digest data.
		encoded, _, _ = strings.Cut(encoded, "?")
		sum, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil || len(sum) != sizes[alg] {
			return Integrity{}, zerr.With(zerr.Wrap(ErrInvalidIntegrity, "bad digest encoding"), "integrity", sri)
		}
		if best.Algorithm == "" || strength[alg] > strength[best.Algorithm] {
			best = Integrity{Algorithm: alg, Sum: sum}
		}
	}
	if best.Algorithm == "" {
		return Integrity{}, zerr.With(zerr.Wrap(ErrInvalidIntegrity, "no supported algorithm"), "integrity", sri)
	}
	return best, nil
}

// IntegrityFromShasum converts a hex encoded sha1 sum as found in dist.shasum.
func IntegrityFromShasum(shasum string) (Integrity, error) {
	sum, err := hex.DecodeString(strings.TrimSpace(shasum))
	if err != nil || len(sum) != sha1.Size {
		return Integrity{}, zerr.With(zerr.Wrap(ErrInvalidIntegrity, "bad shasum"), "shasum", shasum)
	}
	return Integrity{Algorithm: SHA1, Sum: sum}, nil
}

// IsZero reports whether no digest is set.
func (i Integrity) IsZero() bool {
	return i.Algorithm == "" || len(i.Sum) == 0
}

// String renders the digest in subresource integrity form.
func (i Integrity) String() string {
	if i.IsZero() {
		return ""
	}
	return string(i.Algorithm) + "-" + base64.StdEncoding.EncodeToString(i.Sum)
}

// Hex returns the hex encoding of the sum.
func (i Integrity) Hex() string {
	return hex.EncodeToString(i.Sum)
}

// NewHash returns a fresh hash for the digest's algorithm.
func (i Integrity) NewHash() (hash.Hash, error) {
	switch i.Algorithm {
	case SHA512:
		return sha512.New(), nil
	case SHA384:
		return sha512.New384(), nil
	case SHA256:
		return sha256.New(), nil
	case SHA1:
		return sha1.New(), nil //nolint:gosec // legacy shasum verification
	default:
		return nil, zerr.With(zerr.Wrap(ErrInvalidIntegrity, "unsupported algorithm"), "algorithm", string(i.Algorithm))
	}
}

// Equal reports whether both digests use the same algorithm and sum.
func (i Integrity) Equal(other Integrity) bool {
	return i.Algorithm == other.Algorithm && subtle.ConstantTimeCompare(i.Sum, other.Sum) == 1
}

// MarshalText implements encoding.TextMarshaler using the SRI form.
func (i Integrity) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler for SRI strings.
func (i *Integrity) UnmarshalText(text []byte) error {
	parsed, err := ParseIntegrity(string(text))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}
