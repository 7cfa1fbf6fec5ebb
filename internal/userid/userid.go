// Package userid maps external account identifiers to the canonical user key.
//
// Identity providers hand out subjects in different shapes: some are already
// UUIDs, Google returns a long numeric string. Every record in the datastore is
// keyed by a UUID-shaped string, so the raw subject is normalized once per
// request and the result is used as the join value for all user scoped queries.
//
// Non-UUID subjects are hashed with MD5 and the 32 hex digits are grouped as
// 8-4-4-4-12. The digest is not a security boundary, only a stable mapping.
// Changing the algorithm would orphan every stored row, so it is a data
// migration and never a transparent upgrade.
package userid

import (
	"crypto/md5"
	"errors"
	"regexp"

	"github.com/google/uuid"
)

// ErrEmptyID is returned for an empty raw identifier.
var ErrEmptyID = errors.New("userid: empty identifier")

// canonical matches exactly the hyphenated five-group form. uuid.Parse is not
// used here because it also accepts braces, urn: prefixes and the 32-digit form.
var canonical = regexp.MustCompile(`^(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// IsCanonical reports whether s is already a hyphenated UUID string.
func IsCanonical(s string) bool {
	return canonical.MatchString(s)
}

// Normalize returns rawID unchanged when it is already a UUID (case is kept),
// otherwise the MD5 digest of its bytes formatted as a UUID.
func Normalize(rawID string) (string, error) {
	if rawID == "" {
		return "", ErrEmptyID
	}
	if IsCanonical(rawID) {
		return rawID, nil
	}
	return fromDigest(rawID), nil
}

// MustNormalize is Normalize for inputs known to be non-empty.
func MustNormalize(rawID string) string {
	id, err := Normalize(rawID)
	if err != nil {
		panic(err)
	}
	return id
}

// fromDigest keeps the digest bytes verbatim. uuid.NewMD5 is not a substitute:
// it hashes a namespace too and overwrites the version and variant bits.
func fromDigest(rawID string) string {
	return uuid.UUID(md5.Sum([]byte(rawID))).String()
}
