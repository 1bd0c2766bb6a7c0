package history

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ResolveIdempotencyKey returns the deduplication key for a write attempt.
//
// An explicit key always wins: it lets an HTTP-level retry of the same
// logical request collapse to one event regardless of payload drift. With no
// explicit key, a caller-supplied nonce is combined with the identifying
// tuple and hashed, so equal inputs always yield equal keys. With neither,
// the write carries no key and is not deduplicated (idempotency is opt-in).
//
// Pure computation, no I/O, no randomness.
func ResolveIdempotencyKey(req RecordRequest) string {
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		return key
	}
	nonce := strings.TrimSpace(req.IdempotencyNonce)
	if nonce == "" {
		return ""
	}
	return DeriveIdempotencyKey(nonce, req)
}

// DeriveIdempotencyKey hashes a nonce together with the identifying tuple
// (companyID, targetType, targetID, action, actorUserID). The separator keeps
// field boundaries unambiguous so distinct tuples cannot collide by
// concatenation.
func DeriveIdempotencyKey(nonce string, req RecordRequest) string {
	parts := []string{
		nonce,
		req.CompanyID.String(),
		string(req.TargetType),
		req.TargetID,
		string(req.Action),
		req.ActorUserID.String(),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}
