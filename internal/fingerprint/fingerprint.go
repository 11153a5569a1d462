// Package fingerprint derives the content-addressed keys used by the dedup
// stores.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Size is the length of every digest returned by Sum.
const Size = sha256.Size * 2

// Sum returns the lowercase hex SHA-256 digest of key.
func Sum(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

// Exact is the exact-repeat fingerprint for an author and an already
// normalized body. Author ids never contain '|' so the join is unambiguous.
func Exact(authorID, normalized string) string {
	return Sum(authorID + "|" + normalized)
}

// Repost is the author-independent content hash persisted as ad_hash.
func Repost(canonical string) string {
	return Sum(canonical)
}

// RepostKey scopes a repost hash to its author.
func RepostKey(authorID, repostHash string) string {
	return authorID + "_" + repostHash
}
