package models

import "strings"

// BlobRefPrefix marks a record field as pointing into the blob store rather
// than at an external URL. The literal is kept for compatibility with data
// written by the original client.
const BlobRefPrefix = "indexeddb:"

// BlobRef builds a blob-store reference for the given blob id.
func BlobRef(id string) string {
	return BlobRefPrefix + id
}

// ParseBlobRef extracts the blob id from a reference. The second return is
// false for plain URLs, which callers pass through unchanged.
func ParseBlobRef(s string) (string, bool) {
	if !strings.HasPrefix(s, BlobRefPrefix) {
		return "", false
	}
	return s[len(BlobRefPrefix):], true
}
