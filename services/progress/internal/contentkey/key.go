// Package contentkey derives the primary key of a learner content-state record.
package contentkey

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	// NotAvailable replaces a missing course or batch identifier.
	NotAvailable = "N/A"
	// Delimiter joins the identity components before hashing.
	Delimiter = "##"
)

// Derive returns the stable key for a (user, content, course, batch) tuple.
// Empty course and batch ids map to NotAvailable, so a report without them
// lands on the same key as one that sends "N/A" explicitly.
func Derive(userID, contentID, courseID, batchID string) string {
	courseID = OrNotAvailable(courseID)
	batchID = OrNotAvailable(batchID)

	joined := strings.Join([]string{userID, contentID, courseID, batchID}, Delimiter)
	sum := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(sum[:])
}

// OrNotAvailable returns id, or NotAvailable when id is blank.
func OrNotAvailable(id string) string {
	if strings.TrimSpace(id) == "" {
		return NotAvailable
	}
	return id
}
