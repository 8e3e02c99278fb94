// Package idhash derives deterministic identifiers from record content.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"civinigrani/internal/domain"
)

// ComputeRecordID computes a deterministic record_id using SHA256.
// Formula: SHA256(district|YYYY-MM)
// Returns hex-encoded hash (64 characters).
func ComputeRecordID(district string, month time.Time) string {
	data := fmt.Sprintf("%s|%s", district, month.UTC().Format(domain.MonthLayout))
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// Fingerprint hashes parts joined by "|". Order matters.
func Fingerprint(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(hash[:])
}

// DataVersion hashes the derived PRGI table. Input order does not matter,
// so two runs over the same data agree regardless of how rows were read.
// Returns the first 12 hex characters.
func DataVersion(records []domain.PRGIRecord) string {
	parts := make([]string, len(records))
	for i, r := range records {
		parts[i] = fmt.Sprintf("%s|%s|%.6f|%.6f|%.6f",
			r.District, r.Month.Format(domain.MonthLayout), r.Allocation, r.Distribution, r.PRGI)
	}
	sort.Strings(parts)

	h := sha256.New()
	h.Write([]byte("PRGI\n"))
	h.Write([]byte(strings.Join(parts, "\n")))
	return hex.EncodeToString(h.Sum(nil))[:12]
}
