package cube

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Domain prefixes for content-addressed digests.
// The version suffix allows the encoding to change without colliding.
const (
	DomainSnapshot = "dredger/snapshot/v1"
	DomainSequence = "dredger/sequence/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SnapshotDigest computes a stable digest of a snapshot.
//
// Struct fields marshal in declaration order and Card has no map fields, so
// encoding/json output is deterministic for equal snapshots. Timestamps are
// reduced to Unix milliseconds to avoid location differences.
func SnapshotDigest(s Snapshot) (string, error) {
	data, err := json.Marshal(struct {
		Millis int64 `json:"ms"`
		Main   Board `json:"main"`
		Maybe  Board `json:"maybe"`
	}{s.Timestamp.UnixMilli(), s.Main, s.Maybe})
	if err != nil {
		return "", fmt.Errorf("SnapshotDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSnapshot, data), nil
}

// SequenceDigest chains the digests of an ordered snapshot sequence.
// Two sequences share a digest only if every snapshot matches in order.
func SequenceDigest(snapshots []Snapshot) (string, error) {
	h := sha256.New()
	h.Write([]byte(DomainSequence))
	h.Write([]byte{0x00})
	for i, s := range snapshots {
		d, err := SnapshotDigest(s)
		if err != nil {
			return "", fmt.Errorf("snapshot %d: %w", i, err)
		}
		h.Write([]byte(d))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
