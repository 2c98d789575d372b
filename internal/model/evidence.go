package model

import (
	"time"

	"github.com/google/uuid"
)

// InferenceSummary is the upstream object-detection summary attached to an
// evidence record. Opaque to fieldmark beyond being hashed and stored.
type InferenceSummary struct {
	Labels     []string `json:"labels"`
	RiskLevel  string   `json:"risk_level,omitempty"`
	Confidence float64  `json:"confidence"`
}

// ProvenanceEntry is one link in an evidence record's custody chain.
type ProvenanceEntry struct {
	Action     string    `json:"action"`
	Actor      string    `json:"actor"`
	Timestamp  time.Time `json:"timestamp"`
	HashBefore string    `json:"hash_before"`
	HashAfter  string    `json:"hash_after"`
}

// EvidenceRecord is an append-only, hash-linked chain-of-custody record for
// one asset. AssetHash is the current chain head: it starts as the SHA-256 of
// the asset bytes (ContentHash) and is recomputed on every append.
type EvidenceRecord struct {
	ID          uuid.UUID         `json:"id"`
	ContentHash string            `json:"content_hash"`
	AssetHash   string            `json:"asset_hash"`
	FileName    string            `json:"file_name,omitempty"`
	Analyst     string            `json:"analyst"`
	Inference   InferenceSummary  `json:"ai_inference_summary"`
	Signature   string            `json:"signature"`
	Timestamp   time.Time         `json:"timestamp"`
	Provenance  []ProvenanceEntry `json:"provenance"`
}

// TimestampISO returns the record timestamp in RFC 3339 UTC form.
func (r EvidenceRecord) TimestampISO() string {
	return r.Timestamp.UTC().Format(time.RFC3339Nano)
}
