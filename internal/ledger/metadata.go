package ledger

import (
	"errors"
	"fmt"
)

// EntryID identifies one entry within a ledger.
type EntryID int64

// InvalidEntryID is the sentinel for "no such entry id".
const InvalidEntryID EntryID = -1

// BookieID is the dialable address of a storage node.
type BookieID string

// Segment is a maximal span of consecutive entries written under one
// fixed ensemble. It covers [FirstEntry, nextSegment.FirstEntry-1], or
// the tail of the ledger for the final segment.
type Segment struct {
	FirstEntry EntryID  // FirstEntry is the first entry id of the segment
	Ensemble   []BookieID // Ensemble is the ordered list of replica addresses
}

// Metadata is the read-only description of a ledger's replica layout.
type Metadata struct {
	LedgerID      int64     // LedgerID identifies the ledger
	WriteQuorum   int       // WriteQuorum is how many replicas receive each entry
	AckQuorum     int       // AckQuorum is how many acks make an entry durable
	Closed        bool      // Closed indicates the ledger can no longer be written
	LastConfirmed EntryID   // LastConfirmed is the highest durably written entry id
	Segments      []Segment // Segments is the ensemble history, ordered by FirstEntry
}

var (
	ErrNoSegments       = errors.New("metadata has no segments")
	ErrSegmentOrder     = errors.New("segment start ids are not strictly increasing")
	ErrEnsembleTooSmall = errors.New("ensemble smaller than write quorum")
	ErrQuorumInvalid    = errors.New("quorum sizes invalid")
)

// Validate checks the structural invariants of the metadata.
func (m *Metadata) Validate() error {
	if len(m.Segments) == 0 {
		return ErrNoSegments
	}

	if m.WriteQuorum < 1 || m.AckQuorum < 1 || m.AckQuorum > m.WriteQuorum {
		return fmt.Errorf("%w: write=%d ack=%d", ErrQuorumInvalid, m.WriteQuorum, m.AckQuorum)
	}

	prev := EntryID(-1)

	for i, seg := range m.Segments {
		if seg.FirstEntry < 0 || seg.FirstEntry <= prev {
			return fmt.Errorf("%w: segment %d starts at %d", ErrSegmentOrder, i, seg.FirstEntry)
		}

		if len(seg.Ensemble) < m.WriteQuorum {
			return fmt.Errorf("%w: segment %d has %d replicas, quorum %d",
				ErrEnsembleTooSmall, i, len(seg.Ensemble), m.WriteQuorum)
		}

		prev = seg.FirstEntry
	}

	return nil
}
