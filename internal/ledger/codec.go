package ledger

import (
	"encoding/binary"
	"fmt"
)

// Binary metadata framing, big-endian throughout:
//
//	[8B ledgerID] [4B writeQuorum] [4B ackQuorum] [1B closed]
//	[8B lastConfirmed] [4B segmentCount]
//	per segment: [8B firstEntry] [4B replicaCount]
//	             per replica: [2B addrLen] [addr]

// EncodeMetadata encodes metadata for storage in the registry.
func EncodeMetadata(m *Metadata) []byte {
	size := 8 + 4 + 4 + 1 + 8 + 4

	for _, seg := range m.Segments {
		size += 8 + 4
		for _, b := range seg.Ensemble {
			size += 2 + len(b)
		}
	}

	buf := make([]byte, 0, size)

	buf = binary.BigEndian.AppendUint64(buf, uint64(m.LedgerID))
	buf = binary.BigEndian.AppendUint32(buf, uint32(m.WriteQuorum))
	buf = binary.BigEndian.AppendUint32(buf, uint32(m.AckQuorum))

	if m.Closed {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}

	buf = binary.BigEndian.AppendUint64(buf, uint64(m.LastConfirmed))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(m.Segments)))

	for _, seg := range m.Segments {
		buf = binary.BigEndian.AppendUint64(buf, uint64(seg.FirstEntry))
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(seg.Ensemble)))

		for _, b := range seg.Ensemble {
			buf = binary.BigEndian.AppendUint16(buf, uint16(len(b)))
			buf = append(buf, b...)
		}
	}

	return buf
}

// DecodeMetadata decodes metadata produced by EncodeMetadata.
func DecodeMetadata(data []byte) (*Metadata, error) {
	const header = 8 + 4 + 4 + 1 + 8 + 4

	if len(data) < header {
		return nil, fmt.Errorf("metadata too short: %d < %d", len(data), header)
	}

	m := &Metadata{
		LedgerID:      int64(binary.BigEndian.Uint64(data[0:8])),
		WriteQuorum:   int(binary.BigEndian.Uint32(data[8:12])),
		AckQuorum:     int(binary.BigEndian.Uint32(data[12:16])),
		Closed:        data[16] == 1,
		LastConfirmed: EntryID(binary.BigEndian.Uint64(data[17:25])),
	}

	segmentCount := binary.BigEndian.Uint32(data[25:29])
	offset := header

	m.Segments = make([]Segment, 0, segmentCount)

	for i := uint32(0); i < segmentCount; i++ {
		if len(data) < offset+12 {
			return nil, fmt.Errorf("segment %d truncated", i)
		}

		seg := Segment{
			FirstEntry: EntryID(binary.BigEndian.Uint64(data[offset : offset+8])),
		}

		replicaCount := binary.BigEndian.Uint32(data[offset+8 : offset+12])
		offset += 12

		seg.Ensemble = make([]BookieID, 0, replicaCount)

		for j := uint32(0); j < replicaCount; j++ {
			if len(data) < offset+2 {
				return nil, fmt.Errorf("segment %d replica %d truncated", i, j)
			}

			addrLen := int(binary.BigEndian.Uint16(data[offset : offset+2]))
			offset += 2

			if len(data) < offset+addrLen {
				return nil, fmt.Errorf("segment %d replica %d address truncated", i, j)
			}

			seg.Ensemble = append(seg.Ensemble, BookieID(data[offset:offset+addrLen]))
			offset += addrLen
		}

		m.Segments = append(m.Segments, seg)
	}

	return m, nil
}
