package badger

import (
	"encoding/binary"

	"github.com/poiesic/docpipe/core"
)

// Key prefixes for different data types. Each carries a trailing separator
// so no prefix is a prefix of another.
const (
	resultRecordPrefix  = "resrec:"
	resultDatePrefix    = "resdat:"
	resultRequestPrefix = "resreq:"
	resultIDSeq         = "resseq"
)

// makeResultKey generates a key for a result record by ID.
func makeResultKey(id core.ID) []byte {
	buf := make([]byte, len(resultRecordPrefix)+8)
	offset := copy(buf, resultRecordPrefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeResultDateKey generates a composite key for the insertion date index.
// Format: prefix:timestamp:id
func makeResultDateKey(ts int64, id core.ID) []byte {
	buf := make([]byte, len(resultDatePrefix)+16)
	offset := copy(buf, resultDatePrefix)
	binary.BigEndian.PutUint64(buf[offset:], sortableTime(ts))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makePartialResultDateKey generates a partial key for date range queries.
// Format: prefix:timestamp
func makePartialResultDateKey(ts int64) []byte {
	buf := make([]byte, len(resultDatePrefix)+8)
	offset := copy(buf, resultDatePrefix)
	binary.BigEndian.PutUint64(buf[offset:], sortableTime(ts))
	return buf
}

// sortableTime maps a signed timestamp onto an unsigned value whose
// big-endian bytes sort in time order, including times before 1970.
func sortableTime(ts int64) uint64 {
	return uint64(ts) ^ (1 << 63)
}

// makeResultRequestKey generates a key for the request ID index.
func makeResultRequestKey(requestID string) []byte {
	buf := make([]byte, len(resultRequestPrefix)+len(requestID))
	offset := copy(buf, resultRequestPrefix)
	copy(buf[offset:], requestID)
	return buf
}
