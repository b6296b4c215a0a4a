package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/ragchat/core"
)

// Key prefixes for different data types
const (
	passagePrefix          = "psg:"
	threadCheckpointPrefix = "thrchk:"
	threadHistoryPrefix    = "thrhis:"
)

// makePassageKey generates a key for a passage by ID.
func makePassageKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s%d", passagePrefix, id))
}

// makeThreadCheckpointKey generates the key holding the latest checkpoint of a thread.
func makeThreadCheckpointKey(threadID string) []byte {
	return append([]byte(threadCheckpointPrefix), threadID...)
}

// makeThreadHistoryPrefix generates the prefix shared by all history entries of a thread.
// Format: prefix:len(threadID):threadID
// The length keeps "a" from matching the entries of a thread named "a:b".
func makeThreadHistoryPrefix(threadID string) []byte {
	buf := make([]byte, 0, len(threadHistoryPrefix)+2+len(threadID))
	buf = append(buf, threadHistoryPrefix...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(threadID)))
	return append(buf, threadID...)
}

// makeThreadHistoryKey generates the key of one history entry.
// Format: historyPrefix:sequence
// The sequence is written in BigEndian order so lexicographic sort follows save order.
func makeThreadHistoryKey(threadID string, sequence uint64) []byte {
	return binary.BigEndian.AppendUint64(makeThreadHistoryPrefix(threadID), sequence)
}
