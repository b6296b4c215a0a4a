package core

import (
	"encoding/binary"
	"maps"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// StateVersion is the schema version of ConversationState.
// Bump it whenever a field is added, removed or changes meaning.
const StateVersion uint32 = 1

// ID is a unique identifier for domain entities.
// Passage IDs are content hashes so identical chunks collapse into one record.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Passage is a chunk of source text plus metadata, the unit stored in and
// retrieved from the vector index.
type Passage struct {
	Id       ID
	Content  string
	Metadata map[string]string // Opaque source metadata (e.g. "source", "title")
}

// Clone returns a deep copy of the passage.
func (p Passage) Clone() Passage {
	p.Metadata = maps.Clone(p.Metadata)
	return p
}

// IndexedPassage is a passage together with its embedding, as written by ingestion.
type IndexedPassage struct {
	Passage
	Vector []float32
}

// ScoredPassage is a vector index hit.
type ScoredPassage struct {
	Passage
	Score float32
}

// ConversationState is the record threaded through one traversal of the
// conversation graph.
//
// Optional fields stay unset until the node that produces them has run:
//   - NeedsRetrieval is nil until routing completes
//   - Context is nil until retrieval runs; a non-nil empty slice means
//     retrieval ran and found nothing
//   - Answer is nil until generation completes
type ConversationState struct {
	Version        uint32
	Question       string
	Context        []Passage
	Answer         *string
	NeedsRetrieval *bool
}

// NewConversationState creates a fresh state for one incoming question.
func NewConversationState(question string) *ConversationState {
	return &ConversationState{
		Version:  StateVersion,
		Question: question,
	}
}

// Clone returns a deep copy of the state.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	c := &ConversationState{
		Version:  s.Version,
		Question: s.Question,
	}
	if s.Context != nil {
		c.Context = make([]Passage, len(s.Context))
		for i, p := range s.Context {
			c.Context[i] = p.Clone()
		}
	}
	if s.Answer != nil {
		answer := *s.Answer
		c.Answer = &answer
	}
	if s.NeedsRetrieval != nil {
		needs := *s.NeedsRetrieval
		c.NeedsRetrieval = &needs
	}
	return c
}

// HasContext reports whether retrieval produced at least one passage.
func (s *ConversationState) HasContext() bool {
	return len(s.Context) > 0
}

// RetrievalRequested reports whether the router selected the retrieval path.
func (s *ConversationState) RetrievalRequested() bool {
	return s.NeedsRetrieval != nil && *s.NeedsRetrieval
}

// Apply merges a node's partial output into the state.
// Only the fields set in the update change; everything else is preserved.
func (s *ConversationState) Apply(update StateUpdate) {
	if update.NeedsRetrieval != nil {
		needs := *update.NeedsRetrieval
		s.NeedsRetrieval = &needs
	}
	if update.Context != nil {
		s.Context = make([]Passage, len(update.Context))
		for i, p := range update.Context {
			s.Context[i] = p.Clone()
		}
	}
	if update.Answer != nil {
		answer := *update.Answer
		s.Answer = &answer
	}
}

// StateUpdate is the partial output of a graph node.
// A nil field leaves the corresponding state field untouched.
type StateUpdate struct {
	NeedsRetrieval *bool
	Context        []Passage // nil means "not set", empty means "retrieved nothing"
	Answer         *string
}

// IsEmpty reports whether the update changes nothing.
func (u StateUpdate) IsEmpty() bool {
	return u.NeedsRetrieval == nil && u.Context == nil && u.Answer == nil
}

// Fields returns the names of the fields the update sets, for logging.
func (u StateUpdate) Fields() []string {
	var fields []string
	if u.NeedsRetrieval != nil {
		fields = append(fields, "needsRetrieval")
	}
	if u.Context != nil {
		fields = append(fields, "context")
	}
	if u.Answer != nil {
		fields = append(fields, "answer")
	}
	return fields
}

// ThreadCheckpoint is the persisted snapshot of a conversation thread.
// Sequence increases by one on every save for the same thread.
type ThreadCheckpoint struct {
	ThreadID  string
	Sequence  uint64
	Node      string // Node whose execution produced this state
	State     ConversationState
	UpdatedAt time.Time
}

// Bool returns a pointer to v.
func Bool(v bool) *bool {
	return &v
}

// String returns a pointer to v.
func String(v string) *string {
	return &v
}
