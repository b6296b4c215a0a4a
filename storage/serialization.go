// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/ragchat/core"
)

// serializer is the method set shared by the mus-go primitive serializers.
type serializer[T any] interface {
	Marshal(v T, bs []byte) (n int)
	Unmarshal(bs []byte) (v T, n int, err error)
	Size(v T) (size int)
}

type encoder struct {
	bs []byte
}

func put[T any](e *encoder, s serializer[T], v T) {
	start := len(e.bs)
	size := s.Size(v)
	e.bs = slices.Grow(e.bs, size)[:start+size]
	s.Marshal(v, e.bs[start:])
}

type decoder struct {
	bs  []byte
	n   int
	err error
}

func get[T any](d *decoder, s serializer[T]) (v T) {
	if d.err != nil {
		return v
	}
	if d.n >= len(d.bs) {
		d.err = ErrTruncatedData
		return v
	}
	v, n, err := s.Unmarshal(d.bs[d.n:])
	if err != nil {
		d.err = fmt.Errorf("%w: %w", ErrSerializationFailed, err)
		return v
	}
	d.n += n
	return v
}

// length reads a collection length and rejects values that cannot fit in the
// remaining input, given the minimum encoded size of one element.
func (d *decoder) length(minElemSize int) int {
	l := get(d, varint.Int)
	if d.err != nil {
		return 0
	}
	if l < 0 || l > (len(d.bs)-d.n)/minElemSize {
		d.err = ErrTruncatedData
		return 0
	}
	return l
}

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	var e encoder
	put(&e, varint.Uint64, uint64(id))
	return e.bs
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	d := decoder{bs: data}
	id := get(&d, varint.Uint64)
	return core.ID(id), d.err
}

// MarshalThreadCheckpoint serializes a ThreadCheckpoint to bytes.
// Nil and empty context are encoded distinctly, as are unset optional fields.
func MarshalThreadCheckpoint(checkpoint *core.ThreadCheckpoint) []byte {
	var e encoder
	put(&e, ord.String, checkpoint.ThreadID)
	put(&e, varint.Uint64, checkpoint.Sequence)
	put(&e, ord.String, checkpoint.Node)
	put(&e, varint.Int64, checkpoint.UpdatedAt.UnixMicro())
	encodeState(&e, &checkpoint.State)
	return e.bs
}

// UnmarshalThreadCheckpoint deserializes a ThreadCheckpoint from bytes.
func UnmarshalThreadCheckpoint(data []byte) (*core.ThreadCheckpoint, error) {
	d := decoder{bs: data}
	checkpoint := &core.ThreadCheckpoint{
		ThreadID: get(&d, ord.String),
		Sequence: get(&d, varint.Uint64),
		Node:     get(&d, ord.String),
	}
	checkpoint.UpdatedAt = time.UnixMicro(get(&d, varint.Int64)).UTC()
	decodeState(&d, &checkpoint.State)
	if d.err != nil {
		return nil, d.err
	}
	return checkpoint, nil
}

// MarshalState serializes a ConversationState to bytes.
func MarshalState(state *core.ConversationState) []byte {
	var e encoder
	encodeState(&e, state)
	return e.bs
}

// UnmarshalState deserializes a ConversationState from bytes.
func UnmarshalState(data []byte) (*core.ConversationState, error) {
	d := decoder{bs: data}
	var state core.ConversationState
	decodeState(&d, &state)
	if d.err != nil {
		return nil, d.err
	}
	return &state, nil
}

// MarshalIndexedPassage serializes a passage and its embedding to bytes.
func MarshalIndexedPassage(passage *core.IndexedPassage) []byte {
	var e encoder
	encodePassage(&e, &passage.Passage)
	put(&e, varint.Int, len(passage.Vector))
	for _, f := range passage.Vector {
		put(&e, raw.Float32, f)
	}
	return e.bs
}

// UnmarshalIndexedPassage deserializes a passage and its embedding from bytes.
func UnmarshalIndexedPassage(data []byte) (*core.IndexedPassage, error) {
	d := decoder{bs: data}
	passage := &core.IndexedPassage{}
	decodePassage(&d, &passage.Passage)
	if l := d.length(4); l > 0 {
		passage.Vector = make([]float32, l)
		for i := range passage.Vector {
			passage.Vector[i] = get(&d, raw.Float32)
		}
	}
	if d.err != nil {
		return nil, d.err
	}
	return passage, nil
}

func encodeState(e *encoder, state *core.ConversationState) {
	put(e, varint.Uint32, state.Version)
	put(e, ord.String, state.Question)

	put(e, ord.Bool, state.Context != nil)
	if state.Context != nil {
		put(e, varint.Int, len(state.Context))
		for i := range state.Context {
			encodePassage(e, &state.Context[i])
		}
	}

	put(e, ord.Bool, state.Answer != nil)
	if state.Answer != nil {
		put(e, ord.String, *state.Answer)
	}

	put(e, ord.Bool, state.NeedsRetrieval != nil)
	if state.NeedsRetrieval != nil {
		put(e, ord.Bool, *state.NeedsRetrieval)
	}
}

func decodeState(d *decoder, state *core.ConversationState) {
	state.Version = get(d, varint.Uint32)
	state.Question = get(d, ord.String)

	if get(d, ord.Bool) {
		l := d.length(3)
		state.Context = make([]core.Passage, l)
		for i := range state.Context {
			decodePassage(d, &state.Context[i])
		}
	}

	if get(d, ord.Bool) {
		state.Answer = core.String(get(d, ord.String))
	}

	if get(d, ord.Bool) {
		state.NeedsRetrieval = core.Bool(get(d, ord.Bool))
	}
}

func encodePassage(e *encoder, passage *core.Passage) {
	put(e, varint.Uint64, uint64(passage.Id))
	put(e, ord.String, passage.Content)
	put(e, ord.Bool, passage.Metadata != nil)
	if passage.Metadata == nil {
		return
	}
	put(e, varint.Int, len(passage.Metadata))
	keys := slices.Sorted(maps.Keys(passage.Metadata))
	for _, k := range keys {
		put(e, ord.String, k)
		put(e, ord.String, passage.Metadata[k])
	}
}

func decodePassage(d *decoder, passage *core.Passage) {
	passage.Id = core.ID(get(d, varint.Uint64))
	passage.Content = get(d, ord.String)
	if !get(d, ord.Bool) {
		return
	}
	l := d.length(2)
	passage.Metadata = make(map[string]string, l)
	for range l {
		k := get(d, ord.String)
		passage.Metadata[k] = get(d, ord.String)
	}
}
