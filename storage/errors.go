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

import "errors"

var (
	// ErrNotFound is returned when a thread has no checkpoint or a passage is unknown.
	ErrNotFound = errors.New("not found")

	// ErrTransactionFailed is returned when a checkpoint save could not commit,
	// for example because of repeated write conflicts on the same thread.
	ErrTransactionFailed = errors.New("checkpoint transaction failed")

	// ErrStorageClosed is returned by repositories used after Close.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrInvalidQuery covers bad search or history arguments: wrong vector
	// dimensions, negative limits, empty thread IDs.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrSerializationFailed wraps mus-go decoding errors of stored records.
	ErrSerializationFailed = errors.New("decoding stored record")

	// ErrTruncatedData is returned when a stored record ends early or declares
	// a collection longer than the bytes that remain.
	ErrTruncatedData = errors.New("stored record is truncated")
)
