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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidState indicates a ConversationState failed validation.
	ErrInvalidState = errors.New("invalid conversation state")

	// ErrInvalidPassage indicates a Passage failed validation.
	ErrInvalidPassage = errors.New("invalid passage")

	// ErrInvalidThreadID indicates a thread identifier failed validation.
	ErrInvalidThreadID = errors.New("invalid thread id")

	// ErrEmptyQuestion indicates the question text is empty.
	ErrEmptyQuestion = errors.New("question cannot be empty")

	// ErrEmptyContent indicates the passage Content field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrUnsupportedVersion indicates a state record written with a different schema version.
	ErrUnsupportedVersion = errors.New("unsupported state version")

	// ErrIndexUnavailable indicates the vector index has not finished ingestion
	// or cannot be reached.
	ErrIndexUnavailable = errors.New("vector index unavailable")
)
