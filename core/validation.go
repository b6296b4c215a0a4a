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

import (
	"fmt"
	"strings"
)

// MaxThreadIDLength bounds thread identifiers so they fit comfortably in storage keys.
const MaxThreadIDLength = 256

// ValidateThreadID validates a conversation thread identifier.
//
// Validation rules:
//   - Must not be empty or whitespace only
//   - Must not exceed MaxThreadIDLength bytes
func ValidateThreadID(threadID string) error {
	if strings.TrimSpace(threadID) == "" {
		return fmt.Errorf("%w: thread id is empty", ErrInvalidThreadID)
	}
	if len(threadID) > MaxThreadIDLength {
		return fmt.Errorf("%w: length %d exceeds %d", ErrInvalidThreadID, len(threadID), MaxThreadIDLength)
	}
	return nil
}

// ValidateQuestion checks that a question has non-whitespace text.
func ValidateQuestion(question string) error {
	if strings.TrimSpace(question) == "" {
		return ErrEmptyQuestion
	}
	return nil
}

// ValidateState validates a ConversationState according to domain rules.
//
// Validation rules:
//   - Version must equal StateVersion
//   - Question must not be empty
//
// NOT validated (populated by graph nodes):
//   - NeedsRetrieval, Context, Answer
func ValidateState(state *ConversationState) error {
	if state == nil {
		return fmt.Errorf("%w: state is nil", ErrInvalidState)
	}

	if state.Version != StateVersion {
		return fmt.Errorf("%w: %w: got %d, want %d", ErrInvalidState, ErrUnsupportedVersion, state.Version, StateVersion)
	}

	if err := ValidateQuestion(state.Question); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	}

	return nil
}

// ValidatePassage validates a Passage according to domain rules.
//
// Validation rules:
//   - Content must not be empty
func ValidatePassage(passage *Passage) error {
	if passage == nil {
		return fmt.Errorf("%w: passage is nil", ErrInvalidPassage)
	}

	if strings.TrimSpace(passage.Content) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidPassage, ErrEmptyContent)
	}

	return nil
}
