package core

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateThreadID(t *testing.T) {
	tests := []struct {
		name     string
		threadID string
		wantErr  error
	}{
		{"valid", "thread-1", nil},
		{"uuid", "9b2f3c1e-8a4d-4c2b-9f77-1d0e5a6b7c8d", nil},
		{"empty", "", ErrInvalidThreadID},
		{"whitespace only", "   ", ErrInvalidThreadID},
		{"too long", strings.Repeat("a", MaxThreadIDLength+1), ErrInvalidThreadID},
		{"at limit", strings.Repeat("a", MaxThreadIDLength), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateThreadID(tt.threadID)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateThreadID() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateThreadID() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateState(t *testing.T) {
	tests := []struct {
		name    string
		state   *ConversationState
		wantErr error
	}{
		{
			name:    "fresh state",
			state:   NewConversationState("What's 2+2?"),
			wantErr: nil,
		},
		{
			name: "complete state",
			state: &ConversationState{
				Version:        StateVersion,
				Question:       "What are her primary skills?",
				Context:        []Passage{{Content: "skills"}},
				Answer:         String("Go"),
				NeedsRetrieval: Bool(true),
			},
			wantErr: nil,
		},
		{
			name:    "nil state",
			state:   nil,
			wantErr: ErrInvalidState,
		},
		{
			name:    "empty question",
			state:   NewConversationState("  "),
			wantErr: ErrEmptyQuestion,
		},
		{
			name:    "wrong version",
			state:   &ConversationState{Version: StateVersion + 1, Question: "q"},
			wantErr: ErrUnsupportedVersion,
		},
		{
			name:    "zero version",
			state:   &ConversationState{Question: "q"},
			wantErr: ErrUnsupportedVersion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateState(tt.state)

			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateState() error = %v, want nil", err)
				}
				return
			}

			if err == nil {
				t.Errorf("ValidateState() error = nil, want %v", tt.wantErr)
				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateState() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidState) {
				t.Errorf("ValidateState() error = %v, should wrap ErrInvalidState", err)
			}
		})
	}
}

func TestValidatePassage(t *testing.T) {
	tests := []struct {
		name    string
		passage *Passage
		wantErr error
	}{
		{"valid", &Passage{Content: "text"}, nil},
		{"valid with metadata", &Passage{Content: "text", Metadata: map[string]string{"source": "x"}}, nil},
		{"nil", nil, ErrInvalidPassage},
		{"empty content", &Passage{}, ErrEmptyContent},
		{"whitespace content", &Passage{Content: "\n\t"}, ErrEmptyContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassage(tt.passage)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidatePassage() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidatePassage() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
