package rag

import (
	"fmt"
	"log/slog"
	"strings"
)

const (
	// DefaultTopK is the number of passages the retriever asks for.
	DefaultTopK = 4

	// DefaultSubject describes the indexed documents in the routing prompt.
	DefaultSubject = "the indexed documents"
)

type options struct {
	logger        *slog.Logger
	subject       string
	topK          int
	minSimilarity float32
}

func defaultOptions(component string) options {
	return options{
		logger:  slog.Default().With("component", component),
		subject: DefaultSubject,
		topK:    DefaultTopK,
	}
}

func (o *options) apply(opts []Option) error {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return err
		}
	}
	return nil
}

// Option configures the nodes. Each node ignores options it has no use for,
// so one option list can be handed to all of them.
type Option func(*options) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger != nil {
			o.logger = logger
		}
		return nil
	}
}

// WithSubject sets the description of the indexed documents used by the router.
func WithSubject(subject string) Option {
	return func(o *options) error {
		subject = strings.TrimSpace(subject)
		if subject == "" {
			return fmt.Errorf("%w: empty subject", ErrInvalidOption)
		}
		o.subject = subject
		return nil
	}
}

// WithTopK sets how many passages the retriever returns at most.
func WithTopK(k int) Option {
	return func(o *options) error {
		if k <= 0 {
			return fmt.Errorf("%w: top-k must be positive, got %d", ErrInvalidOption, k)
		}
		o.topK = k
		return nil
	}
}

// WithMinSimilarity drops hits scoring below threshold. Default is 0.
func WithMinSimilarity(threshold float32) Option {
	return func(o *options) error {
		if threshold < -1 || threshold > 1 {
			return fmt.Errorf("%w: min similarity %v outside [-1, 1]", ErrInvalidOption, threshold)
		}
		o.minSimilarity = threshold
		return nil
	}
}
