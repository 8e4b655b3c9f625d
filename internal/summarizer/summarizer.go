// Package summarizer abstracts the external text-generation dependency
// that condenses article bodies into short synopses.
package summarizer

import "context"

// Summarizer produces a synopsis for the given contents under a fixed
// system instruction.
type Summarizer interface {
	Summarize(ctx context.Context, instruction string, contents string) (string, error)
}

// Func adapts a plain function to the Summarizer interface.
type Func func(ctx context.Context, instruction string, contents string) (string, error)

// Summarize calls f.
func (f Func) Summarize(ctx context.Context, instruction string, contents string) (string, error) {
	return f(ctx, instruction, contents)
}
