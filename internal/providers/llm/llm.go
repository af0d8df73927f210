package llm

import "context"

type Provider interface {
	// Complete returns the model's full text answer for a prompt.
	Complete(ctx context.Context, prompt string) (string, error)
	Close() error
}
