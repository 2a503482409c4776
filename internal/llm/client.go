// Package llm provides the AI fallback stage: a narrow Resolver interface
// and an OpenAI chat-completions implementation of it. The classifier
// depends only on Resolver, so AI transport failures and test doubles
// stay on this side of the boundary.
package llm

import "context"

// Resolver resolves a sub-batch of uncertain bios to yes/no labels.
type Resolver interface {
	// Resolve sends the prompt plus a numbered list of bios and returns
	// the labels it could parse from the response, keyed by the 1-based
	// number each bio was sent under. A missing key means the model gave
	// no usable answer for that bio; the caller decides the fallback.
	// Values are always "yes" or "no".
	Resolve(ctx context.Context, prompt string, bios []string) (map[int]string, error)
}
