package llm

import "context"

// Request is the assembled payload for one remote analysis call: the
// instruction text plus exactly one capture (image bytes or free-text
// ingredients). The instruction is free-form and versioned by the prompt
// package; transports must not depend on its content.
type Request struct {
	Instruction string
	ImageData   []byte
	MimeType    string
	Ingredients string
}

// HasImage reports whether the request carries an image capture.
func (r Request) HasImage() bool {
	return len(r.ImageData) > 0
}

// Client abstracts the generative-model provider used by the scanner.
// Implementations must be concurrency-safe if used across goroutines.
type Client interface {
	// AnalyzeLabel sends the assembled request and returns the raw model
	// output: direct JSON, plain text followed by a JSON_DATA block, or
	// arbitrary text. Callers must not assume determinism.
	AnalyzeLabel(ctx context.Context, req Request) (string, error)
	// SourceName returns a short provider label (e.g. "Gemini", "ChatGPT").
	SourceName() string
}
