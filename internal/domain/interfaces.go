package domain

import "context"

// Transport moves bytes to and from the compilation service
type Transport interface {
	// Submit posts the document to endpoint and returns the raw answer
	Submit(ctx context.Context, endpoint string, req CompilationRequest) (*RawResponse, error)

	// Fetch retrieves a previously referenced result from address
	Fetch(ctx context.Context, address string) (*RawResponse, error)
}

// Classifier maps a raw response onto exactly one Outcome
type Classifier interface {
	Classify(resp RawResponse) Outcome
}

// Extractor turns a diagnostic body into human-readable log text
type Extractor interface {
	Extract(d Diagnostic) string
}

// Compiler compiles a source document into an artifact
type Compiler interface {
	Compile(ctx context.Context, sourceText string) (*Artifact, error)
}
