package domain

import (
	"fmt"
	"time"
)

// MediaTypePDF is the media type asserted for every returned artifact
const MediaTypePDF = "application/pdf"

// CompilationRequest carries the document for a single compile call
type CompilationRequest struct {
	SourceText string
}

// RawResponse is what the transport read off the wire, uninterpreted
type RawResponse struct {
	StatusCode  int
	ContentType string // empty when the header was absent
	Body        []byte
	ViaRelay    bool
}

// Artifact is a successfully compiled document
type Artifact struct {
	Data      []byte
	MediaType string
}

// Size returns the artifact length in bytes
func (a *Artifact) Size() int {
	if a == nil {
		return 0
	}
	return len(a.Data)
}

// BodyKind tells the diagnostic extractor how a failure body is shaped
type BodyKind string

const (
	BodyPlainText   BodyKind = "plain_text"
	BodyEncodedBlob BodyKind = "encoded_blob"
	BodyHTMLPage    BodyKind = "html_page"
)

// Diagnostic is a failure body awaiting extraction
type Diagnostic struct {
	Body []byte
	Kind BodyKind
}

// OutcomeKind identifies which variant of Outcome is populated
type OutcomeKind int

const (
	OutcomeArtifact OutcomeKind = iota + 1
	OutcomeReference
	OutcomeDiagnostic
	OutcomeTransportError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeArtifact:
		return "artifact"
	case OutcomeReference:
		return "reference"
	case OutcomeDiagnostic:
		return "diagnostic"
	case OutcomeTransportError:
		return "transport_error"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome is the classification of one RawResponse. Only the field that
// matches Kind is set.
type Outcome struct {
	Kind       OutcomeKind
	Artifact   []byte
	Token      string
	Diagnostic *Diagnostic
	Err        *CompilationError
}

func ArtifactOutcome(data []byte) Outcome {
	return Outcome{Kind: OutcomeArtifact, Artifact: data}
}

func ReferenceOutcome(token string) Outcome {
	return Outcome{Kind: OutcomeReference, Token: token}
}

func DiagnosticOutcome(body []byte, kind BodyKind) Outcome {
	return Outcome{Kind: OutcomeDiagnostic, Diagnostic: &Diagnostic{Body: body, Kind: kind}}
}

func ErrorOutcome(err *CompilationError) Outcome {
	return Outcome{Kind: OutcomeTransportError, Err: err}
}

// Validate checks that exactly the payload for Kind is populated.
func (o Outcome) Validate() error {
	set := 0
	if o.Artifact != nil {
		set++
	}
	if o.Token != "" {
		set++
	}
	if o.Diagnostic != nil {
		set++
	}
	if o.Err != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("outcome %s has %d populated variants", o.Kind, set)
	}

	var ok bool
	switch o.Kind {
	case OutcomeArtifact:
		ok = o.Artifact != nil
	case OutcomeReference:
		ok = o.Token != ""
	case OutcomeDiagnostic:
		ok = o.Diagnostic != nil
	case OutcomeTransportError:
		ok = o.Err != nil
	}
	if !ok {
		return fmt.Errorf("outcome %s does not carry its own payload", o.Kind)
	}
	return nil
}

// CompileReport summarises a finished compile call for logs and surfaces
type CompileReport struct {
	TraceID  string
	Backend  string
	Resolved bool
	Duration time.Duration
	Bytes    int
	Err      *CompilationError
}
