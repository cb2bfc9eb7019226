// Package classify decides what a compilation service response means.
//
// The services this client talks to answer 200 OK for failed compilations
// as well as successful ones, so status codes are only trusted for
// infrastructure failures and for requests the service refused. Everything
// else is decided from the declared content type and, when that is missing
// or generic, from the payload itself.
package classify

import (
	"bytes"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/spherical/pdf-compiler/internal/config"
	"github.com/spherical/pdf-compiler/internal/diagnostic"
	"github.com/spherical/pdf-compiler/internal/domain"
)

var (
	pdfTypes = map[string]bool{
		"application/pdf":   true,
		"application/x-pdf": true,
	}
	htmlTypes = map[string]bool{
		"text/html":             true,
		"application/xhtml+xml": true,
	}
	encodedTypes = map[string]bool{
		"application/base64":   true,
		"application/x-base64": true,
	}
)

// Classifier implements domain.Classifier. It holds only configuration and
// is safe for concurrent use.
type Classifier struct {
	envelope config.EnvelopeConfig
}

// New creates a classifier that understands the given status envelope shape.
func New(envelope config.EnvelopeConfig) *Classifier {
	return &Classifier{envelope: envelope}
}

// Classify maps resp onto exactly one outcome. The rules are applied in
// order and the first match wins.
func (c *Classifier) Classify(resp domain.RawResponse) domain.Outcome {
	if out, ok := infrastructureFailure(resp); ok {
		return out
	}

	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return domain.ErrorOutcome(domain.ProtocolError("service answered with an empty body", nil))
	}

	mediaType := parseMediaType(resp.ContentType)
	if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError {
		return c.rejected(resp, mediaType)
	}

	switch {
	case pdfTypes[mediaType]:
		return declaredArtifact(resp.Body, mediaType)
	case mediaType == "text/plain":
		return domain.DiagnosticOutcome(resp.Body, domain.BodyPlainText)
	case htmlTypes[mediaType]:
		return domain.DiagnosticOutcome(resp.Body, domain.BodyHTMLPage)
	case encodedTypes[mediaType]:
		return domain.DiagnosticOutcome(resp.Body, domain.BodyEncodedBlob)
	case isJSON(mediaType):
		return c.classifyEnvelope(resp.Body)
	}

	return c.sniff(resp.Body)
}

// infrastructureFailure handles non-2xx answers that carry nothing to
// classify: empty bodies and error pages produced by a gateway or relay.
// Other non-2xx answers are left to the remaining rules.
func infrastructureFailure(resp domain.RawResponse) (domain.Outcome, bool) {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return domain.Outcome{}, false
	}

	empty := len(bytes.TrimSpace(resp.Body)) == 0
	gateway := resp.StatusCode == http.StatusBadGateway ||
		resp.StatusCode == http.StatusServiceUnavailable ||
		resp.StatusCode == http.StatusGatewayTimeout
	intermediary := gateway || (resp.ViaRelay && resp.StatusCode >= http.StatusInternalServerError)

	if !empty && !intermediary {
		return domain.Outcome{}, false
	}

	what := "an error page"
	if empty {
		what = "an empty error response"
	}

	if resp.ViaRelay {
		return domain.ErrorOutcome(domain.RelayError(resp.StatusCode, "relay answered with "+what)), true
	}
	return domain.ErrorOutcome(domain.UpstreamError(resp.StatusCode, "service answered with "+what)), true
}

// rejected handles a 4xx from the origin. Compile failures arrive with a
// success status, so only an error envelope is taken as a compile log here.
func (c *Classifier) rejected(resp domain.RawResponse, mediaType string) domain.Outcome {
	trimmed := bytes.TrimSpace(resp.Body)
	if trimmed[0] == '{' && isJSONDocument(trimmed) {
		if out := c.classifyEnvelope(trimmed); out.Kind == domain.OutcomeDiagnostic {
			return out
		}
	}

	kind := domain.BodyPlainText
	if htmlTypes[mediaType] || looksLikeHTML(trimmed) {
		kind = domain.BodyHTMLPage
	}

	message := "service rejected the request"
	if detail := diagnostic.Summary(resp.Body, kind); detail != "" {
		message += ": " + detail
	}
	return domain.ErrorOutcome(domain.UpstreamError(resp.StatusCode, message))
}

func declaredArtifact(body []byte, mediaType string) domain.Outcome {
	if !hasPDFSignature(body) {
		return domain.ErrorOutcome(domain.ProtocolError(
			fmt.Sprintf("content type %s contradicts the body signature", mediaType), nil))
	}
	return domain.ArtifactOutcome(body)
}

// sniff classifies bodies whose content type is absent or too generic to trust.
func (c *Classifier) sniff(body []byte) domain.Outcome {
	if hasPDFSignature(body) {
		return domain.ArtifactOutcome(body)
	}

	trimmed := bytes.TrimSpace(body)
	if trimmed[0] == '{' && isJSONDocument(trimmed) {
		return c.classifyEnvelope(trimmed)
	}
	if looksLikeHTML(trimmed) {
		return domain.DiagnosticOutcome(body, domain.BodyHTMLPage)
	}
	if looksLikeBase64(trimmed) {
		return domain.DiagnosticOutcome(body, domain.BodyEncodedBlob)
	}
	return domain.DiagnosticOutcome(body, domain.BodyPlainText)
}

// parseMediaType returns the lower-cased media type without parameters.
func parseMediaType(contentType string) string {
	if strings.TrimSpace(contentType) == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType, _, _ = strings.Cut(contentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func isJSON(mediaType string) bool {
	return mediaType == "application/json" ||
		mediaType == "text/json" ||
		strings.HasSuffix(mediaType, "+json")
}

var _ domain.Classifier = (*Classifier)(nil)
