package classify

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/spherical/pdf-compiler/internal/domain"
)

type envelopeStatus int

const (
	statusUnknown envelopeStatus = iota
	statusSuccess
	statusError
)

// classifyEnvelope interprets a JSON status document such as
//
//	{"status": "error", "log": "...", "log_encoding": "base64"}
//	{"status": "success", "filename": "42"}
//	{"status": "success", "pdf": "JVBERi0x..."}
func (c *Classifier) classifyEnvelope(body []byte) domain.Outcome {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return domain.ErrorOutcome(domain.ProtocolError("status envelope is not a JSON object", err))
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return domain.ErrorOutcome(domain.ProtocolError("status envelope is followed by trailing data", err))
	}

	switch c.statusOf(doc[c.envelope.StatusField]) {
	case statusError:
		log := logText(doc, c.envelope.LogFields)
		kind := domain.BodyPlainText
		if enc, ok := doc[c.envelope.EncodingField].(string); ok && strings.EqualFold(strings.TrimSpace(enc), "base64") && strings.TrimSpace(log) != "" {
			kind = domain.BodyEncodedBlob
		}
		return domain.DiagnosticOutcome([]byte(log), kind)

	case statusSuccess:
		for _, field := range c.envelope.ArtifactFields {
			encoded, ok := doc[field].(string)
			if !ok || strings.TrimSpace(encoded) == "" {
				continue
			}
			data, err := decodeBase64(encoded)
			if err != nil {
				return domain.ErrorOutcome(domain.ProtocolError("inline artifact in field "+field+" is not valid base64", err))
			}
			return declaredArtifact(data, "inline "+field)
		}
		for _, field := range c.envelope.ReferenceFields {
			if token := scalarText(doc[field]); token != "" {
				return domain.ReferenceOutcome(token)
			}
		}
		return domain.ErrorOutcome(domain.ProtocolError("success envelope carries neither an artifact nor a reference", nil))
	}

	return domain.ErrorOutcome(domain.ProtocolError("status envelope has no recognisable status", nil))
}

func (c *Classifier) statusOf(v any) envelopeStatus {
	switch s := v.(type) {
	case bool:
		if s {
			return statusSuccess
		}
		return statusError
	case string:
		s = strings.ToLower(strings.TrimSpace(s))
		for _, want := range c.envelope.SuccessValues {
			if s == strings.ToLower(want) {
				return statusSuccess
			}
		}
		for _, want := range c.envelope.ErrorValues {
			if s == strings.ToLower(want) {
				return statusError
			}
		}
	}
	return statusUnknown
}

// logText returns the first populated log field. Arrays of lines are joined.
func logText(doc map[string]any, fields []string) string {
	for _, field := range fields {
		switch v := doc[field].(type) {
		case string:
			if v != "" {
				return v
			}
		case []any:
			lines := make([]string, 0, len(v))
			for _, line := range v {
				if s, ok := line.(string); ok {
					lines = append(lines, s)
				}
			}
			if len(lines) > 0 {
				return strings.Join(lines, "\n")
			}
		}
	}
	return ""
}

// scalarText renders a reference value. Numbers keep their literal form so
// that 42 stays "42" rather than becoming "42.0".
func scalarText(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	}
	return ""
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, s)
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if raw, rawErr := base64.RawStdEncoding.DecodeString(s); rawErr == nil {
			return raw, nil
		}
		return nil, err
	}
	return data, nil
}
