package diagnostic

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spherical/pdf-compiler/internal/domain"
)

func TestExtract(t *testing.T) {
	const log = "This is pdfTeX, Version 3.14159265\n! Undefined control sequence.\nl.4 \\foo"
	encoded := base64.StdEncoding.EncodeToString([]byte(log))

	tests := []struct {
		name string
		in   domain.Diagnostic
		want string
	}{
		{
			name: "plain text trimmed",
			in:   domain.Diagnostic{Kind: domain.BodyPlainText, Body: []byte("\n" + log + "\n\n")},
			want: log,
		},
		{
			name: "plain text empty",
			in:   domain.Diagnostic{Kind: domain.BodyPlainText, Body: []byte("  \n")},
			want: EmptyLog,
		},
		{
			name: "encoded blob round trip",
			in:   domain.Diagnostic{Kind: domain.BodyEncodedBlob, Body: []byte(encoded)},
			want: log,
		},
		{
			name: "encoded blob wrapped at 76 columns",
			in:   domain.Diagnostic{Kind: domain.BodyEncodedBlob, Body: []byte(encoded[:40] + "\r\n" + encoded[40:] + "\n")},
			want: log,
		},
		{
			name: "encoded blob without padding",
			in:   domain.Diagnostic{Kind: domain.BodyEncodedBlob, Body: []byte(base64.RawStdEncoding.EncodeToString([]byte("ab")))},
			want: "ab",
		},
		{
			name: "encoded blob invalid",
			in:   domain.Diagnostic{Kind: domain.BodyEncodedBlob, Body: []byte("%%% not base64 %%%")},
			want: UndecodableLog,
		},
		{
			name: "encoded blob empty",
			in:   domain.Diagnostic{Kind: domain.BodyEncodedBlob},
			want: EmptyLog,
		},
		{
			name: "encoded blob only whitespace",
			in:   domain.Diagnostic{Kind: domain.BodyEncodedBlob, Body: []byte(" \r\n")},
			want: EmptyLog,
		},
		{
			name: "html first pre",
			in:   domain.Diagnostic{Kind: domain.BodyHTMLPage, Body: []byte("<html><body><h1>Failed</h1><pre>Error on line 4</pre><pre>second</pre></body></html>")},
			want: "Error on line 4",
		},
		{
			name: "html entities and nested markup",
			in:   domain.Diagnostic{Kind: domain.BodyHTMLPage, Body: []byte("<pre>\n! Missing &lt;brace&gt; <b>inserted</b>.<br>l.7 x\n</pre>")},
			want: "! Missing <brace> inserted.\nl.7 x",
		},
		{
			name: "html without pre",
			in:   domain.Diagnostic{Kind: domain.BodyHTMLPage, Body: []byte("<html><body><p>Something broke</p></body></html>")},
			want: NoLogInPage,
		},
		{
			name: "html with empty pre",
			in:   domain.Diagnostic{Kind: domain.BodyHTMLPage, Body: []byte("<pre>   </pre>")},
			want: NoLogInPage,
		},
	}

	e := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Extract(tt.in))
		})
	}
}

func TestExtract_NeverEmpty(t *testing.T) {
	e := New()
	kinds := []domain.BodyKind{domain.BodyPlainText, domain.BodyEncodedBlob, domain.BodyHTMLPage, "unknown"}
	bodies := [][]byte{nil, {}, []byte("<"), []byte("===="), {0xff, 0xfe}}

	for _, kind := range kinds {
		for _, body := range bodies {
			got := e.Extract(domain.Diagnostic{Kind: kind, Body: body})
			assert.NotEmpty(t, got, "kind=%s body=%q", kind, body)
		}
	}
}
