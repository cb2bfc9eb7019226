package ui

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBytes(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 << 20, "5.0 MiB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Bytes(tt.in))
	}
}

func TestOutput(t *testing.T) {
	Init(true)
	var out, errOut bytes.Buffer
	SetOutput(&out, &errOut)
	t.Cleanup(func() { SetOutput(os.Stdout, os.Stderr) })

	Success("wrote %s", "doc.pdf")
	Error("compilation failed")
	Log("line 1\nline 2")

	assert.Equal(t, "✓ wrote doc.pdf\n", out.String())
	assert.Contains(t, errOut.String(), "✗ compilation failed\n")
	assert.Contains(t, errOut.String(), "  line 1\n  line 2\n")
}
