package classify

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"unicode"
	"unicode/utf8"
)

// PDF readers accept up to 1 KiB of junk before the header.
const pdfHeaderWindow = 1024

var pdfMagic = []byte("%PDF-")

func hasPDFSignature(body []byte) bool {
	window := body
	if len(window) > pdfHeaderWindow {
		window = window[:pdfHeaderWindow]
	}
	return bytes.Contains(window, pdfMagic)
}

func isJSONDocument(body []byte) bool {
	return json.Valid(body)
}

func looksLikeHTML(body []byte) bool {
	head := body
	if len(head) > 1024 {
		head = head[:1024]
	}
	head = bytes.ToLower(head)

	if bytes.HasPrefix(head, []byte("<!doctype html")) || bytes.HasPrefix(head, []byte("<html")) {
		return true
	}
	return bytes.HasPrefix(head, []byte("<")) &&
		(bytes.Contains(head, []byte("<pre")) || bytes.Contains(head, []byte("<body")))
}

// looksLikeBase64 is strict: short tokens and anything with inner spaces
// are treated as text, and the blob has to decode to readable text.
func looksLikeBase64(body []byte) bool {
	compact := make([]byte, 0, len(body))
	for _, b := range body {
		switch {
		case b == '\n' || b == '\r':
			continue
		case b == ' ' || b == '\t':
			return false
		}
		compact = append(compact, b)
	}

	if len(compact) < 16 || len(compact)%4 != 0 {
		return false
	}
	for _, b := range compact {
		if !isBase64Char(b) {
			return false
		}
	}
	decoded, err := base64.StdEncoding.DecodeString(string(compact))
	if err != nil {
		return false
	}
	return isPrintableText(decoded)
}

// isPrintableText reports whether data reads as a log: valid UTF-8 with no
// control characters other than line breaks and tabs.
func isPrintableText(data []byte) bool {
	if !utf8.Valid(data) {
		return false
	}
	for _, r := range string(data) {
		if !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

func isBase64Char(b byte) bool {
	return (b >= 'A' && b <= 'Z') ||
		(b >= 'a' && b <= 'z') ||
		(b >= '0' && b <= '9') ||
		b == '+' || b == '/' || b == '='
}
