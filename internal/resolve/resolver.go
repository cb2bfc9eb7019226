// Package resolve follows reference tokens returned by two-phase
// compilation services to the address where the result can be fetched.
package resolve

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/spherical/pdf-compiler/internal/domain"
)

const tokenPlaceholder = "{token}"

// Resolver turns a reference token into a fetched response
type Resolver struct {
	base      string
	transport domain.Transport
}

// New creates a resolver for results published under base. A base
// containing {token} is treated as a template, anything else as a directory.
func New(base string, transport domain.Transport) *Resolver {
	return &Resolver{base: base, transport: transport}
}

// Address returns the result address for token. It is deterministic and
// performs no I/O.
func (r *Resolver) Address(token string) (string, error) {
	if err := validateToken(token); err != nil {
		return "", err
	}

	if strings.Contains(r.base, tokenPlaceholder) {
		return strings.ReplaceAll(r.base, tokenPlaceholder, url.PathEscape(token)), nil
	}

	u, err := url.Parse(r.base)
	if err != nil {
		return "", domain.ProtocolError("result base address is invalid", err)
	}
	return u.JoinPath(token).String(), nil
}

// Resolve fetches the result that token refers to. The response is returned
// unclassified.
func (r *Resolver) Resolve(ctx context.Context, token string) (*domain.RawResponse, error) {
	address, err := r.Address(token)
	if err != nil {
		return nil, err
	}
	return r.transport.Fetch(ctx, address)
}

// validateToken rejects tokens that could point the fetch anywhere other
// than below the result base.
func validateToken(token string) error {
	if strings.TrimSpace(token) == "" {
		return domain.ProtocolError("reference token is empty", nil)
	}
	if strings.ContainsAny(token, "?#\\") {
		return domain.ProtocolError(fmt.Sprintf("reference token %q contains a query, fragment or backslash", token), nil)
	}

	u, err := url.Parse(token)
	if err != nil {
		return domain.ProtocolError(fmt.Sprintf("reference token %q is not a valid path", token), err)
	}
	if u.Scheme != "" || u.Host != "" {
		return domain.ProtocolError(fmt.Sprintf("reference token %q is an absolute address", token), nil)
	}

	for _, segment := range strings.Split(token, "/") {
		if segment == ".." {
			return domain.ProtocolError(fmt.Sprintf("reference token %q escapes the result base", token), nil)
		}
	}
	return nil
}
