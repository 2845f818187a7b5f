// Package scope implements the Scope Service: the per-session file/symbol
// allowlist that the collision guard and verb handlers consult before any
// read or mutation.
package scope

import (
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/mindburn-labs/turnctl/pkg/contracts"
)

// Service enforces the scope allowlist for a session.
type Service struct{}

// New constructs a Service. The service is stateless; the allowlist it
// checks against lives on contracts.SessionState.
func New() *Service {
	return &Service{}
}

// Normalize applies Unicode NFC normalization and path cleaning so that two
// byte-distinct but semantically identical paths ("café.go" composed vs.
// decomposed, "./a/../a/b.go" vs "a/b.go") compare equal. Every path
// entering the allowlist or being checked against it must go through this
// first.
func Normalize(p string) string {
	p = norm.NFC.String(p)
	p = strings.ReplaceAll(p, "\\", "/")
	cleaned := path.Clean("/" + p)
	return strings.TrimPrefix(cleaned, "/")
}

// AllowsFile reports whether targetFile is present in the session's scope
// allowlist, after normalization.
func (s *Service) AllowsFile(allowlist *contracts.ScopeAllowlist, targetFile string) bool {
	if allowlist == nil {
		return false
	}
	want := Normalize(targetFile)
	for _, f := range allowlist.Files {
		if Normalize(f) == want {
			return true
		}
	}
	return false
}

// AllowsSymbol reports whether symbol is present in the session's scope
// allowlist.
func (s *Service) AllowsSymbol(allowlist *contracts.ScopeAllowlist, symbol string) bool {
	if allowlist == nil {
		return false
	}
	for _, sym := range allowlist.Symbols {
		if sym == symbol {
			return true
		}
	}
	return false
}

// Grow appends files/symbols to the allowlist, deduplicated and
// normalized. Growth is monotonic: Grow never removes an existing entry.
func (s *Service) Grow(allowlist *contracts.ScopeAllowlist, files, symbols []string) *contracts.ScopeAllowlist {
	if allowlist == nil {
		allowlist = &contracts.ScopeAllowlist{}
	}
	existingFiles := map[string]bool{}
	for _, f := range allowlist.Files {
		existingFiles[Normalize(f)] = true
	}
	for _, f := range files {
		nf := Normalize(f)
		if !existingFiles[nf] {
			allowlist.Files = append(allowlist.Files, nf)
			existingFiles[nf] = true
		}
	}

	existingSymbols := map[string]bool{}
	for _, sym := range allowlist.Symbols {
		existingSymbols[sym] = true
	}
	for _, sym := range symbols {
		if !existingSymbols[sym] {
			allowlist.Symbols = append(allowlist.Symbols, sym)
			existingSymbols[sym] = true
		}
	}

	return allowlist
}

// EscapesRoot reports whether target, once cleaned, would resolve outside
// root (e.g. a scratch-file write attempting "../../etc/passwd").
func EscapesRoot(root, target string) bool {
	root = Normalize(root)
	target = Normalize(target)
	if root == "" {
		return strings.HasPrefix(target, "..")
	}
	return target != root && !strings.HasPrefix(target, root+"/")
}
