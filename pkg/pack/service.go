// Package pack implements the Pack Service: builds and monotonically
// grows the session's ContextPack, and computes its canonical content
// hash.
package pack

import (
	"sort"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/mindburn-labs/turnctl/pkg/canonicalize"
	"github.com/mindburn-labs/turnctl/pkg/contracts"
)

// Service builds and grows context packs.
type Service struct {
	now func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the service's clock, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New constructs a pack Service.
func New(opts ...Option) *Service {
	s := &Service{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// hashableView is the subset of ContextPack fields that participate in the
// content hash: ref and timestamps are identity/bookkeeping, not content.
type hashableView struct {
	Files []string `json:"files"`
}

// Build creates a new ContextPack seeded with files, with a freshly
// computed canonical hash.
func (s *Service) Build(ref string, files []string) (*contracts.ContextPack, error) {
	sorted := append([]string(nil), files...)
	sort.Strings(sorted)

	hash, err := canonicalize.CanonicalHash(hashableView{Files: sorted})
	if err != nil {
		return nil, err
	}

	now := s.now()
	return &contracts.ContextPack{
		Ref:       ref,
		Hash:      hash,
		Files:     sorted,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Grow adds files to pack, deduplicated and re-sorted, and recomputes the
// hash. Growth never removes a file already present — the pack is
// monotonically growing by construction (spec.md §4.4).
func (s *Service) Grow(p *contracts.ContextPack, newFiles []string) (*contracts.ContextPack, []string, error) {
	existing := map[string]bool{}
	for _, f := range p.Files {
		existing[f] = true
	}

	var added []string
	for _, f := range newFiles {
		if !existing[f] {
			existing[f] = true
			added = append(added, f)
		}
	}

	if len(added) == 0 {
		return p, nil, nil
	}

	files := append([]string{}, p.Files...)
	files = append(files, added...)
	sort.Strings(files)

	hash, err := canonicalize.CanonicalHash(hashableView{Files: files})
	if err != nil {
		return nil, nil, err
	}

	p.Files = files
	p.Hash = hash
	p.UpdatedAt = s.now()

	return p, added, nil
}

// MarkInsufficient records that required anchors could not be resolved
// while building or growing the pack.
func (s *Service) MarkInsufficient(p *contracts.ContextPack, missingAnchors []string, reason string) {
	p.Insufficiency = &contracts.PackInsufficiency{
		MissingAnchors: missingAnchors,
		Reason:         reason,
	}
}

// SchemaVersionAtLeast reports whether version satisfies the semver
// constraint ">= min" (used when comparing a submitted plan's
// schemaVersion against the controller's minimum supported version).
func SchemaVersionAtLeast(version, min string) (bool, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false, err
	}
	m, err := semver.NewVersion(min)
	if err != nil {
		return false, err
	}
	return !v.LessThan(m), nil
}
