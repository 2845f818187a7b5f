package contracts

import "time"

// ContextPack is the monotonically growing set of files the agent may read
// or touch in a session, identified by a canonical content hash
// (spec.md §3, §4.4).
type ContextPack struct {
	Ref           string              `json:"ref"`
	Hash          string              `json:"hash"`
	Files         []string            `json:"files"`
	Insufficiency *PackInsufficiency  `json:"insufficiency,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// PackInsufficiency records that a required anchor (e.g. an ag-Grid origin
// chain) could not be resolved while building the pack.
type PackInsufficiency struct {
	MissingAnchors []string `json:"missing_anchors"`
	Reason         string   `json:"reason"`
}

// HasFile reports whether path is already present in the pack's file list.
func (p *ContextPack) HasFile(path string) bool {
	for _, f := range p.Files {
		if f == path {
			return true
		}
	}
	return false
}
