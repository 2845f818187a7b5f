package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mindburn-labs/turnctl/pkg/contracts"
)

// PolicyProfile is the YAML-configured, per-deployment tuning surface: the
// verb budget cost table, evidence policy defaults, and memory lifecycle
// windows. It is loaded once at startup and is otherwise immutable.
type PolicyProfile struct {
	Name string `yaml:"name"`

	VerbCosts map[contracts.Verb]int64 `yaml:"verb_costs"`

	EvidencePolicy contracts.EvidencePolicy `yaml:"evidence_policy"`

	MemoryContestWindow      time.Duration `yaml:"-"`
	MemoryContestWindowRaw   string        `yaml:"memory_contest_window"`
	MemoryExpiryWindow       time.Duration `yaml:"-"`
	MemoryExpiryWindowRaw    string        `yaml:"memory_expiry_window"`
	AutoPromotableTypes      []contracts.EnforcementType `yaml:"auto_promotable_types"`
	HumanOverrideInitialState contracts.MemoryState      `yaml:"human_override_initial_state"`

	MinProofChainLinks int `yaml:"min_proof_chain_links"`
}

// DefaultVerbCosts is used when a profile omits verb_costs or none is
// loaded at all. Reads are cheap; plan submission and mutation verbs cost
// more, matching the relative expense of the work they trigger.
func DefaultVerbCosts() map[contracts.Verb]int64 {
	return map[contracts.Verb]int64{
		contracts.VerbInitializeWork:          50,
		contracts.VerbListAvailableVerbs:      1,
		contracts.VerbGetOriginalPrompt:       1,
		contracts.VerbListScopedFiles:         1,
		contracts.VerbListDirectoryContents:   2,
		contracts.VerbReadFileLines:           5,
		contracts.VerbLookupSymbolDefinition:  5,
		contracts.VerbSearchCodebaseText:      8,
		contracts.VerbTraceSymbolGraph:        15,
		contracts.VerbWriteScratchFile:        3,
		contracts.VerbFetchJiraTicket:         20,
		contracts.VerbFetchAPISpec:            20,
		contracts.VerbSubmitExecutionPlan:     100,
		contracts.VerbRequestEvidenceGuidance: 30,
		contracts.VerbApplyCodePatch:          60,
		contracts.VerbRunSandboxedCode:        80,
		contracts.VerbExecuteGatedSideEffect:  60,
		contracts.VerbRunAutomationRecipe:     40,
		contracts.VerbSignalTaskComplete:      10,
	}
}

// DefaultPolicyProfile returns the built-in profile used when no YAML
// profile is configured.
func DefaultPolicyProfile() *PolicyProfile {
	return &PolicyProfile{
		Name:                      "default",
		VerbCosts:                 DefaultVerbCosts(),
		EvidencePolicy:            contracts.DefaultEvidencePolicy(),
		MemoryContestWindow:       24 * time.Hour,
		MemoryExpiryWindow:        30 * 24 * time.Hour,
		AutoPromotableTypes:       []contracts.EnforcementType{contracts.EnforcementPlanRule, contracts.EnforcementFewShot},
		HumanOverrideInitialState: contracts.MemoryApproved,
		MinProofChainLinks:        3,
	}
}

// LoadPolicyProfile loads a named policy profile YAML from profilesDir
// (profile_<name>.yaml), falling back to DefaultPolicyProfile when
// profilesDir or the file does not exist.
func LoadPolicyProfile(profilesDir, name string) (*PolicyProfile, error) {
	if profilesDir == "" || name == "" {
		return DefaultPolicyProfile(), nil
	}
	path := filepath.Join(profilesDir, fmt.Sprintf("profile_%s.yaml", name))
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultPolicyProfile(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: load policy profile %q: %w", name, err)
	}

	profile := DefaultPolicyProfile()
	profile.Name = name
	if err := yaml.Unmarshal(data, profile); err != nil {
		return nil, fmt.Errorf("config: parse policy profile %q: %w", name, err)
	}

	if profile.MemoryContestWindowRaw != "" {
		d, err := time.ParseDuration(profile.MemoryContestWindowRaw)
		if err != nil {
			return nil, fmt.Errorf("config: memory_contest_window: %w", err)
		}
		profile.MemoryContestWindow = d
	}
	if profile.MemoryExpiryWindowRaw != "" {
		d, err := time.ParseDuration(profile.MemoryExpiryWindowRaw)
		if err != nil {
			return nil, fmt.Errorf("config: memory_expiry_window: %w", err)
		}
		profile.MemoryExpiryWindow = d
	}
	if len(profile.VerbCosts) == 0 {
		profile.VerbCosts = DefaultVerbCosts()
	}

	return profile, nil
}

// CostOf returns the configured token cost for verb, defaulting to 1 for
// an unknown verb rather than failing the request.
func (p *PolicyProfile) CostOf(verb contracts.Verb) int64 {
	if c, ok := p.VerbCosts[verb]; ok {
		return c
	}
	return 1
}
