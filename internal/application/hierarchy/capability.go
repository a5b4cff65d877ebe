package hierarchy

import (
	"fmt"
	"strings"

	"github.com/legalworks/docflow/internal/domain/entity"
)

// Capability is a tag granted to a person by the mapping table. Routing
// decisions consult tags instead of re-deriving role/title/level matches on
// every check.
type Capability string

const (
	// CapabilitySeniority allows skipping the general-manager approval tier.
	CapabilitySeniority Capability = "seniority"

	// CapabilityLegal marks legal-division membership.
	CapabilityLegal Capability = "legal"

	// CapabilityFinance marks finance-division membership.
	CapabilityFinance Capability = "finance"

	// CapabilityDiscussion allows participating in the discussion phase.
	CapabilityDiscussion Capability = "discussion"
)

// Rule maps directory facts to capability tags. A person matches a rule when
// any of its criteria match: exact role, title containing a pattern, or
// numeric level at or above MinLevel.
type Rule struct {
	Roles         []string
	TitlePatterns []string // matched case-insensitively as substrings
	MinLevel      int      // 0 disables the level criterion
	Grants        []Capability
}

// Table is the versioned mapping from directory facts to capability tags.
// It is validated once at construction, not re-derived ad hoc per check.
type Table struct {
	Version string
	Rules   []Rule
}

// SeniorityLevelThreshold is the numeric job level at which a person counts
// as senior-manager level regardless of role or title.
const SeniorityLevelThreshold = 5

// DefaultTable returns the built-in capability mapping.
func DefaultTable() *Table {
	return &Table{
		Version: "2026-01",
		Rules: []Rule{
			{
				Roles:  []string{entity.RoleSeniorManager, entity.RoleGeneralManager, entity.RoleDirector},
				Grants: []Capability{CapabilitySeniority, CapabilityDiscussion},
			},
			{
				TitlePatterns: []string{"senior manager", "general manager", "vice president", "director", "head of"},
				Grants:        []Capability{CapabilitySeniority, CapabilityDiscussion},
			},
			{
				MinLevel: SeniorityLevelThreshold,
				Grants:   []Capability{CapabilitySeniority, CapabilityDiscussion},
			},
			{
				Roles:  []string{entity.RoleAdminLegal, entity.RoleStaffLegal, entity.RoleHeadLegal},
				Grants: []Capability{CapabilityLegal, CapabilityDiscussion},
			},
			{
				Roles:  []string{entity.RoleStaffFinance, entity.RoleHeadFinance},
				Grants: []Capability{CapabilityFinance, CapabilityDiscussion},
			},
			{
				Roles:  []string{entity.RoleSupervisor},
				Grants: []Capability{CapabilityDiscussion},
			},
		},
	}
}

// Validate checks that the table is usable: a version, at least one rule,
// every rule granting something and carrying at least one criterion.
func (t *Table) Validate() error {
	if t.Version == "" {
		return fmt.Errorf("capability table has no version")
	}
	if len(t.Rules) == 0 {
		return fmt.Errorf("capability table has no rules")
	}
	for i, rule := range t.Rules {
		if len(rule.Grants) == 0 {
			return fmt.Errorf("rule %d grants no capabilities", i)
		}
		if len(rule.Roles) == 0 && len(rule.TitlePatterns) == 0 && rule.MinLevel <= 0 {
			return fmt.Errorf("rule %d has no matching criteria", i)
		}
	}
	return nil
}

// Grants computes the capability tags for a person.
func (t *Table) Grants(p *entity.Person) map[Capability]bool {
	grants := make(map[Capability]bool)
	if p == nil {
		return grants
	}

	title := strings.ToLower(p.Title)
	for _, rule := range t.Rules {
		if !rule.matches(p, title) {
			continue
		}
		for _, c := range rule.Grants {
			grants[c] = true
		}
	}
	return grants
}

func (r *Rule) matches(p *entity.Person, lowerTitle string) bool {
	for _, role := range r.Roles {
		if p.Role == role {
			return true
		}
	}
	for _, pattern := range r.TitlePatterns {
		if pattern != "" && strings.Contains(lowerTitle, pattern) {
			return true
		}
	}
	if r.MinLevel > 0 && p.Level >= r.MinLevel {
		return true
	}
	return false
}
