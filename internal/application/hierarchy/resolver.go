// Package hierarchy answers organizational questions over the HR directory:
// supervisor chains, the seniority predicate that gates tier skipping, and
// role-category to concrete-approver resolution with a documented fallback
// chain.
package hierarchy

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/legalworks/docflow/internal/application/port"
	"github.com/legalworks/docflow/internal/domain/apperr"
	"github.com/legalworks/docflow/internal/domain/entity"
)

// roleTarget describes how a role category resolves to people: the exact
// role tried first, then the title keyword fallback.
type roleTarget struct {
	role           string
	titleKeyword   string
	divisionScoped bool
}

// approverTargets maps approval types to their resolution targets.
var approverTargets = map[string]roleTarget{
	entity.ApprovalTypeGeneralManager:     {role: entity.RoleGeneralManager, titleKeyword: "general manager", divisionScoped: true},
	entity.ApprovalTypeAdminLegal:         {role: entity.RoleAdminLegal, titleKeyword: "legal"},
	entity.ApprovalTypeHeadFinance:        {role: entity.RoleHeadFinance, titleKeyword: "finance"},
	entity.ApprovalTypeHeadLegal:          {role: entity.RoleHeadLegal, titleKeyword: "legal"},
	entity.ApprovalTypeDirectorSupervisor: {role: entity.RoleDirector, titleKeyword: "director", divisionScoped: true},
	entity.ApprovalTypeSelectedDirector:   {role: entity.RoleDirector, titleKeyword: "director"},
}

// Resolver is the read-side hierarchy engine. It never mutates the
// directory; lookups are expected to be fast or cached by the directory
// implementation.
type Resolver struct {
	directory port.Directory
	table     *Table
	logger    *zap.Logger
}

// NewResolver creates a resolver after validating the capability table.
func NewResolver(directory port.Directory, table *Table, logger *zap.Logger) (*Resolver, error) {
	if table == nil {
		table = DefaultTable()
	}
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("%w: capability table: %v", apperr.ErrConfiguration, err)
	}
	return &Resolver{directory: directory, table: table, logger: logger}, nil
}

// Lookup fetches a person by identity. Unknown identities yield (nil, nil).
func (r *Resolver) Lookup(ctx context.Context, employeeID string) (*entity.Person, error) {
	if employeeID == "" {
		return nil, nil
	}
	return r.directory.LookupByID(ctx, employeeID)
}

// SupervisorOf performs the one-hop supervisor lookup. Returns (nil, nil)
// when the person has no supervisor or is unknown.
func (r *Resolver) SupervisorOf(ctx context.Context, employeeID string) (*entity.Person, error) {
	person, err := r.directory.LookupByID(ctx, employeeID)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", employeeID, err)
	}
	if person == nil || person.SupervisorID == "" {
		return nil, nil
	}

	supervisor, err := r.directory.LookupByID(ctx, person.SupervisorID)
	if err != nil {
		return nil, fmt.Errorf("lookup supervisor %s: %w", person.SupervisorID, err)
	}
	if supervisor != nil && !supervisor.Active {
		return nil, nil
	}
	return supervisor, nil
}

// IsSeniorManagerLevel reports whether a person satisfies the seniority
// predicate. This is the single most important branching input in the
// routing engine: it decides whether the general-manager tier is skipped.
func (r *Resolver) IsSeniorManagerLevel(p *entity.Person) bool {
	return r.table.Grants(p)[CapabilitySeniority]
}

// HasCapability reports whether the mapping table grants the capability.
func (r *Resolver) HasCapability(p *entity.Person, c Capability) bool {
	return r.table.Grants(p)[c]
}

// TableVersion returns the active capability-table version, logged with
// every fallback so data-quality signals can be traced to a mapping.
func (r *Resolver) TableVersion() string {
	return r.table.Version
}

// FindApprover resolves a role category to a concrete active person.
// Fallback chain: exact role match (division-scoped where configured) ->
// title keyword match -> sentinel identity. Fallback use is logged as a
// data-quality signal; routing never fails to produce an approver.
func (r *Resolver) FindApprover(ctx context.Context, approvalType, division string) (*entity.Person, error) {
	target, ok := approverTargets[approvalType]
	if !ok {
		return nil, fmt.Errorf("%w: no resolution target for approval type %s", apperr.ErrConfiguration, approvalType)
	}

	people, err := r.directory.FindByRole(ctx, target.role)
	if err != nil {
		return nil, fmt.Errorf("find by role %s: %w", target.role, err)
	}
	if p := pickActive(people, target, division); p != nil {
		return p, nil
	}

	// Alternate title match.
	people, err = r.directory.FindByTitleKeyword(ctx, target.titleKeyword)
	if err != nil {
		return nil, fmt.Errorf("find by title %q: %w", target.titleKeyword, err)
	}
	if p := pickActive(people, target, division); p != nil {
		r.logger.Warn("approver resolved via title fallback",
			zap.String("approval_type", approvalType),
			zap.String("approver_id", p.EmployeeID),
			zap.String("table_version", r.table.Version))
		return p, nil
	}

	r.logger.Warn("no approver resolvable, assigning sentinel",
		zap.String("approval_type", approvalType),
		zap.String("division", division),
		zap.String("table_version", r.table.Version))
	return entity.SentinelApprover(), nil
}

// FindSecondDirector resolves the selected-director step, preferring a
// director distinct from the first one so both signatures carry weight.
// Falls back to the first director when the directory only has one.
func (r *Resolver) FindSecondDirector(ctx context.Context, firstDirectorID, division string) (*entity.Person, error) {
	people, err := r.directory.FindByRole(ctx, entity.RoleDirector)
	if err != nil {
		return nil, fmt.Errorf("find directors: %w", err)
	}
	for _, p := range people {
		if p.Active && p.EmployeeID != firstDirectorID {
			return p, nil
		}
	}
	return r.FindApprover(ctx, entity.ApprovalTypeSelectedDirector, division)
}

func pickActive(people []*entity.Person, target roleTarget, division string) *entity.Person {
	var fallback *entity.Person
	for _, p := range people {
		if !p.Active {
			continue
		}
		if target.divisionScoped && division != "" && p.Division == division {
			return p
		}
		if fallback == nil {
			fallback = p
		}
	}
	if target.divisionScoped && division != "" {
		// No same-division match; any active holder of the role still beats
		// the title fallback.
		return fallback
	}
	return fallback
}
