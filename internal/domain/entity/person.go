package entity

// Person is an organizational directory record. It is read-only from the
// engine's point of view; the HR directory is the source of truth.
type Person struct {
	EmployeeID   string `json:"employee_id"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	Title        string `json:"title"`
	Level        int    `json:"level"`
	SupervisorID string `json:"supervisor_id,omitempty"`
	Division     string `json:"division"`
	Active       bool   `json:"active"`
}

// IsSentinel reports whether the person is the unassigned placeholder
// produced by approver-resolution fallback.
func (p *Person) IsSentinel() bool {
	return p != nil && p.EmployeeID == SentinelApproverID
}

// SentinelApprover returns the placeholder identity used when no concrete
// approver could be resolved for a role category.
func SentinelApprover() *Person {
	return &Person{
		EmployeeID: SentinelApproverID,
		Name:       "Unassigned Approver",
		Active:     true,
	}
}
