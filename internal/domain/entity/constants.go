package entity

// Workflow subject kinds
const (
	KindDocumentRequest   = "DOCUMENT_REQUEST"
	KindAgreementOverview = "AGREEMENT_OVERVIEW"
)

// Status constants for DocumentRequest
const (
	RequestStatusDraft             = "DRAFT"
	RequestStatusPendingSupervisor = "PENDING_SUPERVISOR"
	RequestStatusPendingGM         = "PENDING_GM"
	RequestStatusPendingLegalAdmin = "PENDING_LEGAL_ADMIN"
	RequestStatusInDiscussion      = "IN_DISCUSSION"
	RequestStatusAgreementCreation = "AGREEMENT_CREATION"
	RequestStatusCompleted         = "COMPLETED"
	RequestStatusRejected          = "REJECTED"
)

// Status constants for AgreementOverview
const (
	AgreementStatusDraft            = "DRAFT"
	AgreementStatusPendingHead      = "PENDING_HEAD"
	AgreementStatusPendingFinance   = "PENDING_FINANCE"
	AgreementStatusPendingLegal     = "PENDING_LEGAL"
	AgreementStatusPendingDirector1 = "PENDING_DIRECTOR1"
	AgreementStatusPendingDirector2 = "PENDING_DIRECTOR2"
	AgreementStatusApproved         = "APPROVED"
	AgreementStatusRejected         = "REJECTED"
	AgreementStatusRediscuss        = "REDISCUSS"
)

// Approval type constants for ledger steps
const (
	ApprovalTypeSupervisor         = "SUPERVISOR"
	ApprovalTypeGeneralManager     = "GENERAL_MANAGER"
	ApprovalTypeAdminLegal         = "ADMIN_LEGAL"
	ApprovalTypeHeadFinance        = "HEAD_FINANCE"
	ApprovalTypeHeadLegal          = "HEAD_LEGAL"
	ApprovalTypeDirectorSupervisor = "DIRECTOR_SUPERVISOR" // director 1
	ApprovalTypeSelectedDirector   = "SELECTED_DIRECTOR"   // director 2
)

// Step status constants
const (
	StepStatusQueued   = "QUEUED" // created eagerly, not yet active
	StepStatusPending  = "PENDING"
	StepStatusApproved = "APPROVED"
	StepStatusRejected = "REJECTED"
)

// Role constants as delivered by the HR directory
const (
	RoleStaff          = "staff"
	RoleSupervisor     = "supervisor"
	RoleSeniorManager  = "senior_manager"
	RoleGeneralManager = "general_manager"
	RoleDirector       = "director"
	RoleAdminLegal     = "admin_legal"
	RoleStaffLegal     = "staff_legal"
	RoleHeadLegal      = "head_legal"
	RoleStaffFinance   = "staff_finance"
	RoleHeadFinance    = "head_finance"
)

// SentinelApproverID is the placeholder identity assigned to a step when
// role resolution fails, so routing can still proceed and an administrator
// can reassign the step later.
const SentinelApproverID = "SENTINEL-UNASSIGNED"
