package workflow

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/legalworks/docflow/internal/application/dispatcher"
	"github.com/legalworks/docflow/internal/application/hierarchy"
	"github.com/legalworks/docflow/internal/application/ledger"
	"github.com/legalworks/docflow/internal/domain/entity"
	"github.com/legalworks/docflow/internal/domain/event"
)

// In-memory repository fakes shared by the workflow tests. They follow the
// real repositories' contracts, including the rows-affected semantics of
// Resolve and Activate.

type memRequestRepo struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]*entity.DocumentRequest
}

func newMemRequestRepo() *memRequestRepo {
	return &memRequestRepo{items: make(map[int64]*entity.DocumentRequest)}
}

func (r *memRequestRepo) Create(_ context.Context, req *entity.DocumentRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	req.ID = r.nextID
	if req.DiscussionRound == 0 {
		req.DiscussionRound = 1
	}
	req.CreatedAt = time.Now()
	cp := *req
	r.items[req.ID] = &cp
	return nil
}

func (r *memRequestRepo) GetByID(_ context.Context, id int64) (*entity.DocumentRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	cp := *req
	return &cp, nil
}

func (r *memRequestRepo) UpdateStatus(_ context.Context, id int64, status string, isDraft bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if req, ok := r.items[id]; ok {
		req.Status = status
		req.IsDraft = isDraft
		req.UpdatedAt = time.Now()
	}
	return nil
}

func (r *memRequestRepo) SetSubmittedAt(_ context.Context, id int64, t time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if req, ok := r.items[id]; ok {
		req.SubmittedAt = &t
	}
	return nil
}

func (r *memRequestRepo) SetCompletedAt(_ context.Context, id int64, t time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if req, ok := r.items[id]; ok {
		req.CompletedAt = &t
	}
	return nil
}

func (r *memRequestRepo) SetRejectReason(_ context.Context, id int64, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if req, ok := r.items[id]; ok {
		req.RejectReason = reason
	}
	return nil
}

func (r *memRequestRepo) IncrementDiscussionRound(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if req, ok := r.items[id]; ok {
		req.DiscussionRound++
	}
	return nil
}

func (r *memRequestRepo) List(_ context.Context, limit, offset int) ([]*entity.DocumentRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.DocumentRequest, 0, len(r.items))
	for _, req := range r.items {
		cp := *req
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memAgreementRepo struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]*entity.AgreementOverview
}

func newMemAgreementRepo() *memAgreementRepo {
	return &memAgreementRepo{items: make(map[int64]*entity.AgreementOverview)}
}

func (r *memAgreementRepo) Create(_ context.Context, agr *entity.AgreementOverview) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	agr.ID = r.nextID
	agr.CreatedAt = time.Now()
	cp := *agr
	r.items[agr.ID] = &cp
	return nil
}

func (r *memAgreementRepo) GetByID(_ context.Context, id int64) (*entity.AgreementOverview, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	agr, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	cp := *agr
	return &cp, nil
}

func (r *memAgreementRepo) GetByRequestID(_ context.Context, requestID int64) (*entity.AgreementOverview, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, agr := range r.items {
		if agr.RequestID == requestID {
			cp := *agr
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memAgreementRepo) UpdateStatus(_ context.Context, id int64, status string, isDraft bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if agr, ok := r.items[id]; ok {
		agr.Status = status
		agr.IsDraft = isDraft
		agr.UpdatedAt = time.Now()
	}
	return nil
}

func (r *memAgreementRepo) SetSubmittedAt(_ context.Context, id int64, t time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if agr, ok := r.items[id]; ok {
		agr.SubmittedAt = &t
	}
	return nil
}

func (r *memAgreementRepo) SetCompletedAt(_ context.Context, id int64, t time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if agr, ok := r.items[id]; ok {
		agr.CompletedAt = &t
	}
	return nil
}

func (r *memAgreementRepo) SetRejectReason(_ context.Context, id int64, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if agr, ok := r.items[id]; ok {
		agr.RejectReason = reason
	}
	return nil
}

func (r *memAgreementRepo) List(_ context.Context, limit, offset int) ([]*entity.AgreementOverview, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.AgreementOverview, 0, len(r.items))
	for _, agr := range r.items {
		cp := *agr
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memAgreementRepo) ListByStatus(_ context.Context, status string) ([]*entity.AgreementOverview, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.AgreementOverview
	for _, agr := range r.items {
		if agr.Status == status {
			cp := *agr
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memStepRepo struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]*entity.ApprovalStep
}

func newMemStepRepo() *memStepRepo {
	return &memStepRepo{items: make(map[int64]*entity.ApprovalStep)}
}

func (r *memStepRepo) Create(_ context.Context, step *entity.ApprovalStep) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	step.ID = r.nextID
	step.CreatedAt = time.Now()
	cp := *step
	r.items[step.ID] = &cp
	return nil
}

func (r *memStepRepo) GetByID(_ context.Context, id int64) (*entity.ApprovalStep, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	step, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	cp := *step
	return &cp, nil
}

func (r *memStepRepo) GetBySubjectID(_ context.Context, subjectID int64) ([]*entity.ApprovalStep, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.ApprovalStep
	for _, step := range r.items {
		if step.SubjectID == subjectID {
			cp := *step
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StepOrder < out[j].StepOrder })
	return out, nil
}

func (r *memStepRepo) CurrentPending(_ context.Context, subjectID int64) (*entity.ApprovalStep, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, step := range r.items {
		if step.SubjectID == subjectID && step.Status == entity.StepStatusPending {
			cp := *step
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memStepRepo) MaxOrder(_ context.Context, subjectID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	max := 0
	for _, step := range r.items {
		if step.SubjectID == subjectID && step.StepOrder > max {
			max = step.StepOrder
		}
	}
	return max, nil
}

func (r *memStepRepo) Resolve(_ context.Context, stepID int64, status string, resolvedAt time.Time, comments string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	step, ok := r.items[stepID]
	if !ok || step.Status != entity.StepStatusPending {
		return false, nil
	}
	step.Status = status
	step.Comments = comments
	if status == entity.StepStatusApproved {
		step.ApprovedAt = &resolvedAt
	} else {
		step.RejectedAt = &resolvedAt
	}
	return true, nil
}

func (r *memStepRepo) Activate(_ context.Context, stepID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	step, ok := r.items[stepID]
	if !ok || step.Status != entity.StepStatusQueued {
		return false, nil
	}
	step.Status = entity.StepStatusPending
	return true, nil
}

func (r *memStepRepo) DeleteBySubjectID(_ context.Context, subjectID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, step := range r.items {
		if step.SubjectID == subjectID {
			delete(r.items, id)
		}
	}
	return nil
}

type memCommentRepo struct {
	mu     sync.Mutex
	nextID int64
	items  []*entity.DiscussionComment
}

func newMemCommentRepo() *memCommentRepo { return &memCommentRepo{} }

func (r *memCommentRepo) Create(_ context.Context, c *entity.DiscussionComment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c.ID = r.nextID
	if c.Round == 0 {
		c.Round = 1
	}
	c.CreatedAt = time.Now()
	cp := *c
	r.items = append(r.items, &cp)
	return nil
}

func (r *memCommentRepo) GetByRequestID(_ context.Context, requestID int64) ([]*entity.DiscussionComment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.DiscussionComment
	for _, c := range r.items {
		if c.RequestID == requestID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memCommentRepo) HasFinanceComment(_ context.Context, requestID int64, round int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.items {
		if c.RequestID == requestID && c.Round == round && c.FinanceAuthored() {
			return true, nil
		}
	}
	return false, nil
}

func (r *memCommentRepo) HasClosingComment(_ context.Context, requestID int64, round int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.items {
		if c.RequestID == requestID && c.Round == round && c.ForumClosed {
			return true, nil
		}
	}
	return false, nil
}

// passTx executes the unit of work directly; the fakes are already atomic
// enough for single-goroutine tests.
// recordingDispatcher captures every dispatched event for assertions.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (d *recordingDispatcher) Subscribe(event.Type, string, dispatcher.Handler) {}

func (d *recordingDispatcher) Dispatch(_ context.Context, evt *event.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, evt)
	return nil
}

func (d *recordingDispatcher) DispatchAsync(_ context.Context, evt *event.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, evt)
}

func (d *recordingDispatcher) Close() error { return nil }

func (d *recordingDispatcher) ofType(t event.Type) []*event.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*event.Event
	for _, evt := range d.events {
		if evt.Type == t {
			out = append(out, evt)
		}
	}
	return out
}

type passTx struct{}

func (passTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// stubDirectory is a fixed in-memory HR directory.
type stubDirectory struct {
	people map[string]*entity.Person
}

func (d *stubDirectory) LookupByID(_ context.Context, employeeID string) (*entity.Person, error) {
	p, ok := d.people[employeeID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (d *stubDirectory) FindByRole(_ context.Context, role string) ([]*entity.Person, error) {
	var out []*entity.Person
	for _, id := range sortedIDs(d.people) {
		p := d.people[id]
		if p.Role == role && p.Active {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (d *stubDirectory) FindByTitleKeyword(_ context.Context, keyword string) ([]*entity.Person, error) {
	var out []*entity.Person
	for _, id := range sortedIDs(d.people) {
		p := d.people[id]
		if p.Active && strings.Contains(strings.ToLower(p.Title), strings.ToLower(keyword)) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func sortedIDs(people map[string]*entity.Person) []string {
	ids := make([]string, 0, len(people))
	for id := range people {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// testOrg is the standard organization used across workflow tests.
//
//	EMP-001 staff, Corporate, reports to SUP-001 (regular supervisor)
//	EMP-002 staff, Corporate, reports to SUP-002 (senior-manager level)
//	GM-001  general manager, Corporate
//	LEG-001 legal admin, HL-001 head of legal
//	HF-001  head of finance, SF-001 finance staff
//	DIR-001 director (Corporate), DIR-002 director (Operations)
func testOrg() map[string]*entity.Person {
	return map[string]*entity.Person{
		"EMP-001": {EmployeeID: "EMP-001", Name: "Ana Widjaja", Role: entity.RoleStaff, Title: "Procurement Officer", Level: 2, SupervisorID: "SUP-001", Division: "Corporate", Active: true},
		"EMP-002": {EmployeeID: "EMP-002", Name: "Bima Putra", Role: entity.RoleStaff, Title: "Analyst", Level: 2, SupervisorID: "SUP-002", Division: "Corporate", Active: true},
		"SUP-001": {EmployeeID: "SUP-001", Name: "Citra Lestari", Role: entity.RoleSupervisor, Title: "Team Lead", Level: 3, SupervisorID: "GM-001", Division: "Corporate", Active: true},
		"SUP-002": {EmployeeID: "SUP-002", Name: "Dewi Hartono", Role: entity.RoleSeniorManager, Title: "Senior Manager Corporate", Level: 6, SupervisorID: "GM-001", Division: "Corporate", Active: true},
		"GM-001":  {EmployeeID: "GM-001", Name: "Eko Santoso", Role: entity.RoleGeneralManager, Title: "General Manager", Level: 7, Division: "Corporate", Active: true},
		"LEG-001": {EmployeeID: "LEG-001", Name: "Fitri Salim", Role: entity.RoleAdminLegal, Title: "Legal Administrator", Level: 3, SupervisorID: "HL-001", Division: "Legal", Active: true},
		"HL-001":  {EmployeeID: "HL-001", Name: "Gita Prameswari", Role: entity.RoleHeadLegal, Title: "Head of Legal", Level: 6, Division: "Legal", Active: true},
		"HF-001":  {EmployeeID: "HF-001", Name: "Hadi Nugroho", Role: entity.RoleHeadFinance, Title: "Head of Finance", Level: 6, Division: "Finance", Active: true},
		"SF-001":  {EmployeeID: "SF-001", Name: "Indra Kusuma", Role: entity.RoleStaffFinance, Title: "Finance Staff", Level: 2, SupervisorID: "HF-001", Division: "Finance", Active: true},
		"DIR-001": {EmployeeID: "DIR-001", Name: "Joko Wirawan", Role: entity.RoleDirector, Title: "Director of Corporate Affairs", Level: 8, Division: "Corporate", Active: true},
		"DIR-002": {EmployeeID: "DIR-002", Name: "Kartika Dewi", Role: entity.RoleDirector, Title: "Director of Operations", Level: 8, Division: "Operations", Active: true},
	}
}

type fixture struct {
	requests   *memRequestRepo
	agreements *memAgreementRepo
	reqSteps   *memStepRepo
	agrSteps   *memStepRepo
	comments   *memCommentRepo
	resolver   *hierarchy.Resolver
	requestWF  *DocumentRequestWorkflow
	agreeWF    *AgreementWorkflow
}

func newFixture(people map[string]*entity.Person) (*fixture, error) {
	if people == nil {
		people = testOrg()
	}
	resolver, err := hierarchy.NewResolver(&stubDirectory{people: people}, nil, zap.NewNop())
	if err != nil {
		return nil, err
	}
	f := &fixture{
		requests:   newMemRequestRepo(),
		agreements: newMemAgreementRepo(),
		reqSteps:   newMemStepRepo(),
		agrSteps:   newMemStepRepo(),
		comments:   newMemCommentRepo(),
		resolver:   resolver,
	}
	f.requestWF = NewDocumentRequestWorkflow(
		f.requests, ledger.New(f.reqSteps), f.comments, resolver, passTx{}, nil, zap.NewNop())
	f.agreeWF = NewAgreementWorkflow(
		f.agreements, f.requests, f.comments, ledger.New(f.agrSteps), resolver, nil, passTx{}, nil, zap.NewNop())
	return f, nil
}
