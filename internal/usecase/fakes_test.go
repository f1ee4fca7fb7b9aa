package usecase

import (
	"context"
	"errors"
	"fmt"
	"procurement-core/internal/domain/entity"
	"procurement-core/internal/domain/repository"
	"sync"
	"time"
)

// In-memory collaborators shared by the usecase tests.

type memRequests struct {
	mu   sync.Mutex
	rows map[string]*entity.Request
}

func newMemRequests(reqs ...*entity.Request) *memRequests {
	m := &memRequests{rows: map[string]*entity.Request{}}
	for _, r := range reqs {
		m.rows[r.ID] = r
	}
	return m
}

func (m *memRequests) Get(_ context.Context, id string) (*entity.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, entity.ErrRequestNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRequests) List(context.Context) ([]entity.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]entity.Request, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, *r)
	}
	return out, nil
}

func (m *memRequests) Create(_ context.Context, r *entity.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[r.ID] = r
	return nil
}

func (m *memRequests) SetStatus(_ context.Context, id string, status entity.RequestStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return entity.ErrRequestNotFound
	}
	if !r.Status.CanTransitionTo(status) {
		return entity.ErrStatusRegression
	}
	r.Status = status
	return nil
}

func (m *memRequests) SetAddressees(_ context.Context, id string, vendorIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return entity.ErrRequestNotFound
	}
	r.SentTo = vendorIDs
	return nil
}

func (m *memRequests) status(id string) entity.RequestStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id].Status
}

type memVendors struct {
	mu      sync.Mutex
	rows    []entity.Vendor
	listErr error
}

func (m *memVendors) List(context.Context) ([]entity.Vendor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]entity.Vendor(nil), m.rows...), nil
}

func (m *memVendors) FindByEmail(_ context.Context, email string) (*entity.Vendor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.rows {
		if entity.NormalizeEmail(v.Email) == entity.NormalizeEmail(email) {
			cp := v
			return &cp, nil
		}
	}
	return nil, entity.ErrVendorNotFound
}

func (m *memVendors) Get(_ context.Context, id string) (*entity.Vendor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.rows {
		if v.ID == id {
			cp := v
			return &cp, nil
		}
	}
	return nil, entity.ErrVendorNotFound
}

func (m *memVendors) Create(_ context.Context, v *entity.Vendor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, *v)
	return nil
}

// memProposals enforces the (request, vendor) uniqueness the real store gets from its index.
type memProposals struct {
	mu        sync.Mutex
	rows      []entity.Proposal
	existsErr error
	updateErr error
	updates   int
}

func (m *memProposals) Exists(_ context.Context, requestID, vendorID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.existsErr != nil {
		return false, m.existsErr
	}
	for _, p := range m.rows {
		if p.RequestID == requestID && p.VendorID == vendorID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memProposals) Create(_ context.Context, p *entity.Proposal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.RequestID == p.RequestID && row.VendorID == p.VendorID {
			return entity.ErrDuplicateProposal
		}
	}
	m.rows = append(m.rows, *p)
	return nil
}

func (m *memProposals) ListByRequest(_ context.Context, requestID string) ([]entity.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.Proposal
	for _, p := range m.rows {
		if p.RequestID == requestID {
			if p.AIScore != nil {
				s := *p.AIScore
				p.AIScore = &s
			}
			out = append(out, p)
		}
	}
	return out, nil
}

// UpdateScores applies the batch only when every id resolves and updateErr is unset.
func (m *memProposals) UpdateScores(_ context.Context, updates []entity.ScoreUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	idx := make([]int, 0, len(updates))
	for _, u := range updates {
		found := -1
		for i := range m.rows {
			if m.rows[i].ID == u.ProposalID {
				found = i
				break
			}
		}
		if found < 0 {
			return entity.ErrProposalNotFound
		}
		idx = append(idx, found)
	}
	for n, u := range updates {
		s := u.Score
		m.rows[idx[n]].AIScore = &s
		m.rows[idx[n]].AISummary = u.Rationale
		m.updates++
	}
	return nil
}

func (m *memProposals) count(requestID, vendorID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.rows {
		if p.RequestID == requestID && p.VendorID == vendorID {
			n++
		}
	}
	return n
}

func (m *memProposals) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type fakeOracle struct {
	mu           sync.Mutex
	extraction   *entity.Extraction
	extractErr   error
	scoreResult  *entity.ScoreResult
	scoreErr     error
	scoreDelay   time.Duration
	extractCalls int
	scoreCalls   int
}

func (o *fakeOracle) Extract(_ context.Context, _ string, _ *entity.Request) (*entity.Extraction, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.extractCalls++
	if o.extractErr != nil {
		return nil, o.extractErr
	}
	cp := *o.extraction
	return &cp, nil
}

func (o *fakeOracle) Score(_ context.Context, _ *entity.Request, _ []entity.ScoreCandidate) (*entity.ScoreResult, error) {
	if o.scoreDelay > 0 {
		time.Sleep(o.scoreDelay)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.scoreCalls++
	if o.scoreErr != nil {
		return nil, o.scoreErr
	}
	return o.scoreResult, nil
}

func (o *fakeOracle) calls() (extract, score int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.extractCalls, o.scoreCalls
}

type fakeMailbox struct {
	mu         sync.Mutex
	messages   []entity.InboundMessage
	seen       map[uint32]bool
	connectErr error
	searchErr  error
	connects   int
	closes     int
	lastSince  time.Time
	lastTO     time.Duration
	block      chan struct{}
}

func newFakeMailbox(msgs ...entity.InboundMessage) *fakeMailbox {
	return &fakeMailbox{messages: msgs, seen: map[uint32]bool{}}
}

func (f *fakeMailbox) Connect(_ context.Context, timeout time.Duration) (repository.MailboxSession, error) {
	f.mu.Lock()
	f.connects++
	f.lastTO = timeout
	err := f.connectErr
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	return &fakeSession{box: f}, nil
}

func (f *fakeMailbox) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

func (f *fakeMailbox) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

func (f *fakeMailbox) isSeen(uid uint32) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen[uid]
}

type fakeSession struct{ box *fakeMailbox }

func (s *fakeSession) SelectInbox(context.Context) error { return nil }

func (s *fakeSession) SearchUnseenSince(_ context.Context, since time.Time) ([]uint32, error) {
	s.box.mu.Lock()
	defer s.box.mu.Unlock()
	s.box.lastSince = since
	if s.box.searchErr != nil {
		return nil, s.box.searchErr
	}
	var uids []uint32
	for _, m := range s.box.messages {
		if !s.box.seen[m.UID] {
			uids = append(uids, m.UID)
		}
	}
	return uids, nil
}

func (s *fakeSession) Fetch(_ context.Context, uids []uint32) ([]entity.InboundMessage, error) {
	s.box.mu.Lock()
	defer s.box.mu.Unlock()
	want := map[uint32]bool{}
	for _, u := range uids {
		want[u] = true
	}
	var out []entity.InboundMessage
	for _, m := range s.box.messages {
		if want[m.UID] {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeSession) MarkSeen(_ context.Context, uid uint32) error {
	s.box.mu.Lock()
	defer s.box.mu.Unlock()
	s.box.seen[uid] = true
	return nil
}

func (s *fakeSession) Close() error {
	s.box.mu.Lock()
	defer s.box.mu.Unlock()
	s.box.closes++
	return nil
}

type memGuard struct {
	mu     sync.Mutex
	held   map[string]bool
	err    error
	claims int
}

func newMemGuard() *memGuard { return &memGuard{held: map[string]bool{}} }

func (g *memGuard) Claim(_ context.Context, requestID, vendorID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.claims++
	if g.err != nil {
		return false, g.err
	}
	key := requestID + ":" + vendorID
	if g.held[key] {
		return false, nil
	}
	g.held[key] = true
	return true, nil
}

func (g *memGuard) Release(_ context.Context, requestID, vendorID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, requestID+":"+vendorID)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []entity.ProposalEvent
	err    error
}

func (p *recordingPublisher) PublishProposalReceived(_ context.Context, evt entity.ProposalEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evt)
	return nil
}

type recordingArchive struct {
	saved []string
}

func (a *recordingArchive) Save(_ context.Context, p *entity.Proposal, _ []float32) error {
	a.saved = append(a.saved, p.ID)
	return nil
}

func (a *recordingArchive) Search(context.Context, []float32, string, uint64) ([]entity.ArchivedReply, error) {
	return nil, nil
}

type staticEmbedder struct{ err error }

func (e staticEmbedder) CreateEmbedding(context.Context, string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

// fixture builds the R1/V1 scenario: a sent request with two line items and one vendor.
type fixture struct {
	req       *entity.Request
	vendor    entity.Vendor
	requests  *memRequests
	vendors   *memVendors
	proposals *memProposals
	oracle    *fakeOracle
}

func newFixture() *fixture {
	req := &entity.Request{
		ID:                   "0123456789abcdef01234567",
		Title:                "Laptops",
		Budget:               50000,
		DeliveryDeadlineDays: 30,
		PaymentTerms:         "net 30",
		LineItems: []entity.LineItem{
			{ItemType: "laptop", Quantity: 20, Specs: "16GB RAM"},
			{ItemType: "monitor", Quantity: 15, Specs: "27-inch"},
		},
		Status: entity.StatusSent,
	}
	vendor := entity.Vendor{ID: "aaaaaaaaaaaaaaaaaaaaaaaa", Name: "Acme Supply", Email: "sales@acme.test"}
	return &fixture{
		req:       req,
		vendor:    vendor,
		requests:  newMemRequests(req),
		vendors:   &memVendors{rows: []entity.Vendor{vendor}},
		proposals: &memProposals{},
		oracle: &fakeOracle{extraction: &entity.Extraction{
			TotalPrice:     42000,
			DeliveryDays:   21,
			PaymentTerms:   "net 30",
			WarrantyMonths: 24,
		}},
	}
}

func (f *fixture) ingestor(opts ...IngestorOption) *Ingestor {
	return NewIngestor(f.requests, f.vendors, f.proposals, f.oracle, opts...)
}

func (f *fixture) reply(uid uint32) entity.InboundMessage {
	return entity.InboundMessage{
		UID:     uid,
		From:    f.vendor.Email,
		Subject: "Re: " + entity.ProposalSubject(f.req),
		Body:    "Total $42,000, delivery in 21 days, 24 month warranty.",
	}
}

var errBoom = errors.New("boom")

func score(v float64) *float64 { return &v }

func proposalFor(requestID, vendorID string, price float64, s *float64) entity.Proposal {
	return entity.Proposal{
		ID:         fmt.Sprintf("p-%s", vendorID),
		RequestID:  requestID,
		VendorID:   vendorID,
		VendorName: "Vendor " + vendorID,
		TotalPrice: price,
		Currency:   entity.DefaultCurrency,
		AIScore:    s,
	}
}
