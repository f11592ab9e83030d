package registrations

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapease/backend/internal/credential"
	"github.com/mapease/backend/internal/models"
	"github.com/mapease/backend/pkg/queue"
)

// memStore is an in-memory Store with the same conditional-update semantics
// as the SQL implementation.
type memStore struct {
	mu     sync.Mutex
	events map[uuid.UUID]*models.Event
	regs   map[uuid.UUID]*models.Registration
}

func newMemStore() *memStore {
	return &memStore{
		events: make(map[uuid.UUID]*models.Event),
		regs:   make(map[uuid.UUID]*models.Registration),
	}
}

func (m *memStore) addEvent(tenantID uuid.UUID, eventType models.EventType, active bool) *models.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := &models.Event{
		ID:        uuid.New(),
		TenantID:  tenantID,
		EventName: "Tech Expo",
		EventType: eventType,
		IsActive:  active,
	}
	m.events[e.ID] = e
	return e
}

func (m *memStore) ActiveEvent(_ context.Context, eventID, tenantID uuid.UUID) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[eventID]
	if !ok || !e.IsActive || e.TenantID != tenantID {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (m *memStore) ByEventAndEmail(_ context.Context, eventID uuid.UUID, email string) (*models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.regs {
		if r.EventID == eventID && r.Email == email {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) ByID(_ context.Context, id, eventID, tenantID uuid.UUID) (*models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regs[id]
	if !ok || r.EventID != eventID {
		return nil, nil
	}
	if e, ok := m.events[r.EventID]; !ok || e.TenantID != tenantID {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) Insert(_ context.Context, reg *models.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.regs {
		if r.EventID == reg.EventID && r.Email == reg.Email {
			return ErrDuplicateKey
		}
	}
	reg.ID = uuid.New()
	reg.Status = models.StatusPending
	reg.CreatedAt = time.Now()
	cp := *reg
	m.regs[reg.ID] = &cp
	return nil
}

func (m *memStore) MarkApproved(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regs[id]
	if !ok || r.Status != models.StatusPending {
		return false, nil
	}
	r.Status = models.StatusApproved
	return true, nil
}

func (m *memStore) MarkRejected(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regs[id]
	if !ok || r.Status != models.StatusPending {
		return false, nil
	}
	r.Status = models.StatusRejected
	return true, nil
}

func (m *memStore) SetCredentialIfEmpty(_ context.Context, id uuid.UUID, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regs[id]
	if !ok || r.QRCode != nil {
		return false, nil
	}
	v := value
	r.QRCode = &v
	return true, nil
}

func (m *memStore) ApprovedByCredential(_ context.Context, eventID uuid.UUID, value string) (*models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.regs {
		if r.EventID == eventID && r.Status == models.StatusApproved && r.QRCode != nil && *r.QRCode == value {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) Consume(_ context.Context, id uuid.UUID) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regs[id]
	if !ok {
		return time.Time{}, false, errors.New("missing registration")
	}
	if r.Scanned {
		return *r.ScannedAt, false, nil
	}
	now := time.Now()
	r.Scanned = true
	r.ScannedAt = &now
	return now, true, nil
}

func (m *memStore) get(id uuid.UUID) *models.Registration {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.regs[id]
	return &cp
}

// failingIssuer always fails, simulating an issuer outage.
type failingIssuer struct{}

func (failingIssuer) Issue(uuid.UUID) (string, error) {
	return "", errors.New("issuer unavailable")
}

// memQueue records enqueued credential image jobs.
type memQueue struct {
	mu   sync.Mutex
	jobs []queue.CredentialImagePayload
}

func (q *memQueue) EnqueueCredentialImage(_ context.Context, p queue.CredentialImagePayload) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, p)
	return nil
}

// failingUploader simulates object storage being down.
type failingUploader struct{}

func (failingUploader) UploadQRImage(context.Context, string, []byte) (string, error) {
	return "", errors.New("storage unavailable")
}

func newTestService(store Store) *Service {
	return NewService(store, credential.NewGenerator(), nil, nil, nil)
}

func register(t *testing.T, svc *Service, tenantID, eventID uuid.UUID, email string) *Result {
	t.Helper()
	res, err := svc.Register(context.Background(), tenantID, eventID, RegisterInput{
		Name:  "Asha",
		Email: email,
	})
	require.NoError(t, err)
	return res
}

func TestRegisterPrivateEventStaysPending(t *testing.T) {
	store := newMemStore()
	tenantID := uuid.New()
	event := store.addEvent(tenantID, models.EventTypePrivate, true)
	svc := newTestService(store)

	res := register(t, svc, tenantID, event.ID, "asha@example.com")
	assert.Equal(t, models.StatusPending, res.Registration.Status)
	assert.Nil(t, res.Registration.QRCode)
	assert.False(t, res.Registration.Scanned)
}

func TestRegisterOpenEventAutoApproves(t *testing.T) {
	store := newMemStore()
	tenantID := uuid.New()
	event := store.addEvent(tenantID, models.EventTypeOpen, true)
	svc := newTestService(store)

	res := register(t, svc, tenantID, event.ID, "asha@example.com")
	assert.Equal(t, models.StatusApproved, res.Registration.Status)
	require.NotNil(t, res.Registration.QRCode)
	assert.NotEmpty(t, *res.Registration.QRCode)
}

func TestRegisterEventNotFound(t *testing.T) {
	store := newMemStore()
	tenantID := uuid.New()
	inactive := store.addEvent(tenantID, models.EventTypeOpen, false)
	otherTenant := store.addEvent(uuid.New(), models.EventTypeOpen, true)
	svc := newTestService(store)

	cases := map[string]uuid.UUID{
		"unknown":      uuid.New(),
		"inactive":     inactive.ID,
		"wrong tenant": otherTenant.ID,
	}
	for name, eventID := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tenantID, eventID, RegisterInput{Name: "A", Email: "a@b.c"})
			assert.ErrorIs(t, err, ErrEventNotFound)
		})
	}
}

func TestRegisterDuplicateReturnsOriginalUnchanged(t *testing.T) {
	store := newMemStore()
	tenantID := uuid.New()
	event := store.addEvent(tenantID, models.EventTypePrivate, true)
	svc := newTestService(store)

	first := register(t, svc, tenantID, event.ID, "asha@example.com")

	_, err := svc.Register(context.Background(), tenantID, event.ID, RegisterInput{
		Name:  "Someone Else",
		Email: "asha@example.com",
	})
	var dup *DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, first.Registration.ID, dup.Existing.ID)
	assert.Equal(t, "Asha", dup.Existing.Name)
	assert.Equal(t, models.StatusPending, dup.Existing.Status)
}

func TestApproveIssuesUniqueCredentials(t *testing.T) {
	store := newMemStore()
	tenantID := uuid.New()
	event := store.addEvent(tenantID, models.EventTypePrivate, true)
	svc := newTestService(store)

	a := register(t, svc, tenantID, event.ID, "a@example.com")
	b := register(t, svc, tenantID, event.ID, "b@example.com")

	resA, err := svc.Approve(context.Background(), tenantID, event.ID, a.Registration.ID)
	require.NoError(t, err)
	resB, err := svc.Approve(context.Background(), tenantID, event.ID, b.Registration.ID)
	require.NoError(t, err)

	require.NotNil(t, resA.Registration.QRCode)
	require.NotNil(t, resB.Registration.QRCode)
	assert.NotEqual(t, *resA.Registration.QRCode, *resB.Registration.QRCode)
}

func TestApproveTwiceFailsAndKeepsCredential(t *testing.T) {
	store := newMemStore()
	tenantID := uuid.New()
	event := store.addEvent(tenantID, models.EventTypePrivate, true)
	svc := newTestService(store)

	reg := register(t, svc, tenantID, event.ID, "asha@example.com")
	res, err := svc.Approve(context.Background(), tenantID, event.ID, reg.Registration.ID)
	require.NoError(t, err)
	issued := *res.Registration.QRCode

	_, err = svc.Approve(context.Background(), tenantID, event.ID, reg.Registration.ID)
	assert.ErrorIs(t, err, ErrAlreadyApproved)
	assert.Equal(t, issued, *store.get(reg.Registration.ID).QRCode)
}

func TestRejectAfterApproveFails(t *testing.T) {
	store := newMemStore()
	tenantID := uuid.New()
	event := store.addEvent(tenantID, models.EventTypePrivate, true)
	svc := newTestService(store)

	reg := register(t, svc, tenantID, event.ID, "asha@example.com")
	_, err := svc.Approve(context.Background(), tenantID, event.ID, reg.Registration.ID)
	require.NoError(t, err)

	_, err = svc.Reject(context.Background(), tenantID, event.ID, reg.Registration.ID)
	var finalized *FinalizedError
	require.ErrorAs(t, err, &finalized)
	assert.Equal(t, models.StatusApproved, finalized.Status)
}

func TestApproveAfterRejectFails(t *testing.T) {
	store := newMemStore()
	tenantID := uuid.New()
	event := store.addEvent(tenantID, models.EventTypePrivate, true)
	svc := newTestService(store)

	reg := register(t, svc, tenantID, event.ID, "asha@example.com")
	rejected, err := svc.Reject(context.Background(), tenantID, event.ID, reg.Registration.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, rejected.Status)

	_, err = svc.Approve(context.Background(), tenantID, event.ID, reg.Registration.ID)
	var finalized *FinalizedError
	require.ErrorAs(t, err, &finalized)
	assert.Equal(t, models.StatusRejected, finalized.Status)
}

func TestIssuanceFailureKeepsApprovalAndRetryReissues(t *testing.T) {
	store := newMemStore()
	tenantID := uuid.New()
	event := store.addEvent(tenantID, models.EventTypePrivate, true)

	broken := NewService(store, failingIssuer{}, nil, nil, nil)
	healthy := newTestService(store)

	reg := register(t, broken, tenantID, event.ID, "asha@example.com")
	res, err := broken.Approve(context.Background(), tenantID, event.ID, reg.Registration.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Warning)
	assert.Equal(t, models.StatusApproved, store.get(reg.Registration.ID).Status)
	assert.Nil(t, store.get(reg.Registration.ID).QRCode)

	// A later approval on the same service (now with a working issuer)
	// completes issuance rather than failing AlreadyApproved.
	res, err = healthy.Approve(context.Background(), tenantID, event.ID, reg.Registration.ID)
	require.NoError(t, err)
	assert.Empty(t, res.Warning)
	require.NotNil(t, store.get(reg.Registration.ID).QRCode)
}

func TestImageUploadFailureWarnsAndQueuesReRender(t *testing.T) {
	store := newMemStore()
	tenantID := uuid.New()
	event := store.addEvent(tenantID, models.EventTypePrivate, true)
	jobs := &memQueue{}
	svc := NewService(store, credential.NewGenerator(), credential.NewImageStore(failingUploader{}), jobs, nil)

	reg := register(t, svc, tenantID, event.ID, "asha@example.com")
	res, err := svc.Approve(context.Background(), tenantID, event.ID, reg.Registration.ID)
	require.NoError(t, err)

	assert.Equal(t, models.StatusApproved, res.Registration.Status)
	assert.NotEmpty(t, res.Warning)
	assert.Empty(t, res.QRImageURL)
	require.Len(t, jobs.jobs, 1)
	assert.Equal(t, reg.Registration.ID, jobs.jobs[0].RegistrationID)
	assert.Equal(t, *res.Registration.QRCode, jobs.jobs[0].Credential)
}

func TestScanConsumesExactlyOnce(t *testing.T) {
	store := newMemStore()
	tenantID := uuid.New()
	event := store.addEvent(tenantID, models.EventTypePrivate, true)
	svc := newTestService(store)

	reg := register(t, svc, tenantID, event.ID, "asha@example.com")
	res, err := svc.Approve(context.Background(), tenantID, event.ID, reg.Registration.ID)
	require.NoError(t, err)
	cred := *res.Registration.QRCode

	scan, err := svc.ScanAndConsume(context.Background(), tenantID, event.ID, cred)
	require.NoError(t, err)
	assert.Equal(t, reg.Registration.ID, scan.RegistrationID)
	assert.Equal(t, "Asha", scan.Name)
	assert.False(t, scan.ScannedAt.IsZero())

	_, err = svc.ScanAndConsume(context.Background(), tenantID, event.ID, cred)
	var consumed *ConsumedError
	require.ErrorAs(t, err, &consumed)
	assert.Equal(t, scan.ScannedAt, consumed.ConsumedAt)
}

func TestScanUnknownOrUnapprovedCredential(t *testing.T) {
	store := newMemStore()
	tenantID := uuid.New()
	event := store.addEvent(tenantID, models.EventTypePrivate, true)
	svc := newTestService(store)

	register(t, svc, tenantID, event.ID, "pending@example.com")

	_, err := svc.ScanAndConsume(context.Background(), tenantID, event.ID, "no-such-credential")
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestConcurrentScansHaveOneWinner(t *testing.T) {
	store := newMemStore()
	tenantID := uuid.New()
	event := store.addEvent(tenantID, models.EventTypePrivate, true)
	svc := newTestService(store)

	reg := register(t, svc, tenantID, event.ID, "asha@example.com")
	res, err := svc.Approve(context.Background(), tenantID, event.ID, reg.Registration.ID)
	require.NoError(t, err)
	cred := *res.Registration.QRCode

	const scans = 16
	var wg sync.WaitGroup
	results := make([]error, scans)
	wins := make([]*ScanResult, scans)
	for i := 0; i < scans; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			wins[i], results[i] = svc.ScanAndConsume(context.Background(), tenantID, event.ID, cred)
		}(i)
	}
	wg.Wait()

	var winners int
	var winnerAt time.Time
	for i := 0; i < scans; i++ {
		if results[i] == nil {
			winners++
			winnerAt = wins[i].ScannedAt
		}
	}
	require.Equal(t, 1, winners)
	for i := 0; i < scans; i++ {
		if results[i] == nil {
			continue
		}
		var consumed *ConsumedError
		require.ErrorAs(t, results[i], &consumed)
		assert.Equal(t, winnerAt, consumed.ConsumedAt)
	}
}

func TestVenueAccess(t *testing.T) {
	cases := []struct {
		name    string
		status  models.RegistrationStatus
		scanned bool
		want    bool
	}{
		{"approved and scanned", models.StatusApproved, true, true},
		{"approved not scanned", models.StatusApproved, false, false},
		{"pending", models.StatusPending, false, false},
		{"rejected", models.StatusRejected, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reg := &models.Registration{Status: tc.status, Scanned: tc.scanned}
			assert.Equal(t, tc.want, VenueAccess(reg))
		})
	}
	assert.False(t, VenueAccess(nil))
}

func TestPrivateEventFullFlow(t *testing.T) {
	store := newMemStore()
	tenantID := uuid.New()
	event := store.addEvent(tenantID, models.EventTypePrivate, true)
	svc := newTestService(store)

	reg := register(t, svc, tenantID, event.ID, "asha@example.com")
	assert.Equal(t, models.StatusPending, reg.Registration.Status)

	approved, err := svc.Approve(context.Background(), tenantID, event.ID, reg.Registration.ID)
	require.NoError(t, err)
	require.NotNil(t, approved.Registration.QRCode)

	scan, err := svc.ScanAndConsume(context.Background(), tenantID, event.ID, *approved.Registration.QRCode)
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", scan.Email)

	assert.True(t, VenueAccess(store.get(reg.Registration.ID)))
}
