package registrations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mapease/backend/internal/credential"
	"github.com/mapease/backend/internal/models"
	"github.com/mapease/backend/pkg/queue"
)

// ErrDuplicateKey is returned by Store.Insert when the (event, email) unique
// constraint is violated by a concurrent insert.
var ErrDuplicateKey = errors.New("duplicate registration key")

// Store is the persistence contract of the lifecycle engine. Every state
// mutation is a single conditional update; two admins or two gate scans
// racing must lose at the database, never both win.
type Store interface {
	// ActiveEvent returns the active event within the tenant, or nil.
	ActiveEvent(ctx context.Context, eventID, tenantID uuid.UUID) (*models.Event, error)
	// ByEventAndEmail returns the registration for (event, email), or nil.
	ByEventAndEmail(ctx context.Context, eventID uuid.UUID, email string) (*models.Registration, error)
	// ByID returns the registration scoped to the tenant's event, or nil.
	ByID(ctx context.Context, id, eventID, tenantID uuid.UUID) (*models.Registration, error)
	// Insert creates a PENDING registration, or ErrDuplicateKey.
	Insert(ctx context.Context, reg *models.Registration) error
	// MarkApproved flips PENDING to APPROVED; false when the row was not
	// PENDING.
	MarkApproved(ctx context.Context, id uuid.UUID) (bool, error)
	// MarkRejected flips PENDING to REJECTED; false when the row was not
	// PENDING.
	MarkRejected(ctx context.Context, id uuid.UUID) (bool, error)
	// SetCredentialIfEmpty persists the credential reference unless one is
	// already stored; false when a credential already exists.
	SetCredentialIfEmpty(ctx context.Context, id uuid.UUID, value string) (bool, error)
	// ApprovedByCredential returns the APPROVED registration holding the
	// credential within the event, or nil.
	ApprovedByCredential(ctx context.Context, eventID uuid.UUID, value string) (*models.Registration, error)
	// Consume flips scanned false to true and stamps the time. When the flag
	// was already set, won is false and scannedAt is the original timestamp.
	Consume(ctx context.Context, id uuid.UUID) (scannedAt time.Time, won bool, err error)
}

// ImageQueuer enqueues background re-renders of credential images.
type ImageQueuer interface {
	EnqueueCredentialImage(ctx context.Context, payload queue.CredentialImagePayload) error
}

// RegisterInput is the registrant-supplied part of a registration.
type RegisterInput struct {
	Name   string
	Email  string
	Phone  *string
	UserID *uuid.UUID // linked principal, when the email matches a known user
}

// Result is the outcome of register and approve operations. Warning carries
// non-fatal credential-image degradations; the approval itself never rolls
// back on them.
type Result struct {
	Registration *models.Registration
	QRImageURL   string
	Warning      string
}

// ScanResult is what the gate displays after a winning scan.
type ScanResult struct {
	RegistrationID uuid.UUID `json:"registration_id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	ScannedAt      time.Time `json:"scanned_at"`
}

// Service drives registrations through their lifecycle:
// PENDING -> APPROVED (credential issued) -> consumed, or PENDING -> REJECTED.
type Service struct {
	store  Store
	issuer credential.Issuer
	images *credential.ImageStore // nil when object storage is not configured
	jobs   ImageQueuer            // nil disables background re-render
	logger *zap.Logger
}

// NewService creates the lifecycle engine. images and jobs may be nil; the
// engine then issues credentials without rendered QR images.
func NewService(store Store, issuer credential.Issuer, images *credential.ImageStore, jobs ImageQueuer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, issuer: issuer, images: images, jobs: jobs, logger: logger}
}

// Register creates a registration for an active event of the tenant. OPEN
// events run the approve transition within the same call, so their
// registrants never observe PENDING.
func (s *Service) Register(ctx context.Context, tenantID, eventID uuid.UUID, in RegisterInput) (*Result, error) {
	event, err := s.store.ActiveEvent(ctx, eventID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load event: %w", err)
	}
	if event == nil {
		return nil, ErrEventNotFound
	}

	if existing, err := s.store.ByEventAndEmail(ctx, eventID, in.Email); err != nil {
		return nil, fmt.Errorf("check existing registration: %w", err)
	} else if existing != nil {
		return nil, &DuplicateError{Existing: existing}
	}

	reg := &models.Registration{
		EventID: eventID,
		UserID:  in.UserID,
		Name:    in.Name,
		Email:   in.Email,
		Phone:   in.Phone,
		Status:  models.StatusPending,
	}
	if err := s.store.Insert(ctx, reg); err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			// Lost an insert race; surface the winner as the duplicate.
			existing, lookupErr := s.store.ByEventAndEmail(ctx, eventID, in.Email)
			if lookupErr == nil && existing != nil {
				return nil, &DuplicateError{Existing: existing}
			}
		}
		return nil, fmt.Errorf("insert registration: %w", err)
	}

	if event.EventType == models.EventTypeOpen {
		return s.approve(ctx, reg)
	}
	return &Result{Registration: reg}, nil
}

// Approve transitions a PENDING registration to APPROVED and issues its
// credential. An APPROVED registration without a stored credential is the
// documented retry path and re-enters issuance; with one it fails
// ErrAlreadyApproved.
func (s *Service) Approve(ctx context.Context, tenantID, eventID, regID uuid.UUID) (*Result, error) {
	reg, err := s.store.ByID(ctx, regID, eventID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load registration: %w", err)
	}
	if reg == nil {
		return nil, ErrRegistrationNotFound
	}
	return s.approve(ctx, reg)
}

func (s *Service) approve(ctx context.Context, reg *models.Registration) (*Result, error) {
	won, err := s.store.MarkApproved(ctx, reg.ID)
	if err != nil {
		return nil, fmt.Errorf("approve registration: %w", err)
	}
	if !won {
		// Lost the transition; decide from the row as it is now, not from the
		// snapshot read before the race.
		current, err := s.store.ByEventAndEmail(ctx, reg.EventID, reg.Email)
		if err != nil {
			return nil, fmt.Errorf("reload registration: %w", err)
		}
		if current == nil {
			return nil, ErrRegistrationNotFound
		}
		switch current.Status {
		case models.StatusApproved:
			if current.HasCredential() {
				return nil, ErrAlreadyApproved
			}
			// Approved earlier but issuance failed; re-issue below.
			reg = current
		default:
			return nil, &FinalizedError{Status: current.Status}
		}
	}
	reg.Status = models.StatusApproved

	value, err := s.issuer.Issue(reg.ID)
	if err != nil {
		// The approval stands; the human decision must survive a transient
		// issuance failure. A later Approve call re-issues.
		s.logger.Error("credential issuance failed",
			zap.String("registration_id", reg.ID.String()), zap.Error(err))
		return &Result{Registration: reg, Warning: "approved, but credential issuance failed; retry approval to issue"}, nil
	}
	set, err := s.store.SetCredentialIfEmpty(ctx, reg.ID, value)
	if err != nil {
		s.logger.Error("credential persist failed",
			zap.String("registration_id", reg.ID.String()), zap.Error(err))
		return &Result{Registration: reg, Warning: "approved, but credential issuance failed; retry approval to issue"}, nil
	}
	if !set {
		// A concurrent approval already persisted one; reuse it so exactly one
		// credential stays live.
		current, err := s.store.ByEventAndEmail(ctx, reg.EventID, reg.Email)
		if err != nil || current == nil || !current.HasCredential() {
			return nil, ErrAlreadyApproved
		}
		value = *current.QRCode
	}
	reg.QRCode = &value

	result := &Result{Registration: reg}
	if s.images == nil {
		return result, nil
	}
	imageURL, err := s.images.Store(ctx, value)
	if err != nil {
		s.logger.Warn("qr image upload failed, scheduling re-render",
			zap.String("registration_id", reg.ID.String()), zap.Error(err))
		result.Warning = "approved; QR image rendering failed and will be retried"
		if s.jobs != nil {
			if qErr := s.jobs.EnqueueCredentialImage(ctx, queue.CredentialImagePayload{
				RegistrationID: reg.ID,
				EventID:        reg.EventID,
				Credential:     value,
			}); qErr != nil {
				s.logger.Error("enqueue credential image job failed", zap.Error(qErr))
			}
		}
		return result, nil
	}
	result.QRImageURL = imageURL
	return result, nil
}

// Reject transitions a PENDING registration to REJECTED. Rejection is not
// reversible through this path.
func (s *Service) Reject(ctx context.Context, tenantID, eventID, regID uuid.UUID) (*models.Registration, error) {
	reg, err := s.store.ByID(ctx, regID, eventID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load registration: %w", err)
	}
	if reg == nil {
		return nil, ErrRegistrationNotFound
	}
	won, err := s.store.MarkRejected(ctx, reg.ID)
	if err != nil {
		return nil, fmt.Errorf("reject registration: %w", err)
	}
	if !won {
		return nil, &FinalizedError{Status: reg.Status}
	}
	reg.Status = models.StatusRejected
	return reg, nil
}

// ScanAndConsume redeems a presented credential at the venue gate. The
// consumed flag check-and-set is one conditional update, so of two
// concurrent scans exactly one wins; the loser receives the winner's
// timestamp.
func (s *Service) ScanAndConsume(ctx context.Context, tenantID, eventID uuid.UUID, credentialValue string) (*ScanResult, error) {
	event, err := s.store.ActiveEvent(ctx, eventID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load event: %w", err)
	}
	if event == nil {
		return nil, ErrEventNotFound
	}
	reg, err := s.store.ApprovedByCredential(ctx, eventID, credentialValue)
	if err != nil {
		return nil, fmt.Errorf("lookup credential: %w", err)
	}
	if reg == nil {
		return nil, ErrCredentialNotFound
	}
	scannedAt, won, err := s.store.Consume(ctx, reg.ID)
	if err != nil {
		return nil, fmt.Errorf("consume credential: %w", err)
	}
	if !won {
		return nil, &ConsumedError{ConsumedAt: scannedAt}
	}
	return &ScanResult{
		RegistrationID: reg.ID,
		Name:           reg.Name,
		Email:          reg.Email,
		ScannedAt:      scannedAt,
	}, nil
}

// VenueAccess is the single predicate downstream venue features (the map
// viewer) may depend on: approved and consumed, nothing else.
func VenueAccess(reg *models.Registration) bool {
	return reg != nil && reg.Status == models.StatusApproved && reg.Scanned
}
