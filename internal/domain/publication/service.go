package publication

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/covercheck/covercheck/internal/platform/blobstore"
)

// The three publish steps are distinct failure domains. A storage
// failure means nothing was recorded; an audit-write failure means
// the artifact exists in storage but is unregistered and needs
// manual reconciliation.
var (
	ErrArtifactStorage = errors.New("artifact storage failed")
	ErrAuditWrite      = errors.New("audit record write failed, artifact orphaned")
	ErrNotFound        = errors.New("publication not found")
)

// PublishRequest is the request context captured in the audit record.
type PublishRequest struct {
	ConsultantID         string
	ConsultantName       string
	CustomerName         string
	CustomerSex          string
	CustomerAgeBand      string
	YearStart            int
	YearEnd              int
	SortBasis            string
	MinPrevalencePer100k float64
	MinCostPerPatient    float64
	Filename             string
}

// Service is the publication recorder.
type Service struct {
	repo           Repository
	blobs          blobstore.BlobStore
	serviceCode    string
	contentVersion string
	tz             *time.Location
	log            zerolog.Logger
	now            func() time.Time
}

func NewService(repo Repository, blobs blobstore.BlobStore, serviceCode, contentVersion string, tz *time.Location, log zerolog.Logger) *Service {
	if tz == nil {
		tz = time.UTC
	}
	return &Service{
		repo:           repo,
		blobs:          blobs,
		serviceCode:    serviceCode,
		contentVersion: contentVersion,
		tz:             tz,
		log:            log,
		now:            time.Now,
	}
}

// Publish stores the rendered PDF and writes the audit record. On
// success the returned record carries the compliance code stamped on
// the pamphlet.
func (s *Service) Publish(ctx context.Context, req PublishRequest, pdf []byte) (*PublicationRecord, error) {
	if len(pdf) == 0 {
		return nil, fmt.Errorf("empty artifact")
	}
	// Checked before a sequence number is consumed; an oversized upload
	// is the caller's error, not a storage failure.
	if len(pdf) > blobstore.MaxArtifactSize {
		return nil, blobstore.ErrArtifactTooLarge
	}

	now := s.now().In(s.tz)
	seq, err := s.repo.NextDailySequence(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("generate compliance code: %w", err)
	}
	code := fmt.Sprintf("%d-%s-%s-%s-%03d",
		now.Year(), s.serviceCode, s.contentVersion, now.Format("0102"), seq)
	key := fmt.Sprintf("reports/%d/%s/%s.pdf", now.Year(), now.Format("0102"), code)

	if err := s.blobs.Put(ctx, key, pdf, "application/pdf"); err != nil {
		if errors.Is(err, blobstore.ErrArtifactTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrArtifactStorage, err)
	}

	rec := &PublicationRecord{
		ComplianceCode:       code,
		ConsultantID:         req.ConsultantID,
		ConsultantName:       req.ConsultantName,
		CustomerName:         req.CustomerName,
		CustomerSex:          req.CustomerSex,
		CustomerAgeBand:      req.CustomerAgeBand,
		YearStart:            req.YearStart,
		YearEnd:              req.YearEnd,
		SortBasis:            req.SortBasis,
		MinPrevalencePer100k: req.MinPrevalencePer100k,
		MinCostPerPatient:    req.MinCostPerPatient,
		ArtifactKey:          key,
		ArtifactFilename:     req.Filename,
		ContentVersion:       s.contentVersion,
		CreatedAt:            now,
	}
	if err := s.repo.Insert(ctx, rec); err != nil {
		s.log.Error().Err(err).
			Str("compliance_code", code).
			Str("blob_key", key).
			Msg("artifact stored but audit record failed, orphaned blob needs reconciliation")
		return nil, fmt.Errorf("%w: %v", ErrAuditWrite, err)
	}
	return rec, nil
}

// Get looks up one publication record by its compliance code.
func (s *Service) Get(ctx context.Context, code string) (*PublicationRecord, error) {
	return s.repo.GetByCode(ctx, code)
}

// List returns a consultant's own records, newest first.
func (s *Service) List(ctx context.Context, consultantID string, limit, offset int) ([]*PublicationRecord, int, error) {
	return s.repo.ListByConsultant(ctx, consultantID, limit, offset)
}

// Download fetches the stored artifact for a record.
func (s *Service) Download(ctx context.Context, rec *PublicationRecord) ([]byte, string, error) {
	data, contentType, err := s.blobs.Get(ctx, rec.ArtifactKey)
	if err != nil {
		return nil, "", fmt.Errorf("fetch artifact %s: %w", rec.ArtifactKey, err)
	}
	return data, contentType, nil
}

// RecordEvent appends one entry to the audit event log. Failures are
// logged, not surfaced: event logging never blocks serving the
// record itself.
func (s *Service) RecordEvent(ctx context.Context, code, eventType, actorType, actorID string) {
	if !validEventType(eventType) {
		s.log.Warn().Str("event_type", eventType).Msg("dropping unknown audit event type")
		return
	}
	ev := &AuditEvent{
		ComplianceCode: code,
		EventType:      eventType,
		ActorType:      actorType,
		ActorID:        actorID,
		CreatedAt:      s.now().In(s.tz),
	}
	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error().Err(err).
			Str("compliance_code", code).
			Str("event_type", eventType).
			Msg("audit event write failed")
	}
}

// Events returns the audit trail for one record, newest first.
func (s *Service) Events(ctx context.Context, code string, limit, offset int) ([]*AuditEvent, int, error) {
	return s.repo.ListEvents(ctx, code, limit, offset)
}
