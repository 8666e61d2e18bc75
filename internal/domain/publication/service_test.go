package publication

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/covercheck/covercheck/internal/platform/blobstore"
)

type mockRepo struct {
	seqByDay  map[string]int
	records   map[string]*PublicationRecord
	events    []*AuditEvent
	insertErr error
	seqErr    error
	eventErr  error
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		seqByDay: make(map[string]int),
		records:  make(map[string]*PublicationRecord),
	}
}

func (m *mockRepo) NextDailySequence(_ context.Context, day time.Time) (int, error) {
	if m.seqErr != nil {
		return 0, m.seqErr
	}
	key := day.Format("2006-01-02")
	m.seqByDay[key]++
	return m.seqByDay[key], nil
}

func (m *mockRepo) Insert(_ context.Context, rec *PublicationRecord) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.records[rec.ComplianceCode] = rec
	return nil
}

func (m *mockRepo) GetByCode(_ context.Context, code string) (*PublicationRecord, error) {
	rec, ok := m.records[code]
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

func (m *mockRepo) ListByConsultant(_ context.Context, consultantID string, limit, offset int) ([]*PublicationRecord, int, error) {
	var items []*PublicationRecord
	for _, r := range m.records {
		if r.ConsultantID == consultantID {
			items = append(items, r)
		}
	}
	return items, len(items), nil
}

func (m *mockRepo) InsertEvent(_ context.Context, ev *AuditEvent) error {
	if m.eventErr != nil {
		return m.eventErr
	}
	m.events = append(m.events, ev)
	return nil
}

func (m *mockRepo) ListEvents(_ context.Context, code string, limit, offset int) ([]*AuditEvent, int, error) {
	var items []*AuditEvent
	for _, ev := range m.events {
		if ev.ComplianceCode == code {
			items = append(items, ev)
		}
	}
	return items, len(items), nil
}

type failingBlobStore struct{}

func (failingBlobStore) Put(context.Context, string, []byte, string) error {
	return errors.New("bucket unreachable")
}

func (failingBlobStore) Get(context.Context, string) ([]byte, string, error) {
	return nil, "", blobstore.ErrBlobNotFound
}

func newTestPublicationService(repo Repository, blobs blobstore.BlobStore) *Service {
	svc := NewService(repo, blobs, "COVERCHECK", "V1", time.UTC, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC) }
	return svc
}

func sampleRequest() PublishRequest {
	return PublishRequest{
		ConsultantID:    "FC-7",
		ConsultantName:  "Kim",
		CustomerSex:     "F",
		CustomerAgeBand: "40-49",
		YearStart:       2023,
		YearEnd:         2024,
		SortBasis:       "total_cost",
		Filename:        "pamphlet.pdf",
	}
}

func TestPublish(t *testing.T) {
	repo := newMockRepo()
	blobs := blobstore.NewInMemoryBlobStore()
	svc := newTestPublicationService(repo, blobs)

	rec, err := svc.Publish(context.Background(), sampleRequest(), []byte("%PDF-1.7"))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	want := "2026-COVERCHECK-V1-0826-001"
	if rec.ComplianceCode != want {
		t.Errorf("compliance code = %q, want %q", rec.ComplianceCode, want)
	}
	if rec.ArtifactKey != "reports/2026/0826/"+want+".pdf" {
		t.Errorf("artifact key = %q", rec.ArtifactKey)
	}
	if _, ok := repo.records[want]; !ok {
		t.Error("audit record not written")
	}
	if data, _, err := blobs.Get(context.Background(), rec.ArtifactKey); err != nil || len(data) == 0 {
		t.Errorf("artifact not stored: %v", err)
	}
}

func TestPublishCodeFormat(t *testing.T) {
	svc := newTestPublicationService(newMockRepo(), blobstore.NewInMemoryBlobStore())
	rec, err := svc.Publish(context.Background(), sampleRequest(), []byte("pdf"))
	if err != nil {
		t.Fatal(err)
	}
	pattern := regexp.MustCompile(`^\d{4}-COVERCHECK-V1-\d{4}-\d{3}$`)
	if !pattern.MatchString(rec.ComplianceCode) {
		t.Errorf("compliance code %q does not match pattern", rec.ComplianceCode)
	}
}

func TestPublishStorageFailureWritesNoRecord(t *testing.T) {
	repo := newMockRepo()
	svc := newTestPublicationService(repo, failingBlobStore{})

	_, err := svc.Publish(context.Background(), sampleRequest(), []byte("pdf"))
	if !errors.Is(err, ErrArtifactStorage) {
		t.Fatalf("expected ErrArtifactStorage, got %v", err)
	}
	if errors.Is(err, ErrAuditWrite) {
		t.Fatal("storage failure must not be an audit-write failure")
	}
	if len(repo.records) != 0 {
		t.Error("no audit record may exist after a storage failure")
	}
}

func TestPublishAuditFailureIsDistinct(t *testing.T) {
	repo := newMockRepo()
	repo.insertErr = errors.New("connection reset")
	blobs := blobstore.NewInMemoryBlobStore()
	svc := newTestPublicationService(repo, blobs)

	_, err := svc.Publish(context.Background(), sampleRequest(), []byte("pdf"))
	if !errors.Is(err, ErrAuditWrite) {
		t.Fatalf("expected ErrAuditWrite, got %v", err)
	}
	if errors.Is(err, ErrArtifactStorage) {
		t.Fatal("audit failure must not read as storage failure")
	}
	// The orphaned artifact stays in storage for reconciliation.
	if blobs.Len() != 1 {
		t.Errorf("blob count = %d, want 1 orphan", blobs.Len())
	}
}

func TestPublishSequencesAreStrictlyIncreasing(t *testing.T) {
	svc := newTestPublicationService(newMockRepo(), blobstore.NewInMemoryBlobStore())

	var codes []string
	for i := 0; i < 3; i++ {
		rec, err := svc.Publish(context.Background(), sampleRequest(), []byte("pdf"))
		if err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
		codes = append(codes, rec.ComplianceCode)
	}
	for i, code := range codes {
		want := fmt.Sprintf("2026-COVERCHECK-V1-0826-%03d", i+1)
		if code != want {
			t.Errorf("publish %d code = %q, want %q", i, code, want)
		}
	}
}

func TestPublishRejectsEmptyArtifact(t *testing.T) {
	svc := newTestPublicationService(newMockRepo(), blobstore.NewInMemoryBlobStore())
	if _, err := svc.Publish(context.Background(), sampleRequest(), nil); err == nil {
		t.Fatal("expected an error for an empty artifact")
	}
}

func TestPublishRejectsOversizedArtifact(t *testing.T) {
	repo := newMockRepo()
	blobs := blobstore.NewInMemoryBlobStore()
	svc := newTestPublicationService(repo, blobs)

	pdf := make([]byte, blobstore.MaxArtifactSize+1)
	_, err := svc.Publish(context.Background(), sampleRequest(), pdf)
	if !errors.Is(err, blobstore.ErrArtifactTooLarge) {
		t.Fatalf("expected ErrArtifactTooLarge, got %v", err)
	}
	if errors.Is(err, ErrArtifactStorage) {
		t.Error("an oversized artifact is not a storage failure")
	}
	if len(repo.seqByDay) != 0 {
		t.Error("no sequence number may be consumed for a rejected artifact")
	}
	if blobs.Len() != 0 {
		t.Error("nothing may be stored for a rejected artifact")
	}
}

func TestRecordEventDropsUnknownType(t *testing.T) {
	repo := newMockRepo()
	svc := newTestPublicationService(repo, blobstore.NewInMemoryBlobStore())

	svc.RecordEvent(context.Background(), "code", "reprint", ActorFC, "FC-7")
	if len(repo.events) != 0 {
		t.Error("unknown event types must be dropped")
	}

	svc.RecordEvent(context.Background(), "code", EventDownload, ActorFC, "FC-7")
	if len(repo.events) != 1 {
		t.Fatal("valid event not recorded")
	}
	if repo.events[0].EventType != EventDownload || repo.events[0].ActorType != ActorFC {
		t.Errorf("event = %+v", repo.events[0])
	}
}

func TestDownloadMissingArtifact(t *testing.T) {
	svc := newTestPublicationService(newMockRepo(), blobstore.NewInMemoryBlobStore())
	rec := &PublicationRecord{ArtifactKey: "reports/2026/0826/nope.pdf"}

	_, _, err := svc.Download(context.Background(), rec)
	if !errors.Is(err, blobstore.ErrBlobNotFound) {
		t.Fatalf("expected ErrBlobNotFound, got %v", err)
	}
}
