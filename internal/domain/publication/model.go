// Package publication finalizes a reviewed pamphlet into a durable,
// audited artifact: compliance code generation, blob upload and the
// append-only audit trail downstream reporting reads.
package publication

import (
	"time"

	"github.com/google/uuid"
)

// Audit event types written to the event log.
const (
	EventView         = "view"
	EventDownload     = "download"
	EventBulkDownload = "bulk_download"
	EventAdminView    = "admin_view"
)

// Actor types for audit events.
const (
	ActorFC    = "fc"
	ActorAdmin = "admin"
)

// PublicationRecord is created exactly once per confirmed publish and
// is immutable thereafter. Audit events reference it by compliance
// code but never mutate it.
type PublicationRecord struct {
	ID                   uuid.UUID `json:"id"`
	ComplianceCode       string    `json:"compliance_code"`
	ConsultantID         string    `json:"consultant_id"`
	ConsultantName       string    `json:"consultant_name"`
	CustomerName         string    `json:"customer_name,omitempty"`
	CustomerSex          string    `json:"customer_sex"`
	CustomerAgeBand      string    `json:"customer_age_band"`
	YearStart            int       `json:"year_start"`
	YearEnd              int       `json:"year_end"`
	SortBasis            string    `json:"sort_basis"`
	MinPrevalencePer100k float64   `json:"min_prevalence_per_100k,omitempty"`
	MinCostPerPatient    float64   `json:"min_cost_per_patient,omitempty"`
	ArtifactKey          string    `json:"artifact_key"`
	ArtifactFilename     string    `json:"artifact_filename"`
	ContentVersion       string    `json:"content_version"`
	CreatedAt            time.Time `json:"created_at"`
}

// AuditEvent is one append-only entry in the publication event log.
type AuditEvent struct {
	ID             uuid.UUID `json:"id"`
	ComplianceCode string    `json:"compliance_code"`
	EventType      string    `json:"event_type"`
	ActorType      string    `json:"actor_type"`
	ActorID        string    `json:"actor_id"`
	CreatedAt      time.Time `json:"created_at"`
}

func validEventType(t string) bool {
	switch t {
	case EventView, EventDownload, EventBulkDownload, EventAdminView:
		return true
	}
	return false
}
