// Package pamphlet assembles the computed data model a presentation
// collaborator renders into the branded coverage-check PDF. The core
// computes everything; template rendering stays outside.
package pamphlet

import (
	"context"
	"time"

	"github.com/covercheck/covercheck/internal/domain/stats"
	"github.com/covercheck/covercheck/internal/platform/auth"
)

// Customer is the person the pamphlet is prepared for.
type Customer struct {
	Name    string `json:"name,omitempty"`
	Sex     string `json:"sex"`
	AgeBand string `json:"age_band"`
}

// Segment is one block of pamphlet copy. Bodies may be overridden per
// request; keys are stable so templates can place them.
type Segment struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// DefaultSegments returns the standard pamphlet copy in page order.
func DefaultSegments() []Segment {
	return []Segment{
		{
			Key:   "greeting",
			Title: "Your personal coverage check",
			Body:  "This report compares your current insurance coverage against the medical costs people of your age and sex actually face.",
		},
		{
			Key:   "current_risks",
			Title: "What people your age are treated for",
			Body:  "The diseases below rank highest for your demographic over the selected years, by the metric your consultant chose.",
		},
		{
			Key:   "future_risks",
			Title: "What changes as you get older",
			Body:  "Looking ahead at the age bands after yours shows which diseases become newly significant, and what they cost per patient.",
		},
		{
			Key:   "closing",
			Title: "Next steps",
			Body:  "Your consultant can walk you through how your current policies line up against these costs and where gaps remain.",
		},
	}
}

// StatsSection carries the three ranked result sets and their charts.
type StatsSection struct {
	Scope        stats.QueryScope          `json:"scope"`
	Current      []stats.DiseaseMetricRow  `json:"current"`
	Future       []stats.DiseaseMetricRow  `json:"future"`
	Emerging     []stats.DiseaseMetricRow  `json:"emerging"`
	CurrentChart string                    `json:"current_chart,omitempty"`
	FutureChart  string                    `json:"future_chart,omitempty"`
}

// Footer is stamped on every page of the rendered pamphlet.
type Footer struct {
	BrandName      string    `json:"brand_name"`
	ContentVersion string    `json:"content_version"`
	GeneratedAt    time.Time `json:"generated_at"`
	Disclaimer     string    `json:"disclaimer"`
}

// Context is the full computed data model for one pamphlet.
type Context struct {
	Consultant auth.Consultant `json:"consultant"`
	Customer   Customer        `json:"customer"`
	Segments   []Segment       `json:"segments"`
	Stats      StatsSection    `json:"stats"`
	Footer     Footer          `json:"footer"`
}

// Renderer is the presentation collaborator that turns a Context into
// the final PDF bytes.
type Renderer interface {
	Render(ctx context.Context, p *Context) ([]byte, error)
}
