package console

import (
	"bytes"
	"embed"
	"html/template"
	"iter"
	"time"

	"github.com/cppla/ecorecycle/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("console").Funcs(template.FuncMap{
	"statusLabel": func(s models.SubmissionStatus) string { return string(s) },
}).ParseFS(templateFS, "templates/*.html"))

// Metrics counts submissions per status over the full cache.
type Metrics struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

// Card is one rendered grid entry.
type Card struct {
	ID          string
	Status      models.SubmissionStatus
	Created     string
	ImageURL    string
	Description string
	Name        string
	Mobile      string
	Email       string
	Countdown   string
	Pending     bool
	Busy        bool
}

// RenderInput is everything Render looks at.
type RenderInput struct {
	All               []models.Submission
	Filtered          iter.Seq[models.Submission]
	Interacted        bool
	AllowEmptyDisplay bool
	Now               time.Time
	PublicURL         func(path string) string
	Busy              func(id string) bool
}

// View holds the three rendered regions.
type View struct {
	Metrics      Metrics       `json:"metrics"`
	MetricsHTML  template.HTML `json:"metrics_html"`
	Cards        []Card        `json:"-"`
	Grid         template.HTML `json:"grid_html"`
	EmptyVisible bool          `json:"empty_visible"`
}

// Render projects the cache and view state onto the metrics row, the card
// grid and the empty placeholder. It never changes its input.
func Render(in RenderInput) (View, error) {
	v := View{Metrics: CountMetrics(in.All)}
	for s := range in.Filtered {
		v.Cards = append(v.Cards, newCard(s, in.Now, in.PublicURL, CardDescriptionLimit, in.Busy))
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "metrics", v.Metrics); err != nil {
		return View{}, err
	}
	v.MetricsHTML = template.HTML(buf.String())

	if len(v.Cards) == 0 {
		v.EmptyVisible = in.Interacted && in.AllowEmptyDisplay
		return v, nil
	}
	buf.Reset()
	if err := templates.ExecuteTemplate(&buf, "grid", v.Cards); err != nil {
		return View{}, err
	}
	v.Grid = template.HTML(buf.String())
	return v, nil
}

// CountMetrics tallies all submissions by status.
func CountMetrics(all []models.Submission) Metrics {
	m := Metrics{Total: len(all)}
	for _, s := range all {
		switch s.Status {
		case models.StatusPending:
			m.Pending++
		case models.StatusAccepted:
			m.Accepted++
		case models.StatusRejected:
			m.Rejected++
		}
	}
	return m
}

// RenderLookupGrid renders the read-only cards shown on the public lookup.
func RenderLookupGrid(items []models.Submission, now time.Time, publicURL func(string) string) (template.HTML, error) {
	if len(items) == 0 {
		return "", nil
	}
	cards := make([]Card, 0, len(items))
	for _, s := range items {
		cards = append(cards, newCard(s, now, publicURL, LookupDescriptionLimit, nil))
	}
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "lookup_grid", cards); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

func newCard(s models.Submission, now time.Time, publicURL func(string) string, limit int, busy func(string) bool) Card {
	c := Card{
		ID:          s.ID,
		Status:      s.Status,
		Created:     s.CreatedAt.Format(dateLayout),
		Description: Truncate(s.ProductDetails, limit),
		Name:        s.Name,
		Mobile:      s.Mobile,
		Email:       s.Email,
		Countdown:   Countdown(s.AutoDeleteAt, now),
		Pending:     s.Status == models.StatusPending,
	}
	if publicURL != nil {
		c.ImageURL = publicURL(s.ImagePath)
	}
	if busy != nil {
		c.Busy = busy(s.ID)
	}
	return c
}
