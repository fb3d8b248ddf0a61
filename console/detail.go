package console

import (
	"bytes"
	"context"
	"html/template"
	"time"

	"github.com/cppla/ecorecycle/backend"
	"github.com/cppla/ecorecycle/models"
)

// DetailImage is one gallery entry; Cover marks position 0.
type DetailImage struct {
	URL   string `json:"url"`
	Cover bool   `json:"cover"`
}

// DetailAction is a footer button of the detail view.
type DetailAction struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Class string `json:"-"`
}

// Detail is the full view of one submission.
type Detail struct {
	ID             string                  `json:"id"`
	Status         models.SubmissionStatus `json:"status"`
	Name           string                  `json:"name"`
	Mobile         string                  `json:"mobile"`
	Email          string                  `json:"email"`
	Address        string                  `json:"address"`
	ProductDetails string                  `json:"product_details"`
	Created        string                  `json:"created"`
	AutoDelete     string                  `json:"auto_delete,omitempty"`
	Countdown      string                  `json:"countdown,omitempty"`
	Images         []DetailImage           `json:"images"`
	Presets        []int                   `json:"presets"`
	CanClear       bool                    `json:"can_clear"`
	Actions        []DetailAction          `json:"actions"`
	Busy           bool                    `json:"busy"`
	Body           template.HTML           `json:"body_html"`
	Footer         template.HTML           `json:"footer_html"`
}

var (
	actionAccept = DetailAction{Name: "accept", Label: "Accept (+Retention)", Class: "btn primary small"}
	actionReject = DetailAction{Name: "reject", Label: "Reject", Class: "btn danger small"}
	actionDelete = DetailAction{Name: "delete", Label: "Delete", Class: "delete-btn-soft"}
)

// OpenDetail builds the detail view of a cached submission. Image lookup
// failures leave the gallery empty. Opening a detail is not an interaction.
func (c *Console) OpenDetail(ctx context.Context, id string) (Detail, error) {
	c.mu.Lock()
	rec, ok := c.cache.Find(id)
	_, busy := c.inflight[id]
	c.mu.Unlock()
	if !ok {
		return Detail{}, backend.NewError(backend.KindValidation, "open detail", "Submission not found", backend.ErrNotFound)
	}

	images, err := c.b.ListImages(ctx, id)
	if err != nil {
		c.log.Warnw("detail images unavailable", "id", id, "err", err)
		images = nil
	}
	return BuildDetail(rec, images, c.now(), c.b.PublicURL, busy)
}

// BuildDetail renders the detail view of rec with its images.
func BuildDetail(rec models.Submission, images []models.SubmissionImage, now time.Time, publicURL func(string) string, busy bool) (Detail, error) {
	d := Detail{
		ID:             rec.ID,
		Status:         rec.Status,
		Name:           rec.Name,
		Mobile:         rec.Mobile,
		Email:          rec.Email,
		Address:        rec.Address,
		ProductDetails: rec.ProductDetails,
		Created:        rec.CreatedAt.Format(dateTimeLayout),
		Presets:        RetentionPresets,
		CanClear:       rec.AutoDeleteAt != nil,
		Busy:           busy,
	}
	if d.Email == "" {
		d.Email = "-"
	}
	if rec.AutoDeleteAt != nil {
		d.AutoDelete = rec.AutoDeleteAt.Format(dateTimeLayout)
		d.Countdown = Remaining(*rec.AutoDeleteAt, now)
	}
	for _, img := range images {
		d.Images = append(d.Images, DetailImage{URL: publicURL(img.ImagePath), Cover: img.Position == 0})
	}
	if rec.Status == models.StatusPending {
		d.Actions = []DetailAction{actionAccept, actionReject, actionDelete}
	} else {
		d.Actions = []DetailAction{actionDelete}
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "detail", d); err != nil {
		return Detail{}, err
	}
	d.Body = template.HTML(buf.String())
	buf.Reset()
	if err := templates.ExecuteTemplate(&buf, "detail_footer", d); err != nil {
		return Detail{}, err
	}
	d.Footer = template.HTML(buf.String())
	return d, nil
}
