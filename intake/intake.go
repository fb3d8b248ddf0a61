// Package intake implements the public side: submitting a recycling request
// with photos and looking up earlier requests by mobile or email.
package intake

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cppla/ecorecycle/backend"
	"github.com/cppla/ecorecycle/console"
	"github.com/cppla/ecorecycle/models"
)

// Backend is what the public pages need from the backend.
type Backend interface {
	ListSubmissions(ctx context.Context, q backend.SubmissionQuery) ([]models.Submission, error)
	backend.Procedures
	backend.Storage
}

// remover is implemented by storages that can delete objects. Submit uses
// it to drop the photos of a submission that was never created.
type remover interface {
	Remove(paths []string)
}

// File is one uploaded photo. Open is called at most once.
type File struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

// Request is a filled-in intake form.
type Request struct {
	Name           string
	Mobile         string
	Email          string
	Address        string
	ProductDetails string
	Files          []File
}

// Result is a saved submission.
type Result struct {
	ID      string   `json:"id"`
	Paths   []string `json:"image_paths"`
	Notices []string `json:"notices,omitempty"`
}

// LookupResult is what the lookup panel shows.
type LookupResult struct {
	Query        string              `json:"query"`
	Items        []models.Submission `json:"-"`
	Count        int                 `json:"count"`
	Grid         template.HTML       `json:"grid_html"`
	Status       string              `json:"status"`
	StatusLevel  string              `json:"status_level,omitempty"`
	EmptyVisible bool                `json:"empty_visible"`
}

// Service handles intake submissions and lookups.
type Service struct {
	b             Backend
	maxImages     int
	maxImageBytes int64
	log           *zap.SugaredLogger
	now           func() time.Time
}

// NewService builds the service; zero limits fall back to 6 images of 5 MB.
func NewService(b Backend, maxImages int, maxImageBytes int64, log *zap.SugaredLogger) *Service {
	if maxImages <= 0 {
		maxImages = 6
	}
	if maxImageBytes <= 0 {
		maxImageBytes = 5 << 20
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Service{b: b, maxImages: maxImages, maxImageBytes: maxImageBytes, log: log, now: time.Now}
}

// Submit validates the form, uploads the photos in parallel and creates the
// submission. Every file size is checked before anything is uploaded.
func (s *Service) Submit(ctx context.Context, req Request) (Result, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Mobile = strings.TrimSpace(req.Mobile)
	req.Email = strings.TrimSpace(req.Email)
	req.Address = strings.TrimSpace(req.Address)
	req.ProductDetails = strings.TrimSpace(req.ProductDetails)

	if req.Name == "" || req.Mobile == "" || req.Address == "" || req.ProductDetails == "" {
		return Result{}, backend.Validationf("submit", "Name, mobile, address and product details are required.")
	}
	if len(req.Files) == 0 {
		return Result{}, backend.Validationf("submit", "At least one image required")
	}

	var res Result
	files := req.Files
	if len(files) > s.maxImages {
		res.Notices = append(res.Notices, fmt.Sprintf("Only first %d images considered.", s.maxImages))
		files = files[:s.maxImages]
	}
	for _, f := range files {
		if _, ok := backend.ImageType(f.Name); !ok {
			return Result{}, backend.Validationf("submit", "File %s is not a supported image (jpg, png, gif, webp).", f.Name)
		}
		if f.Size > s.maxImageBytes {
			return Result{}, backend.Validationf("submit", "File %s exceeds %dMB.", f.Name, s.maxImageBytes>>20)
		}
	}

	paths := make([]string, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			p, err := s.upload(gctx, f)
			if err != nil {
				return err
			}
			paths[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.log.Warnw("intake upload failed", "err", err)
		s.discard(paths)
		return Result{}, err
	}

	out, err := s.b.CallProcedure(ctx, backend.ProcCreateSubmissionMulti, backend.Args{
		"_name":                    req.Name,
		"_mobile":                  req.Mobile,
		"_email":                   req.Email,
		"_address":                 req.Address,
		"_product_details":         req.ProductDetails,
		"_image_paths":             paths,
		"_apply_default_retention": false,
	})
	if err != nil {
		s.discard(paths)
		return Result{}, backend.NewError(backend.KindProcedure, backend.ProcCreateSubmissionMulti, "Insert failed: "+err.Error(), err)
	}
	id, _ := out.(string)
	res.ID = id
	res.Paths = paths
	s.log.Infow("submission received", "id", id, "images", len(paths))
	return res, nil
}

func (s *Service) upload(ctx context.Context, f File) (string, error) {
	if f.Open == nil {
		return "", backend.NewError(backend.KindUpload, "upload", "File "+f.Name+" is unreadable", nil)
	}
	rc, err := f.Open()
	if err != nil {
		return "", backend.NewError(backend.KindUpload, "upload", "File "+f.Name+" is unreadable", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, s.maxImageBytes+1))
	if err != nil {
		return "", backend.NewError(backend.KindUpload, "upload", "File "+f.Name+" is unreadable", err)
	}
	if int64(len(data)) > s.maxImageBytes {
		return "", backend.NewError(backend.KindUpload, "upload", "File "+f.Name+" too large", nil)
	}
	// the bytes must be the image the name claims to be
	want, _ := backend.ImageType(f.Name)
	if got := http.DetectContentType(data); got != want {
		return "", backend.Validationf("upload", "File %s is not a valid image.", f.Name)
	}
	key := uuid.NewString() + "." + strings.ToLower(strings.TrimPrefix(filepath.Ext(f.Name), "."))
	return s.b.Upload(ctx, backend.BucketRequestImages, key, data)
}

// discard removes the photos already stored for a failed submission.
func (s *Service) discard(paths []string) {
	r, ok := s.b.(remover)
	if !ok {
		return
	}
	stored := slices.DeleteFunc(slices.Clone(paths), func(p string) bool { return p == "" })
	if len(stored) == 0 {
		return
	}
	r.Remove(stored)
	s.log.Infow("discarded photos of failed submission", "count", len(stored))
}

// Lookup finds submissions by contact. A query with "@" matches the email
// exactly; anything else matches the mobile or the email exactly.
func (s *Service) Lookup(ctx context.Context, query string) (LookupResult, error) {
	q := strings.TrimSpace(query)
	res := LookupResult{Query: q}
	if q == "" {
		res.Status, res.StatusLevel = "Enter mobile or email.", "error"
		return res, backend.Validationf("lookup", "Enter mobile or email.")
	}

	sq := backend.SubmissionQuery{MatchEmail: q}
	if !strings.Contains(q, "@") {
		sq.MatchMobile = q
	}
	items, err := s.b.ListSubmissions(ctx, sq)
	if err != nil {
		res.Status, res.StatusLevel = err.Error(), "error"
		return res, err
	}

	res.Items = items
	res.Count = len(items)
	if len(items) == 0 {
		res.Status = "No records."
		res.EmptyVisible = true
		return res, nil
	}
	grid, err := console.RenderLookupGrid(items, s.now(), s.b.PublicURL)
	if err != nil {
		return res, err
	}
	res.Grid = grid
	res.Status, res.StatusLevel = fmt.Sprintf("Found %d", len(items)), "success"
	return res, nil
}
