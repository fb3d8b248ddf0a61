package controllers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/ecorecycle/intake"
	"github.com/cppla/ecorecycle/utils"
)

// Intake is the public submit and lookup service.
type Intake interface {
	Submit(ctx context.Context, req intake.Request) (intake.Result, error)
	Lookup(ctx context.Context, query string) (intake.LookupResult, error)
}

// IntakeController serves the public intake form and lookup.
type IntakeController struct {
	svc Intake
}

func NewIntakeController(svc Intake) *IntakeController {
	return &IntakeController{svc: svc}
}

// Submit accepts a multipart form with the contact fields and `images` files.
func (ic *IntakeController) Submit(ctx *gin.Context) {
	form, err := ctx.MultipartForm()
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}

	req := intake.Request{
		Name:           ctx.PostForm("name"),
		Mobile:         ctx.PostForm("mobile"),
		Email:          ctx.PostForm("email"),
		Address:        ctx.PostForm("address"),
		ProductDetails: ctx.PostForm("product_details"),
	}
	if form != nil {
		for _, fh := range form.File["images"] {
			req.Files = append(req.Files, fileFromHeader(fh))
		}
	}

	res, err := ic.svc.Submit(ctx.Request.Context(), req)
	if err != nil {
		fail(ctx, err, nil)
		return
	}
	utils.Success(ctx, res)
}

func fileFromHeader(fh *multipart.FileHeader) intake.File {
	return intake.File{
		Name: fh.Filename,
		Size: fh.Size,
		Open: func() (io.ReadCloser, error) { return fh.Open() },
	}
}

// Lookup finds submissions by mobile or email (?q=). The result is returned
// even for failures so the page can show the status line.
func (ic *IntakeController) Lookup(ctx *gin.Context) {
	res, err := ic.svc.Lookup(ctx.Request.Context(), ctx.Query("q"))
	if err != nil {
		fail(ctx, err, res)
		return
	}
	utils.Success(ctx, res)
}
