package controllers

import (
	"html/template"

	"github.com/gin-gonic/gin"

	"github.com/cppla/ecorecycle/utils"
)

// Notice is the announcement shown above the intake form.
type Notice struct {
	Title string        `json:"title"`
	HTML  template.HTML `json:"html"`
}

// NewNotice sanitizes operator-supplied notice HTML once.
func NewNotice(title, html string) Notice {
	return Notice{Title: title, HTML: template.HTML(utils.Sanitize(html))}
}

// ConfigController serves configuration-driven UI content.
type ConfigController struct {
	notice Notice
}

func NewConfigController(notice Notice) *ConfigController {
	return &ConfigController{notice: notice}
}

// GetNotice returns the intake notice.
func (c *ConfigController) GetNotice(ctx *gin.Context) {
	utils.Success(ctx, c.notice)
}
