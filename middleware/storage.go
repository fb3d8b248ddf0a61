package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/ecorecycle/backend"
)

// StoredObjectHeaders locks down served uploads: the browser must not sniff
// them, they may not run script, and anything that is not a known image
// downloads instead of rendering.
func StoredObjectHeaders() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		h := ctx.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Content-Security-Policy", "default-src 'none'; sandbox")
		if ct, ok := backend.ImageType(ctx.Request.URL.Path); ok {
			h.Set("Content-Type", ct)
		} else {
			h.Set("Content-Type", "application/octet-stream")
			h.Set("Content-Disposition", "attachment")
		}
		ctx.Next()
	}
}
