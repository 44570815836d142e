package handler

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"portal/internal/account"
	"portal/internal/auth"
)

// mountPages serves the front end. Every page passes through the guard first
// so a protected page is never sent to the wrong role.
func (h *Handler) mountPages(r *gin.Engine) {
	if h.FrontendDir == "" {
		return
	}
	r.GET("/", h.page(account.PageLanding))
	for _, p := range []string{account.PageLanding, account.PageAdmin, account.PageSecretary, account.PageStudent} {
		r.GET("/"+p, h.page(p))
	}
	r.Static("/static", filepath.Join(h.FrontendDir, "static"))
}

func (h *Handler) page(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, err := h.Guard.Evaluate(c.Request.Context(), auth.TokenFromRequest(c.Request), name)
		if err != nil {
			h.fail(c, err)
			return
		}
		if v.Redirect != "" {
			c.Redirect(http.StatusFound, pageURL(v.Redirect))
			return
		}
		c.Header("Cache-Control", "no-store")
		c.File(filepath.Join(h.FrontendDir, name))
	}
}

func pageURL(page string) string {
	if page == account.PageLanding {
		return "/"
	}
	return "/" + page
}
