package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"portal/internal/account"
	"portal/internal/auth"
)

const profileKey = "profile"

type loginRequest struct {
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required"`
	Role       string `json:"role" binding:"required,oneof=admin secretary student"`
	AccessCode string `json:"accessCode"`
}

// registerRequest is validated by the registrar so the checks run in a fixed order.
type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
	Stage    string `json:"stage"`
	Subject  string `json:"subject"`
	Photo    string `json:"photo"`
}

func (r registerRequest) input() account.RegisterInput {
	return account.RegisterInput{
		Email:    r.Email,
		Password: r.Password,
		Name:     r.Name,
		Phone:    r.Phone,
		Role:     r.Role,
		Stage:    r.Stage,
		Subject:  r.Subject,
		Photo:    r.Photo,
	}
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if !bind(c, &req) {
		return
	}
	reg, err := h.Registrar.Register(c.Request.Context(), req.input())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"profile":    reg.Profile,
		"accessCode": reg.AccessCode,
		"message":    "Your account was created and is awaiting activation. Keep your access code safe.",
	})
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if !bind(c, &req) {
		return
	}
	role, _ := account.ParseRole(req.Role)
	res, err := h.Gate.Login(c.Request.Context(), account.LoginInput{
		Email:      req.Email,
		Password:   req.Password,
		Role:       role,
		AccessCode: req.AccessCode,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	if res.Outcome != account.OutcomeSuccess {
		status := http.StatusForbidden
		if res.Outcome == account.OutcomeBadCredentials {
			status = http.StatusUnauthorized
		}
		c.JSON(status, gin.H{"outcome": res.Outcome, "message": res.Message})
		return
	}

	h.setCookie(c, res.Session.Token, time.Until(res.Session.ExpiresAt))
	c.JSON(http.StatusOK, gin.H{
		"outcome":   res.Outcome,
		"message":   res.Message,
		"redirect":  res.Redirect,
		"token":     res.Session.Token,
		"expiresAt": res.Session.ExpiresAt,
		"profile":   res.Profile,
	})
}

func (h *Handler) logout(c *gin.Context) {
	if sess, ok := auth.SessionFrom(c); ok {
		if err := h.Gate.Logout(c.Request.Context(), sess); err != nil {
			h.fail(c, err)
			return
		}
	}
	h.setCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"redirect": account.PageLanding})
}

func (h *Handler) session(c *gin.Context) {
	p := actor(c)
	c.JSON(http.StatusOK, gin.H{"profile": p, "redirect": account.DashboardFor(p.Role)})
}

// loadProfile attaches the stored profile of the session's account. Sessions
// whose account can no longer log in are signed out.
func (h *Handler) loadProfile(c *gin.Context) {
	sess, _ := auth.SessionFrom(c)
	p, err := h.Profiles.Profile(c.Request.Context(), sess.UID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if p == nil || !p.CanLogin() {
		if err := h.Gate.Logout(c.Request.Context(), sess); err != nil {
			h.Log.Warn("sign out unusable session", zap.String("uid", sess.UID), zap.Error(err))
		}
		h.setCookie(c, "", -1)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session is no longer valid"})
		return
	}
	c.Set(profileKey, *p)
	c.Next()
}

func requireRole(roles ...account.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := actor(c)
		for _, r := range roles {
			if p.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "not allowed for this account"})
	}
}

func actor(c *gin.Context) account.Profile {
	p, _ := c.Get(profileKey)
	profile, _ := p.(account.Profile)
	return profile
}

func (h *Handler) setCookie(c *gin.Context, token string, ttl time.Duration) {
	maxAge := int(ttl / time.Second)
	if ttl < 0 {
		maxAge = -1
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, token, maxAge, "/", "", h.SecureCookies, true)
}
