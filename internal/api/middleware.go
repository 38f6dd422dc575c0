package api

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"

	"oj/internal/model"
	"oj/internal/ojerr"
)

const sessionName = "oj_session"
const sessionMaxAge = 18000 // 5h, mirrors the teacher's cookie lifetime

// SessionMiddleware ensures a session exists on every request and persists
// consistent cookie options, even for anonymous visitors.
func SessionMiddleware(cfg ServerConfig, store *sessions.CookieStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := store.Get(c.Request, sessionName)
		if err != nil {
			respondError(c, ojerr.New(ojerr.Internal, "session error"))
			c.Abort()
			return
		}
		applySessionOptions(cfg, session)
		if err := session.Save(c.Request, c.Writer); err != nil {
			respondError(c, ojerr.New(ojerr.Internal, "failed to persist session"))
			c.Abort()
			return
		}
		c.Set("session", session)
		c.Next()
	}
}

// OriginRefererMiddleware validates Origin/Referer against the configured
// allow-list and sets CORS headers for allowed origins.
func OriginRefererMiddleware(cfg ServerConfig) gin.HandlerFunc {
	allowed := map[string]struct{}{}
	for _, o := range cfg.AllowedOrigins {
		allowed[strings.ToLower(o)] = struct{}{}
	}

	isAllowed := func(origin string) bool {
		if origin == "" {
			return true
		}
		if len(allowed) == 0 {
			return false
		}
		_, ok := allowed[strings.ToLower(origin)]
		return ok
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			if referer := c.GetHeader("Referer"); referer != "" {
				if u, err := url.Parse(referer); err == nil {
					origin = u.Scheme + "://" + u.Host
				}
			}
		}

		if c.Request.Method == http.MethodOptions && origin != "" {
			if !isAllowed(origin) {
				respondError(c, ojerr.New(ojerr.Forbidden, "origin not allowed"))
				c.Abort()
				return
			}
			setCORSHeaders(c, origin)
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}

		if !isAllowed(origin) {
			respondError(c, ojerr.New(ojerr.Forbidden, "origin not allowed"))
			c.Abort()
			return
		}
		if origin != "" {
			setCORSHeaders(c, origin)
		}
		c.Next()
	}
}

func setCORSHeaders(c *gin.Context, origin string) {
	c.Header("Access-Control-Allow-Origin", origin)
	c.Header("Vary", "Origin")
	c.Header("Access-Control-Allow-Credentials", "true")
	c.Header("Access-Control-Allow-Headers", "Content-Type, X-CSRF-Token")
	c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
}

// CSRFMiddleware issues and validates a per-session CSRF token on unsafe
// methods, exempting the anonymous register/login endpoints.
func CSRFMiddleware(cfg ServerConfig, store *sessions.CookieStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessionFromContext(c)
		if session == nil {
			s, err := store.Get(c.Request, sessionName)
			if err != nil {
				respondError(c, ojerr.New(ojerr.Internal, "session error"))
				c.Abort()
				return
			}
			session = s
		}

		token, _ := session.Values["csrf_token"].(string)
		if token == "" {
			var err error
			token, err = generateCSRFToken()
			if err != nil {
				respondError(c, ojerr.New(ojerr.Internal, "failed to issue csrf token"))
				c.Abort()
				return
			}
			session.Values["csrf_token"] = token
			applySessionOptions(cfg, session)
			if err := session.Save(c.Request, c.Writer); err != nil {
				respondError(c, ojerr.New(ojerr.Internal, "failed to persist session"))
				c.Abort()
				return
			}
		}

		if !isSafeMethod(c.Request.Method) && !csrfExemptPath(c.Request.URL.Path) {
			header := c.GetHeader("X-CSRF-Token")
			if header == "" || header != token {
				respondError(c, ojerr.New(ojerr.Forbidden, "invalid csrf token"))
				c.Abort()
				return
			}
		}

		c.Writer.Header().Set("X-CSRF-Token", token)
		c.Next()
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}

func csrfExemptPath(path string) bool {
	switch path {
	case "/register", "/login":
		return true
	default:
		return false
	}
}

func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func applySessionOptions(cfg ServerConfig, session *sessions.Session) {
	if session.Options == nil {
		session.Options = &sessions.Options{}
	}
	session.Options.Path = "/"
	session.Options.MaxAge = sessionMaxAge
	session.Options.HttpOnly = true
	session.Options.Secure = cfg.CookieSecure
	session.Options.SameSite = http.SameSiteLaxMode
}

func sessionFromContext(c *gin.Context) *sessions.Session {
	v, ok := c.Get("session")
	if !ok {
		return nil
	}
	s, _ := v.(*sessions.Session)
	return s
}

// principal identifies the authenticated caller of a request.
type principal struct {
	UserID int64
	Role   model.Role
}

func principalFromSession(c *gin.Context) (principal, bool) {
	session := sessionFromContext(c)
	if session == nil {
		return principal{}, false
	}
	id, ok := session.Values["user_id"].(int64)
	if !ok {
		return principal{}, false
	}
	roleStr, _ := session.Values["role"].(string)
	return principal{UserID: id, Role: model.ParseRole(roleStr)}, true
}

// RequireRole aborts requests from callers below minRole. When
// cfg.AuthorizationMode is false the check is skipped entirely, since the
// judge's pipeline and HTTP contract are identical either way; authorization
// is purely a request-boundary facet (see SPEC_FULL.md design notes).
func RequireRole(cfg ServerConfig, minRole model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.AuthorizationMode {
			c.Next()
			return
		}
		p, ok := principalFromSession(c)
		if !ok {
			// A missing credential is 401; the envelope keeps the
			// ERR_FORBIDDEN reason, the taxonomy having no separate code.
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    int(ojerr.Forbidden),
					"reason":  ojerr.Forbidden.String(),
					"message": "authentication required",
				},
			})
			c.Abort()
			return
		}
		if p.Role < minRole {
			respondError(c, ojerr.New(ojerr.Forbidden, "role insufficient"))
			c.Abort()
			return
		}
		c.Set("principal", p)
		c.Next()
	}
}

func currentPrincipal(c *gin.Context) (principal, bool) {
	if v, ok := c.Get("principal"); ok {
		p, _ := v.(principal)
		return p, true
	}
	return principalFromSession(c)
}
