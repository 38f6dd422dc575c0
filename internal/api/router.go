// Package api implements the HTTP surface described in SPEC_FULL.md §6:
// account/session management, job intake and lifecycle, contests and
// ranklists, plus health/metrics endpoints, wired the way the teacher wires
// its own gin router (origin check -> session -> CSRF, unified error
// envelope, admin-gated route groups).
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"oj/internal/catalog"
	"oj/internal/contest"
	"oj/internal/intake"
	"oj/internal/metrics"
	"oj/internal/model"
	"oj/internal/store"
)

// ServerConfig is the subset of the judge's configuration the HTTP layer
// needs, kept narrow so this package doesn't depend on internal/config.
type ServerConfig struct {
	AllowedOrigins    []string
	CookieSecure      bool
	AuthorizationMode bool
	SessionKey        string
	SandboxWorkRoot   string
}

// Server holds every dependency a handler method needs.
type Server struct {
	cfg      ServerConfig
	sessions *sessions.CookieStore
	auth     AuthService
	users    *store.UserStore
	contests *store.ContestStore
	jobs     *store.JobStore
	catalog  *catalog.Catalog
	intake   *intake.Service
	ranking  *contest.Engine
	redis    *redis.Client
}

// NewServer wires the HTTP dependency graph. The caller owns constructing
// the store/intake/contest layers and passes them in already assembled.
// redisClient is used only to read worker heartbeats for the admin
// system-status endpoint.
func NewServer(cfg ServerConfig, users *store.UserStore, contests *store.ContestStore, jobs *store.JobStore, cat *catalog.Catalog, in *intake.Service, ranking *contest.Engine, redisClient *redis.Client) *Server {
	return &Server{
		cfg:      cfg,
		sessions: sessions.NewCookieStore([]byte(cfg.SessionKey)),
		auth:     NewAuthService(users),
		users:    users,
		contests: contests,
		jobs:     jobs,
		catalog:  cat,
		intake:   in,
		ranking:  ranking,
		redis:    redisClient,
	}
}

// NewRouter constructs the gin engine with every route from SPEC_FULL.md §6
// registered.
func NewRouter(s *Server) *gin.Engine {
	r := gin.Default()

	r.Use(OriginRefererMiddleware(s.cfg))
	r.Use(SessionMiddleware(s.cfg, s.sessions))
	r.Use(CSRFMiddleware(s.cfg, s.sessions))
	r.Use(metrics.Middleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/register", s.handleRegister)
	r.POST("/login", s.handleLogin)
	r.POST("/logout", s.handleLogout)

	r.POST("/passwd", RequireRole(s.cfg, model.RoleUser), s.handlePasswd)
	r.POST("/privilege", RequireRole(s.cfg, model.RoleAdmin), s.handlePrivilege)
	r.POST("/users", RequireRole(s.cfg, model.RoleAdmin), s.handleCreateUser)
	r.GET("/users", RequireRole(s.cfg, model.RoleUser), s.handleListUsers)

	r.POST("/jobs", RequireRole(s.cfg, model.RoleUser), s.handleSubmit)
	r.GET("/jobs", RequireRole(s.cfg, model.RoleUser), s.handleListJobs)
	r.GET("/jobs/:id", RequireRole(s.cfg, model.RoleUser), s.handleGetJob)
	r.PUT("/jobs/:id", RequireRole(s.cfg, model.RoleAuthor), s.handleRejudge)
	r.DELETE("/jobs/:id", RequireRole(s.cfg, model.RoleAuthor), s.handleCancelJob)

	r.POST("/contests", RequireRole(s.cfg, model.RoleAuthor), s.handleCreateContest)
	r.GET("/contests", RequireRole(s.cfg, model.RoleUser), s.handleListContests)
	r.GET("/contests/:id", RequireRole(s.cfg, model.RoleUser), s.handleGetContest)
	r.GET("/contests/:id/ranklist", RequireRole(s.cfg, model.RoleUser), s.handleRanklist)

	r.POST("/problems/import", RequireRole(s.cfg, model.RoleAdmin), s.handleImportProblem)
	r.GET("/problems", RequireRole(s.cfg, model.RoleUser), s.handleListProblems)

	r.GET("/admin/workers", RequireRole(s.cfg, model.RoleAdmin), s.handleWorkerStatus)

	return r
}
