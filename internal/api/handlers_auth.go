package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"oj/internal/model"
	"oj/internal/ojerr"
	"oj/internal/store"
)

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleRegister creates a new ordinary-role account. Open to anonymous
// callers regardless of authorization mode.
func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, ojerr.New(ojerr.InvalidArgument, "invalid request body"))
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		respondError(c, ojerr.New(ojerr.InvalidArgument, "username and password are required"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(c, ojerr.Wrap(ojerr.Internal, "failed to hash password", err))
		return
	}

	ctx := c.Request.Context()
	u, err := s.users.Create(ctx, req.Username, string(hash), model.RoleUser)
	if err != nil {
		if err == store.ErrUserNameTaken {
			respondError(c, ojerr.New(ojerr.InvalidArgument, "username already taken"))
			return
		}
		respondError(c, ojerr.Wrap(ojerr.Internal, "failed to create user", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": u.ID, "name": u.Name})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, ojerr.New(ojerr.InvalidArgument, "invalid request body"))
		return
	}

	u, err := s.auth.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, ojerr.New(ojerr.InvalidArgument, "wrong username or password"))
		return
	}

	session, err := s.sessions.Get(c.Request, sessionName)
	if err != nil {
		respondError(c, ojerr.New(ojerr.Internal, "session error"))
		return
	}
	// Rotate: wipe prior values (including any stale csrf token) on login.
	session.Values = map[interface{}]interface{}{}
	session.Values["user_id"] = u.ID
	session.Values["role"] = u.Role.String()
	applySessionOptions(s.cfg, session)
	if err := session.Save(c.Request, c.Writer); err != nil {
		respondError(c, ojerr.New(ojerr.Internal, "failed to set session"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": u.ID, "name": u.Name})
}

func (s *Server) handleLogout(c *gin.Context) {
	session := sessionFromContext(c)
	if session == nil {
		respondError(c, ojerr.New(ojerr.Forbidden, "authentication required"))
		return
	}
	session.Values = map[interface{}]interface{}{}
	applySessionOptions(s.cfg, session)
	session.Options.MaxAge = -1
	if err := session.Save(c.Request, c.Writer); err != nil {
		respondError(c, ojerr.Wrap(ojerr.Internal, "failed to clear session", err))
		return
	}
	c.Status(http.StatusNoContent)
}

type passwdRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (s *Server) handlePasswd(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		respondError(c, ojerr.New(ojerr.Forbidden, "authentication required"))
		return
	}
	var req passwdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, ojerr.New(ojerr.InvalidArgument, "invalid request body"))
		return
	}

	ctx := c.Request.Context()
	u, err := s.users.FindByID(ctx, p.UserID)
	if err != nil {
		respondError(c, ojerr.New(ojerr.NotFound, "user not found"))
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.OldPassword)); err != nil {
		respondError(c, ojerr.New(ojerr.InvalidArgument, "wrong password"))
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		respondError(c, ojerr.Wrap(ojerr.Internal, "failed to hash password", err))
		return
	}
	if err := s.users.UpdatePassword(ctx, p.UserID, string(hash)); err != nil {
		respondError(c, ojerr.Wrap(ojerr.Internal, "failed to update password", err))
		return
	}
	c.Status(http.StatusNoContent)
}

type privilegeRequest struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (s *Server) handlePrivilege(c *gin.Context) {
	var req privilegeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, ojerr.New(ojerr.InvalidArgument, "invalid request body"))
		return
	}
	ctx := c.Request.Context()
	u, err := s.users.FindByName(ctx, req.Username)
	if err != nil {
		respondError(c, ojerr.New(ojerr.NotFound, "user not found"))
		return
	}
	if err := s.users.UpdateRole(ctx, u.ID, model.ParseRole(req.Role)); err != nil {
		respondError(c, ojerr.Wrap(ojerr.Internal, "failed to update role", err))
		return
	}
	c.Status(http.StatusNoContent)
}

type createUserRequest struct {
	ID       *int64 `json:"id"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// handleCreateUser is the admin-operated user management endpoint: it
// creates an account with an admin-chosen name/password/role, optionally at
// an admin-chosen id (used to provision fixed-id accounts such as the
// reserved root account on a restore, or other well-known ids).
func (s *Server) handleCreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, ojerr.New(ojerr.InvalidArgument, "invalid request body"))
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Password == "" {
		respondError(c, ojerr.New(ojerr.InvalidArgument, "name and password are required"))
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(c, ojerr.Wrap(ojerr.Internal, "failed to hash password", err))
		return
	}

	var u model.User
	if req.ID != nil {
		u, err = s.users.CreateWithID(c.Request.Context(), *req.ID, req.Name, string(hash), model.ParseRole(req.Role))
	} else {
		u, err = s.users.Create(c.Request.Context(), req.Name, string(hash), model.ParseRole(req.Role))
	}
	if err != nil {
		if err == store.ErrUserNameTaken {
			respondError(c, ojerr.New(ojerr.InvalidArgument, "name already taken"))
			return
		}
		respondError(c, ojerr.Wrap(ojerr.Internal, "failed to create user", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": u.ID, "name": u.Name})
}

func (s *Server) handleListUsers(c *gin.Context) {
	users, err := s.users.List(c.Request.Context())
	if err != nil {
		respondError(c, ojerr.Wrap(ojerr.Internal, "failed to list users", err))
		return
	}
	out := make([]gin.H, len(users))
	for i, u := range users {
		out[i] = gin.H{"id": u.ID, "name": u.Name, "role": u.Role.String()}
	}
	c.JSON(http.StatusOK, out)
}
