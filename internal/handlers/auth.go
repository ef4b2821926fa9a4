package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"gorm.io/gorm"

	"github.com/diewo77/gym-api/auth"
	"github.com/diewo77/gym-api/httpx"
	"github.com/diewo77/gym-api/internal/models"
	"github.com/diewo77/gym-api/internal/services"
	"github.com/diewo77/gym-api/validation"
)

type AuthHandler struct {
	DB       *gorm.DB
	Accounts *services.AccountService
}

func NewAuthHandler(db *gorm.DB) *AuthHandler {
	return &AuthHandler{DB: db, Accounts: services.NewAccountService(db)}
}

type registerRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

// RegisterUser handles public self-registration. The created account is
// always a TRAINEE with no trainer link, whatever the caller sends.
func (h *AuthHandler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	v := validation.Violations{}
	validation.Required("username", in.Username, v)
	validation.Required("password", in.Password, v)
	validation.MinLength("password", in.Password, 4, v)
	if in.Password != in.PasswordConfirm {
		v["password_confirm"] = "Passwords do not match."
	}
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}
	u, err := h.Accounts.Register(services.RegisterInput{
		Username:  in.Username,
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Password:  in.Password,
	})
	if err != nil {
		if errors.Is(err, services.ErrUsernameTaken) {
			httpx.JSONError(w, http.StatusBadRequest, "validation_failed", validation.Violations{"username": "A user with that username already exists."})
			return
		}
		httpx.JSONError(w, http.StatusInternalServerError, "registration_failed", nil)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"id":       u.ID,
		"username": u.Username,
		"email":    u.Email,
		"message":  "User registered successfully.",
	})
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) authenticate(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	var in credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return nil, false
	}
	var u models.User
	if err := h.DB.Where("username = ?", in.Username).First(&u).Error; err != nil {
		httpx.JSONError(w, http.StatusUnauthorized, "invalid_credentials", nil)
		return nil, false
	}
	if !u.IsActive || !services.CheckPassword(&u, in.Password) {
		httpx.JSONError(w, http.StatusUnauthorized, "invalid_credentials", nil)
		return nil, false
	}
	return &u, true
}

// Token implements POST /api/auth/token/ returning the bare token pair.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	u, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	access, refresh, err := auth.IssuePair(claimsFor(u))
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "token_issue_failed", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"access": access, "refresh": refresh})
}

// Login implements POST /api/users/login/ returning tokens plus a user summary.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	u, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	access, refresh, err := auth.IssuePair(claimsFor(u))
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "token_issue_failed", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"access":  access,
		"refresh": refresh,
		"user":    userSummary(u),
	})
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

// Refresh exchanges a valid refresh token for a fresh access token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Refresh == "" {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	c, err := auth.Parse(in.Refresh)
	if err != nil || c.Type != auth.TypeRefresh {
		httpx.JSONError(w, http.StatusUnauthorized, "invalid_refresh_token", nil)
		return
	}
	var u models.User
	if err := h.DB.First(&u, c.UserID).Error; err != nil || !u.IsActive {
		httpx.JSONError(w, http.StatusUnauthorized, "invalid_refresh_token", nil)
		return
	}
	// Claims are rebuilt from the row, not the old token, so a role change
	// propagates on refresh.
	access, err := auth.Issue(claimsFor(&u), auth.TypeAccess, auth.AccessTTL)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "token_issue_failed", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"access": access})
}

// Me returns the principal summary for the authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(r, h.DB)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, userSummary(u))
}
