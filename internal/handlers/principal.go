package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/diewo77/gym-api/auth"
	"github.com/diewo77/gym-api/internal/models"
)

// currentUser resolves the authenticated principal. The user row is loaded
// fresh so role or trainer changes take effect without waiting for token
// expiry.
func currentUser(r *http.Request, db *gorm.DB) (*models.User, bool) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return nil, false
	}
	var u models.User
	if err := db.First(&u, uid).Error; err != nil {
		return nil, false
	}
	if !u.IsActive {
		return nil, false
	}
	return &u, true
}

func pathID(r *http.Request) (uint, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		return 0, false
	}
	return uint(id), true
}

// orderClause maps an ?ordering=field / ?ordering=-field param onto a column
// whitelist, falling back to def for anything unknown.
func orderClause(r *http.Request, allowed map[string]string, def string) string {
	v := strings.TrimSpace(r.URL.Query().Get("ordering"))
	if v == "" {
		return def
	}
	desc := strings.HasPrefix(v, "-")
	col, ok := allowed[strings.TrimPrefix(v, "-")]
	if !ok {
		return def
	}
	if desc {
		return col + " desc"
	}
	return col
}

// searchTerm returns the lowercased LIKE pattern for ?search=, if present.
func searchTerm(r *http.Request) (string, bool) {
	s := strings.TrimSpace(r.URL.Query().Get("search"))
	if s == "" {
		return "", false
	}
	return "%" + strings.ToLower(s) + "%", true
}

func claimsFor(u *models.User) auth.Claims {
	return auth.Claims{
		UserID:    u.ID,
		Role:      string(u.Role),
		TrainerID: u.TrainerID,
		Name:      strings.TrimSpace(u.FirstName + " " + u.LastName),
	}
}

// userSummary is the principal shape returned by /api/me and login.
func userSummary(u *models.User) map[string]any {
	return map[string]any{
		"id":         u.ID,
		"username":   u.Username,
		"email":      u.Email,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
		"role":       u.Role,
		"trainer_id": u.TrainerID,
		"is_active":  u.IsActive,
	}
}
