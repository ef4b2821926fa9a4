package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"gorm.io/gorm"

	"github.com/diewo77/gym-api/gate"
	"github.com/diewo77/gym-api/httpx"
	"github.com/diewo77/gym-api/internal/models"
	"github.com/diewo77/gym-api/internal/policy"
	"github.com/diewo77/gym-api/internal/services"
	"github.com/diewo77/gym-api/validation"
)

type StudentHandler struct {
	DB       *gorm.DB
	Engine   *policy.Engine
	Accounts *services.AccountService
}

func NewStudentHandler(db *gorm.DB, engine *policy.Engine) *StudentHandler {
	return &StudentHandler{DB: db, Engine: engine, Accounts: services.NewAccountService(db)}
}

func (h *StudentHandler) scoped(u *models.User) *gorm.DB {
	return h.Engine.Scope(u, policy.KindStudent, h.DB.Model(&models.Student{}))
}

func (h *StudentHandler) List(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(r, h.DB)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	tx := h.scoped(u)
	if like, ok := searchTerm(r); ok {
		tx = tx.Where("user_id IN (SELECT id FROM users WHERE lower(username) LIKE ? OR lower(first_name) LIKE ? OR lower(last_name) LIKE ?)", like, like, like)
	}
	var students []models.Student
	if err := tx.Preload("User").Order("id").Find(&students).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_students", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, students)
}

// fetch resolves one student inside the principal's scope; rows outside the
// scope read as not found, never as forbidden.
func (h *StudentHandler) fetch(u *models.User, id uint) (*models.Student, error) {
	var s models.Student
	err := h.scoped(u).Preload("User").Where("students.id = ?", id).First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (h *StudentHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(r, h.DB)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	id, ok := pathID(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	s, err := h.fetch(u, id)
	if err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}

type studentCreateRequest struct {
	UserID uint   `json:"user_id"`
	Phone  string `json:"phone"`
	Notes  string `json:"notes"`
}

func (h *StudentHandler) Create(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(r, h.DB); !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var in studentCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if in.UserID == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", validation.Violations{"user_id": "required"})
		return
	}
	s, err := h.Accounts.CreateStudent(in.UserID, in.Phone, in.Notes)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUserNotFound):
			httpx.JSONError(w, http.StatusBadRequest, "validation_failed", validation.Violations{"user_id": "User not found."})
		case errors.Is(err, services.ErrNotTrainee):
			httpx.JSONError(w, http.StatusBadRequest, "validation_failed", validation.Violations{"user_id": "User must have role TRAINEE."})
		case errors.Is(err, services.ErrDuplicateProfile):
			httpx.JSONError(w, http.StatusBadRequest, "validation_failed", validation.Violations{"user_id": "Student profile already exists for this user."})
		default:
			httpx.JSONError(w, http.StatusInternalServerError, "student_create_failed", nil)
		}
		return
	}
	httpx.JSON(w, http.StatusCreated, s)
}

type studentUpdateRequest struct {
	Phone *string `json:"phone"`
	Notes *string `json:"notes"`
}

func (h *StudentHandler) Update(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(r, h.DB)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	id, ok := pathID(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	s, err := h.fetch(u, id)
	if err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	if err := h.Engine.Authorize(r.Context(), u, gate.ActionUpdate, policy.KindStudent, s); err != nil {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	var in studentUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if in.Phone != nil {
		s.Phone = *in.Phone
	}
	if in.Notes != nil {
		s.Notes = *in.Notes
	}
	if err := h.DB.Save(s).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "update_failed", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}

func (h *StudentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(r, h.DB)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	id, ok := pathID(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	s, err := h.fetch(u, id)
	if err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	if err := h.Engine.Authorize(r.Context(), u, gate.ActionDelete, policy.KindStudent, s); err != nil {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	if err := h.DB.Delete(&models.Student{}, s.ID).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "delete_failed", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": s.ID})
}
