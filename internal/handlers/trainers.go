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

// TrainerHandler serves /api/users/trainers/. Creation is the atomic
// User+TrainerProfile flow and is restricted to admins.
type TrainerHandler struct {
	DB       *gorm.DB
	Engine   *policy.Engine
	Accounts *services.AccountService
}

func NewTrainerHandler(db *gorm.DB, engine *policy.Engine) *TrainerHandler {
	return &TrainerHandler{DB: db, Engine: engine, Accounts: services.NewAccountService(db)}
}

func (h *TrainerHandler) List(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(r, h.DB)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var profiles []models.TrainerProfile
	if err := h.Engine.Scope(u, policy.KindTrainerProfile, h.DB.Model(&models.TrainerProfile{})).
		Preload("User").Order("updated_at desc").Find(&profiles).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_trainers", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, profiles)
}

func (h *TrainerHandler) fetch(u *models.User, id uint) (*models.TrainerProfile, error) {
	var p models.TrainerProfile
	err := h.Engine.Scope(u, policy.KindTrainerProfile, h.DB.Model(&models.TrainerProfile{})).
		Preload("User").Where("trainer_profiles.id = ?", id).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (h *TrainerHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
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
	p, err := h.fetch(u, id)
	if err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

type trainerCreateRequest struct {
	Username        string  `json:"username"`
	Email           string  `json:"email"`
	FirstName       string  `json:"first_name"`
	LastName        string  `json:"last_name"`
	Password        string  `json:"password"`
	Specialization  string  `json:"specialization"`
	ExperienceYears int     `json:"experience_years"`
	Bio             string  `json:"bio"`
	HourlyRate      float64 `json:"hourly_rate"`
	IsAvailable     *bool   `json:"is_available"`
}

func (h *TrainerHandler) Create(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(r, h.DB)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	if u.Role != models.RoleAdmin {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	var in trainerCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	v := validation.Violations{}
	validation.Required("username", in.Username, v)
	validation.Required("password", in.Password, v)
	validation.MinLength("password", in.Password, 4, v)
	validation.Required("specialization", in.Specialization, v)
	if in.ExperienceYears < 0 {
		v["experience_years"] = "must_not_be_negative"
	}
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}
	available := true
	if in.IsAvailable != nil {
		available = *in.IsAvailable
	}
	created, err := h.Accounts.CreateTrainer(services.TrainerCreateInput{
		RegisterInput: services.RegisterInput{
			Username:  in.Username,
			Email:     in.Email,
			FirstName: in.FirstName,
			LastName:  in.LastName,
			Password:  in.Password,
		},
		Specialization:  in.Specialization,
		ExperienceYears: in.ExperienceYears,
		Bio:             in.Bio,
		HourlyRate:      in.HourlyRate,
		IsAvailable:     available,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUsernameTaken):
			httpx.JSONError(w, http.StatusConflict, "username_already_exists", nil)
		case errors.Is(err, services.ErrDuplicateProfile):
			httpx.JSONError(w, http.StatusConflict, "profile_already_exists", nil)
		default:
			httpx.JSONError(w, http.StatusInternalServerError, "trainer_create_failed", nil)
		}
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

type trainerUpdateRequest struct {
	Specialization  *string  `json:"specialization"`
	ExperienceYears *int     `json:"experience_years"`
	Bio             *string  `json:"bio"`
	HourlyRate      *float64 `json:"hourly_rate"`
	IsAvailable     *bool    `json:"is_available"`
}

func (h *TrainerHandler) Update(w http.ResponseWriter, r *http.Request) {
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
	p, err := h.fetch(u, id)
	if err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	if err := h.Engine.Authorize(r.Context(), u, gate.ActionUpdate, policy.KindTrainerProfile, p); err != nil {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	var in trainerUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if in.ExperienceYears != nil && *in.ExperienceYears < 0 {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", validation.Violations{"experience_years": "must_not_be_negative"})
		return
	}
	if in.Specialization != nil {
		p.Specialization = *in.Specialization
	}
	if in.ExperienceYears != nil {
		p.ExperienceYears = *in.ExperienceYears
	}
	if in.Bio != nil {
		p.Bio = *in.Bio
	}
	if in.HourlyRate != nil {
		p.HourlyRate = *in.HourlyRate
	}
	if in.IsAvailable != nil {
		p.IsAvailable = *in.IsAvailable
	}
	if err := h.DB.Save(p).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "update_failed", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *TrainerHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
	p, err := h.fetch(u, id)
	if err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	if err := h.Engine.Authorize(r.Context(), u, gate.ActionDelete, policy.KindTrainerProfile, p); err != nil {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	if err := h.DB.Delete(&models.TrainerProfile{}, p.ID).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "delete_failed", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": p.ID})
}
