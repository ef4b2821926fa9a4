package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"gorm.io/gorm"

	"github.com/diewo77/gym-api/httpx"
	"github.com/diewo77/gym-api/internal/models"
	"github.com/diewo77/gym-api/internal/services"
	"github.com/diewo77/gym-api/validation"
)

type TraineeHandler struct {
	DB       *gorm.DB
	Accounts *services.AccountService
}

func NewTraineeHandler(db *gorm.DB) *TraineeHandler {
	return &TraineeHandler{DB: db, Accounts: services.NewAccountService(db)}
}

type traineeCreateRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
}

// Create implements POST /api/users/trainees/: trainers and admins only.
// The new user is a TRAINEE linked to the creating trainer.
func (h *TraineeHandler) Create(w http.ResponseWriter, r *http.Request) {
	creator, ok := currentUser(r, h.DB)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	if creator.Role != models.RoleTrainer && creator.Role != models.RoleAdmin {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	var in traineeCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	v := validation.Violations{}
	validation.Required("username", in.Username, v)
	validation.Required("password", in.Password, v)
	validation.MinLength("password", in.Password, 4, v)
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}
	u, err := h.Accounts.CreateTrainee(creator, services.RegisterInput{
		Username:  in.Username,
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Password:  in.Password,
	})
	if err != nil {
		if errors.Is(err, services.ErrUsernameTaken) {
			httpx.JSONError(w, http.StatusConflict, "username_already_exists", nil)
			return
		}
		httpx.JSONError(w, http.StatusInternalServerError, "trainee_create_failed", nil)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"id":         u.ID,
		"username":   u.Username,
		"email":      u.Email,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
		"trainer_id": u.TrainerID,
	})
}
