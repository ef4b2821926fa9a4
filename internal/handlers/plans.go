package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"gorm.io/gorm"

	"github.com/diewo77/gym-api/gate"
	"github.com/diewo77/gym-api/httpx"
	"github.com/diewo77/gym-api/internal/models"
	"github.com/diewo77/gym-api/internal/policy"
	"github.com/diewo77/gym-api/validation"
)

type PlanHandler struct {
	DB     *gorm.DB
	Engine *policy.Engine
}

func NewPlanHandler(db *gorm.DB, engine *policy.Engine) *PlanHandler {
	return &PlanHandler{DB: db, Engine: engine}
}

func (h *PlanHandler) scoped(u *models.User) *gorm.DB {
	return h.Engine.Scope(u, policy.KindPlan, h.DB.Model(&models.Plan{}))
}

func (h *PlanHandler) List(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(r, h.DB)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	// The optional trainee filter applies before role narrowing, so it can
	// only ever shrink the visible set.
	tx := h.DB.Model(&models.Plan{})
	if v := r.URL.Query().Get("trainee_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil || id <= 0 {
			httpx.JSONError(w, http.StatusBadRequest, "validation_failed", validation.Violations{"trainee_id": "invalid"})
			return
		}
		tx = tx.Where("trainee_id = ?", id)
	}
	tx = h.Engine.Scope(u, policy.KindPlan, tx)
	var plans []models.Plan
	if err := tx.Preload("Trainee").Order("created_at desc").Find(&plans).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_plans", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, plans)
}

func (h *PlanHandler) fetch(u *models.User, id uint) (*models.Plan, error) {
	var p models.Plan
	err := h.scoped(u).Preload("Trainee").Where("plans.id = ?", id).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (h *PlanHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
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

type planWriteRequest struct {
	TraineeID   *uint   `json:"trainee_id"`
	Description *string `json:"description"`
}

// Create is restricted to trainers and admins; plans are authored for
// trainees, not by them.
func (h *PlanHandler) Create(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(r, h.DB)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	if u.Role != models.RoleTrainer && u.Role != models.RoleAdmin {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	var in planWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if in.TraineeID == nil {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", validation.Violations{"trainee_id": "required"})
		return
	}
	var trainee models.User
	if err := h.DB.Where("id = ? AND role = ?", *in.TraineeID, models.RoleTrainee).First(&trainee).Error; err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", validation.Violations{"trainee_id": "Trainee not found."})
		return
	}
	p := models.Plan{TraineeID: trainee.ID}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if err := h.DB.Create(&p).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "plan_create_failed", nil)
		return
	}
	p.Trainee = trainee
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *PlanHandler) Update(w http.ResponseWriter, r *http.Request) {
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
	if err := h.Engine.Authorize(r.Context(), u, gate.ActionUpdate, policy.KindPlan, p); err != nil {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	var in planWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if err := h.DB.Save(p).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "update_failed", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *PlanHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
	if err := h.Engine.Authorize(r.Context(), u, gate.ActionDelete, policy.KindPlan, p); err != nil {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	if err := h.DB.Delete(&models.Plan{}, p.ID).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "delete_failed", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": p.ID})
}
