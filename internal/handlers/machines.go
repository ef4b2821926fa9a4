package handlers

import (
	"encoding/json"
	"net/http"

	"gorm.io/gorm"

	"github.com/diewo77/gym-api/gate"
	"github.com/diewo77/gym-api/httpx"
	"github.com/diewo77/gym-api/internal/models"
	"github.com/diewo77/gym-api/internal/policy"
	"github.com/diewo77/gym-api/validation"
)

// MachineHandler serves the equipment catalog: readable by every
// authenticated principal, mutable by admins only.
type MachineHandler struct {
	DB     *gorm.DB
	Engine *policy.Engine
}

func NewMachineHandler(db *gorm.DB, engine *policy.Engine) *MachineHandler {
	return &MachineHandler{DB: db, Engine: engine}
}

func (h *MachineHandler) List(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(r, h.DB)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	tx := h.Engine.Scope(u, policy.KindMachine, h.DB.Model(&models.Machine{}))
	if like, ok := searchTerm(r); ok {
		tx = tx.Where("lower(code) LIKE ? OR lower(name) LIKE ?", like, like)
	}
	var machines []models.Machine
	if err := tx.Order("code").Find(&machines).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_machines", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, machines)
}

func (h *MachineHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
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
	var m models.Machine
	if err := h.Engine.Scope(u, policy.KindMachine, h.DB).First(&m, id).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

type machineWriteRequest struct {
	Code        *string `json:"code"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (h *MachineHandler) Create(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(r, h.DB)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	if u.Role != models.RoleAdmin {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	var in machineWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	v := validation.Violations{}
	code, name := "", ""
	if in.Code != nil {
		code = *in.Code
	}
	if in.Name != nil {
		name = *in.Name
	}
	validation.Required("code", code, v)
	validation.Required("name", name, v)
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}
	m := models.Machine{Code: code, Name: name}
	if in.Description != nil {
		m.Description = *in.Description
	}
	if err := h.DB.Create(&m).Error; err != nil {
		httpx.JSONError(w, http.StatusConflict, "code_already_exists", nil)
		return
	}
	httpx.JSON(w, http.StatusCreated, m)
}

func (h *MachineHandler) Update(w http.ResponseWriter, r *http.Request) {
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
	var m models.Machine
	if err := h.Engine.Scope(u, policy.KindMachine, h.DB).First(&m, id).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	if err := h.Engine.Authorize(r.Context(), u, gate.ActionUpdate, policy.KindMachine, &m); err != nil {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	var in machineWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if in.Code != nil {
		m.Code = *in.Code
	}
	if in.Name != nil {
		m.Name = *in.Name
	}
	if in.Description != nil {
		m.Description = *in.Description
	}
	if err := h.DB.Save(&m).Error; err != nil {
		httpx.JSONError(w, http.StatusConflict, "code_already_exists", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *MachineHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
	var m models.Machine
	if err := h.Engine.Scope(u, policy.KindMachine, h.DB).First(&m, id).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	if err := h.Engine.Authorize(r.Context(), u, gate.ActionDelete, policy.KindMachine, &m); err != nil {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	if err := h.DB.Delete(&models.Machine{}, m.ID).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "delete_failed", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": m.ID})
}
