package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/diewo77/gym-api/gate"
	"github.com/diewo77/gym-api/httpx"
	"github.com/diewo77/gym-api/internal/models"
	"github.com/diewo77/gym-api/internal/policy"
	"github.com/diewo77/gym-api/validation"
)

type SessionHandler struct {
	DB     *gorm.DB
	Engine *policy.Engine
}

func NewSessionHandler(db *gorm.DB, engine *policy.Engine) *SessionHandler {
	return &SessionHandler{DB: db, Engine: engine}
}

var (
	sessionTypes    = []string{models.SessionPersonal, models.SessionGroup, models.SessionClass}
	sessionStatuses = []string{models.StatusScheduled, models.StatusCompleted, models.StatusCancelled}
)

var sessionOrdering = map[string]string{
	"scheduled_date": "scheduled_date",
	"price":          "price",
}

func (h *SessionHandler) scoped(u *models.User) *gorm.DB {
	return h.Engine.Scope(u, policy.KindSession, h.DB.Model(&models.TrainingSession{}))
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(r, h.DB)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var sessions []models.TrainingSession
	if err := h.scoped(u).
		Preload("Trainer.User").Preload("Member.User").
		Order(orderClause(r, sessionOrdering, "scheduled_date desc")).
		Find(&sessions).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_sessions", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, sessions)
}

func (h *SessionHandler) fetch(u *models.User, id uint) (*models.TrainingSession, error) {
	var s models.TrainingSession
	err := h.scoped(u).Preload("Trainer.User").Preload("Member.User").
		Where("training_sessions.id = ?", id).First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (h *SessionHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
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

type sessionWriteRequest struct {
	TrainerID       *uint      `json:"trainer_id"`
	MemberID        *uint      `json:"member_id"`
	SessionType     *string    `json:"session_type"`
	ScheduledDate   *time.Time `json:"scheduled_date"`
	DurationMinutes *int       `json:"duration_minutes"`
	Status          *string    `json:"status"`
	Notes           *string    `json:"notes"`
	Price           *float64   `json:"price"`
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(r, h.DB); !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var in sessionWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	v := validation.Violations{}
	if in.TrainerID == nil {
		v["trainer_id"] = "required"
	}
	if in.MemberID == nil {
		v["member_id"] = "required"
	}
	if in.ScheduledDate == nil {
		v["scheduled_date"] = "required"
	}
	sessionType := ""
	if in.SessionType != nil {
		sessionType = *in.SessionType
	}
	validation.Required("session_type", sessionType, v)
	validation.Choice("session_type", sessionType, sessionTypes, v)
	if in.DurationMinutes == nil {
		v["duration_minutes"] = "required"
	} else {
		validation.PositiveInt("duration_minutes", *in.DurationMinutes, v)
	}
	status := models.StatusScheduled
	if in.Status != nil {
		status = *in.Status
	}
	validation.Choice("status", status, sessionStatuses, v)
	if in.Price == nil {
		v["price"] = "required"
	}
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}
	var trainer models.TrainerProfile
	if err := h.DB.Preload("User").First(&trainer, *in.TrainerID).Error; err != nil {
		v["trainer_id"] = "Trainer profile not found."
	}
	var member models.MemberProfile
	if err := h.DB.Preload("User").First(&member, *in.MemberID).Error; err != nil {
		v["member_id"] = "Member profile not found."
	}
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}
	s := models.TrainingSession{
		TrainerID:       trainer.ID,
		MemberID:        member.ID,
		SessionType:     sessionType,
		ScheduledDate:   *in.ScheduledDate,
		DurationMinutes: *in.DurationMinutes,
		Status:          status,
		Price:           *in.Price,
	}
	if in.Notes != nil {
		s.Notes = *in.Notes
	}
	if err := h.DB.Create(&s).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "session_create_failed", nil)
		return
	}
	s.Trainer = trainer
	s.Member = member
	httpx.JSON(w, http.StatusCreated, s)
}

func (h *SessionHandler) Update(w http.ResponseWriter, r *http.Request) {
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
	if err := h.Engine.Authorize(r.Context(), u, gate.ActionUpdate, policy.KindSession, s); err != nil {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	var in sessionWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	v := validation.Violations{}
	if in.SessionType != nil {
		validation.Choice("session_type", *in.SessionType, sessionTypes, v)
	}
	if in.Status != nil {
		validation.Choice("status", *in.Status, sessionStatuses, v)
	}
	if in.DurationMinutes != nil {
		validation.PositiveInt("duration_minutes", *in.DurationMinutes, v)
	}
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}
	if in.SessionType != nil {
		s.SessionType = *in.SessionType
	}
	if in.ScheduledDate != nil {
		s.ScheduledDate = *in.ScheduledDate
	}
	if in.DurationMinutes != nil {
		s.DurationMinutes = *in.DurationMinutes
	}
	if in.Status != nil {
		s.Status = *in.Status
	}
	if in.Notes != nil {
		s.Notes = *in.Notes
	}
	if in.Price != nil {
		s.Price = *in.Price
	}
	if err := h.DB.Save(s).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "update_failed", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
	if err := h.Engine.Authorize(r.Context(), u, gate.ActionDelete, policy.KindSession, s); err != nil {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	if err := h.DB.Delete(&models.TrainingSession{}, s.ID).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "delete_failed", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": s.ID})
}
