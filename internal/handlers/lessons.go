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

type LessonHandler struct {
	DB     *gorm.DB
	Engine *policy.Engine
}

func NewLessonHandler(db *gorm.DB, engine *policy.Engine) *LessonHandler {
	return &LessonHandler{DB: db, Engine: engine}
}

var lessonOrdering = map[string]string{
	"start":     "start",
	"end":       "\"end\"",
	"price_ils": "price_ils",
}

func (h *LessonHandler) scoped(u *models.User) *gorm.DB {
	return h.Engine.Scope(u, policy.KindLesson, h.DB.Model(&models.Lesson{}))
}

func (h *LessonHandler) List(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(r, h.DB)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	tx := h.scoped(u)
	if like, ok := searchTerm(r); ok {
		tx = tx.Where("lower(location) LIKE ? OR student_id IN (SELECT id FROM students WHERE user_id IN (SELECT id FROM users WHERE lower(username) LIKE ?))", like, like)
	}
	var lessons []models.Lesson
	if err := tx.Preload("Trainer").Preload("Student.User").
		Order(orderClause(r, lessonOrdering, "start desc")).
		Find(&lessons).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_lessons", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, lessons)
}

func (h *LessonHandler) fetch(u *models.User, id uint) (*models.Lesson, error) {
	var l models.Lesson
	err := h.scoped(u).Preload("Trainer").Preload("Student.User").Where("lessons.id = ?", id).First(&l).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (h *LessonHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
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
	l, err := h.fetch(u, id)
	if err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, l)
}

type lessonWriteRequest struct {
	TrainerID   *uint      `json:"trainer_id"`
	StudentID   *uint      `json:"student_id"`
	Start       *time.Time `json:"start"`
	End         *time.Time `json:"end"`
	Location    *string    `json:"location"`
	IsCompleted *bool      `json:"is_completed"`
	PriceILS    *float64   `json:"price_ils"`
}

// validateWindow enforces the strict end-after-start invariant.
func validateWindow(start, end time.Time, v validation.Violations) {
	if !end.After(start) {
		v["end"] = "end must be after start"
	}
}

func (h *LessonHandler) Create(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(r, h.DB); !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var in lessonWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	v := validation.Violations{}
	if in.TrainerID == nil {
		v["trainer_id"] = "required"
	}
	if in.StudentID == nil {
		v["student_id"] = "required"
	}
	if in.Start == nil {
		v["start"] = "required"
	}
	if in.End == nil {
		v["end"] = "required"
	}
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}
	validateWindow(*in.Start, *in.End, v)

	// trainer_id may only reference a TRAINER user
	var trainer models.User
	if err := h.DB.Where("id = ? AND role = ?", *in.TrainerID, models.RoleTrainer).First(&trainer).Error; err != nil {
		v["trainer_id"] = "Trainer not found."
	}
	var student models.Student
	if err := h.DB.Preload("User").First(&student, *in.StudentID).Error; err != nil {
		v["student_id"] = "Student not found."
	}
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}

	l := models.Lesson{TrainerID: trainer.ID, StudentID: student.ID, Start: *in.Start, End: *in.End}
	if in.Location != nil {
		l.Location = *in.Location
	}
	if in.IsCompleted != nil {
		l.IsCompleted = *in.IsCompleted
	}
	if in.PriceILS != nil {
		l.PriceILS = *in.PriceILS
	}
	if err := h.DB.Create(&l).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "lesson_create_failed", nil)
		return
	}
	l.Trainer = trainer
	l.Student = student
	httpx.JSON(w, http.StatusCreated, l)
}

func (h *LessonHandler) Update(w http.ResponseWriter, r *http.Request) {
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
	l, err := h.fetch(u, id)
	if err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	if err := h.Engine.Authorize(r.Context(), u, gate.ActionUpdate, policy.KindLesson, l); err != nil {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	var in lessonWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if in.Start != nil {
		l.Start = *in.Start
	}
	if in.End != nil {
		l.End = *in.End
	}
	v := validation.Violations{}
	validateWindow(l.Start, l.End, v)
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}
	if in.Location != nil {
		l.Location = *in.Location
	}
	if in.IsCompleted != nil {
		l.IsCompleted = *in.IsCompleted
	}
	if in.PriceILS != nil {
		l.PriceILS = *in.PriceILS
	}
	if err := h.DB.Save(l).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "update_failed", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, l)
}

func (h *LessonHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
	l, err := h.fetch(u, id)
	if err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	if err := h.Engine.Authorize(r.Context(), u, gate.ActionDelete, policy.KindLesson, l); err != nil {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	if err := h.DB.Delete(&models.Lesson{}, l.ID).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "delete_failed", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": l.ID})
}
