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

type PaymentHandler struct {
	DB     *gorm.DB
	Engine *policy.Engine
}

func NewPaymentHandler(db *gorm.DB, engine *policy.Engine) *PaymentHandler {
	return &PaymentHandler{DB: db, Engine: engine}
}

var paymentMethods = []string{models.MethodCash, models.MethodCard, models.MethodTransfer}

var paymentOrdering = map[string]string{
	"paid_at":    "paid_at",
	"amount_ils": "amount_ils",
}

func (h *PaymentHandler) scoped(u *models.User) *gorm.DB {
	return h.Engine.Scope(u, policy.KindPayment, h.DB.Model(&models.Payment{}))
}

func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(r, h.DB)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	tx := h.scoped(u)
	if like, ok := searchTerm(r); ok {
		tx = tx.Where("lower(method) LIKE ? OR lower(note) LIKE ?", like, like)
	}
	var payments []models.Payment
	if err := tx.Preload("Student.User").
		Order(orderClause(r, paymentOrdering, "paid_at desc")).
		Find(&payments).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_payments", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, payments)
}

func (h *PaymentHandler) fetch(u *models.User, id uint) (*models.Payment, error) {
	var p models.Payment
	err := h.scoped(u).Preload("Student.User").Where("payments.id = ?", id).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (h *PaymentHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
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

// paymentWriteRequest deliberately has no paid_at field: the server assigns
// it at creation and it stays immutable afterwards, whatever the client sends.
type paymentWriteRequest struct {
	StudentID *uint    `json:"student_id"`
	AmountILS *float64 `json:"amount_ils"`
	Method    *string  `json:"method"`
	Note      *string  `json:"note"`
}

func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(r, h.DB); !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var in paymentWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	v := validation.Violations{}
	if in.StudentID == nil {
		v["student_id"] = "required"
	}
	if in.AmountILS == nil {
		v["amount_ils"] = "required"
	} else {
		validation.PositiveFloat("amount_ils", *in.AmountILS, v)
	}
	method := ""
	if in.Method != nil {
		method = *in.Method
	}
	validation.Required("method", method, v)
	validation.Choice("method", method, paymentMethods, v)
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}
	var student models.Student
	if err := h.DB.Preload("User").First(&student, *in.StudentID).Error; err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", validation.Violations{"student_id": "Student not found."})
		return
	}
	p := models.Payment{
		StudentID: student.ID,
		AmountILS: *in.AmountILS,
		Method:    method,
		PaidAt:    time.Now().UTC(),
	}
	if in.Note != nil {
		p.Note = *in.Note
	}
	if err := h.DB.Create(&p).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "payment_create_failed", nil)
		return
	}
	p.Student = student
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *PaymentHandler) Update(w http.ResponseWriter, r *http.Request) {
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
	if err := h.Engine.Authorize(r.Context(), u, gate.ActionUpdate, policy.KindPayment, p); err != nil {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	var in paymentWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	v := validation.Violations{}
	if in.AmountILS != nil {
		validation.PositiveFloat("amount_ils", *in.AmountILS, v)
	}
	if in.Method != nil {
		validation.Choice("method", *in.Method, paymentMethods, v)
	}
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}
	if in.AmountILS != nil {
		p.AmountILS = *in.AmountILS
	}
	if in.Method != nil {
		p.Method = *in.Method
	}
	if in.Note != nil {
		p.Note = *in.Note
	}
	if err := h.DB.Save(p).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "update_failed", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *PaymentHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
	if err := h.Engine.Authorize(r.Context(), u, gate.ActionDelete, policy.KindPayment, p); err != nil {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	if err := h.DB.Delete(&models.Payment{}, p.ID).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "delete_failed", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": p.ID})
}
