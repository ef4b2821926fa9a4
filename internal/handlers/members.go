package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/diewo77/gym-api/gate"
	"github.com/diewo77/gym-api/httpx"
	"github.com/diewo77/gym-api/internal/models"
	"github.com/diewo77/gym-api/internal/policy"
	"github.com/diewo77/gym-api/internal/services"
	"github.com/diewo77/gym-api/validation"
)

// MemberHandler serves /api/users/members/. Creation is the atomic
// User+MemberProfile flow; a failed profile insert never leaves a user behind.
type MemberHandler struct {
	DB       *gorm.DB
	Engine   *policy.Engine
	Accounts *services.AccountService
}

func NewMemberHandler(db *gorm.DB, engine *policy.Engine) *MemberHandler {
	return &MemberHandler{DB: db, Engine: engine, Accounts: services.NewAccountService(db)}
}

var membershipTypes = []string{models.MembershipBasic, models.MembershipPremium, models.MembershipVIP}

func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(r, h.DB)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var profiles []models.MemberProfile
	if err := h.Engine.Scope(u, policy.KindMemberProfile, h.DB.Model(&models.MemberProfile{})).
		Preload("User").Order("updated_at desc").Find(&profiles).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_members", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, profiles)
}

func (h *MemberHandler) fetch(u *models.User, id uint) (*models.MemberProfile, error) {
	var p models.MemberProfile
	err := h.Engine.Scope(u, policy.KindMemberProfile, h.DB.Model(&models.MemberProfile{})).
		Preload("User").Where("member_profiles.id = ?", id).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (h *MemberHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
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

type memberCreateRequest struct {
	Username            string `json:"username"`
	Email               string `json:"email"`
	FirstName           string `json:"first_name"`
	LastName            string `json:"last_name"`
	Password            string `json:"password"`
	MembershipType      string `json:"membership_type"`
	MembershipStartDate string `json:"membership_start_date"`
	MembershipEndDate   string `json:"membership_end_date"`
	EmergencyContact    string `json:"emergency_contact"`
	MedicalConditions   string `json:"medical_conditions"`
}

// validateMembershipDates enforces end >= start.
func validateMembershipDates(start, end time.Time, v validation.Violations) {
	if end.Before(start) {
		v["membership_end_date"] = "must not be before membership_start_date"
	}
}

func (h *MemberHandler) Create(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(r, h.DB); !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var in memberCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	v := validation.Violations{}
	validation.Required("username", in.Username, v)
	validation.Required("password", in.Password, v)
	validation.MinLength("password", in.Password, 4, v)
	membershipType := in.MembershipType
	if membershipType == "" {
		membershipType = models.MembershipBasic
	}
	validation.Choice("membership_type", membershipType, membershipTypes, v)
	validation.Required("membership_start_date", in.MembershipStartDate, v)
	validation.Required("membership_end_date", in.MembershipEndDate, v)
	var start, end time.Time
	if v.Empty() {
		start = validation.Date("membership_start_date", in.MembershipStartDate, v)
		end = validation.Date("membership_end_date", in.MembershipEndDate, v)
	}
	if v.Empty() {
		validateMembershipDates(start, end, v)
	}
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}
	profile := models.MemberProfile{
		MembershipType:      membershipType,
		MembershipStartDate: start,
		MembershipEndDate:   end,
		EmergencyContact:    in.EmergencyContact,
		MedicalConditions:   in.MedicalConditions,
		IsActive:            true,
	}
	created, err := h.Accounts.CreateMember(services.RegisterInput{
		Username:  in.Username,
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Password:  in.Password,
	}, profile)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUsernameTaken):
			httpx.JSONError(w, http.StatusConflict, "username_already_exists", nil)
		case errors.Is(err, services.ErrDuplicateProfile):
			httpx.JSONError(w, http.StatusConflict, "profile_already_exists", nil)
		default:
			httpx.JSONError(w, http.StatusInternalServerError, "member_create_failed", nil)
		}
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

type memberUpdateRequest struct {
	MembershipType      *string `json:"membership_type"`
	MembershipStartDate *string `json:"membership_start_date"`
	MembershipEndDate   *string `json:"membership_end_date"`
	EmergencyContact    *string `json:"emergency_contact"`
	MedicalConditions   *string `json:"medical_conditions"`
	IsActive            *bool   `json:"is_active"`
}

func (h *MemberHandler) Update(w http.ResponseWriter, r *http.Request) {
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
	if err := h.Engine.Authorize(r.Context(), u, gate.ActionUpdate, policy.KindMemberProfile, p); err != nil {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	var in memberUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	v := validation.Violations{}
	start, end := p.MembershipStartDate, p.MembershipEndDate
	if in.MembershipStartDate != nil {
		start = validation.Date("membership_start_date", *in.MembershipStartDate, v)
	}
	if in.MembershipEndDate != nil {
		end = validation.Date("membership_end_date", *in.MembershipEndDate, v)
	}
	if in.MembershipType != nil {
		validation.Choice("membership_type", *in.MembershipType, membershipTypes, v)
	}
	if v.Empty() {
		validateMembershipDates(start, end, v)
	}
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}
	p.MembershipStartDate = start
	p.MembershipEndDate = end
	if in.MembershipType != nil {
		p.MembershipType = *in.MembershipType
	}
	if in.EmergencyContact != nil {
		p.EmergencyContact = *in.EmergencyContact
	}
	if in.MedicalConditions != nil {
		p.MedicalConditions = *in.MedicalConditions
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	if err := h.DB.Save(p).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "update_failed", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *MemberHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
	if err := h.Engine.Authorize(r.Context(), u, gate.ActionDelete, policy.KindMemberProfile, p); err != nil {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	if err := h.DB.Delete(&models.MemberProfile{}, p.ID).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "delete_failed", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": p.ID})
}
