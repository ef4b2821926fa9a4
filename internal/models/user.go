package models

import "time"

// Role is the closed set of account roles. Authorization rules key off it.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleTrainer Role = "TRAINER"
	RoleTrainee Role = "TRAINEE"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleTrainer || r == RoleTrainee
}

// User is the principal for every request. TrainerID forms a two-level
// adjacency: it may only reference a user whose role is TRAINER, and trainees
// never reference trainees, so no cycles are possible.
type User struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Username  string `gorm:"unique;not null;index" json:"username"`
	Email     string `json:"email"`
	Password  string `gorm:"not null" json:"-"` // bcrypt hash
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      Role   `gorm:"size:16;not null;default:TRAINEE" json:"role"`
	TrainerID *uint  `gorm:"index" json:"trainer_id"`
	Trainer   *User  `gorm:"foreignKey:TrainerID" json:"-"`
	IsActive  bool   `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TrainerProfile extends a TRAINER user 1:1.
type TrainerProfile struct {
	ID              uint    `gorm:"primaryKey" json:"id"`
	UserID          uint    `gorm:"uniqueIndex;not null" json:"user_id"`
	User            User    `gorm:"foreignKey:UserID" json:"user"`
	Specialization  string  `gorm:"size:120" json:"specialization"`
	ExperienceYears int     `gorm:"not null;default:0" json:"experience_years"`
	Bio             string  `json:"bio"`
	HourlyRate      float64 `gorm:"not null;default:0" json:"hourly_rate"`
	IsAvailable     bool    `gorm:"not null;default:true" json:"is_available"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Membership tiers for MemberProfile.
const (
	MembershipBasic   = "basic"
	MembershipPremium = "premium"
	MembershipVIP     = "vip"
)

// MemberProfile extends a TRAINEE user 1:1. EndDate must not precede StartDate;
// the handlers validate that before any row is written.
type MemberProfile struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	UserID              uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	User                User      `gorm:"foreignKey:UserID" json:"user"`
	MembershipType      string    `gorm:"size:16;not null;default:basic" json:"membership_type"`
	MembershipStartDate time.Time `gorm:"not null" json:"membership_start_date"`
	MembershipEndDate   time.Time `gorm:"not null" json:"membership_end_date"`
	EmergencyContact    string    `gorm:"size:140" json:"emergency_contact"`
	MedicalConditions   string    `json:"medical_conditions"`
	IsActive            bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}
