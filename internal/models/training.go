package models

import "time"

// Student is the training-side record of a TRAINEE user (exactly one per user).
type Student struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	UserID uint   `gorm:"uniqueIndex;not null" json:"user_id"`
	User   User   `gorm:"foreignKey:UserID" json:"user"`
	Phone  string `gorm:"size:30" json:"phone"`
	Notes  string `json:"notes"`
}

// Lesson is a single booked slot between a trainer user and a student.
// End must be strictly after Start.
type Lesson struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	TrainerID   uint      `gorm:"not null;index:idx_lessons_trainer_start" json:"trainer_id"`
	Trainer     User      `gorm:"foreignKey:TrainerID" json:"trainer"`
	StudentID   uint      `gorm:"not null" json:"student_id"`
	Student     Student   `gorm:"foreignKey:StudentID" json:"student"`
	Start       time.Time `gorm:"not null;index:idx_lessons_trainer_start" json:"start"`
	End         time.Time `gorm:"not null" json:"end"`
	Location    string    `gorm:"size:120" json:"location"`
	IsCompleted bool      `gorm:"not null;default:false" json:"is_completed"`
	PriceILS    float64   `gorm:"not null;default:0" json:"price_ils"`
}

// Payment methods.
const (
	MethodCash     = "CASH"
	MethodCard     = "CARD"
	MethodTransfer = "TRANSFER"
)

// Payment is append-only. PaidAt is assigned by the server at creation and
// never accepted from the client, on create or update.
type Payment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	StudentID uint      `gorm:"not null;index" json:"student_id"`
	Student   Student   `gorm:"foreignKey:StudentID" json:"student"`
	AmountILS float64   `gorm:"not null" json:"amount_ils"`
	PaidAt    time.Time `gorm:"not null" json:"paid_at"`
	Method    string    `gorm:"size:32;not null" json:"method"`
	Note      string    `gorm:"size:140" json:"note"`
}

// TrainingSession types and statuses.
const (
	SessionPersonal = "personal"
	SessionGroup    = "group"
	SessionClass    = "class"

	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// TrainingSession links profile records rather than raw users.
// DurationMinutes must be positive.
type TrainingSession struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	TrainerID       uint           `gorm:"not null;index:idx_sessions_trainer_date" json:"trainer_id"`
	Trainer         TrainerProfile `gorm:"foreignKey:TrainerID" json:"trainer"`
	MemberID        uint           `gorm:"not null;index:idx_sessions_member_date" json:"member_id"`
	Member          MemberProfile  `gorm:"foreignKey:MemberID" json:"member"`
	SessionType     string         `gorm:"size:16;not null" json:"session_type"`
	ScheduledDate   time.Time      `gorm:"not null;index:idx_sessions_trainer_date;index:idx_sessions_member_date" json:"scheduled_date"`
	DurationMinutes int            `gorm:"not null" json:"duration_minutes"`
	Status          string         `gorm:"size:16;not null;default:scheduled" json:"status"`
	Notes           string         `json:"notes"`
	Price           float64        `gorm:"not null" json:"price"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Plan is a free-form training plan written for a trainee.
type Plan struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	TraineeID   uint      `gorm:"not null;index" json:"trainee_id"`
	Trainee     User      `gorm:"foreignKey:TraineeID" json:"trainee"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Machine is a catalog entry; visible to everyone authenticated.
type Machine struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Code        string    `gorm:"unique;not null;size:32" json:"code"`
	Name        string    `gorm:"not null;size:120" json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}
