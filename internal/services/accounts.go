package services

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/diewo77/gym-api/internal/models"
)

// AccountService owns every flow that creates principals: public
// registration, trainer-initiated trainee creation, and the combined
// User+Profile flows. The combined flows run in a single transaction so a
// user row can never persist without its profile.
type AccountService struct{ DB *gorm.DB }

func NewAccountService(db *gorm.DB) *AccountService { return &AccountService{DB: db} }

var (
	ErrUsernameTaken    = errors.New("username_taken")
	ErrUserNotFound     = errors.New("user_not_found")
	ErrNotTrainee       = errors.New("user_must_be_trainee")
	ErrDuplicateProfile = errors.New("profile_already_exists")
)

type RegisterInput struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Password  string
}

func hashPassword(plain string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	return string(h), err
}

// CheckPassword verifies a plaintext password against the stored hash.
func CheckPassword(u *models.User, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(plain)) == nil
}

func (s *AccountService) usernameTaken(tx *gorm.DB, username string) (bool, error) {
	var count int64
	if err := tx.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Register creates a self-registered user. Role is always TRAINEE and no
// trainer link is set regardless of input.
func (s *AccountService) Register(in RegisterInput) (*models.User, error) {
	taken, err := s.usernameTaken(s.DB, in.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrUsernameTaken
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := models.User{
		Username:  strings.TrimSpace(in.Username),
		Email:     strings.TrimSpace(in.Email),
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Password:  hash,
		Role:      models.RoleTrainee,
		IsActive:  true,
	}
	if err := s.DB.Create(&u).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	return &u, nil
}

// CreateTrainee creates a TRAINEE on behalf of a trainer or admin. The
// trainer link points at the creator when the creator is a trainer; an admin
// creator leaves it unset, since the link must reference a TRAINER user.
func (s *AccountService) CreateTrainee(creator *models.User, in RegisterInput) (*models.User, error) {
	taken, err := s.usernameTaken(s.DB, in.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrUsernameTaken
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := models.User{
		Username:  strings.TrimSpace(in.Username),
		Email:     strings.TrimSpace(in.Email),
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Password:  hash,
		Role:      models.RoleTrainee,
		IsActive:  true,
	}
	if creator.Role == models.RoleTrainer {
		u.TrainerID = &creator.ID
	}
	if err := s.DB.Create(&u).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	return &u, nil
}

// CreateMember creates a TRAINEE user and its MemberProfile atomically. The
// profile's date fields are already validated by the handler.
func (s *AccountService) CreateMember(in RegisterInput, profile models.MemberProfile) (*models.MemberProfile, error) {
	var out *models.MemberProfile
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		taken, err := s.usernameTaken(tx, in.Username)
		if err != nil {
			return err
		}
		if taken {
			return ErrUsernameTaken
		}
		hash, err := hashPassword(in.Password)
		if err != nil {
			return err
		}
		u := models.User{
			Username:  strings.TrimSpace(in.Username),
			Email:     strings.TrimSpace(in.Email),
			FirstName: in.FirstName,
			LastName:  in.LastName,
			Password:  hash,
			Role:      models.RoleTrainee,
			IsActive:  true,
		}
		if err := tx.Create(&u).Error; err != nil {
			if isDuplicate(err) {
				return ErrUsernameTaken
			}
			return err
		}
		profile.UserID = u.ID
		if err := tx.Create(&profile).Error; err != nil {
			if isDuplicate(err) {
				return ErrDuplicateProfile
			}
			return err
		}
		profile.User = u
		out = &profile
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type TrainerCreateInput struct {
	RegisterInput
	Specialization  string
	ExperienceYears int
	Bio             string
	HourlyRate      float64
	IsAvailable     bool
}

// CreateTrainer creates a TRAINER user and its TrainerProfile atomically.
func (s *AccountService) CreateTrainer(in TrainerCreateInput) (*models.TrainerProfile, error) {
	var out *models.TrainerProfile
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		taken, err := s.usernameTaken(tx, in.Username)
		if err != nil {
			return err
		}
		if taken {
			return ErrUsernameTaken
		}
		hash, err := hashPassword(in.Password)
		if err != nil {
			return err
		}
		u := models.User{
			Username:  strings.TrimSpace(in.Username),
			Email:     strings.TrimSpace(in.Email),
			FirstName: in.FirstName,
			LastName:  in.LastName,
			Password:  hash,
			Role:      models.RoleTrainer,
			IsActive:  true,
		}
		if err := tx.Create(&u).Error; err != nil {
			if isDuplicate(err) {
				return ErrUsernameTaken
			}
			return err
		}
		profile := models.TrainerProfile{
			UserID:          u.ID,
			Specialization:  in.Specialization,
			ExperienceYears: in.ExperienceYears,
			Bio:             in.Bio,
			HourlyRate:      in.HourlyRate,
			IsAvailable:     in.IsAvailable,
		}
		if err := tx.Create(&profile).Error; err != nil {
			if isDuplicate(err) {
				return ErrDuplicateProfile
			}
			return err
		}
		profile.User = u
		out = &profile
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateStudent validates the one-per-trainee invariants and inserts the row.
func (s *AccountService) CreateStudent(userID uint, phone, notes string) (*models.Student, error) {
	var u models.User
	if err := s.DB.First(&u, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if u.Role != models.RoleTrainee {
		return nil, ErrNotTrainee
	}
	var count int64
	if err := s.DB.Model(&models.Student{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrDuplicateProfile
	}
	st := models.Student{UserID: userID, Phone: phone, Notes: notes}
	if err := s.DB.Create(&st).Error; err != nil {
		if isDuplicate(err) {
			// lost a race on the unique index
			return nil, ErrDuplicateProfile
		}
		return nil, err
	}
	st.User = u
	return &st, nil
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(strings.ToLower(err.Error()), "unique") ||
		strings.Contains(strings.ToLower(err.Error()), "duplicate")
}
