// Package policy holds the row-level authorization rules. One table keyed by
// (entity kind, role) is the single source of truth: the object-level check
// used before mutations and the query narrowing used for listing are both
// derived from it, so they cannot drift apart.
package policy

import (
	"context"

	"github.com/diewo77/gym-api/gate"
	"github.com/diewo77/gym-api/internal/models"
	"gorm.io/gorm"
)

// Entity kinds understood by the engine.
const (
	KindStudent        = "student"
	KindLesson         = "lesson"
	KindPayment        = "payment"
	KindSession        = "session"
	KindPlan           = "plan"
	KindMachine        = "machine"
	KindTrainerProfile = "trainer_profile"
	KindMemberProfile  = "member_profile"
)

// ownership describes what one role may do with one entity kind.
//
// owns is the read-class object test and must accept exactly the rows scope
// returns; divergence between the two is a defect. mutate, when set, further
// restricts update/delete (admins bypass all of this).
type ownership struct {
	owns   func(u *models.User, obj any) bool
	mutate func(u *models.User, obj any) bool
	scope  func(u *models.User, tx *gorm.DB) *gorm.DB
}

func all(_ *models.User, tx *gorm.DB) *gorm.DB  { return tx }
func none(_ *models.User, tx *gorm.DB) *gorm.DB { return tx.Where("1 = 0") }

func always(*models.User, any) bool { return true }
func never(*models.User, any) bool  { return false }

// rules maps entity kind -> role -> ownership. A missing role entry means the
// role sees nothing and may touch nothing. Admin never consults this table.
var rules = map[string]map[models.Role]ownership{
	KindStudent: {
		// Trainer owns a student iff the student's user is assigned to them.
		// A trainer who does not own the row is denied; there is no
		// fallthrough into the trainee branch.
		models.RoleTrainer: {
			owns: func(u *models.User, obj any) bool {
				s, ok := obj.(*models.Student)
				return ok && s.User.TrainerID != nil && *s.User.TrainerID == u.ID
			},
			scope: func(u *models.User, tx *gorm.DB) *gorm.DB {
				return tx.Where("user_id IN (SELECT id FROM users WHERE trainer_id = ?)", u.ID)
			},
		},
		models.RoleTrainee: {
			owns: func(u *models.User, obj any) bool {
				s, ok := obj.(*models.Student)
				return ok && s.UserID == u.ID
			},
			scope: func(u *models.User, tx *gorm.DB) *gorm.DB {
				return tx.Where("user_id = ?", u.ID)
			},
		},
	},
	KindLesson: {
		models.RoleTrainer: {
			owns: func(u *models.User, obj any) bool {
				l, ok := obj.(*models.Lesson)
				return ok && l.TrainerID == u.ID
			},
			scope: func(u *models.User, tx *gorm.DB) *gorm.DB {
				return tx.Where("trainer_id = ?", u.ID)
			},
		},
		models.RoleTrainee: {
			owns: func(u *models.User, obj any) bool {
				l, ok := obj.(*models.Lesson)
				return ok && l.Student.UserID == u.ID
			},
			scope: func(u *models.User, tx *gorm.DB) *gorm.DB {
				return tx.Where("student_id IN (SELECT id FROM students WHERE user_id = ?)", u.ID)
			},
		},
	},
	KindPayment: {
		models.RoleTrainer: {
			owns: func(u *models.User, obj any) bool {
				p, ok := obj.(*models.Payment)
				return ok && p.Student.User.TrainerID != nil && *p.Student.User.TrainerID == u.ID
			},
			scope: func(u *models.User, tx *gorm.DB) *gorm.DB {
				return tx.Where("student_id IN (SELECT id FROM students WHERE user_id IN (SELECT id FROM users WHERE trainer_id = ?))", u.ID)
			},
		},
		models.RoleTrainee: {
			owns: func(u *models.User, obj any) bool {
				p, ok := obj.(*models.Payment)
				return ok && p.Student.UserID == u.ID
			},
			scope: func(u *models.User, tx *gorm.DB) *gorm.DB {
				return tx.Where("student_id IN (SELECT id FROM students WHERE user_id = ?)", u.ID)
			},
		},
	},
	KindSession: {
		models.RoleTrainer: {
			owns: func(u *models.User, obj any) bool {
				s, ok := obj.(*models.TrainingSession)
				return ok && s.Trainer.UserID == u.ID
			},
			scope: func(u *models.User, tx *gorm.DB) *gorm.DB {
				return tx.Where("trainer_id IN (SELECT id FROM trainer_profiles WHERE user_id = ?)", u.ID)
			},
		},
		models.RoleTrainee: {
			owns: func(u *models.User, obj any) bool {
				s, ok := obj.(*models.TrainingSession)
				return ok && s.Member.UserID == u.ID
			},
			scope: func(u *models.User, tx *gorm.DB) *gorm.DB {
				return tx.Where("member_id IN (SELECT id FROM member_profiles WHERE user_id = ?)", u.ID)
			},
		},
	},
	KindPlan: {
		models.RoleTrainer: {
			owns: func(u *models.User, obj any) bool {
				p, ok := obj.(*models.Plan)
				return ok && p.Trainee.TrainerID != nil && *p.Trainee.TrainerID == u.ID
			},
			scope: func(u *models.User, tx *gorm.DB) *gorm.DB {
				return tx.Where("trainee_id IN (SELECT id FROM users WHERE trainer_id = ?)", u.ID)
			},
		},
		models.RoleTrainee: {
			owns: func(u *models.User, obj any) bool {
				p, ok := obj.(*models.Plan)
				return ok && p.TraineeID == u.ID
			},
			scope: func(u *models.User, tx *gorm.DB) *gorm.DB {
				return tx.Where("trainee_id = ?", u.ID)
			},
		},
	},
	// Catalog and profile listings have no per-row narrowing: every
	// authenticated principal sees the full set. Mutations stay restricted.
	KindMachine: {
		models.RoleTrainer: {owns: always, mutate: never, scope: all},
		models.RoleTrainee: {owns: always, mutate: never, scope: all},
	},
	KindTrainerProfile: {
		models.RoleTrainer: {owns: always, mutate: ownProfileTrainer, scope: all},
		models.RoleTrainee: {owns: always, mutate: never, scope: all},
	},
	KindMemberProfile: {
		models.RoleTrainer: {owns: always, mutate: never, scope: all},
		models.RoleTrainee: {owns: always, mutate: ownProfileMember, scope: all},
	},
}

func ownProfileTrainer(u *models.User, obj any) bool {
	p, ok := obj.(*models.TrainerProfile)
	return ok && p.UserID == u.ID
}

func ownProfileMember(u *models.User, obj any) bool {
	p, ok := obj.(*models.MemberProfile)
	return ok && p.UserID == u.ID
}

// rulePolicy bridges one kind's table entries into a gate.Policy.
type rulePolicy struct{ kind string }

func (p rulePolicy) Can(_ context.Context, u *models.User, action gate.Action, resource any) bool {
	if u == nil || !u.IsActive {
		return false
	}
	if u.Role == models.RoleAdmin {
		return true
	}
	o, ok := rules[p.kind][u.Role]
	if !ok {
		return false
	}
	// list/create carry no resource; visibility is handled by Scope and the
	// handlers' own create rules.
	if resource == nil {
		return true
	}
	if action.Mutating() && o.mutate != nil {
		return o.mutate(u, resource)
	}
	return o.owns(u, resource)
}

// Engine is the authorization checkpoint handlers talk to.
type Engine struct {
	gate *gate.Gate[*models.User]
}

func NewEngine() *Engine {
	g := gate.New[*models.User]()
	for kind := range rules {
		g.Register(kind, rulePolicy{kind: kind})
	}
	return &Engine{gate: g}
}

// Authorize checks a single object against the principal. A nil principal is
// denied before any role logic runs.
func (e *Engine) Authorize(ctx context.Context, u *models.User, action gate.Action, kind string, resource any) error {
	return e.gate.Authorize(ctx, u, action, kind, resource)
}

// Can is Authorize returning bool.
func (e *Engine) Can(ctx context.Context, u *models.User, action gate.Action, kind string, resource any) bool {
	return e.gate.Can(ctx, u, action, kind, resource)
}

// Scope narrows tx to the rows of kind visible to u. It applies the same
// ownership rule Authorize uses, compiled to a store-level filter.
func (e *Engine) Scope(u *models.User, kind string, tx *gorm.DB) *gorm.DB {
	if u == nil || !u.IsActive {
		return none(u, tx)
	}
	if u.Role == models.RoleAdmin {
		return tx
	}
	o, ok := rules[kind][u.Role]
	if !ok {
		return none(u, tx)
	}
	return o.scope(u, tx)
}
