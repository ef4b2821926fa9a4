package policy

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/diewo77/gym-api/gate"
	"github.com/diewo77/gym-api/internal/db"
	"github.com/diewo77/gym-api/internal/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(conn); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return conn
}

// fixture is a small gym: two trainers with one trainee each, plus rows of
// every entity kind so each rule entry gets exercised.
type fixture struct {
	admin, bob, dave, carol, erin *models.User
}

func seedFixture(t *testing.T, conn *gorm.DB) fixture {
	t.Helper()
	mkUser := func(name string, role models.Role, trainerID *uint) *models.User {
		u := models.User{Username: name, Email: name + "@example.com", Password: "x", Role: role, TrainerID: trainerID, IsActive: true}
		if err := conn.Create(&u).Error; err != nil {
			t.Fatalf("create user %s: %v", name, err)
		}
		return &u
	}
	f := fixture{}
	f.admin = mkUser("admin", models.RoleAdmin, nil)
	f.bob = mkUser("bob", models.RoleTrainer, nil)
	f.dave = mkUser("dave", models.RoleTrainer, nil)
	f.carol = mkUser("carol", models.RoleTrainee, &f.bob.ID)
	f.erin = mkUser("erin", models.RoleTrainee, &f.dave.ID)

	stCarol := models.Student{UserID: f.carol.ID, Phone: "050-0000001"}
	stErin := models.Student{UserID: f.erin.ID, Phone: "050-0000002"}
	for _, st := range []*models.Student{&stCarol, &stErin} {
		if err := conn.Create(st).Error; err != nil {
			t.Fatalf("create student: %v", err)
		}
	}

	now := time.Now().UTC()
	lessons := []models.Lesson{
		{TrainerID: f.bob.ID, StudentID: stCarol.ID, Start: now, End: now.Add(time.Hour), PriceILS: 120},
		{TrainerID: f.dave.ID, StudentID: stErin.ID, Start: now, End: now.Add(time.Hour), PriceILS: 150},
	}
	for i := range lessons {
		if err := conn.Create(&lessons[i]).Error; err != nil {
			t.Fatalf("create lesson: %v", err)
		}
	}

	payments := []models.Payment{
		{StudentID: stCarol.ID, AmountILS: 120, PaidAt: now, Method: models.MethodCash},
		{StudentID: stErin.ID, AmountILS: 150, PaidAt: now, Method: models.MethodCard},
	}
	for i := range payments {
		if err := conn.Create(&payments[i]).Error; err != nil {
			t.Fatalf("create payment: %v", err)
		}
	}

	tpBob := models.TrainerProfile{UserID: f.bob.ID, Specialization: "strength", IsAvailable: true}
	tpDave := models.TrainerProfile{UserID: f.dave.ID, Specialization: "cardio", IsAvailable: true}
	mpCarol := models.MemberProfile{UserID: f.carol.ID, MembershipType: models.MembershipBasic, MembershipStartDate: now, MembershipEndDate: now.AddDate(1, 0, 0), IsActive: true}
	mpErin := models.MemberProfile{UserID: f.erin.ID, MembershipType: models.MembershipPremium, MembershipStartDate: now, MembershipEndDate: now.AddDate(1, 0, 0), IsActive: true}
	for _, m := range []any{&tpBob, &tpDave, &mpCarol, &mpErin} {
		if err := conn.Create(m).Error; err != nil {
			t.Fatalf("create profile: %v", err)
		}
	}

	sessions := []models.TrainingSession{
		{TrainerID: tpBob.ID, MemberID: mpCarol.ID, SessionType: models.SessionPersonal, ScheduledDate: now, DurationMinutes: 60, Status: models.StatusScheduled, Price: 200},
		{TrainerID: tpDave.ID, MemberID: mpErin.ID, SessionType: models.SessionGroup, ScheduledDate: now, DurationMinutes: 45, Status: models.StatusScheduled, Price: 90},
	}
	for i := range sessions {
		if err := conn.Create(&sessions[i]).Error; err != nil {
			t.Fatalf("create session: %v", err)
		}
	}

	plans := []models.Plan{
		{TraineeID: f.carol.ID, Description: "push/pull/legs"},
		{TraineeID: f.erin.ID, Description: "couch to 5k"},
	}
	for i := range plans {
		if err := conn.Create(&plans[i]).Error; err != nil {
			t.Fatalf("create plan: %v", err)
		}
	}

	machines := []models.Machine{{Code: "TRD-01", Name: "Treadmill"}, {Code: "ROW-01", Name: "Rowing machine"}}
	for i := range machines {
		if err := conn.Create(&machines[i]).Error; err != nil {
			t.Fatalf("create machine: %v", err)
		}
	}
	return f
}

// loadAll returns every row of a kind with the associations the ownership
// checks read, keyed by id.
func loadAll(t *testing.T, conn *gorm.DB, kind string) map[uint]any {
	t.Helper()
	out := map[uint]any{}
	switch kind {
	case KindStudent:
		var rows []models.Student
		if err := conn.Preload("User").Find(&rows).Error; err != nil {
			t.Fatal(err)
		}
		for i := range rows {
			out[rows[i].ID] = &rows[i]
		}
	case KindLesson:
		var rows []models.Lesson
		if err := conn.Preload("Student").Find(&rows).Error; err != nil {
			t.Fatal(err)
		}
		for i := range rows {
			out[rows[i].ID] = &rows[i]
		}
	case KindPayment:
		var rows []models.Payment
		if err := conn.Preload("Student.User").Find(&rows).Error; err != nil {
			t.Fatal(err)
		}
		for i := range rows {
			out[rows[i].ID] = &rows[i]
		}
	case KindSession:
		var rows []models.TrainingSession
		if err := conn.Preload("Trainer").Preload("Member").Find(&rows).Error; err != nil {
			t.Fatal(err)
		}
		for i := range rows {
			out[rows[i].ID] = &rows[i]
		}
	case KindPlan:
		var rows []models.Plan
		if err := conn.Preload("Trainee").Find(&rows).Error; err != nil {
			t.Fatal(err)
		}
		for i := range rows {
			out[rows[i].ID] = &rows[i]
		}
	case KindMachine:
		var rows []models.Machine
		if err := conn.Find(&rows).Error; err != nil {
			t.Fatal(err)
		}
		for i := range rows {
			out[rows[i].ID] = &rows[i]
		}
	case KindTrainerProfile:
		var rows []models.TrainerProfile
		if err := conn.Find(&rows).Error; err != nil {
			t.Fatal(err)
		}
		for i := range rows {
			out[rows[i].ID] = &rows[i]
		}
	case KindMemberProfile:
		var rows []models.MemberProfile
		if err := conn.Find(&rows).Error; err != nil {
			t.Fatal(err)
		}
		for i := range rows {
			out[rows[i].ID] = &rows[i]
		}
	default:
		t.Fatalf("unknown kind %q", kind)
	}
	return out
}

func scopeModel(kind string) any {
	switch kind {
	case KindStudent:
		return &models.Student{}
	case KindLesson:
		return &models.Lesson{}
	case KindPayment:
		return &models.Payment{}
	case KindSession:
		return &models.TrainingSession{}
	case KindPlan:
		return &models.Plan{}
	case KindMachine:
		return &models.Machine{}
	case KindTrainerProfile:
		return &models.TrainerProfile{}
	case KindMemberProfile:
		return &models.MemberProfile{}
	}
	return nil
}

var allKinds = []string{
	KindStudent, KindLesson, KindPayment, KindSession,
	KindPlan, KindMachine, KindTrainerProfile, KindMemberProfile,
}

// TestScopeMatchesAuthorize is the contract the rules table exists for: for
// every user and every row, the row is inside Scope exactly when Authorize
// allows viewing it.
func TestScopeMatchesAuthorize(t *testing.T) {
	conn := testDB(t)
	f := seedFixture(t, conn)
	e := NewEngine()
	ctx := context.Background()

	inactive := &models.User{ID: 999, Username: "ghost", Role: models.RoleTrainer, IsActive: false}
	users := []*models.User{f.admin, f.bob, f.dave, f.carol, f.erin, inactive}

	for _, kind := range allKinds {
		objects := loadAll(t, conn, kind)
		if len(objects) == 0 {
			t.Fatalf("kind %s: fixture seeded no rows", kind)
		}
		for _, u := range users {
			var ids []uint
			if err := e.Scope(u, kind, conn.Model(scopeModel(kind))).Pluck("id", &ids).Error; err != nil {
				t.Fatalf("%s/%s: scope query: %v", kind, u.Username, err)
			}
			scoped := map[uint]bool{}
			for _, id := range ids {
				scoped[id] = true
			}
			for id, obj := range objects {
				canView := e.Can(ctx, u, gate.ActionView, kind, obj)
				if scoped[id] != canView {
					t.Errorf("%s/%s: row %d scope=%v authorize=%v", kind, u.Username, id, scoped[id], canView)
				}
			}
		}
	}
}

func TestAdminSeesEverything(t *testing.T) {
	conn := testDB(t)
	f := seedFixture(t, conn)
	e := NewEngine()

	for _, kind := range allKinds {
		total := len(loadAll(t, conn, kind))
		var ids []uint
		if err := e.Scope(f.admin, kind, conn.Model(scopeModel(kind))).Pluck("id", &ids).Error; err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		if len(ids) != total {
			t.Errorf("%s: admin scope returned %d of %d rows", kind, len(ids), total)
		}
	}
}

func TestTrainerDoesNotFallThroughToTraineeRule(t *testing.T) {
	conn := testDB(t)
	f := seedFixture(t, conn)
	e := NewEngine()
	ctx := context.Background()

	// bob also has a student row of his own on file (an ex-trainee account).
	// The trainee branch would match it, but bob is evaluated only under the
	// trainer branch, which requires the assignment link.
	st := models.Student{UserID: f.bob.ID, Phone: "050-0000009"}
	if err := conn.Create(&st).Error; err != nil {
		t.Fatal(err)
	}
	st.User = *f.bob

	if e.Can(ctx, f.bob, gate.ActionView, KindStudent, &st) {
		t.Fatal("trainer allowed via trainee ownership rule")
	}
	var ids []uint
	if err := e.Scope(f.bob, KindStudent, conn.Model(&models.Student{})).Pluck("id", &ids).Error; err != nil {
		t.Fatal(err)
	}
	for _, id := range ids {
		if id == st.ID {
			t.Fatal("trainer scope included row only the trainee rule matches")
		}
	}
}

func TestNilAndInactivePrincipalsDenied(t *testing.T) {
	conn := testDB(t)
	seedFixture(t, conn)
	e := NewEngine()
	ctx := context.Background()

	if e.Can(ctx, nil, gate.ActionView, KindMachine, &models.Machine{ID: 1}) {
		t.Fatal("nil principal allowed")
	}
	ghost := &models.User{ID: 50, Role: models.RoleAdmin, IsActive: false}
	if e.Can(ctx, ghost, gate.ActionView, KindMachine, &models.Machine{ID: 1}) {
		t.Fatal("inactive admin allowed")
	}
	var count int64
	if err := e.Scope(ghost, KindMachine, conn.Model(&models.Machine{})).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("inactive principal scope returned %d rows", count)
	}
}

func TestMutationRules(t *testing.T) {
	conn := testDB(t)
	f := seedFixture(t, conn)
	e := NewEngine()
	ctx := context.Background()

	var machine models.Machine
	if err := conn.First(&machine).Error; err != nil {
		t.Fatal(err)
	}
	if e.Can(ctx, f.bob, gate.ActionUpdate, KindMachine, &machine) {
		t.Error("trainer may not update machines")
	}
	if e.Can(ctx, f.carol, gate.ActionDelete, KindMachine, &machine) {
		t.Error("trainee may not delete machines")
	}
	if !e.Can(ctx, f.admin, gate.ActionUpdate, KindMachine, &machine) {
		t.Error("admin blocked from machine update")
	}

	var own, other models.TrainerProfile
	if err := conn.Where("user_id = ?", f.bob.ID).First(&own).Error; err != nil {
		t.Fatal(err)
	}
	if err := conn.Where("user_id = ?", f.dave.ID).First(&other).Error; err != nil {
		t.Fatal(err)
	}
	if !e.Can(ctx, f.bob, gate.ActionUpdate, KindTrainerProfile, &own) {
		t.Error("trainer blocked from own profile update")
	}
	if e.Can(ctx, f.bob, gate.ActionUpdate, KindTrainerProfile, &other) {
		t.Error("trainer allowed to update another trainer's profile")
	}
	// reads stay open even where mutation is restricted
	if !e.Can(ctx, f.bob, gate.ActionView, KindTrainerProfile, &other) {
		t.Error("trainer blocked from viewing another trainer's profile")
	}

	var mpOwn, mpOther models.MemberProfile
	if err := conn.Where("user_id = ?", f.carol.ID).First(&mpOwn).Error; err != nil {
		t.Fatal(err)
	}
	if err := conn.Where("user_id = ?", f.erin.ID).First(&mpOther).Error; err != nil {
		t.Fatal(err)
	}
	if !e.Can(ctx, f.carol, gate.ActionUpdate, KindMemberProfile, &mpOwn) {
		t.Error("member blocked from own profile update")
	}
	if e.Can(ctx, f.carol, gate.ActionUpdate, KindMemberProfile, &mpOther) {
		t.Error("member allowed to update another member's profile")
	}
	if e.Can(ctx, f.bob, gate.ActionUpdate, KindMemberProfile, &mpOwn) {
		t.Error("trainer allowed to update a member profile")
	}
}
