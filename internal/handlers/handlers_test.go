package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/diewo77/gym-api/auth"
	"github.com/diewo77/gym-api/internal/db"
	"github.com/diewo77/gym-api/internal/models"
	"github.com/diewo77/gym-api/internal/server"
)

// newServer spins up the full router on a fresh in-memory database, so every
// test goes through the real middleware chain.
func newServer(t *testing.T) (*gorm.DB, http.Handler) {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(conn); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return conn, server.New(conn)
}

func mkUser(t *testing.T, conn *gorm.DB, username, password string, role models.Role, trainerID *uint) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	u := models.User{Username: username, Email: username + "@example.com", Password: string(hash), Role: role, TrainerID: trainerID, IsActive: true}
	if err := conn.Create(&u).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return &u
}

func accessToken(t *testing.T, u *models.User) string {
	t.Helper()
	token, err := auth.Issue(auth.Claims{UserID: u.ID, Role: string(u.Role), TrainerID: u.TrainerID}, auth.TypeAccess, auth.AccessTTL)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

// violations pulls the field->message map out of a validation error response.
func violations(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body struct {
		Error   string         `json:"error"`
		Details map[string]any `json:"details"`
	}
	decode(t, rr, &body)
	if body.Error != "validation_failed" {
		t.Fatalf("error = %q, want validation_failed", body.Error)
	}
	return body.Details
}

// gym is the standard two-trainer fixture used across the handler tests.
type gym struct {
	admin, bob, dave, carol, erin *models.User
	stCarol, stErin               models.Student
	tpBob, tpDave                 models.TrainerProfile
	mpCarol, mpErin               models.MemberProfile
}

func seedGym(t *testing.T, conn *gorm.DB) gym {
	t.Helper()
	g := gym{}
	g.admin = mkUser(t, conn, "admin", "admin", models.RoleAdmin, nil)
	g.bob = mkUser(t, conn, "bob", "pw", models.RoleTrainer, nil)
	g.dave = mkUser(t, conn, "dave", "pw", models.RoleTrainer, nil)
	g.carol = mkUser(t, conn, "carol", "pw", models.RoleTrainee, &g.bob.ID)
	g.erin = mkUser(t, conn, "erin", "pw", models.RoleTrainee, &g.dave.ID)

	g.stCarol = models.Student{UserID: g.carol.ID, Phone: "050-0000001"}
	g.stErin = models.Student{UserID: g.erin.ID, Phone: "050-0000002"}
	for _, st := range []*models.Student{&g.stCarol, &g.stErin} {
		if err := conn.Create(st).Error; err != nil {
			t.Fatal(err)
		}
	}

	now := time.Now().UTC()
	g.tpBob = models.TrainerProfile{UserID: g.bob.ID, Specialization: "strength", IsAvailable: true}
	g.tpDave = models.TrainerProfile{UserID: g.dave.ID, Specialization: "cardio", IsAvailable: true}
	g.mpCarol = models.MemberProfile{UserID: g.carol.ID, MembershipType: models.MembershipBasic, MembershipStartDate: now, MembershipEndDate: now.AddDate(1, 0, 0), IsActive: true}
	g.mpErin = models.MemberProfile{UserID: g.erin.ID, MembershipType: models.MembershipPremium, MembershipStartDate: now, MembershipEndDate: now.AddDate(1, 0, 0), IsActive: true}
	for _, m := range []any{&g.tpBob, &g.tpDave, &g.mpCarol, &g.mpErin} {
		if err := conn.Create(m).Error; err != nil {
			t.Fatal(err)
		}
	}
	return g
}
