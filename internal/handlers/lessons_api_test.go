package handlers_test

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/diewo77/gym-api/internal/models"
)

func TestLessonCreateRejectsInvertedWindow(t *testing.T) {
	conn, h := newServer(t)
	g := seedGym(t, conn)
	start := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	rr := do(t, h, http.MethodPost, "/api/training/lessons/", accessToken(t, g.bob), map[string]any{
		"trainer_id": g.bob.ID,
		"student_id": g.stCarol.ID,
		"start":      start,
		"end":        start.Add(-time.Hour),
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if d := violations(t, rr); d["end"] != "end must be after start" {
		t.Errorf("end message = %v", d["end"])
	}

	// zero-length windows are invalid too
	rr = do(t, h, http.MethodPost, "/api/training/lessons/", accessToken(t, g.bob), map[string]any{
		"trainer_id": g.bob.ID,
		"student_id": g.stCarol.ID,
		"start":      start,
		"end":        start,
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("equal start/end: status = %d, want 400", rr.Code)
	}

	var count int64
	conn.Model(&models.Lesson{}).Count(&count)
	if count != 0 {
		t.Errorf("lesson rows after rejected creates: %d", count)
	}
}

func TestLessonCreateValidatesReferences(t *testing.T) {
	conn, h := newServer(t)
	g := seedGym(t, conn)
	start := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	// trainer_id must reference a TRAINER user
	rr := do(t, h, http.MethodPost, "/api/training/lessons/", accessToken(t, g.admin), map[string]any{
		"trainer_id": g.carol.ID,
		"student_id": g.stCarol.ID,
		"start":      start,
		"end":        start.Add(time.Hour),
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if d := violations(t, rr); d["trainer_id"] != "Trainer not found." {
		t.Errorf("trainer_id message = %v", d["trainer_id"])
	}

	rr = do(t, h, http.MethodPost, "/api/training/lessons/", accessToken(t, g.admin), map[string]any{
		"trainer_id": g.bob.ID,
		"student_id": 9999,
		"start":      start,
		"end":        start.Add(time.Hour),
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if d := violations(t, rr); d["student_id"] != "Student not found." {
		t.Errorf("student_id message = %v", d["student_id"])
	}
}

func TestLessonVisibility(t *testing.T) {
	conn, h := newServer(t)
	g := seedGym(t, conn)
	start := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	rr := do(t, h, http.MethodPost, "/api/training/lessons/", accessToken(t, g.bob), map[string]any{
		"trainer_id": g.bob.ID,
		"student_id": g.stCarol.ID,
		"start":      start,
		"end":        start.Add(time.Hour),
		"location":   "studio A",
		"price_ils":  120,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rr.Code, rr.Body.String())
	}
	var l models.Lesson
	decode(t, rr, &l)

	// carol is the lesson's trainee and sees it
	rr = do(t, h, http.MethodGet, fmt.Sprintf("/api/training/lessons/%d", l.ID), accessToken(t, g.carol), nil)
	if rr.Code != http.StatusOK {
		t.Errorf("carol retrieve: status = %d", rr.Code)
	}
	// erin and dave are unrelated
	rr = do(t, h, http.MethodGet, fmt.Sprintf("/api/training/lessons/%d", l.ID), accessToken(t, g.erin), nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("erin retrieve: status = %d, want 404", rr.Code)
	}
	rr = do(t, h, http.MethodGet, "/api/training/lessons/", accessToken(t, g.dave), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("dave list: status = %d", rr.Code)
	}
	var lessons []models.Lesson
	decode(t, rr, &lessons)
	if len(lessons) != 0 {
		t.Errorf("dave sees %d lessons, want 0", len(lessons))
	}
}

func TestLessonUpdateRevalidatesMergedWindow(t *testing.T) {
	conn, h := newServer(t)
	g := seedGym(t, conn)
	start := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	l := models.Lesson{TrainerID: g.bob.ID, StudentID: g.stCarol.ID, Start: start, End: start.Add(time.Hour)}
	if err := conn.Create(&l).Error; err != nil {
		t.Fatal(err)
	}

	// moving only start past the stored end must fail
	rr := do(t, h, http.MethodPatch, fmt.Sprintf("/api/training/lessons/%d", l.ID), accessToken(t, g.bob), map[string]any{
		"start": start.Add(2 * time.Hour),
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if d := violations(t, rr); d["end"] != "end must be after start" {
		t.Errorf("end message = %v", d["end"])
	}

	rr = do(t, h, http.MethodPatch, fmt.Sprintf("/api/training/lessons/%d", l.ID), accessToken(t, g.bob), map[string]any{
		"is_completed": true,
		"price_ils":    140,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rr.Code, rr.Body.String())
	}
	var updated models.Lesson
	decode(t, rr, &updated)
	if !updated.IsCompleted || updated.PriceILS != 140 {
		t.Errorf("updated lesson = %+v", updated)
	}
}

func TestLessonOrdering(t *testing.T) {
	conn, h := newServer(t)
	g := seedGym(t, conn)
	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		l := models.Lesson{TrainerID: g.bob.ID, StudentID: g.stCarol.ID, Start: base.AddDate(0, 0, i), End: base.AddDate(0, 0, i).Add(time.Hour), PriceILS: float64(100 + i)}
		if err := conn.Create(&l).Error; err != nil {
			t.Fatal(err)
		}
	}

	rr := do(t, h, http.MethodGet, "/api/training/lessons/?ordering=start", accessToken(t, g.bob), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var lessons []models.Lesson
	decode(t, rr, &lessons)
	if len(lessons) != 3 {
		t.Fatalf("got %d lessons", len(lessons))
	}
	for i := 1; i < len(lessons); i++ {
		if lessons[i].Start.Before(lessons[i-1].Start) {
			t.Fatalf("ascending ordering violated at %d", i)
		}
	}

	rr = do(t, h, http.MethodGet, "/api/training/lessons/?ordering=-price_ils", accessToken(t, g.bob), nil)
	decode(t, rr, &lessons)
	for i := 1; i < len(lessons); i++ {
		if lessons[i].PriceILS > lessons[i-1].PriceILS {
			t.Fatalf("descending price ordering violated at %d", i)
		}
	}
}
