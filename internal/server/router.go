package server

import (
	"context"
	"net/http"

	"gorm.io/gorm"

	"github.com/diewo77/gym-api/auth"
	"github.com/diewo77/gym-api/httpx"
	"github.com/diewo77/gym-api/internal/handlers"
	"github.com/diewo77/gym-api/internal/models"
	"github.com/diewo77/gym-api/internal/policy"
)

// New constructs the root http.Handler with all routes and middlewares applied.
func New(db *gorm.DB) http.Handler {
	mux := http.NewServeMux()
	engine := policy.NewEngine()

	// RequireAuth double-checks that the token's user still exists and is active.
	auth.SetUserVerifier(func(_ context.Context, uid uint) bool {
		var count int64
		if err := db.Model(&models.User{}).Where("id = ? AND is_active = ?", uid, true).Limit(1).Count(&count).Error; err != nil {
			return false
		}
		return count > 0
	})

	// --- Health endpoints ---
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /api/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if err := db.Exec("SELECT 1").Error; err != nil {
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	protect := func(h http.HandlerFunc) http.Handler { return auth.RequireAuth(h) }

	// Auth / account endpoints
	ah := handlers.NewAuthHandler(db)
	mux.HandleFunc("POST /api/auth/token/", ah.Token)
	mux.HandleFunc("POST /api/auth/token/refresh/", ah.Refresh)
	mux.Handle("GET /api/me", protect(ah.Me))
	mux.HandleFunc("POST /api/users/register/", ah.RegisterUser)
	mux.HandleFunc("POST /api/users/login/", ah.Login)

	th := handlers.NewTraineeHandler(db)
	mux.Handle("POST /api/users/trainees/", protect(th.Create))

	// CRUD collections; list/create on the bare path, item routes on /{id}
	type crud interface {
		List(http.ResponseWriter, *http.Request)
		Create(http.ResponseWriter, *http.Request)
		Retrieve(http.ResponseWriter, *http.Request)
		Update(http.ResponseWriter, *http.Request)
		Delete(http.ResponseWriter, *http.Request)
	}
	register := func(base string, h crud) {
		mux.Handle("GET "+base, protect(h.List))
		mux.Handle("POST "+base, protect(h.Create))
		mux.Handle("GET "+base+"{id}", protect(h.Retrieve))
		mux.Handle("PUT "+base+"{id}", protect(h.Update))
		mux.Handle("PATCH "+base+"{id}", protect(h.Update))
		mux.Handle("DELETE "+base+"{id}", protect(h.Delete))
	}

	register("/api/training/students/", handlers.NewStudentHandler(db, engine))
	register("/api/training/lessons/", handlers.NewLessonHandler(db, engine))
	register("/api/training/payments/", handlers.NewPaymentHandler(db, engine))
	register("/api/training/sessions/", handlers.NewSessionHandler(db, engine))
	register("/api/training/machines/", handlers.NewMachineHandler(db, engine))
	register("/api/training/plans/", handlers.NewPlanHandler(db, engine))
	register("/api/users/members/", handlers.NewMemberHandler(db, engine))
	register("/api/users/trainers/", handlers.NewTrainerHandler(db, engine))

	return auth.Middleware(withRecover(mux))
}

func withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
