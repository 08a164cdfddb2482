package controllers

import (
	"context"
	"net/http"

	"github.com/freshpress-app/freshpress-backend/api/responses"
	"github.com/freshpress-app/freshpress-backend/internal/telegram"
	"github.com/freshpress-app/freshpress-backend/pkg/config"
	"github.com/freshpress-app/freshpress-backend/pkg/logger"
)

// BotStatus is the slice of the bot manager the health endpoint reports on.
type BotStatus interface {
	Instance(ctx context.Context, enablePolling bool) telegram.BotClient
	Polling() bool
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Health reports dispatch engine status. The sibling probe keys off the 200
// alone; the body is for operators.
func Health(bot BotStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		configured := false
		if bot != nil {
			configured = bot.Instance(r.Context(), false) != nil
		}
		polling := bot != nil && bot.Polling()
		responses.WriteSuccess(w, map[string]any{
			"status":         "ok",
			"polling":        polling,
			"bot_configured": configured,
		})
	}
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-FreshPress-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady verifies the process can reach its backing stores. Either ping
// failing flips readiness to 503 so the orchestrator stops routing here.
func HealthReady(cfg *config.Config, logg *logger.Logger, db pinger, redis pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-FreshPress-Env", cfg.App.Env)
		checks := map[string]string{}
		healthy := true

		if db != nil {
			if err := db.Ping(r.Context()); err != nil {
				logg.Error(r.Context(), "database ping failed", err)
				checks["database"] = "down"
				healthy = false
			} else {
				checks["database"] = "ok"
			}
		}
		if redis != nil {
			if err := redis.Ping(r.Context()); err != nil {
				logg.Error(r.Context(), "redis ping failed", err)
				checks["redis"] = "down"
				healthy = false
			} else {
				checks["redis"] = "ok"
			}
		}

		if !healthy {
			responses.WriteSuccessStatus(w, http.StatusServiceUnavailable, checks)
			return
		}
		responses.WriteSuccess(w, checks)
	}
}
