package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/freshpress-app/freshpress-backend/api/responses"
	"github.com/freshpress-app/freshpress-backend/api/validators"
	"github.com/freshpress-app/freshpress-backend/internal/dispatch"
	"github.com/freshpress-app/freshpress-backend/pkg/logger"
)

type notifyOrderRequest struct {
	OrderID uuid.UUID `json:"order_id" validate:"required"`
}

// NotifyOrder triggers dispatch for an order. The storefront API calls this on
// the worker instead of dispatching in-process when the worker is reachable.
func NotifyOrder(svc dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req notifyOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sent, err := svc.SendOrderNotification(r.Context(), req.OrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		message := "order dispatched"
		if !sent {
			message = "order not dispatched"
		}
		responses.WriteSuccess(w, map[string]any{
			"sent":    sent,
			"message": message,
		})
	}
}
