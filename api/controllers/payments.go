package controllers

import (
	"net/http"

	"github.com/agromart/agromart-backend/api/responses"
	"github.com/agromart/agromart-backend/api/validators"
	"github.com/agromart/agromart-backend/internal/payments"
	"github.com/agromart/agromart-backend/pkg/logger"
)

// PayOrder runs a payment attempt for a pending order.
func PayOrder(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "payment")
			return
		}
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		orderID, err := validators.URLParamUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		intent, err := svc.Pay(r.Context(), userID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, intent)
	}
}

func PaymentStatus(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "payment")
			return
		}
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		intentID, err := validators.URLParamUUID(r, "intentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		intent, err := svc.Status(r.Context(), userID, intentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, intent)
	}
}
