package controllers

import (
	"net/http"

	"github.com/agromart/agromart-backend/api/responses"
	"github.com/agromart/agromart-backend/api/validators"
	"github.com/agromart/agromart-backend/internal/cart"
	"github.com/agromart/agromart-backend/internal/coupons"
	"github.com/agromart/agromart-backend/pkg/logger"
)

type validateCouponRequest struct {
	Code     string `json:"code" validate:"required,max=64"`
	Subtotal *int64 `json:"subtotal,omitempty" validate:"omitempty,min=0"`
}

// ValidateCoupon checks a code against the supplied subtotal, or the caller's
// current cart subtotal when none is given. Usage counts are never touched.
func ValidateCoupon(validator coupons.Validator, carts cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if validator == nil || carts == nil {
			serviceUnavailable(w, r, logg, "coupon")
			return
		}
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		var body validateCouponRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var subtotal int64
		if body.Subtotal != nil {
			subtotal = *body.Subtotal
		} else {
			current, err := carts.View(r.Context(), userID, "")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			subtotal = current.Subtotal
		}

		result, err := validator.Validate(r.Context(), body.Code, subtotal)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, coupons.NewValidationDTO(result, subtotal))
	}
}

func AdminListCoupons(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "coupon")
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		activeOnly, err := validators.ParseQueryBool(r, "active")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.List(r.Context(), params, activeOnly != nil && *activeOnly)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func AdminGetCoupon(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "coupon")
			return
		}
		couponID, err := validators.URLParamUUID(r, "couponId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.Get(r.Context(), couponID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

func AdminCreateCoupon(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "coupon")
			return
		}
		var body coupons.CreateCouponInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.Create(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dto)
	}
}

func AdminUpdateCoupon(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "coupon")
			return
		}
		couponID, err := validators.URLParamUUID(r, "couponId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body coupons.UpdateCouponInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.Update(r.Context(), couponID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}
