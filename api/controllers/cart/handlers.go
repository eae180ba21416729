// Package cart exposes the cart service operations over HTTP. The
// session id travels in the X-Cart-Session header and is echoed back so
// clients can start anonymous and keep their cart across requests.
package cart

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/storefront-kit/cartengine/api/responses"
	"github.com/storefront-kit/cartengine/api/validators"
	"github.com/storefront-kit/cartengine/internal/service"
	pkgerrors "github.com/storefront-kit/cartengine/pkg/errors"
	"github.com/storefront-kit/cartengine/pkg/logger"
)

const sessionHeader = "X-Cart-Session"

func sessionService(registry *service.Registry, w http.ResponseWriter, r *http.Request) (service.Service, error) {
	if registry == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable")
	}
	svc, sessionID, err := registry.Session(r.Header.Get(sessionHeader))
	if err != nil {
		return nil, err
	}
	w.Header().Set(sessionHeader, sessionID)
	return svc, nil
}

// Fetch returns the current cart snapshot.
func Fetch(registry *service.Registry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc, err := sessionService(registry, w, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		c, err := svc.GetCart(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, c)
	}
}

// AddItem adds or merges one line.
func AddItem(registry *service.Registry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc, err := sessionService(registry, w, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload AddItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		c, err := svc.AddItem(r.Context(), toAddItemInput(payload))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, c)
	}
}

// UpdateItem changes a line's quantity; zero removes it.
func UpdateItem(registry *service.Registry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc, err := sessionService(registry, w, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		key := chi.URLParam(r, "key")
		if key == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "item key is required"))
			return
		}

		var payload UpdateItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		c, err := svc.UpdateItemQuantity(r.Context(), key, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, c)
	}
}

// RemoveItem drops one line.
func RemoveItem(registry *service.Registry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc, err := sessionService(registry, w, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		key := chi.URLParam(r, "key")
		c, err := svc.RemoveItem(r.Context(), key)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, c)
	}
}

// Clear empties the cart.
func Clear(registry *service.Registry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc, err := sessionService(registry, w, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		c, err := svc.ClearCart(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, c)
	}
}

// ApplyCoupon applies a coupon code.
func ApplyCoupon(registry *service.Registry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc, err := sessionService(registry, w, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload ApplyCouponRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		c, err := svc.ApplyCoupon(r.Context(), payload.Code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, c)
	}
}

// RemoveCoupon removes an applied coupon.
func RemoveCoupon(registry *service.Registry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc, err := sessionService(registry, w, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		code := chi.URLParam(r, "code")
		c, err := svc.RemoveCoupon(r.Context(), code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, c)
	}
}

// Validate checks the cart against live catalog truth. Warnings ride
// alongside the data; errors are part of the result, not an HTTP error.
func Validate(registry *service.Registry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc, err := sessionService(registry, w, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.ValidateCart(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// Sync reconciles the cart with the server-held cart for the bearer
// identity.
func Sync(registry *service.Registry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc, err := sessionService(registry, w, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.SyncWithServer(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// EnableSync starts background synchronization for the session.
func EnableSync(registry *service.Registry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc, err := sessionService(registry, w, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		svc.EnableSync()
		responses.WriteSuccess(w, map[string]bool{"enabled": true})
	}
}

// DisableSync stops background synchronization for the session.
func DisableSync(registry *service.Registry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc, err := sessionService(registry, w, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		svc.DisableSync()
		responses.WriteSuccess(w, map[string]bool{"enabled": false})
	}
}
