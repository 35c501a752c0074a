// Package api exposes the webhook ingress and the OAuth registration
// endpoints.
package api

import (
	"context"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/bikedataproject/fitbit-integration/internal/domain"
	"github.com/bikedataproject/fitbit-integration/internal/fitbit"
	"github.com/bikedataproject/fitbit-integration/internal/observability"
)

type userStore interface {
	UserBySubscription(ctx context.Context, subscriptionID string) (*domain.User, error)
	UpsertUserByFitbitID(ctx context.Context, user *domain.User) error
	UpsertDayToSync(ctx context.Context, userID int64, day time.Time) error
}

type authorizer interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*domain.User, error)
}

// Handler serves the subscription verification handshake, webhook update
// notifications and the OAuth authorization-code flow.
type Handler struct {
	store            userStore
	auth             authorizer
	verificationCode string
	logger           *log.Logger
}

// NewHandler builds a Handler.
func NewHandler(store userStore, auth authorizer, verificationCode string, logger *log.Logger) *Handler {
	return &Handler{
		store:            store,
		auth:             auth,
		verificationCode: verificationCode,
		logger:           logger,
	}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/subscriptions", h.subscriptions)
	mux.HandleFunc("/authorize", h.authorize)
	mux.HandleFunc("/register", h.register)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) subscriptions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.verify(w, r)
	case http.MethodPost:
		h.notifications(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// verify implements the subscriber verification handshake: no content when
// the query parameter matches the configured code, not found otherwise.
func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("verify")
	h.logger.Printf("request to verify: %s", code)

	if code != "" && code == h.verificationCode {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

// notifications receives the webhook update payload and records a day to
// sync for every activities update with a recognized subscription id.
func (h *Handler) notifications(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	updates, err := fitbit.ParseUpdateNotifications(body)
	if err != nil {
		h.logger.Printf("malformed notification payload: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	for _, update := range updates {
		h.logger.Printf("received update for collection %s", update.CollectionType)
		if update.CollectionType != fitbit.CollectionActivities {
			continue
		}
		observability.RecordWebhookNotification()

		user, err := h.store.UserBySubscription(r.Context(), update.SubscriptionID)
		if err != nil {
			h.logger.Printf("lookup subscription %s: %v", update.SubscriptionID, err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if user == nil {
			h.logger.Printf("no user was found for subscription id %s", update.SubscriptionID)
			continue
		}

		if err := h.store.UpsertDayToSync(r.Context(), user.ID, update.Date.Time); err != nil {
			h.logger.Printf("record day to sync for user %s: %v", user.FitbitUserID, err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// authorize redirects the browser to the provider's consent page.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	http.Redirect(w, r, h.auth.AuthCodeURL(""), http.StatusFound)
}

// register completes the authorization-code flow and stores the user.
func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	user, err := h.auth.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Printf("getting access token failed: %v", err)
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if err := h.store.UpsertUserByFitbitID(r.Context(), user); err != nil {
		h.logger.Printf("store user %s: %v", user.FitbitUserID, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
