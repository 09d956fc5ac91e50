package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/greeting-cards/internal/apperror"
	"github.com/sakif/greeting-cards/internal/auth"
	"github.com/sakif/greeting-cards/internal/model"
	"github.com/sakif/greeting-cards/internal/service"
)

// AdminHandler serves the moderation routes under /api/admin.
//
// The router puts RequireAuth and RequireRole(reviewer) in front of every
// route here. The finer split (reviewers approve and reject, only admins
// change display status) is enforced again by the service.
type AdminHandler struct {
	cards    *service.CardService
	activity *service.ActivityService
	limits   ActivityLimits
	logger   *slog.Logger
}

// ActivityLimits bounds the recent-activity endpoint.
type ActivityLimits struct {
	Default int // used when ?limit= is absent
	Max     int // larger requests are clamped to this
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(
	cards *service.CardService,
	activity *service.ActivityService,
	limits ActivityLimits,
	logger *slog.Logger,
) *AdminHandler {
	return &AdminHandler{
		cards:    cards,
		activity: activity,
		limits:   limits,
		logger:   logger,
	}
}

// statusRequest is the body of PATCH /api/admin/cards/{id}.
type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

// HandleApprove moves a pending card to approved.
//
// HTTP: PUT /api/admin/cards/{id}/approve
// 409 IllegalTransitionError when the card is not pending.
func (h *AdminHandler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	h.respondCard(w, r, "approve card")(
		h.cards.Approve(r.Context(), auth.ActorFromContext(r.Context()), chi.URLParam(r, "id")))
}

// HandleReject moves a pending card to rejected.
//
// HTTP: PUT /api/admin/cards/{id}/reject
func (h *AdminHandler) HandleReject(w http.ResponseWriter, r *http.Request) {
	h.respondCard(w, r, "reject card")(
		h.cards.Reject(r.Context(), auth.ActorFromContext(r.Context()), chi.URLParam(r, "id")))
}

// HandleSetStatus puts a card on or off display.
//
// HTTP: PATCH /api/admin/cards/{id}
// BODY: {"status": "active"} or {"status": "inactive"}
//
// Any other status value is a 400; approve and reject have their own routes.
func (h *AdminHandler) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := validateRequest(req); err != nil {
		writeError(w, err)
		return
	}

	h.respondCard(w, r, "set card status")(
		h.cards.SetDisplayStatus(r.Context(), auth.ActorFromContext(r.Context()),
			chi.URLParam(r, "id"), model.Status(req.Status)))
}

// respondCard returns a function that writes the outcome of a card
// operation, so each handler reads as a single call.
func (h *AdminHandler) respondCard(w http.ResponseWriter, r *http.Request, op string) func(*model.Card, error) {
	return func(card *model.Card, err error) {
		if err != nil {
			logFailure(h.logger, r, op, err)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, card)
	}
}

// HandleList searches every card regardless of status.
//
// HTTP: GET /api/admin/cards?status=pending&tags=&text=
func (h *AdminHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	listCards(w, r, h.cards, parseCardQuery(r), h.logger)
}

// HandlePending is the review queue: the admin search pinned to pending.
// text and tags still narrow it; a status parameter is ignored.
//
// HTTP: GET /api/admin/cards/pending?tags=&text=
func (h *AdminHandler) HandlePending(w http.ResponseWriter, r *http.Request) {
	q := parseCardQuery(r)
	q.Status = model.StatusPending
	listCards(w, r, h.cards, q, h.logger)
}

// HandleDelete removes a card from the management screen. Only admins may
// delete; reviewers get 403. The card's activity is kept.
//
// HTTP: DELETE /api/admin/cards/{id}
func (h *AdminHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.cards.Delete(r.Context(), auth.ActorFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		logFailure(h.logger, r, "delete card", err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleCardActivity returns the transition history of one card, oldest
// first. History outlives the card, so a deleted id still has entries.
//
// HTTP: GET /api/admin/cards/{id}/activity
func (h *AdminHandler) HandleCardActivity(w http.ResponseWriter, r *http.Request) {
	entries, err := h.activity.ForCard(r.Context(), chi.URLParam(r, "id"))
	h.respondEntries(w, r, "list card activity", entries, err)
}

// HandleRecentActivity returns the newest entries across all cards.
//
// HTTP: GET /api/admin/recent-activity?limit=10
//
// limit defaults to ActivityLimits.Default and is clamped to Max. A limit
// that is not a positive integer is a 400.
func (h *AdminHandler) HandleRecentActivity(w http.ResponseWriter, r *http.Request) {
	limit, err := h.parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, err)
		return
	}

	entries, err := h.activity.Recent(r.Context(), limit)
	h.respondEntries(w, r, "list recent activity", entries, err)
}

func (h *AdminHandler) parseLimit(raw string) (int, error) {
	if raw == "" {
		return h.limits.Default, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, apperror.ValidationFailed("limit", "limit must be a positive integer")
	}
	return min(limit, h.limits.Max), nil
}

func (h *AdminHandler) respondEntries(w http.ResponseWriter, r *http.Request, op string, entries []model.ActivityEntry, err error) {
	if err != nil {
		logFailure(h.logger, r, op, err)
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []model.ActivityEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleStats returns the dashboard counts.
//
// HTTP: GET /api/admin/stats
func (h *AdminHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.cards.Stats(r.Context())
	if err != nil {
		logFailure(h.logger, r, "card stats", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
