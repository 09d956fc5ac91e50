// Package handler contains the HTTP request handlers.
//
// WHAT IS A HANDLER?
// In Go, an HTTP handler is anything that implements http.Handler:
//
//	type Handler interface {
//	    ServeHTTP(ResponseWriter, *Request)
//	}
//
// Usually we write plain functions with that signature (http.HandlerFunc),
// and chi's router accepts them directly.
//
// HANDLER RESPONSIBILITIES:
// 1. Parse the incoming HTTP request (path params, query, body)
// 2. Call the service layer with the caller's identity
// 3. Write the HTTP response (status code, headers, body)
//
// Handlers do NOT decide who may do what or which status changes are legal.
// That is the service's job; a handler only translates.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/greeting-cards/internal/apperror"
	"github.com/sakif/greeting-cards/internal/auth"
	"github.com/sakif/greeting-cards/internal/model"
	"github.com/sakif/greeting-cards/internal/service"
)

// CardHandler serves the public card routes under /api/cards.
type CardHandler struct {
	cards  *service.CardService
	logger *slog.Logger
}

// NewCardHandler creates a CardHandler.
func NewCardHandler(cards *service.CardService, logger *slog.Logger) *CardHandler {
	return &CardHandler{cards: cards, logger: logger}
}

// =========================================================================
// REQUEST DTOs
// =========================================================================

// tagList accepts tags in every shape clients send them:
//
//	"tags": ["Birthday", "Cake"]        JSON array
//	"tags": "[\"Birthday\",\"Cake\"]"   JSON array inside a string (multipart forms)
//	"tags": "Birthday, Cake"            comma-joined string
type tagList []string

func (t *tagList) UnmarshalJSON(b []byte) error {
	var arr []string
	if err := json.Unmarshal(b, &arr); err == nil {
		if arr == nil {
			arr = []string{}
		}
		*t = arr
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.New("tags must be an array of strings or a string")
	}
	parsed, err := parseTags(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// parseTags splits a tags string. An empty string means "no tags" and
// returns an empty, non-nil slice.
func parseTags(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []string{}, nil
	}
	if strings.HasPrefix(s, "[") {
		var arr []string
		if err := json.Unmarshal([]byte(s), &arr); err != nil {
			return nil, apperror.ValidationFailed("tags", "tags is not a valid JSON array of strings")
		}
		if arr == nil {
			arr = []string{}
		}
		return arr, nil
	}
	return strings.Split(s, ","), nil
}

// createCardRequest is the body of POST /api/cards.
type createCardRequest struct {
	Title          string  `json:"title"          validate:"required"`
	Description    string  `json:"description"    validate:"required"`
	Message        string  `json:"message"        validate:"required"`
	RecipientName  string  `json:"recipientName"`
	RecipientEmail string  `json:"recipientEmail" validate:"omitempty,email"`
	ImageURL       string  `json:"imageUrl"`
	Tags           tagList `json:"tags"`
}

func (req createCardRequest) toInput() service.CreateCardInput {
	return service.CreateCardInput{
		Title:          req.Title,
		Description:    req.Description,
		Message:        req.Message,
		RecipientName:  req.RecipientName,
		RecipientEmail: req.RecipientEmail,
		ImageURL:       req.ImageURL,
		Tags:           req.Tags,
	}
}

// updateCardRequest is the body of PATCH /api/cards/{id}. Absent fields
// stay unchanged. Status is accepted only so the service can refuse it.
// It is kept raw so that any "status" key counts, even "status": null.
type updateCardRequest struct {
	Title          *string         `json:"title"`
	Description    *string         `json:"description"`
	Message        *string         `json:"message"`
	RecipientName  *string         `json:"recipientName"`
	RecipientEmail *string         `json:"recipientEmail"`
	ImageURL       *string         `json:"imageUrl"`
	Tags           *tagList        `json:"tags"`
	Status         json.RawMessage `json:"status"`
}

func (req updateCardRequest) toPatch() model.CardPatch {
	patch := model.CardPatch{
		Title:          req.Title,
		Description:    req.Description,
		Message:        req.Message,
		RecipientName:  req.RecipientName,
		RecipientEmail: req.RecipientEmail,
		ImageURL:       req.ImageURL,
	}
	if req.Status != nil {
		status := string(req.Status)
		patch.Status = &status
	}
	if req.Tags != nil {
		patch.Tags = []string(*req.Tags)
	}
	return patch
}

// =========================================================================
// HANDLERS
// =========================================================================

// HandleCreate submits a new card. It starts out pending.
//
// HTTP: POST /api/cards
// BODY: JSON, or a URL-encoded / multipart form with the same field names.
func (h *CardHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	req, err := h.readCreateRequest(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := validateRequest(req); err != nil {
		writeError(w, err)
		return
	}

	card, err := h.cards.Create(r.Context(), auth.ActorFromContext(r.Context()), req.toInput())
	if err != nil {
		h.fail(w, r, "create card", err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

// readCreateRequest decodes the create body according to its Content-Type.
//
// The submission form posts multipart data with tags as a JSON-array string.
func (h *CardHandler) readCreateRequest(w http.ResponseWriter, r *http.Request) (*createCardRequest, error) {
	var req createCardRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if mediaType == "multipart/form-data" {
			if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
				return nil, apperror.ValidationFailed("body", "invalid form body")
			}
		} else if err := r.ParseForm(); err != nil {
			return nil, apperror.ValidationFailed("body", "invalid form body")
		}

		req = createCardRequest{
			Title:          r.PostFormValue("title"),
			Description:    r.PostFormValue("description"),
			Message:        r.PostFormValue("message"),
			RecipientName:  r.PostFormValue("recipientName"),
			RecipientEmail: r.PostFormValue("recipientEmail"),
			ImageURL:       r.PostFormValue("imageUrl"),
		}
		tags, err := parseTags(r.PostFormValue("tags"))
		if err != nil {
			return nil, err
		}
		req.Tags = tags

	default:
		if err := decodeJSON(w, r, &req); err != nil {
			return nil, err
		}
	}
	return &req, nil
}

// HandleList searches the cards the caller may see.
//
// HTTP: GET /api/cards?status=&tags=Birthday,Cake&text=grandma
//
// Anonymous callers and members only ever get active cards.
func (h *CardHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	listCards(w, r, h.cards, parseCardQuery(r), h.logger)
}

// listCards is shared with the admin search routes; the viewer's role decides
// what comes back.
func listCards(w http.ResponseWriter, r *http.Request, cards *service.CardService, q model.CardQuery, logger *slog.Logger) {
	seq, err := cards.Search(r.Context(), auth.ActorFromContext(r.Context()), q)
	if err != nil {
		logFailure(logger, r, "search cards", err)
		writeError(w, err)
		return
	}

	result := slices.Collect(seq)
	if result == nil {
		result = []model.Card{} // encode as [] rather than null
	}
	writeJSON(w, http.StatusOK, result)
}

// parseCardQuery reads ?status=&tags=&text=. tags is comma-joined and may
// be repeated: ?tags=a,b and ?tags=a&tags=b mean the same.
func parseCardQuery(r *http.Request) model.CardQuery {
	q := r.URL.Query()

	var tags []string
	for _, v := range q["tags"] {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}

	return model.CardQuery{
		Text:   q.Get("text"),
		Tags:   tags,
		Status: model.Status(strings.TrimSpace(q.Get("status"))),
	}
}

// HandleGet returns one card.
//
// HTTP: GET /api/cards/{id}
//
// Cards the caller may not see are reported as 404, not 403, so the
// existence of a pending card is not leaked.
func (h *CardHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	card, err := h.cards.Get(r.Context(), auth.ActorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "get card", err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// HandleUpdate edits the content of a card.
//
// HTTP: PATCH /api/cards/{id}
//
// A body with "status" is refused with 400 InvalidOperationError: status
// only changes through the moderation routes.
func (h *CardHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateCardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	card, err := h.cards.Update(r.Context(), auth.ActorFromContext(r.Context()), chi.URLParam(r, "id"), req.toPatch())
	if err != nil {
		h.fail(w, r, "update card", err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// HandleLike adds one like to an active card.
//
// HTTP: POST /api/cards/{id}/like
func (h *CardHandler) HandleLike(w http.ResponseWriter, r *http.Request) {
	card, err := h.cards.Like(r.Context(), auth.ActorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "like card", err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// HandleDelete removes a card. Admin only.
//
// HTTP: DELETE /api/cards/{id}
// RESPONSE: 204 No Content
func (h *CardHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.cards.Delete(r.Context(), auth.ActorFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "delete card", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// fail logs server-side failures with their full cause, then writes the
// client-facing error. 4xx errors are the caller's problem and are not logged
// here; the request logger already records the status.
func (h *CardHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	logFailure(h.logger, r, op, err)
	writeError(w, err)
}

func logFailure(logger *slog.Logger, r *http.Request, op string, err error) {
	if statusFor(err) != http.StatusInternalServerError {
		return
	}
	logger.Error(fmt.Sprintf("%s failed", op),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
}
