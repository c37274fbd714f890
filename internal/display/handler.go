package display

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"

	"signage-sync/internal/auth"
)

const maxBodyBytes = 1 << 20

// Handler exposes the display-state and moderation endpoints using go-chi.
type Handler struct {
	sched    *Scheduler
	mod      Moderator
	log      *slog.Logger
	validate *validator.Validate
}

// NewHandler returns a Handler over sched and mod.
func NewHandler(sched *Scheduler, mod Moderator, log *slog.Logger) *Handler {
	return &Handler{
		sched:    sched,
		mod:      mod,
		log:      log,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Routes mounts the endpoints under /api/media. editor gates every write;
// poll, when given, wraps the public display-state read (rate limiting).
func (h *Handler) Routes(r chi.Router, editor func(http.Handler) http.Handler, poll ...func(http.Handler) http.Handler) {
	r.Route("/api/media", func(r chi.Router) {
		r.With(poll...).Get("/display-state", h.GetDisplayState)
		r.Get("/approved", h.GetApproved)

		r.Group(func(r chi.Router) {
			r.Use(editor)
			r.Route("/display-state", func(r chi.Router) {
				r.Post("/next", h.Next)
				r.Post("/previous", h.Previous)
				r.Post("/reset", h.Reset)
				r.Post("/skip", h.Skip)
				r.Post("/duration", h.UpdateDuration)
				r.Post("/video", h.ReportVideo)
			})
			r.Post("/approve/{id}", h.Approve)
			r.Post("/reject/{id}", h.Reject)
			r.Delete("/delete/{id}", h.Delete)
			r.Put("/update/{id}", h.Update)
			r.Post("/order", h.Reorder)
		})
	})
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type stateResponse struct {
	State TimelineState `json:"state"`
}

type mediaResponse struct {
	Media []MediaEntry `json:"media"`
}

type skipRequest struct {
	Index *int `json:"index" validate:"required"`
}

type durationRequest struct {
	MediaID  MediaID `json:"mediaId" validate:"required,gt=0"`
	Duration float64 `json:"duration" validate:"gt=0,lte=86400"`
}

type videoRequest struct {
	IsPlaying   *bool   `json:"isPlaying" validate:"required"`
	CurrentTime float64 `json:"currentTime" validate:"gte=0"`
	Duration    float64 `json:"duration" validate:"gte=0"`
}

type orderRequest struct {
	Items []OrderUpdate `json:"items" validate:"required,min=1,dive"`
}

// GetDisplayState handles GET /api/media/display-state. Unauthenticated;
// polled by every display.
func (h *Handler) GetDisplayState(w http.ResponseWriter, r *http.Request) {
	h.writeOK(w, h.sched.View(r.Context()))
}

// GetApproved handles GET /api/media/approved.
func (h *Handler) GetApproved(w http.ResponseWriter, r *http.Request) {
	h.writeOK(w, mediaResponse{Media: h.sched.GetMediaItems(r.Context())})
}

// Next handles POST /api/media/display-state/next.
func (h *Handler) Next(w http.ResponseWriter, r *http.Request) {
	h.writeState(w, h.sched.Advance(r.Context(), actor(r)))
}

// Previous handles POST /api/media/display-state/previous.
func (h *Handler) Previous(w http.ResponseWriter, r *http.Request) {
	h.writeState(w, h.sched.Previous(r.Context(), actor(r)))
}

// Reset handles POST /api/media/display-state/reset.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	h.writeState(w, h.sched.ResetTimeline(r.Context(), actor(r)))
}

// Skip handles POST /api/media/display-state/skip. Body: { "index": 3 }.
// Out-of-range indexes are clamped, not rejected.
func (h *Handler) Skip(w http.ResponseWriter, r *http.Request) {
	var req skipRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.writeState(w, h.sched.SkipToMedia(r.Context(), *req.Index, actor(r)))
}

// UpdateDuration handles POST /api/media/display-state/duration.
// Body: { "mediaId": 12, "duration": 42.5 }.
func (h *Handler) UpdateDuration(w http.ResponseWriter, r *http.Request) {
	var req durationRequest
	if !h.decode(w, r, &req) {
		return
	}
	state, err := h.sched.UpdateMediaDuration(r.Context(), req.MediaID, req.Duration, actor(r))
	if err != nil {
		h.writeMediaError(w, "update duration", req.MediaID, err)
		return
	}
	h.writeState(w, state)
}

// ReportVideo handles POST /api/media/display-state/video.
// Body: { "isPlaying": true, "currentTime": 12.3, "duration": 30 }.
func (h *Handler) ReportVideo(w http.ResponseWriter, r *http.Request) {
	var req videoRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.writeState(w, h.sched.ReportVideoState(r.Context(), *req.IsPlaying, req.CurrentTime, req.Duration, actor(r)))
}

// Approve handles POST /api/media/approve/{id}.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, "approve", func(id MediaID, by int64) error {
		return h.mod.ApproveMedia(r.Context(), id, by)
	})
}

// Reject handles POST /api/media/reject/{id}.
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, "reject", func(id MediaID, by int64) error {
		return h.mod.RejectMedia(r.Context(), id, by)
	})
}

// Delete handles DELETE /api/media/delete/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, "delete", func(id MediaID, _ int64) error {
		return h.mod.DeleteMedia(r.Context(), id)
	})
}

// Update handles PUT /api/media/update/{id}. Body: any of title, description, duration.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := mediaIDParam(r)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "Invalid media id")
		return
	}
	var patch MediaPatch
	if !h.decode(w, r, &patch) {
		return
	}
	if patch.Empty() {
		h.writeError(w, http.StatusBadRequest, "No fields to update")
		return
	}
	if err := h.mod.UpdateMedia(r.Context(), id, patch); err != nil {
		h.writeMediaError(w, "update", id, err)
		return
	}
	h.sched.ClearMediaCache()
	h.writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Media updated successfully"})
}

// Reorder handles POST /api/media/order. Body: { "items": [{ "id": 1, "display_order": 0 }] }.
func (h *Handler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.mod.UpdateDisplayOrder(r.Context(), req.Items); err != nil {
		h.writeMediaError(w, "reorder", 0, err)
		return
	}
	h.sched.ClearMediaCache()
	h.writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Display order updated successfully"})
}

func (h *Handler) moderate(w http.ResponseWriter, r *http.Request, op string, apply func(MediaID, int64) error) {
	id, ok := mediaIDParam(r)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "Invalid media id")
		return
	}
	var by int64
	if c, ok := auth.FromContext(r.Context()); ok {
		by = c.UserID
	}
	if err := apply(id, by); err != nil {
		h.writeMediaError(w, op, id, err)
		return
	}
	h.sched.ClearMediaCache()
	h.log.Info("media moderated", slog.String("op", op), slog.Int64("media_id", int64(id)), slog.Int64("by", by))
	h.writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Media " + op + " succeeded"})
}

// decode reads a JSON body into dst and validates it, writing a 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		h.log.Debug("invalid request body", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
		h.writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.log.Debug("request validation failed", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
		h.writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func (h *Handler) writeMediaError(w http.ResponseWriter, op string, id MediaID, err error) {
	switch {
	case errors.Is(err, ErrMediaNotFound):
		h.writeError(w, http.StatusNotFound, "Media not found or already processed")
	case errors.Is(err, ErrInvalidDuration):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error("media operation failed",
			slog.String("op", op),
			slog.Int64("media_id", int64(id)),
			slog.String("error", err.Error()))
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *Handler) writeState(w http.ResponseWriter, s TimelineState) {
	h.writeOK(w, stateResponse{State: s})
}

func (h *Handler) writeOK(w http.ResponseWriter, data any) {
	h.writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, envelope{Success: false, Message: msg})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Warn("write response failed", slog.String("error", err.Error()))
	}
}

func actor(r *http.Request) string {
	if c, ok := auth.FromContext(r.Context()); ok {
		return c.Actor()
	}
	return "unknown"
}

func mediaIDParam(r *http.Request) (MediaID, bool) {
	n, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return MediaID(n), true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return "Invalid field " + fe.Field() + ": failed " + fe.Tag()
	}
	return "Invalid request"
}
