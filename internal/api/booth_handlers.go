// Package api provides HTTP handlers for booth operations: capture,
// placement, caption updates, deletion, and export.
package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/onnwee/polabooth/internal/caption"
	"github.com/onnwee/polabooth/internal/capture"
	"github.com/onnwee/polabooth/internal/export"
	"github.com/onnwee/polabooth/internal/middleware"
	"github.com/onnwee/polabooth/internal/photo"
	"github.com/onnwee/polabooth/internal/tracing"
	"github.com/onnwee/polabooth/internal/validate"
)

// BoothHandlers holds dependencies for booth HTTP handlers.
type BoothHandlers struct {
	store          *photo.Store
	processor      *capture.Processor
	renderer       *export.Renderer
	captioner      caption.Captioner
	broadcaster    *photo.Broadcaster
	developDelay   time.Duration
	captionTimeout time.Duration
	defaultLocale  string
	maxUploadBytes int64
	now            func() time.Time
}

// BoothHandlersConfig configures the booth handlers.
type BoothHandlersConfig struct {
	Store          *photo.Store
	Processor      *capture.Processor
	Renderer       *export.Renderer
	Captioner      caption.Captioner
	Broadcaster    *photo.Broadcaster
	DevelopDelay   time.Duration
	CaptionTimeout time.Duration
	DefaultLocale  string
	MaxUploadBytes int64
}

// NewBoothHandlers creates a new BoothHandlers instance.
func NewBoothHandlers(cfg BoothHandlersConfig) *BoothHandlers {
	developDelay := cfg.DevelopDelay
	if developDelay == 0 {
		developDelay = 3500 * time.Millisecond
	}
	captionTimeout := cfg.CaptionTimeout
	if captionTimeout == 0 {
		captionTimeout = 30 * time.Second
	}
	maxUploadBytes := cfg.MaxUploadBytes
	if maxUploadBytes == 0 {
		maxUploadBytes = 15 * 1024 * 1024
	}
	return &BoothHandlers{
		store:          cfg.Store,
		processor:      cfg.Processor,
		renderer:       cfg.Renderer,
		captioner:      cfg.Captioner,
		broadcaster:    cfg.Broadcaster,
		developDelay:   developDelay,
		captionTimeout: captionTimeout,
		defaultLocale:  cfg.DefaultLocale,
		maxUploadBytes: maxUploadBytes,
		now:            time.Now,
	}
}

// captureJSONRequest is the JSON body for POST /captures. The browser sends
// the frame it grabbed from the live video element.
type captureJSONRequest struct {
	Frame  string `json:"frame"` // base64-encoded image bytes
	MIME   string `json:"mime"`
	Locale string `json:"locale,omitempty"`
}

// placeRequest is the JSON body for POST /photos/{id}/place.
type placeRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// recaptionRequest is the optional JSON body for POST /photos/{id}/caption.
type recaptionRequest struct {
	Locale string `json:"locale,omitempty"`
}

// patchRequest is the JSON body for PATCH /photos/{id}.
type patchRequest struct {
	Caption  *string  `json:"caption,omitempty"`
	X        *float64 `json:"x,omitempty"`
	Y        *float64 `json:"y,omitempty"`
	Rotation *float64 `json:"rotation,omitempty"`
}

// Captures handles POST /captures - runs a camera frame through the capture
// pipeline and stages the resulting photo.
func (h *BoothHandlers) Captures(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	// Reject a capture while a photo is still in the device. Checked again
	// at Stage time; this keeps the common case cheap.
	if _, occupied := h.store.Staged(); occupied {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeStagedOccupied)
		WriteError(w, ctx, http.StatusConflict, ErrCodeStagedOccupied, "A photo is already staged; place or delete it first")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	frame, mimeType, locale, err := h.readFrame(r)
	if err != nil {
		h.writeFrameError(w, r, err)
		return
	}

	if _, err := validate.FrameUpload(mimeType, int64(len(frame)), h.maxUploadBytes); err != nil {
		h.writeFrameError(w, r, err)
		return
	}

	_, endSpan := tracing.StartSpan(r.Context(), "process_frame")
	processed, err := h.processor.Process(frame)
	endSpan(err)
	if err != nil {
		slog.WarnContext(r.Context(), "failed to process camera frame", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Frame could not be decoded")
		return
	}

	p := photo.New(processed, validate.MIMEImageJPEG, h.now())
	if err := h.store.Stage(p); err != nil {
		// Lost the race against a concurrent capture
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeStagedOccupied)
		WriteError(w, ctx, http.StatusConflict, ErrCodeStagedOccupied, "A photo is already staged; place or delete it first")
		return
	}

	staged, _ := h.store.Staged()
	h.broadcaster.Broadcast(&photo.Event{Type: photo.EventStaged, ID: staged.ID, Photo: &staged})
	h.scheduleDevelop(staged.ID)
	if locale == "" {
		locale = h.defaultLocale
	}
	h.dispatchCaption(staged, locale)

	slog.InfoContext(r.Context(), "photo captured",
		"photo_id", staged.ID,
		"frame_bytes", len(frame),
		"photo_bytes", len(processed),
	)

	writeJSON(w, r, http.StatusCreated, staged)
}

// readFrame extracts the frame bytes, MIME type, and optional locale from
// either a multipart upload (field "frame") or a JSON body.
func (h *BoothHandlers) readFrame(r *http.Request) ([]byte, string, string, error) {
	contentType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, "", "", fmt.Errorf("%w: unreadable content type", validate.ErrInvalidMIMEType)
	}

	switch {
	case contentType == "application/json":
		var req captureJSONRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, "", "", fmt.Errorf("invalid JSON in request body: %w", err)
		}
		frame, err := base64.StdEncoding.DecodeString(req.Frame)
		if err != nil {
			return nil, "", "", fmt.Errorf("frame is not valid base64: %w", err)
		}
		return frame, req.MIME, req.Locale, nil

	case strings.HasPrefix(contentType, "multipart/"):
		file, header, err := r.FormFile("frame")
		if err != nil {
			return nil, "", "", fmt.Errorf("missing frame field: %w", err)
		}
		defer file.Close()
		frame, err := io.ReadAll(file)
		if err != nil {
			return nil, "", "", fmt.Errorf("failed to read frame: %w", err)
		}
		return frame, header.Header.Get("Content-Type"), r.FormValue("locale"), nil

	default:
		return nil, "", "", fmt.Errorf("%w: %q", validate.ErrInvalidMIMEType, contentType)
	}
}

// writeFrameError maps frame read/validation failures onto the error taxonomy.
func (h *BoothHandlers) writeFrameError(w http.ResponseWriter, r *http.Request, err error) {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr) || errors.Is(err, validate.ErrFileTooLarge):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodePayloadTooLarge)
		WriteError(w, ctx, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "Frame exceeds maximum upload size")
	case errors.Is(err, validate.ErrInvalidMIMEType) || errors.Is(err, validate.ErrEmpty):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeUnsupportedType)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeUnsupportedType,
			"Unsupported frame type. Allowed types: image/jpeg, image/png, image/webp")
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid capture request")
	}
}

// Photos handles GET /photos - returns the booth snapshot.
func (h *BoothHandlers) Photos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	writeJSON(w, r, http.StatusOK, h.store.Snapshot())
}

// PhotoByID routes /photos/{id} and its subresources:
//
//	GET    /photos/{id}
//	PATCH  /photos/{id}
//	DELETE /photos/{id}
//	POST   /photos/{id}/place
//	POST   /photos/{id}/caption
//	GET    /photos/{id}/export
func (h *BoothHandlers) PhotoByID(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/photos/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid URL path")
		return
	}
	id := parts[0]

	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			h.getPhoto(w, r, id)
		case http.MethodPatch:
			h.patchPhoto(w, r, id)
		case http.MethodDelete:
			h.deletePhoto(w, r, id)
		default:
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
			WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		}
	case len(parts) == 2 && parts[1] == "place" && r.Method == http.MethodPost:
		h.placePhoto(w, r, id)
	case len(parts) == 2 && parts[1] == "caption" && r.Method == http.MethodPost:
		h.regenerateCaption(w, r, id)
	case len(parts) == 2 && parts[1] == "export" && r.Method == http.MethodGet:
		h.exportPhoto(w, r, id)
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
	}
}

// getPhoto handles GET /photos/{id}.
func (h *BoothHandlers) getPhoto(w http.ResponseWriter, r *http.Request, id string) {
	p, ok := h.store.Get(id)
	if !ok {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Photo not found")
		return
	}
	writeJSON(w, r, http.StatusOK, p)
}

// patchPhoto handles PATCH /photos/{id} - partial update of caption,
// position, or rotation, applied wherever the photo currently lives.
func (h *BoothHandlers) patchPhoto(w http.ResponseWriter, r *http.Request, id string) {
	var req patchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	patch := photo.Patch{X: req.X, Y: req.Y, Rotation: req.Rotation}
	if req.Caption != nil {
		validated, err := validate.CaptionText(*req.Caption)
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Caption must be at most 280 characters")
			return
		}
		patch.Caption = &validated
	}

	updated, ok := h.store.Update(id, patch)
	if !ok {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Photo not found")
		return
	}

	h.broadcaster.Broadcast(&photo.Event{Type: photo.EventUpdated, ID: id, Photo: &updated})
	writeJSON(w, r, http.StatusOK, updated)
}

// deletePhoto handles DELETE /photos/{id} - removes the photo from whichever
// collection holds it. Any still-pending caption for the id becomes a no-op.
func (h *BoothHandlers) deletePhoto(w http.ResponseWriter, r *http.Request, id string) {
	if !h.store.Delete(id) {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Photo not found")
		return
	}

	h.broadcaster.Broadcast(&photo.Event{Type: photo.EventDeleted, ID: id})
	w.WriteHeader(http.StatusNoContent)
}

// placePhoto handles POST /photos/{id}/place - moves the staged photo onto
// the display surface with a fresh random tilt.
func (h *BoothHandlers) placePhoto(w http.ResponseWriter, r *http.Request, id string) {
	var req placeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	placed, ok := h.store.Place(id, req.X, req.Y, photo.RandomRotation())
	if !ok {
		if _, exists := h.store.Get(id); exists {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeConflict)
			WriteError(w, ctx, http.StatusConflict, ErrCodeConflict, "Photo is not the currently staged photo")
		} else {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Photo not found")
		}
		return
	}

	h.broadcaster.Broadcast(&photo.Event{Type: photo.EventPlaced, ID: id, Photo: &placed})
	writeJSON(w, r, http.StatusOK, placed)
}

// regenerateCaption handles POST /photos/{id}/caption - re-runs captioning
// for the photo. The new text arrives asynchronously via update. An optional
// JSON body may override the caption locale; an empty body uses the default.
func (h *BoothHandlers) regenerateCaption(w http.ResponseWriter, r *http.Request, id string) {
	p, ok := h.store.Get(id)
	if !ok {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Photo not found")
		return
	}

	var req recaptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	locale := req.Locale
	if locale == "" {
		locale = h.defaultLocale
	}

	h.dispatchCaption(p, locale)
	writeJSON(w, r, http.StatusAccepted, map[string]string{"status": "regenerating"})
}

// exportPhoto handles GET /photos/{id}/export - renders the polaroid-framed
// image and serves it as a download.
func (h *BoothHandlers) exportPhoto(w http.ResponseWriter, r *http.Request, id string) {
	p, ok := h.store.Get(id)
	if !ok {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Photo not found")
		return
	}

	_, endSpan := tracing.StartSpan(r.Context(), "render_export")
	framed, err := h.renderer.Render(p)
	endSpan(err)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to render export", "error", err, "photo_id", id)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to render photo")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(p)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(framed); err != nil {
		slog.ErrorContext(r.Context(), "failed to write export response", "error", err)
	}
}

// scheduleDevelop flips the developing flag after the develop delay. The
// photo may have been placed (or deleted) by then; Develop patches by id.
func (h *BoothHandlers) scheduleDevelop(id string) {
	time.AfterFunc(h.developDelay, func() {
		if p, ok := h.store.Develop(id); ok {
			h.broadcaster.Broadcast(&photo.Event{Type: photo.EventDeveloped, ID: id, Photo: &p})
		}
	})
}

// dispatchCaption requests a caption in the background and patches it onto
// the record wherever it lives. A photo deleted before the caption resolves
// makes the patch a no-op.
func (h *BoothHandlers) dispatchCaption(p photo.Photo, locale string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.captionTimeout)
		defer cancel()

		text := h.captioner.GenerateWithFallback(ctx, caption.Request{
			Image:  p.Data,
			MIME:   p.MIME,
			Locale: locale,
		})

		updated, ok := h.store.Update(p.ID, photo.Patch{Caption: &text})
		if !ok {
			slog.Debug("caption resolved for deleted photo", "photo_id", p.ID)
			return
		}
		h.broadcaster.Broadcast(&photo.Event{Type: photo.EventCaptioned, ID: p.ID, Photo: &updated})
	}()
}

// writeJSON writes a JSON response body with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}
