package http

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"voice-intake-service/internal/service/audio"
	"voice-intake-service/internal/service/clips"
	"voice-intake-service/internal/service/dialog"
	"voice-intake-service/internal/service/extract"
	"voice-intake-service/internal/store"
)

const defaultMaxUploadBytes = 12 << 20

type handlers struct {
	deps Deps
}

// ivrResponse is the /v1/ivr body: the turn plus what was heard.
type ivrResponse struct {
	*dialog.TurnResult
	AudioURL   string `json:"audio_url,omitempty"`
	Transcript string `json:"transcript"`
}

type turnRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) startSession(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.deps.Dialog.Start(r.Context(), req.SessionID)
	if err != nil {
		h.dialogError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *handlers) reset(w http.ResponseWriter, r *http.Request) {
	id, err := sessionIDFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if id == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	h.deps.Dialog.Reset(r.Context(), id)
	writeJSON(w, http.StatusOK, map[string]string{"session_id": id, "status": "reset"})
}

// ivr transcribes one uploaded answer and applies it as a turn. An upload that
// yields no transcript counts as an empty answer.
func (h *handlers) ivr(w http.ResponseWriter, r *http.Request) {
	limit := h.deps.MaxUploadBytes
	if limit <= 0 {
		limit = defaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "expected multipart form with session_id and file")
		return
	}
	defer r.MultipartForm.RemoveAll()

	sessionID := strings.TrimSpace(r.FormValue("session_id"))
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	text := ""
	res, err := h.deps.Transcriber.Transcribe(r.Context(), sessionID, data, header.Header.Get("Content-Type"))
	switch {
	case err == nil:
		text = res.Text
	case errors.Is(err, audio.ErrNoTranscript):
		log.Info().Str("sessionId", sessionID).Msg("No transcript for upload, treating as empty answer")
	case errors.Is(err, audio.ErrLimitExceeded):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	case errors.Is(err, audio.ErrEmptyAudio), errors.Is(err, audio.ErrUnsupportedAudio):
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
		return
	default:
		log.Error().Err(err).Str("sessionId", sessionID).Str("requestId", middleware.GetReqID(r.Context())).Msg("Transcription failed")
		writeError(w, http.StatusBadGateway, "transcription failed")
		return
	}

	turn, err := h.deps.Dialog.ProcessTurn(r.Context(), sessionID, text)
	if err != nil {
		h.dialogError(w, r, err)
		return
	}

	out := ivrResponse{TurnResult: turn, Transcript: text}
	if turn.Audio != nil {
		out.AudioURL = turn.Audio.URL
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) turn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	res, err := h.deps.Dialog.ProcessTurn(r.Context(), req.SessionID, req.Text)
	if err != nil {
		h.dialogError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) extract(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	writeJSON(w, http.StatusOK, extract.All(req.Text))
}

func (h *handlers) audio(w http.ResponseWriter, r *http.Request) {
	clip, err := h.deps.Clips.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, clips.ErrNotFound) {
			writeError(w, http.StatusNotFound, "audio not found")
			return
		}
		log.Error().Err(err).Msg("Failed to load audio clip")
		writeError(w, http.StatusInternalServerError, "failed to load audio")
		return
	}
	w.Header().Set("Content-Type", clip.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(clip.Data)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(clip.Data)
}

// listRecords filters by status, limit and any catalog field given as a
// query parameter, e.g. ?location=Pune.
func (h *handlers) listRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.Filter{Status: q.Get("status")}
	if f.Status != "" && !store.ValidStatus(f.Status) {
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		f.Limit = n
	}
	for _, name := range h.deps.Dialog.Processor().Catalog().Names() {
		if v := strings.TrimSpace(q.Get(name)); v != "" {
			if f.Fields == nil {
				f.Fields = make(map[string]string)
			}
			f.Fields[name] = v
		}
	}

	recs, err := h.deps.Records.List(r.Context(), f)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list records")
		writeError(w, http.StatusInternalServerError, "failed to list records")
		return
	}
	if recs == nil {
		recs = []store.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": recs, "count": len(recs)})
}

func (h *handlers) updateRecordStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	rec, err := h.deps.Records.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, rec)
	case errors.Is(err, store.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		log.Error().Err(err).Msg("Failed to update record status")
		writeError(w, http.StatusInternalServerError, "failed to update record")
	}
}

func (h *handlers) dialogError(w http.ResponseWriter, r *http.Request, err error) {
	log.Error().Err(err).Str("requestId", middleware.GetReqID(r.Context())).Msg("Turn failed")
	switch {
	case errors.Is(err, dialog.ErrSynthesis):
		writeError(w, http.StatusBadGateway, "failed to synthesize prompt")
	case errors.Is(err, dialog.ErrPersistence):
		writeError(w, http.StatusServiceUnavailable, "failed to save record, please confirm again")
	default:
		writeError(w, http.StatusInternalServerError, "turn failed")
	}
}

// sessionIDFrom reads session_id from a JSON body or a form.
func sessionIDFrom(r *http.Request) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req turnRequest
		if err := decodeOptional(r, &req); err != nil {
			return "", err
		}
		return strings.TrimSpace(req.SessionID), nil
	}
	if err := r.ParseForm(); err != nil {
		return "", errors.New("invalid form body")
	}
	return strings.TrimSpace(r.FormValue("session_id")), nil
}

// decodeOptional decodes a JSON body, accepting an empty one.
func decodeOptional(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return errors.New("invalid JSON body")
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
