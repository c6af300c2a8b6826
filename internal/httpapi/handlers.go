package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"shortify/internal/state"
	"shortify/internal/store"
	"shortify/internal/types"
	"shortify/internal/usecase"
)

// maxUploadBytes caps a single video upload.
const maxUploadBytes = 2 << 30

var allowedVideoExt = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true, ".mkv": true, ".webm": true, ".mpeg": true,
}

type Handler struct {
	svc *usecase.Service
	log *logrus.Logger
}

func NewHandler(svc *usecase.Service, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "no video file provided")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedVideoExt[ext] {
		writeError(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_FORMAT",
			fmt.Sprintf("unsupported video format %q", ext))
		return
	}

	v, err := h.svc.Upload(file, header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Status(chi.URLParam(r, "video_id"))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	resp := map[string]interface{}{
		"video_id": rec.VideoID,
		"stage":    rec.Stage.String(),
	}
	if rec.Audio != nil {
		resp["audio_duration_seconds"] = rec.Audio.Duration.Seconds()
	}
	if rec.Analysis != nil {
		resp["total_shorts_found"] = rec.Analysis.TotalShortsFound
	}
	if rec.Generated != nil {
		resp["generated_shorts"] = len(rec.Generated)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Transcribe(w http.ResponseWriter, r *http.Request) {
	tr, err := h.svc.Transcribe(r.Context(), chi.URLParam(r, "video_id"))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transcriptResponse(tr))
}

func (h *Handler) Analysis(w http.ResponseWriter, r *http.Request) {
	analysis, err := h.svc.Analysis(chi.URLParam(r, "video_id"))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (h *Handler) Identify(w http.ResponseWriter, r *http.Request) {
	cons, err := constraintsFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	analysis, err := h.svc.Identify(r.Context(), chi.URLParam(r, "video_id"), cons)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Generate(r.Context(), chi.URLParam(r, "video_id"))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	sh, err := h.svc.Short(chi.URLParam(r, "short_id"))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sh.ID+".mp4"))
	w.Header().Set("Content-Type", "video/mp4")
	http.ServeFile(w, r, sh.Path)
}

func constraintsFromQuery(r *http.Request) (types.Constraints, error) {
	var cons types.Constraints
	q := r.URL.Query()

	intParam := func(name string) (int, error) {
		s := q.Get(name)
		if s == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("%s must be a positive integer", name)
		}
		return n, nil
	}

	maxShorts, err := intParam("max_shorts")
	if err != nil {
		return cons, err
	}
	minSec, err := intParam("min_duration")
	if err != nil {
		return cons, err
	}
	maxSec, err := intParam("max_duration")
	if err != nil {
		return cons, err
	}
	if minSec > 0 && maxSec > 0 && minSec > maxSec {
		return cons, fmt.Errorf("min_duration must not exceed max_duration")
	}

	cons.MaxShorts = maxShorts
	cons.MinDuration = time.Duration(minSec) * time.Second
	cons.MaxDuration = time.Duration(maxSec) * time.Second
	return cons, nil
}

// transcriptResponse renders durations in MM:SS-style strings alongside the
// raw text, matching the format the identification prompt consumes.
func transcriptResponse(tr *types.Transcript) map[string]interface{} {
	segs := make([]map[string]interface{}, len(tr.Segments))
	for i, s := range tr.Segments {
		segs[i] = map[string]interface{}{
			"speaker":       s.Speaker,
			"start_seconds": s.Start.Seconds(),
			"end_seconds":   s.End.Seconds(),
			"text":          s.Text,
		}
	}
	return map[string]interface{}{
		"summary":                tr.Summary,
		"total_duration_seconds": tr.TotalDuration.Seconds(),
		"segments":               segs,
	}
}

func (h *Handler) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ite      *state.InvalidTransitionError
		trErr    *types.TranscriptionError
		mediaErr *types.MediaError
	)
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, state.ErrUnknownVideo):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, types.ErrNoViableSegments):
		writeError(w, http.StatusUnprocessableEntity, "NO_VIABLE_SEGMENTS",
			"no segments satisfied the shorts constraints")
	case errors.As(err, &ite):
		writeError(w, http.StatusConflict, "INVALID_STAGE", ite.Error())
	case errors.As(err, &trErr):
		h.log.WithError(err).Error("transcription failed")
		writeError(w, http.StatusBadGateway, "TRANSCRIPTION_FAILED", trErr.Reason)
	case errors.As(err, &mediaErr):
		h.log.WithError(err).Error("media tool failed")
		writeError(w, http.StatusInternalServerError, "MEDIA_FAILED", "media processing failed")
	default:
		h.log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
	}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]errorBody{"error": {Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
