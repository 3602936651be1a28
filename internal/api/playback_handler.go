package api

import (
	"encoding/json"
	"errors"
	"image/png"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/framecull/framecull-agent/internal/media"
	"github.com/framecull/framecull-agent/internal/playback"
)

func openPlaybackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clipID := chi.URLParam(r, "clipID")
		c, err := cfg.ClipService.Get(r.Context(), clipID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if c == nil {
			WriteError(w, http.StatusNotFound, "clip not found", "NOT_FOUND")
			return
		}

		table, err := cfg.Catalog.TableFor(c.SelectedLUT)
		if err != nil {
			WriteError(w, http.StatusUnprocessableEntity, err.Error(), "LUT_PARSE_ERROR")
			return
		}

		sess, err := cfg.Playback.Open(r.Context(), c, c.SelectedLUT, table, playback.Events{})
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "PLAYBACK_ERROR")
			return
		}
		WriteJSON(w, http.StatusCreated, sessionState(clipID, sess))
	}
}

func playHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clipID := chi.URLParam(r, "clipID")
		sess, ok := cfg.Playback.Get(clipID)
		if !ok {
			WriteError(w, http.StatusNotFound, "no playback session", "NOT_FOUND")
			return
		}

		if err := sess.Play(r.Context()); err != nil {
			writePlaybackError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, sessionState(clipID, sess))
	}
}

func pauseHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clipID := chi.URLParam(r, "clipID")
		sess, ok := cfg.Playback.Get(clipID)
		if !ok {
			WriteError(w, http.StatusNotFound, "no playback session", "NOT_FOUND")
			return
		}

		sess.Pause()
		WriteJSON(w, http.StatusOK, sessionState(clipID, sess))
	}
}

func scrubHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ScrubRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		clipID := chi.URLParam(r, "clipID")
		sess, ok := cfg.Playback.Get(clipID)
		if !ok {
			WriteError(w, http.StatusNotFound, "no playback session", "NOT_FOUND")
			return
		}

		if _, err := sess.Scrub(r.Context(), req.PositionSec); err != nil {
			writePlaybackError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, sessionState(clipID, sess))
	}
}

func swapLUTHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SwapLUTRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		clipID := chi.URLParam(r, "clipID")
		sess, ok := cfg.Playback.Get(clipID)
		if !ok {
			WriteError(w, http.StatusNotFound, "no playback session", "NOT_FOUND")
			return
		}

		table, err := cfg.Catalog.TableFor(req.LUTID)
		if err != nil {
			WriteError(w, http.StatusUnprocessableEntity, err.Error(), "LUT_PARSE_ERROR")
			return
		}

		sess.SwapLUT(req.LUTID, table)
		WriteJSON(w, http.StatusOK, sessionState(clipID, sess))
	}
}

func playbackStateHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clipID := chi.URLParam(r, "clipID")
		sess, ok := cfg.Playback.Get(clipID)
		if !ok {
			WriteError(w, http.StatusNotFound, "no playback session", "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, sessionState(clipID, sess))
	}
}

func previewFrameHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clipID := chi.URLParam(r, "clipID")
		sess, ok := cfg.Playback.Get(clipID)
		if !ok {
			WriteError(w, http.StatusNotFound, "no playback session", "NOT_FOUND")
			return
		}

		sec, err := strconv.ParseFloat(r.URL.Query().Get("t"), 64)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "t query parameter is required", "BAD_REQUEST")
			return
		}

		frame, err := sess.Preview(r.Context(), sec)
		if err != nil {
			writePlaybackError(w, err)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		if err := png.Encode(w, frame); err != nil {
			cfg.Logger.Error("preview frame encode failed", "clip_id", clipID, "error", err)
		}
	}
}

func closePlaybackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Playback.Close(chi.URLParam(r, "clipID")); err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func sessionState(clipID string, sess *playback.Session) PlaybackStateResponse {
	trim := sess.Trim()
	start, end := trim.EffectiveRange(sess.Info().DurationSec)
	return PlaybackStateResponse{
		ClipID:      clipID,
		State:       sess.State().String(),
		PositionSec: sess.Position(),
		TrimStart:   start,
		TrimEnd:     end,
	}
}

func writePlaybackError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, playback.ErrSessionClosed):
		WriteError(w, http.StatusConflict, "playback session closed", "SESSION_CLOSED")
	case errors.Is(err, media.ErrSeek):
		WriteError(w, http.StatusUnprocessableEntity, err.Error(), "SEEK_FAILED")
	default:
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
	}
}
