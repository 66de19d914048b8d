package cli

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/quickclaw/quickclaw/internal/diagnostics"
	"github.com/quickclaw/quickclaw/internal/lifecycle"
	"github.com/quickclaw/quickclaw/internal/onboarding"
	"github.com/quickclaw/quickclaw/internal/probe"
	"github.com/quickclaw/quickclaw/internal/timeline"
	webassets "github.com/quickclaw/quickclaw/web"
)

const maxBodyBytes = 1 << 20

// api serves the dashboard's JSON endpoints.
type api struct {
	app *app
}

func (s *api) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/ping", s.ping)
	mux.HandleFunc("GET /api/gateway/status", s.gatewayStatus)
	mux.HandleFunc("POST /api/gateway/start", s.gatewayStart)
	mux.HandleFunc("POST /api/gateway/stop", s.gatewayStop)
	mux.HandleFunc("POST /api/gateway/restart", s.gatewayRestart)
	mux.HandleFunc("POST /api/chat/gateway-restart", s.gatewayRestart)
	mux.HandleFunc("POST /api/chat/save-key", s.saveKey)
	mux.HandleFunc("POST /api/chat/telegram-activate", s.telegramActivate)
	mux.HandleFunc("POST /api/chat/telegram-lock", s.telegramLock)
	mux.HandleFunc("POST /api/chat/telegram-pair", s.telegramPair)
	mux.HandleFunc("GET /api/chat/telegram-pairing-status", s.pairingStatus)
	mux.HandleFunc("POST /api/chat/enable-voice-replies", s.enableVoice)
	mux.HandleFunc("POST /api/chat/telegram-diagnose", s.telegramDiagnose)
	mux.HandleFunc("GET /api/chat/telegram-diagnostics", s.telegramDiagnostics)
	mux.HandleFunc("GET /api/history", s.listRuns)
	mux.HandleFunc("GET /api/history/{runID}", s.getRun)
	mux.Handle("GET /", http.FileServerFS(webassets.Files))
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case isInvalid(err):
		status = http.StatusBadRequest
	case errors.Is(err, lifecycle.ErrBusy):
		status = http.StatusConflict
	case errors.Is(err, timeline.ErrRunNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		slog.Error("api request failed", "error", err)
	}
	writeJSON(w, status, map[string]any{"ok": false, "error": err.Error()})
}

// decode reads an optional JSON body into v. An empty body is not an error.
func decode(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return invalidBody(err)
}

// idString accepts telegram ids sent as JSON numbers or strings.
type idString string

func (s *idString) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = idString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = idString(n.String())
	return nil
}

func invalidBody(err error) error {
	return errors.Join(onboarding.ErrInvalidInput, err)
}

// profile resolves ?profile= or the active profile.
func (s *api) profile(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := s.app.profileID(r.URL.Query().Get("profile"))
	if err != nil {
		writeError(w, err)
		return "", false
	}
	return id, true
}

func (s *api) ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "version": version})
}

func (s *api) gatewayStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := s.profile(w, r)
	if !ok {
		return
	}
	st := s.app.lifecycle.Status(r.Context(), id)
	writeJSON(w, http.StatusOK, struct {
		OK        bool   `json:"ok"`
		ProfileID string `json:"profileId"`
		probe.State
	}{true, id, st})
}

func (s *api) report(w http.ResponseWriter, rep *lifecycle.Report, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *api) gatewayStart(w http.ResponseWriter, r *http.Request) {
	if id, ok := s.profile(w, r); ok {
		rep, err := s.app.lifecycle.Start(r.Context(), id)
		s.report(w, rep, err)
	}
}

func (s *api) gatewayStop(w http.ResponseWriter, r *http.Request) {
	if id, ok := s.profile(w, r); ok {
		rep, err := s.app.lifecycle.Stop(r.Context(), id)
		s.report(w, rep, err)
	}
}

func (s *api) gatewayRestart(w http.ResponseWriter, r *http.Request) {
	if id, ok := s.profile(w, r); ok {
		rep, err := s.app.lifecycle.Restart(r.Context(), lifecycle.Request{ProfileID: id})
		s.report(w, rep, err)
	}
}

func (s *api) saveKey(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Provider string `json:"provider"`
		Key      string `json:"key"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	id, ok := s.profile(w, r)
	if !ok {
		return
	}
	res, err := s.app.onboarding.SaveKey(r.Context(), id, body.Provider, body.Key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
		*onboarding.SaveKeyResult
	}{true, res})
}

func (s *api) telegramActivate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FreshInstall bool                `json:"freshInstall"`
		UserID       idString            `json:"userId"`
		Features     *lifecycle.Features `json:"features"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	id, ok := s.profile(w, r)
	if !ok {
		return
	}
	req, err := s.app.activationRequest(id, strings.TrimSpace(string(body.UserID)), body.FreshInstall)
	if err != nil {
		writeError(w, err)
		return
	}
	if body.Features != nil {
		req.Features = *body.Features
	}
	rep, err := s.app.lifecycle.Activate(r.Context(), req)
	s.report(w, rep, err)
}

func (s *api) telegramLock(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID idString `json:"userId"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	id, ok := s.profile(w, r)
	if !ok {
		return
	}
	res, err := s.app.onboarding.Lock(r.Context(), id, string(body.UserID))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
		*onboarding.LockResult
	}{true, res})
}

func (s *api) telegramPair(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"code"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	id, ok := s.profile(w, r)
	if !ok {
		return
	}
	res, err := s.app.onboarding.Pair(r.Context(), id, body.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *api) pairingStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := s.profile(w, r)
	if !ok {
		return
	}
	st, err := s.app.onboarding.PairingStatus(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
		*onboarding.PairingStatus
	}{true, st})
}

func (s *api) enableVoice(w http.ResponseWriter, r *http.Request) {
	id, ok := s.profile(w, r)
	if !ok {
		return
	}
	res, err := s.app.onboarding.EnableVoiceReplies(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
		*onboarding.VoiceResult
	}{true, res})
}

func (s *api) telegramDiagnose(w http.ResponseWriter, r *http.Request) {
	if id, ok := s.profile(w, r); ok {
		writeJSON(w, http.StatusOK, struct {
			OK bool `json:"ok"`
			*diagnostics.TelegramReport
		}{true, s.app.diagnostics.Diagnose(r.Context(), id)})
	}
}

func (s *api) telegramDiagnostics(w http.ResponseWriter, r *http.Request) {
	if id, ok := s.profile(w, r); ok {
		writeJSON(w, http.StatusOK, struct {
			OK bool `json:"ok"`
			*diagnostics.DiagnosticsReport
		}{true, s.app.diagnostics.Diagnostics(r.Context(), id)})
	}
}

func (s *api) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.app.history == nil {
		writeError(w, errors.New("run history is unavailable"))
		return
	}
	id, ok := s.profile(w, r)
	if !ok {
		return
	}
	runs, err := s.app.history.ListRuns(id, 0)
	if err != nil {
		writeError(w, err)
		return
	}
	if runs == nil {
		runs = []timeline.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "runs": runs})
}

func (s *api) getRun(w http.ResponseWriter, r *http.Request) {
	if s.app.history == nil {
		writeError(w, errors.New("run history is unavailable"))
		return
	}
	run, err := s.app.history.GetRun(r.PathValue("runID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "run": run})
}
