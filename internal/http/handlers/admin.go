package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-autoresponder/internal/conversation"
	"github.com/wolfman30/clinic-autoresponder/internal/locking"
	"github.com/wolfman30/clinic-autoresponder/internal/patients"
	"github.com/wolfman30/clinic-autoresponder/internal/scripts"
	"github.com/wolfman30/clinic-autoresponder/internal/settings"
	"github.com/wolfman30/clinic-autoresponder/internal/stats"
	"github.com/wolfman30/clinic-autoresponder/internal/turns"
	"github.com/wolfman30/clinic-autoresponder/pkg/logging"
)

type scriptService interface {
	List(ctx context.Context) ([]*scripts.Script, error)
	Get(ctx context.Context, id string) (*scripts.Script, error)
	Create(ctx context.Context, in scripts.Input) (*scripts.Script, error)
	Update(ctx context.Context, id string, in scripts.Input) (*scripts.Script, error)
	Delete(ctx context.Context, id string) error
}

type statsReader interface {
	Dashboard(ctx context.Context) (stats.Dashboard, error)
	ResponseDistribution(ctx context.Context) ([]stats.Slice, error)
	Monthly(ctx context.Context) ([]stats.MonthlyCount, error)
	Patients(ctx context.Context) ([]stats.PatientSummary, error)
}

type patientReader interface {
	GetByID(ctx context.Context, id string) (*patients.Patient, error)
}

type AdminConfig struct {
	Settings   settings.Store
	Scripts    scriptService
	Patients   patientReader
	Turns      turns.Store
	Stats      statsReader
	Dispatcher conversation.Dispatcher
	// Locker serializes manual replies with engine turns for the same phone.
	Locker     locking.Locker
	Logger     *logging.Logger
}

// AdminHandler serves the dashboard JSON API.
type AdminHandler struct {
	settings   settings.Store
	scripts    scriptService
	patients   patientReader
	turns      turns.Store
	stats      statsReader
	dispatcher conversation.Dispatcher
	locker     locking.Locker
	logger     *logging.Logger
}

func NewAdminHandler(cfg AdminConfig) *AdminHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &AdminHandler{
		settings:   cfg.Settings,
		scripts:    cfg.Scripts,
		patients:   cfg.Patients,
		turns:      cfg.Turns,
		stats:      cfg.Stats,
		dispatcher: cfg.Dispatcher,
		locker:     cfg.Locker,
		logger:     cfg.Logger.WithComponent("admin"),
	}
}

// Routes mounts the admin endpoints on r.
func (h *AdminHandler) Routes(r chi.Router) {
	r.Get("/settings", h.GetSettings)
	r.Put("/settings", h.UpdateSettings)

	r.Get("/scripts", h.ListScripts)
	r.Post("/scripts", h.CreateScript)
	r.Get("/scripts/{id}", h.GetScript)
	r.Put("/scripts/{id}", h.UpdateScript)
	r.Delete("/scripts/{id}", h.DeleteScript)

	r.Get("/patients", h.ListPatients)
	r.Get("/patients/{id}", h.GetPatient)
	r.Post("/patients/{id}/responses", h.SendManualResponse)

	r.Get("/stats/dashboard", h.Dashboard)
	r.Get("/stats/responses", h.ResponseDistribution)
	r.Get("/stats/monthly", h.Monthly)
}

func (h *AdminHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.settings.GetOrInit(r.Context())
	if err != nil {
		h.serverError(w, "load settings failed", err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *AdminHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settings.Settings
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	out, err := h.settings.Update(r.Context(), req)
	if err != nil {
		h.serverError(w, "update settings failed", err)
		return
	}
	h.logger.Info("settings updated", "match_threshold", out.MatchThreshold, "auto_reply_enabled", out.AutoReplyEnabled)
	writeJSON(w, http.StatusOK, out)
}

func (h *AdminHandler) ListScripts(w http.ResponseWriter, r *http.Request) {
	list, err := h.scripts.List(r.Context())
	if err != nil {
		h.serverError(w, "list scripts failed", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *AdminHandler) GetScript(w http.ResponseWriter, r *http.Request) {
	s, err := h.scripts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.scriptError(w, "get script failed", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *AdminHandler) CreateScript(w http.ResponseWriter, r *http.Request) {
	var in scripts.Input
	if err := decodeJSON(r, &in); err != nil {
		jsonError(w, "invalid json", http.StatusBadRequest)
		return
	}
	s, err := h.scripts.Create(r.Context(), in)
	if err != nil {
		h.scriptError(w, "create script failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

func (h *AdminHandler) UpdateScript(w http.ResponseWriter, r *http.Request) {
	var in scripts.Input
	if err := decodeJSON(r, &in); err != nil {
		jsonError(w, "invalid json", http.StatusBadRequest)
		return
	}
	s, err := h.scripts.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.scriptError(w, "update script failed", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *AdminHandler) DeleteScript(w http.ResponseWriter, r *http.Request) {
	if err := h.scripts.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.scriptError(w, "delete script failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type patientDetail struct {
	*patients.Patient
	Conversations []turns.Turn `json:"conversations"`
}

func (h *AdminHandler) ListPatients(w http.ResponseWriter, r *http.Request) {
	if !h.statsAvailable(w) {
		return
	}
	list, err := h.stats.Patients(r.Context())
	if err != nil {
		h.serverError(w, "list patients failed", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *AdminHandler) GetPatient(w http.ResponseWriter, r *http.Request) {
	p, ok := h.loadPatient(w, r)
	if !ok {
		return
	}
	history, err := h.turns.ListByPatient(r.Context(), p.ID)
	if err != nil {
		h.serverError(w, "list turns failed", err)
		return
	}
	writeJSON(w, http.StatusOK, patientDetail{Patient: p, Conversations: history})
}

type manualResponseRequest struct {
	Content string `json:"content"`
}

// SendManualResponse appends a staff reply to the patient's latest turn and
// delivers it. The reply is stored before sending so a failed send stays
// visible as unsent.
func (h *AdminHandler) SendManualResponse(w http.ResponseWriter, r *http.Request) {
	var req manualResponseRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, "invalid json", http.StatusBadRequest)
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		jsonError(w, "content required", http.StatusBadRequest)
		return
	}
	if h.dispatcher == nil {
		jsonError(w, "whatsapp not configured", http.StatusServiceUnavailable)
		return
	}
	p, ok := h.loadPatient(w, r)
	if !ok {
		return
	}
	if h.locker != nil {
		unlock, err := h.locker.Acquire(r.Context(), p.Phone)
		if err != nil {
			h.logger.Warn("manual reply lock not acquired", "error", err, "patient_id", p.ID)
			jsonError(w, "patient conversation busy, retry", http.StatusServiceUnavailable)
			return
		}
		defer unlock()
	}
	latest, err := h.turns.Latest(r.Context(), p.ID)
	if errors.Is(err, turns.ErrTurnNotFound) {
		jsonError(w, "patient has no conversation", http.StatusConflict)
		return
	}
	if err != nil {
		h.serverError(w, "load latest turn failed", err)
		return
	}
	resp, err := h.turns.AppendResponse(r.Context(), latest.ID, content, turns.SourceManual)
	if err != nil {
		h.serverError(w, "append response failed", err)
		return
	}
	providerID, err := h.dispatcher.Send(r.Context(), p.Phone, conversation.Reply{Text: content})
	if err != nil {
		h.logger.Error("manual reply dispatch failed", "error", err, "patient_id", p.ID, "response_id", resp.ID)
		jsonError(w, "failed to send reply", http.StatusBadGateway)
		return
	}
	sentAt := nowUTC()
	if err := h.turns.MarkSent(r.Context(), resp.ID, providerID, sentAt); err != nil {
		h.logger.Error("failed to mark manual reply sent", "error", err, "response_id", resp.ID)
	}
	resp.SentAt = &sentAt
	resp.ProviderMessageID = providerID
	h.logger.Info("manual reply sent", "patient_id", p.ID, "response_id", resp.ID)
	writeJSON(w, http.StatusCreated, resp)
}

func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	if !h.statsAvailable(w) {
		return
	}
	out, err := h.stats.Dashboard(r.Context())
	if err != nil {
		h.serverError(w, "dashboard stats failed", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AdminHandler) ResponseDistribution(w http.ResponseWriter, r *http.Request) {
	if !h.statsAvailable(w) {
		return
	}
	out, err := h.stats.ResponseDistribution(r.Context())
	if err != nil {
		h.serverError(w, "response distribution failed", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AdminHandler) Monthly(w http.ResponseWriter, r *http.Request) {
	if !h.statsAvailable(w) {
		return
	}
	out, err := h.stats.Monthly(r.Context())
	if err != nil {
		h.serverError(w, "monthly stats failed", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Stats need the SQL database; in-memory runs have none.
func (h *AdminHandler) statsAvailable(w http.ResponseWriter) bool {
	if h.stats == nil {
		jsonError(w, "stats require a database", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func (h *AdminHandler) loadPatient(w http.ResponseWriter, r *http.Request) (*patients.Patient, bool) {
	p, err := h.patients.GetByID(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, patients.ErrPatientNotFound) {
		jsonError(w, "patient not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		h.serverError(w, "load patient failed", err)
		return nil, false
	}
	return p, true
}

func (h *AdminHandler) scriptError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, scripts.ErrInvalidScript):
		jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, scripts.ErrScriptNotFound):
		jsonError(w, "script not found", http.StatusNotFound)
	default:
		h.serverError(w, msg, err)
	}
}

func (h *AdminHandler) serverError(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, "error", err)
	jsonError(w, "internal error", http.StatusInternalServerError)
}
