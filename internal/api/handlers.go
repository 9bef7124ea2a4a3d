// internal/api/handlers.go
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"strconv"

	"aquahub/internal/alerting"
	"aquahub/internal/auth"
	"aquahub/internal/classifier"
	"aquahub/internal/data"
	"aquahub/internal/history"
	"aquahub/internal/notify"
	"aquahub/internal/pairing"
	"aquahub/internal/registry"
	"aquahub/internal/websocket"

	"github.com/go-chi/chi/v5"
	gwebsocket "github.com/gorilla/websocket"
)

const defaultSite = "SITE-01"

var upgrader = gwebsocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true }, // viewers and cameras connect cross-origin
}

type Handler struct {
	registry *registry.Registry
	hub      *websocket.Hub
	pairings *pairing.Manager
	history  *history.Store
	alerter  *alerting.Alerter
	auth     *auth.Manager
	caller   *notify.VoiceCaller
	sim      *classifier.Simulated

	summarySites []string
}

func NewHandler(
	reg *registry.Registry,
	hub *websocket.Hub,
	pairings *pairing.Manager,
	store *history.Store,
	alerter *alerting.Alerter,
	authMgr *auth.Manager,
	caller *notify.VoiceCaller,
	sim *classifier.Simulated,
	summarySites []string,
) *Handler {
	return &Handler{
		registry:     reg,
		hub:          hub,
		pairings:     pairings,
		history:      store,
		alerter:      alerter,
		auth:         authMgr,
		caller:       caller,
		sim:          sim,
		summarySites: summarySites,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("API: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// HandleWebSocket upgrades a socket and attaches it to the hub. The role is
// fixed at upgrade time and immutable afterwards. Producers must present an
// API key when keys are configured.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	role := registry.RoleViewer
	switch r.URL.Query().Get("role") {
	case "", "viewer":
	case "producer":
		role = registry.RoleProducer
	default:
		writeError(w, http.StatusBadRequest, "role must be viewer or producer")
		return
	}

	if role == registry.RoleProducer {
		apiKey := r.URL.Query().Get("api_key")
		if apiKey == "" {
			apiKey = r.Header.Get("X-API-Key")
		}
		if !h.auth.ValidateAPIKey(apiKey) {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}
	}

	siteID := r.URL.Query().Get("site")
	if siteID == "" {
		siteID = defaultSite
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := h.hub.Attach(conn, role, siteID)

	// Viewers get a snapshot of recent readings right away.
	if role == registry.RoleViewer {
		if recent := h.history.Recent(siteID, 50); len(recent) > 0 {
			client.Enqueue(data.MarshalHistory(recent))
		}
	}
}

// HandleCreateSession opens a pairing session for a connected viewer.
// POST /pair/create-session {"viewer_connection_id": "..."}
func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ViewerConnectionID string `json:"viewer_connection_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conn, ok := h.registry.Lookup(req.ViewerConnectionID)
	if !ok {
		writeError(w, http.StatusNotFound, "viewer connection not found")
		return
	}
	if conn.Role != registry.RoleViewer {
		writeError(w, http.StatusUnprocessableEntity, "connection is not a viewer")
		return
	}

	sess, err := h.pairings.Create(conn.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"session_id": sess.ID,
		"expiry":     sess.ExpiresAt,
	})
}

// HandleLogin issues a dashboard JWT.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	role, err := h.auth.AuthenticateUser(req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	token, err := h.auth.GenerateJWT(req.Username, role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token, "role": role})
}

func (h *Handler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	siteID := r.URL.Query().Get("site_id")
	if siteID == "" {
		siteID = defaultSite
	}

	if p, ok := h.history.Latest(siteID); ok {
		writeJSON(w, http.StatusOK, p)
		return
	}
	// Fresh start: synthesize a reading instead of erroring the dashboard.
	if h.sim != nil {
		writeJSON(w, http.StatusOK, h.sim.Reading(siteID))
		return
	}
	writeError(w, http.StatusNotFound, "no predictions for site")
}

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	siteID := r.URL.Query().Get("site_id")
	if siteID == "" {
		siteID = defaultSite
	}
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		if n > 200 {
			n = 200
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, h.history.Recent(siteID, limit))
}

// HandleSitesSummary returns the latest reading per known site.
func (h *Handler) HandleSitesSummary(w http.ResponseWriter, r *http.Request) {
	seen := map[string]bool{}
	var sites []string
	for _, s := range append(h.history.Sites(), h.summarySites...) {
		if !seen[s] {
			seen[s] = true
			sites = append(sites, s)
		}
	}
	sort.Strings(sites)

	summary := make([]data.Prediction, 0, len(sites))
	for _, site := range sites {
		if p, ok := h.history.Latest(site); ok {
			summary = append(summary, p)
		} else if h.sim != nil {
			summary = append(summary, h.sim.Reading(site))
		}
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) HandleAlerts(w http.ResponseWriter, r *http.Request) {
	siteID := r.URL.Query().Get("site_id")
	alerts := h.alerter.Recent(siteID, 50)
	if alerts == nil {
		alerts = []data.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (h *Handler) HandleAckAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	alert, ok := h.alerter.Acknowledge(id)
	if !ok {
		writeError(w, http.StatusNotFound, "alert not found")
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

func (h *Handler) HandleCallLog(w http.ResponseWriter, r *http.Request) {
	if h.caller == nil {
		writeJSON(w, http.StatusOK, []notify.CallRecord{})
		return
	}
	writeJSON(w, http.StatusOK, h.caller.CallLog())
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"service":     "aquahub",
		"connections": h.registry.Count(),
	})
}
