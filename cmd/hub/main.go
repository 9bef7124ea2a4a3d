// cmd/hub/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aquahub/internal/alerting"
	"aquahub/internal/api"
	"aquahub/internal/auth"
	"aquahub/internal/classifier"
	"aquahub/internal/config"
	"aquahub/internal/data"
	"aquahub/internal/history"
	"aquahub/internal/incident"
	"aquahub/internal/ingest"
	"aquahub/internal/notify"
	"aquahub/internal/pairing"
	"aquahub/internal/registry"
	"aquahub/internal/simulator"
	"aquahub/internal/websocket"
)

func main() {
	configPath := flag.String("config", ".", "Path to the configuration file directory")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	// --- Shared state ---
	reg := registry.New()
	hub := websocket.NewHub(reg)
	store := history.NewStore(cfg.History.RingSize)
	alerter := alerting.NewAlerter(hub, cfg.Alerts.BufferSize)
	authMgr := auth.NewManager(cfg)
	if !authMgr.Enabled() {
		log.Printf("Auth disabled: no JWT secret configured, endpoints run open")
	}

	// --- External collaborators ---
	contacts := make([]notify.Contact, 0, len(cfg.Notifier.Contacts))
	for _, c := range cfg.Notifier.Contacts {
		contacts = append(contacts, notify.Contact{Name: c.Name, Phone: c.Phone})
	}
	caller := notify.NewVoiceCaller(
		cfg.Notifier.URL, cfg.Notifier.APIKey,
		cfg.Notifier.AssistantID, cfg.Notifier.PhoneNumberID,
		contacts,
	)

	sim := classifier.NewSimulated()
	var cls classifier.Classifier = sim
	if cfg.Classifier.URL != "" {
		cls = classifier.NewHTTPClassifier(cfg.Classifier.URL)
		log.Printf("Classifier: using inference service at %s", cfg.Classifier.URL)
	} else {
		log.Printf("Classifier: no CLASSIFIER_URL set, using simulated readings")
	}

	// --- Core pipeline ---
	incidents := incident.NewManager(incident.Config{
		CriticalThresholdNTU:   cfg.Incident.CriticalThresholdNTU,
		SafeFrameThreshold:     cfg.Incident.SafeFrameThreshold,
		Cooldown:               cfg.Cooldown(),
		WarningThresholdNTU:    cfg.Incident.WarningThresholdNTU,
		WarningDebounce:        cfg.WarningDebounce(),
		WarningConfidenceFloor: cfg.Incident.WarningConfidenceFloor,
	}, caller, alerter)

	pipeline := ingest.NewPipeline(cls, store, hub, incidents, cfg.MinFrameInterval(), cfg.ClassifierTimeout())
	pairings := pairing.NewManager(cfg.SessionTTL(), hub)

	// --- Inbound dispatch wiring ---
	hub.OnFrame = func(conn *registry.Connection, frame *data.CameraFramePayload) {
		siteID := frame.SiteID
		if siteID == "" {
			siteID = conn.SiteID
		}
		if err := pipeline.Ingest(conn.ID, siteID, frame.Image); err != nil {
			// Classifier faults are absorbed here; viewers only ever see
			// successfully classified frames.
			log.Printf("Ingest: frame from %s dropped: %v", conn.ID, err)
		}
	}
	hub.OnJoin = func(conn *registry.Connection, sessionID string) {
		sess, err := pairings.Join(sessionID, conn.ID, conn.SiteID)
		if err != nil {
			hub.SendTo(conn.ID, data.MarshalError(err.Error()))
			return
		}
		reg.BindSession(conn.ID, sess.ID)
	}
	hub.OnDisconnect = func(conn *registry.Connection) {
		pairings.CloseByConn(conn.ID)
		pipeline.Forget(conn.ID)
	}

	// --- Background workers ---
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go pairings.Run(ctx)
	if cfg.Simulator.Enabled {
		go simulator.New(cfg.Simulator.Sites, cfg.SimulatorInterval(), sim, pipeline).Run(ctx)
	}

	// --- HTTP server ---
	handler := api.NewHandler(reg, hub, pairings, store, alerter, authMgr, caller, sim, cfg.Simulator.Sites)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.SetupRouter(handler),
	}

	go func() {
		log.Printf("Starting hub on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server ListenAndServe error: %v", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	incidents.Shutdown()

	log.Println("Hub stopped.")
}
