package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/mentionwatch/dashboard/internal/alerts"
	"github.com/mentionwatch/dashboard/internal/api"
	"github.com/mentionwatch/dashboard/internal/config"
	"github.com/mentionwatch/dashboard/internal/dashboard"
	"github.com/mentionwatch/dashboard/internal/filterstore"
	"github.com/mentionwatch/dashboard/internal/models"
	"github.com/mentionwatch/dashboard/internal/notifications"
	"github.com/mentionwatch/dashboard/internal/scoring"
	"github.com/mentionwatch/dashboard/internal/storage"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up logging
	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting Mentionwatch Dashboard")

	// Backend API client
	backend := api.NewClient(cfg.APIBaseURL, cfg.SessionToken)

	// Saved filter persistence
	filters, err := filterstore.Open(cfg.FilterDBPath, cfg.FilterKeyPrefix)
	if err != nil {
		logrus.Fatalf("Failed to open filter store: %v", err)
	}
	defer filters.Close()

	// Critical alert forwarding (Teams/email); a no-op when unconfigured
	notificationService := notifications.NewService(cfg)

	// Live alert channel
	var channel *alerts.Channel
	if cfg.PushURL != "" {
		channel = alerts.NewChannel(cfg.PushURL, backend, notificationService,
			cfg.AlertHistoryLimit, cfg.ReconnectAttempts,
			time.Duration(cfg.ReconnectDelaySec)*time.Second)
		channel.Start()
		defer channel.Close()

		// Seed the history from the backend so the feed is not empty
		// until the first push arrives.
		if history, err := backend.ListAlerts(context.Background()); err != nil {
			logrus.Errorf("Failed to seed alert history: %v", err)
		} else {
			channel.Seed(history)
		}
	}

	// Optional snapshot archive
	var archive storage.ArchiveInterface
	if cfg.StorageAccount != "" {
		azureArchive, err := storage.NewAzureArchive(cfg.StorageAccount, cfg.StorageContainer)
		if err != nil {
			logrus.Fatalf("Failed to initialize snapshot archive: %v", err)
		}
		archive = azureArchive
	}

	// Dashboard orchestrator
	dashboardService := dashboard.NewService(cfg, backend, channel, filters, archive)
	if err := dashboardService.Start(); err != nil {
		logrus.Fatalf("Failed to start dashboard service: %v", err)
	}
	defer dashboardService.Stop()

	// Set up HTTP server for the dashboard state and actions
	router := mux.NewRouter()

	router.HandleFunc("/health", healthCheckHandler).Methods("GET")
	router.HandleFunc("/state", stateHandler(dashboardService)).Methods("GET")
	router.HandleFunc("/refresh", refreshHandler(dashboardService)).Methods("POST")
	router.HandleFunc("/mentions/more", loadMoreHandler(dashboardService)).Methods("POST")
	router.HandleFunc("/influencers", influencersHandler(dashboardService)).Methods("GET")
	router.HandleFunc("/projects/select", selectProjectHandler(dashboardService)).Methods("POST")
	router.HandleFunc("/projects/{id}/run", runProjectHandler(dashboardService)).Methods("POST")
	router.HandleFunc("/projects/{id}/toggle", togglePauseHandler(dashboardService)).Methods("POST")
	router.HandleFunc("/projects/{id}", deleteProjectHandler(dashboardService)).Methods("DELETE")
	router.HandleFunc("/projects/{id}/snapshots", snapshotsHandler(dashboardService)).Methods("GET")
	router.HandleFunc("/projects/{id}/filters", saveFiltersHandler(dashboardService)).Methods("PUT")
	router.HandleFunc("/projects/{id}/filters", clearFiltersHandler(dashboardService)).Methods("DELETE")
	router.HandleFunc("/alerts", alertsHandler(dashboardService)).Methods("GET")
	router.HandleFunc("/alerts/{id}/read", markAlertReadHandler(dashboardService)).Methods("POST")
	router.HandleFunc("/error", dismissErrorHandler(dashboardService)).Methods("DELETE")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server in a goroutine
	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`))
}

func stateHandler(service *dashboard.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, service.Snapshot())
	}
}

func refreshHandler(service *dashboard.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := service.Refresh(r.Context()); err != nil {
			writeError(w, http.StatusBadGateway, err)
			return
		}
		writeJSON(w, http.StatusOK, service.Snapshot())
	}
}

func loadMoreHandler(service *dashboard.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := service.LoadMore(r.Context()); err != nil {
			writeError(w, http.StatusBadGateway, err)
			return
		}
		writeJSON(w, http.StatusOK, service.Snapshot())
	}
}

func influencersHandler(service *dashboard.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, service.Influencers(parseInfluencerQuery(r)))
	}
}

// parseInfluencerQuery maps the influencer listing's query params onto
// the derivation query: repeated "source", "min_score", "sort" (score,
// mentions, reach, engagement, sentiment) and "order=asc".
func parseInfluencerQuery(r *http.Request) dashboard.InfluencerQuery {
	params := r.URL.Query()
	query := dashboard.InfluencerQuery{
		Sources:   params["source"],
		Ascending: params.Get("order") == "asc",
	}
	if minScore, err := strconv.Atoi(params.Get("min_score")); err == nil {
		query.MinScore = minScore
	}
	if field := params.Get("sort"); field != "" {
		query.SortField = scoring.SortField(field)
	}
	return query
}

func selectProjectHandler(service *dashboard.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var project models.Project
		if err := json.NewDecoder(r.Body).Decode(&project); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if project.ID == "" {
			writeError(w, http.StatusBadRequest, fmt.Errorf("project id is required"))
			return
		}
		if err := service.SelectProject(r.Context(), project); err != nil {
			writeError(w, http.StatusBadGateway, err)
			return
		}
		writeJSON(w, http.StatusOK, service.Snapshot())
	}
}

func runProjectHandler(service *dashboard.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := service.RunNow(r.Context(), mux.Vars(r)["id"]); err != nil {
			writeError(w, http.StatusBadGateway, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func togglePauseHandler(service *dashboard.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := service.TogglePause(r.Context(), mux.Vars(r)["id"]); err != nil {
			writeError(w, http.StatusBadGateway, err)
			return
		}
		writeJSON(w, http.StatusOK, service.Snapshot())
	}
}

func deleteProjectHandler(service *dashboard.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := service.DeleteProject(r.Context(), mux.Vars(r)["id"]); err != nil {
			writeError(w, http.StatusBadGateway, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func snapshotsHandler(service *dashboard.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := service.Snapshots(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			writeError(w, http.StatusBadGateway, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string][]string{"snapshots": names})
	}
}

func saveFiltersHandler(service *dashboard.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var filters models.SavedFilters
		if err := json.NewDecoder(r.Body).Decode(&filters); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		service.SetFilters(filters)
		if err := service.SaveFilters(mux.Vars(r)["id"]); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, service.Snapshot())
	}
}

func clearFiltersHandler(service *dashboard.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := service.ClearFilters(mux.Vars(r)["id"]); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, service.Snapshot())
	}
}

func alertsHandler(service *dashboard.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot := service.Snapshot()
		writeJSON(w, http.StatusOK, snapshot.Alerts)
	}
}

func markAlertReadHandler(service *dashboard.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := service.MarkAlertRead(r.Context(), mux.Vars(r)["id"]); err != nil {
			writeError(w, http.StatusBadGateway, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func dismissErrorHandler(service *dashboard.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		service.DismissError()
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.Errorf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
