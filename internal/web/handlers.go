package web

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/VisualStoriesHCA/HCABackend/internal/config"
	"github.com/VisualStoriesHCA/HCABackend/internal/engine"
	"github.com/VisualStoriesHCA/HCABackend/internal/generators"
	"github.com/VisualStoriesHCA/HCABackend/internal/models"
)

// WebSocket upgrader configuration
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// HealthReporter exposes the generative service's last-call outcome.
type HealthReporter interface {
	Healthy() bool
}

type Handlers struct {
	config *config.Config
	hub    *StoryHub
	media  HealthReporter // nil when no generative client is wired
}

func NewHandlers(cfg *config.Config, hub *StoryHub, media HealthReporter) *Handlers {
	return &Handlers{
		config: cfg,
		hub:    hub,
		media:  media,
	}
}

func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	generative := "unknown"
	if h.media != nil {
		generative = "ok"
		if !h.media.Healthy() {
			generative = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "ok",
		"service":    "visual-stories",
		"generative": generative,
	})
}

// CORS middleware
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Max-Age", "300")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

func NewRouter(cfg *config.Config, items *ItemHandlers, hub *StoryHub, media HealthReporter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(requestLogger)
	r.Use(corsMiddleware)

	handlers := NewHandlers(cfg, hub, media)

	// Media files are written by the stores under dataDir using the same
	// {userId}/{storyId}/{assetId} layout the URLs use, so a plain file
	// server is enough here.
	mediaServer := http.StripPrefix(cfg.Storage.MediaURLPrefix, http.FileServer(http.Dir(cfg.Storage.DataDir)))

	r.Get("/health", handlers.HealthCheck)
	r.Mount(cfg.Storage.MediaURLPrefix, mediaServer)
	r.Get("/ws", handlers.StoryEvents)

	r.Route("/api/items", func(r chi.Router) {
		r.Post("/createNewUser", items.CreateNewUser)
		r.Delete("/deleteUser", items.DeleteUser)
		r.Get("/getUserInformation", items.GetUserInformation)
		r.Get("/getUserInformationByUserName", items.GetUserInformationByUserName)

		r.Post("/createNewStory", items.CreateNewStory)
		r.Post("/setStoryName", items.SetStoryName)
		r.Delete("/deleteStory", items.DeleteStory)
		r.Get("/getUserStories", items.GetUserStories)
		r.Get("/getStoryById", items.GetStoryByID)

		r.Post("/updateTextByImages", items.UpdateTextByImages)
		r.Post("/updateImagesByText", items.UpdateImagesByText)
		r.Post("/uploadImage", items.UploadImage)
		r.Post("/generateAudio", items.GenerateAudio)

		r.Post("/setStoryOptions", items.SetStoryOptions)
		r.Get("/listAvailableOptions", items.ListAvailableOptions)
		r.Get("/getUserAchievements", items.GetUserAchievements)
	})

	return r
}

// StoryEvents upgrades the connection and registers it with the hub. Clients
// receive every story state transition; there is no per-user filtering yet.
func (h *Handlers) StoryEvents(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "event hub not initialized")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := &Client{
		ID:   generateClientID(),
		Conn: conn,
		Send: make(chan []byte, 256),
		Hub:  h.hub,
	}

	h.hub.register <- client

	welcome, _ := json.Marshal(map[string]interface{}{
		"type": "connected",
		"id":   client.ID,
		"time": time.Now().Unix(),
	})
	select {
	case client.Send <- welcome:
	default:
	}

	go client.readPump()
}

// generateClientID generates a unique client ID
func generateClientID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return hex.EncodeToString([]byte(time.Now().String()))[:16]
	}
	return hex.EncodeToString(b)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

// writeEngineError maps domain sentinels onto HTTP statuses. Anything
// unrecognized is a 500 with a generic message; the cause goes to the log so
// internals never leak to clients.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrAlreadyExists),
		errors.Is(err, engine.ErrUnknownOperationKind),
		errors.Is(err, engine.ErrMalformedOperation),
		errors.Is(err, engine.ErrMalformedImagePayload),
		errors.Is(err, engine.ErrNoImage),
		errors.Is(err, generators.ErrUnsupportedImageFormat):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
