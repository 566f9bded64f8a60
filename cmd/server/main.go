package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"dicehall/internal/config"
	"dicehall/internal/handlers"
	"dicehall/internal/lobby"
	"dicehall/internal/room"
	"dicehall/internal/store"
	"dicehall/internal/transport"
)

func main() {
	// Load server configuration
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}
	log.Printf("Loaded configuration: max seats per room = %d, turn timeout = %s",
		cfg.Game.MaxSeatsPerRoom, cfg.Game.TurnTimeout)

	auth := transport.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	hub := transport.NewHub()

	// The store's alarm handler routes fires through the room manager, which
	// rehydrates hibernated rooms on demand.
	var rooms *room.Manager
	s := store.NewMemoryStore(func(nsID string, at time.Time) {
		if rooms != nil {
			rooms.HandleAlarm(nsID, at)
		}
	})

	rooms = room.NewManager(s, hub, room.Settings{
		TurnTimeout:     cfg.Game.TurnTimeout,
		StartCountdown:  cfg.Game.StartCountdown,
		ReconnectWindow: cfg.Game.ReconnectWindow,
		IdleTimeout:     cfg.Game.RoomIdleTimeout,
		AFKWarningLead:  room.DefaultSettings().AFKWarningLead,
	})

	hall := lobby.New(s.Open("lobby"), hub, rooms)
	hall.SetDirectoryTTL(cfg.Game.DirectoryTTL)
	rooms.OnStatus(hall.UpdateRoom)
	rooms.OnRemove(hall.RemoveRoom)
	go hall.Run()

	h := handlers.New(cfg, auth, hub, rooms, hall)

	// Set up routes
	r := chi.NewRouter()

	r.Post("/auth/guest", h.GuestToken)
	r.Post("/room/new", h.CreateRoom)
	r.Get("/room/{code}/qr", h.RoomQR)

	// Websocket endpoints
	r.Get("/ws/lobby", h.WSLobby)
	r.Get("/ws/room/{code}", h.WSRoom)

	// Health check endpoints (no auth required)
	r.Get("/health/live", h.HealthLive)
	r.Get("/health/ready", h.HealthReady)

	// Start server with production configuration
	addr := cfg.Server.Host + ":" + cfg.Server.Port

	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout, // 0 for long-lived websockets
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start:", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	hall.Stop()
	rooms.Shutdown()
	s.Close()

	log.Println("Server gracefully stopped")
}
