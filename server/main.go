package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/agent-hr/agenthr/internal/api"
	"github.com/agent-hr/agenthr/internal/config"
	"github.com/agent-hr/agenthr/internal/deploy"
	"github.com/agent-hr/agenthr/internal/policy"
	"github.com/agent-hr/agenthr/internal/runtime"
	"github.com/agent-hr/agenthr/internal/store"
	"github.com/agent-hr/agenthr/internal/ws"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log.Printf("Starting agenthr server...")
	log.Printf("HTTP Port: %d", cfg.APIPort)
	log.Printf("Database: %s", cfg.DatabasePath)
	log.Printf("Runtime image: %s", cfg.RuntimeImage)

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Initialize policy engine
	ctx := context.Background()
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize container client and chat link registry
	containers := runtime.NewClient(cfg.ContainerHost)
	links := ws.NewRegistry()

	// Initialize deployment service
	deployer := deploy.NewService(db, deploy.NewDockerRunner(cfg.RuntimeImage), links)

	// Initialize handlers
	h := api.NewHandler(db, deployer, containers, policyEngine, links, cfg)
	gateway := ws.NewGateway(cfg, db, containers, links)

	// Create Echo server
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(api.APIKeyMiddleware(cfg.APIKey))

	// Register routes
	h.RegisterRoutes(e)
	e.GET("/api/deployments/:id/ws", gateway.HandleChat)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.APIPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("API started on port %d", cfg.APIPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}

	log.Println("Server stopped")
}
