package ws

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/agent-hr/agenthr/internal/config"
	"github.com/agent-hr/agenthr/internal/domain"
	"github.com/agent-hr/agenthr/internal/store"
)

// ContainerDialer opens the streaming chat WebSocket of an agent container.
// Satisfied by *runtime.Client.
type ContainerDialer interface {
	DialChat(ctx context.Context, port int) (*websocket.Conn, error)
}

// Gateway upgrades browser chat connections and relays frames to the
// deployment's container verbatim in both directions.
type Gateway struct {
	cfg      *config.Config
	store    store.Store
	dialer   ContainerDialer
	registry *Registry
	upgrader websocket.Upgrader
}

// NewGateway creates a chat gateway.
func NewGateway(cfg *config.Config, st store.Store, dialer ContainerDialer, registry *Registry) *Gateway {
	return &Gateway{
		cfg:      cfg,
		store:    st,
		dialer:   dialer,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// The UI is served from another origin in development.
				return true
			},
		},
	}
}

// HandleChat handles GET /api/deployments/:id/ws.
func (g *Gateway) HandleChat(c echo.Context) error {
	deploymentID := c.Param("id")
	ctx := c.Request().Context()

	dep, err := g.store.GetDeployment(ctx, deploymentID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load deployment")
	}
	if dep == nil {
		return echo.NewHTTPError(http.StatusNotFound, "deployment not found")
	}
	if dep.Status != domain.DeploymentStatusRunning || dep.Port == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "deployment is not running")
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	container, err := g.dialer.DialChat(dialCtx, dep.Port)
	cancel()
	if err != nil {
		log.Printf("ERROR: failed to dial container for deployment %s: %v", deploymentID, err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "agent container unreachable")
	}

	client, err := g.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket: %v", err)
		container.Close()
		return err
	}
	client.SetReadLimit(g.cfg.MaxMessageSize)

	link := g.registry.Register(deploymentID, client, container)
	go g.relay(link)
	return nil
}

// relay pumps frames between the two sides until either closes, then tears
// down both.
func (g *Gateway) relay(link *Link) {
	defer func() {
		g.registry.Unregister(link)
		link.Close()
	}()

	done := make(chan struct{}, 2)

	// browser -> container
	go func() {
		defer func() { done <- struct{}{} }()
		pump(link.client, func(messageType int, data []byte) error {
			link.container.SetWriteDeadline(time.Now().Add(g.cfg.WriteTimeout))
			return link.container.WriteMessage(messageType, data)
		})
	}()

	// container -> browser
	go func() {
		defer func() { done <- struct{}{} }()
		pump(link.container, func(messageType int, data []byte) error {
			return link.WriteToClient(messageType, data, time.Now().Add(g.cfg.WriteTimeout))
		})
	}()

	ticker := time.NewTicker(g.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := link.WriteToClient(websocket.PingMessage, nil, time.Now().Add(g.cfg.WriteTimeout)); err != nil {
				return
			}
		}
	}
}

// pump copies frames from src until it closes.
func pump(src *websocket.Conn, write func(messageType int, data []byte) error) {
	for {
		messageType, data, err := src.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket relay error: %v", err)
			}
			return
		}
		if err := write(messageType, data); err != nil {
			return
		}
	}
}
