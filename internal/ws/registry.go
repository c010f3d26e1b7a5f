// Package ws proxies browser chat WebSockets to deployed agent containers.
package ws

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Link is one proxied chat connection: the browser side and the container
// side of a single relay.
type Link struct {
	ID           string
	DeploymentID string
	client       *websocket.Conn
	container    *websocket.Conn
	clientMu     sync.Mutex
	closeOnce    sync.Once
}

// WriteToClient writes a frame to the browser side with proper locking. The
// relay and the keepalive ticker both write here.
func (l *Link) WriteToClient(messageType int, data []byte, deadline time.Time) error {
	l.clientMu.Lock()
	defer l.clientMu.Unlock()
	l.client.SetWriteDeadline(deadline)
	return l.client.WriteMessage(messageType, data)
}

// Close tears down both sides of the relay. Safe to call more than once.
func (l *Link) Close() {
	l.closeOnce.Do(func() {
		l.client.Close()
		l.container.Close()
	})
}

// Registry tracks live chat links per deployment so they can be counted and
// force-closed when a deployment stops.
type Registry struct {
	mu    sync.RWMutex
	links map[string]map[*Link]bool // deployment ID -> links
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{links: make(map[string]map[*Link]bool)}
}

// Register creates and tracks a link for a deployment.
func (r *Registry) Register(deploymentID string, client, container *websocket.Conn) *Link {
	link := &Link{
		ID:           uuid.New().String(),
		DeploymentID: deploymentID,
		client:       client,
		container:    container,
	}

	r.mu.Lock()
	if r.links[deploymentID] == nil {
		r.links[deploymentID] = make(map[*Link]bool)
	}
	r.links[deploymentID][link] = true
	r.mu.Unlock()

	log.Printf("Chat link registered: %s (deployment: %s)", link.ID, deploymentID)
	return link
}

// Unregister removes a link from tracking.
func (r *Registry) Unregister(link *Link) {
	r.mu.Lock()
	if set := r.links[link.DeploymentID]; set != nil {
		delete(set, link)
		if len(set) == 0 {
			delete(r.links, link.DeploymentID)
		}
	}
	r.mu.Unlock()

	log.Printf("Chat link unregistered: %s", link.ID)
}

// CloseDeployment force-closes all links for a deployment.
func (r *Registry) CloseDeployment(deploymentID string) {
	r.mu.RLock()
	var toClose []*Link
	for link := range r.links[deploymentID] {
		toClose = append(toClose, link)
	}
	r.mu.RUnlock()

	for _, link := range toClose {
		link.Close()
	}
	if len(toClose) > 0 {
		log.Printf("Closed %d chat link(s) for deployment %s", len(toClose), deploymentID)
	}
}

// LinkCount returns the number of live links across all deployments.
func (r *Registry) LinkCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, set := range r.links {
		n += len(set)
	}
	return n
}

// DeploymentLinkCount returns the number of live links for one deployment.
func (r *Registry) DeploymentLinkCount(deploymentID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.links[deploymentID])
}
