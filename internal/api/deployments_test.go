package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/agent-hr/agenthr/internal/domain"
	"github.com/agent-hr/agenthr/internal/runtime"
)

func seedRunningDeployment(t *testing.T, h *Handler, depID, agentID string, port int) {
	t.Helper()
	ctx := context.Background()
	dep := &domain.Deployment{
		DeploymentID: depID,
		AgentID:      agentID,
		VersionID:    "ver_1",
		Status:       domain.DeploymentStatusPending,
		CreatedBy:    "tester",
		CreatedAt:    time.Now(),
	}
	if err := h.store.CreateDeployment(ctx, dep); err != nil {
		t.Fatalf("CreateDeployment failed: %v", err)
	}
	if err := h.store.UpdateDeploymentStarted(ctx, depID, "ctr_"+depID, "img_1", port); err != nil {
		t.Fatalf("UpdateDeploymentStarted failed: %v", err)
	}
}

// fakeContainer serves the runtime surface of a deployed agent and returns
// the port it listens on.
func fakeContainer(t *testing.T) int {
	t.Helper()
	var mu sync.Mutex
	var entries []runtime.MemoryEntry

	mux := http.NewServeMux()
	mux.HandleFunc("/chat", func(w http.ResponseWriter, r *http.Request) {
		var req runtime.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(runtime.ChatResponse{
			Response:       "echo: " + req.Message,
			ConversationID: req.ConversationID,
		})
	})
	mux.HandleFunc("/working-memory", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if r.Method == http.MethodDelete {
			entries = nil
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"entries": entries})
	})
	mux.HandleFunc("/inject-context", func(w http.ResponseWriter, r *http.Request) {
		var entry runtime.MemoryEntry
		if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		entries = append(entries, entry)
		json.NewEncoder(w).Encode(map[string]interface{}{"entries": entries})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	_, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("failed to parse server address: %v", err)
	}
	port, _ := strconv.Atoi(portStr)
	return port
}

func TestDeployAgent(t *testing.T) {
	h := newTestHandler(t)
	seedAgent(t, h, "agt_1")
	seedVersion(t, h, "agt_1", "ver_1")

	rec := doJSON(t, h.DeployAgent, http.MethodPost, "/x", `{}`, map[string]string{"id": "agt_1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var dep domain.Deployment
	if err := json.Unmarshal(rec.Body.Bytes(), &dep); err != nil {
		t.Fatalf("failed to decode deployment: %v", err)
	}
	if dep.Status != domain.DeploymentStatusRunning {
		t.Fatalf("expected running, got %s", dep.Status)
	}
	if dep.VersionID != "ver_1" || dep.Port == 0 || dep.ContainerID == "" {
		t.Fatalf("unexpected deployment: %+v", dep)
	}
}

func TestDeployAgentWithoutVersion(t *testing.T) {
	h := newTestHandler(t)
	seedAgent(t, h, "agt_1")

	rec := doJSON(t, h.DeployAgent, http.MethodPost, "/x", `{}`, map[string]string{"id": "agt_1"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestDeployAgentNotFound(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h.DeployAgent, http.MethodPost, "/x", `{}`, map[string]string{"id": "agt_missing"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestStopDeployment(t *testing.T) {
	h := newTestHandler(t)
	seedAgent(t, h, "agt_1")
	seedVersion(t, h, "agt_1", "ver_1")

	rec := doJSON(t, h.DeployAgent, http.MethodPost, "/x", `{}`, map[string]string{"id": "agt_1"})
	var dep domain.Deployment
	if err := json.Unmarshal(rec.Body.Bytes(), &dep); err != nil {
		t.Fatalf("failed to decode deployment: %v", err)
	}

	rec = doJSON(t, h.StopDeployment, http.MethodPost, "/x", "", map[string]string{"id": dep.DeploymentID})
	if rec.Code != http.StatusOK {
		t.Fatalf("stop: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var stopped domain.Deployment
	if err := json.Unmarshal(rec.Body.Bytes(), &stopped); err != nil {
		t.Fatalf("failed to decode deployment: %v", err)
	}
	if stopped.Status != domain.DeploymentStatusStopped || stopped.StoppedAt == nil {
		t.Fatalf("unexpected deployment: %+v", stopped)
	}

	// Stopping again is rejected.
	rec = doJSON(t, h.StopDeployment, http.MethodPost, "/x", "", map[string]string{"id": dep.DeploymentID})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for stopped deployment, got %d", rec.Code)
	}
}

func TestGetDeploymentIncludesLinkCount(t *testing.T) {
	h := newTestHandler(t)
	seedAgent(t, h, "agt_1")
	seedRunningDeployment(t, h, "dep_1", "agt_1", 18099)

	rec := doJSON(t, h.GetDeployment, http.MethodGet, "/x", "", map[string]string{"id": "dep_1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Deployment domain.Deployment `json:"deployment"`
		ChatLinks  int               `json:"chat_links"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Deployment.DeploymentID != "dep_1" || resp.ChatLinks != 0 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestChatWithDeployment(t *testing.T) {
	h := newTestHandler(t)
	seedAgent(t, h, "agt_1")
	seedRunningDeployment(t, h, "dep_1", "agt_1", fakeContainer(t))

	rec := doJSON(t, h.ChatWithDeployment, http.MethodPost, "/x", `{"message":"hi there"}`, map[string]string{"id": "dep_1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp runtime.ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Response != "echo: hi there" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	// A conversation id is assigned when the caller omits one.
	if resp.ConversationID == "" {
		t.Fatalf("expected a conversation id")
	}
}

func TestChatValidation(t *testing.T) {
	h := newTestHandler(t)
	seedAgent(t, h, "agt_1")
	seedRunningDeployment(t, h, "dep_1", "agt_1", fakeContainer(t))

	rec := doJSON(t, h.ChatWithDeployment, http.MethodPost, "/x", `{"message":""}`, map[string]string{"id": "dep_1"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestChatWithStoppedDeployment(t *testing.T) {
	h := newTestHandler(t)
	seedAgent(t, h, "agt_1")
	seedRunningDeployment(t, h, "dep_1", "agt_1", 18099)
	if err := h.store.UpdateDeploymentStopped(context.Background(), "dep_1", domain.DeploymentStatusStopped, ""); err != nil {
		t.Fatalf("UpdateDeploymentStopped failed: %v", err)
	}

	rec := doJSON(t, h.ChatWithDeployment, http.MethodPost, "/x", `{"message":"hi"}`, map[string]string{"id": "dep_1"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestChatContainerUnreachable(t *testing.T) {
	h := newTestHandler(t)
	seedAgent(t, h, "agt_1")
	seedRunningDeployment(t, h, "dep_1", "agt_1", 1)

	rec := doJSON(t, h.ChatWithDeployment, http.MethodPost, "/x", `{"message":"hi"}`, map[string]string{"id": "dep_1"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestWorkingMemoryRoundTrip(t *testing.T) {
	h := newTestHandler(t)
	seedAgent(t, h, "agt_1")
	seedRunningDeployment(t, h, "dep_1", "agt_1", fakeContainer(t))

	rec := doJSON(t, h.AddWorkingMemory, http.MethodPost, "/x", `{"name":"note","content":"remember this"}`, map[string]string{"id": "dep_1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("inject: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h.GetWorkingMemory, http.MethodGet, "/x", "", map[string]string{"id": "dep_1"})
	var resp struct {
		Entries []runtime.MemoryEntry `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode entries: %v", err)
	}
	if len(resp.Entries) != 1 || resp.Entries[0].Content != "remember this" {
		t.Fatalf("unexpected entries: %+v", resp.Entries)
	}

	rec = doJSON(t, h.ClearWorkingMemory, http.MethodDelete, "/x", "", map[string]string{"id": "dep_1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("clear: expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, h.GetWorkingMemory, http.MethodGet, "/x", "", map[string]string{"id": "dep_1"})
	resp.Entries = nil
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode entries: %v", err)
	}
	if len(resp.Entries) != 0 {
		t.Fatalf("expected cleared working memory, got %+v", resp.Entries)
	}
}
