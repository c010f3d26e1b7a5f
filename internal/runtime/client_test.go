package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

// testContainer runs a fake agent container and returns the client port.
func testContainer(t *testing.T, handler http.Handler) (*Client, int) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	_, portStr, err := net.SplitHostPort(server.Listener.Addr().String())
	if err != nil {
		t.Fatalf("failed to parse server address: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("failed to parse port: %v", err)
	}
	return NewClient("127.0.0.1"), port
}

func TestClientChat(t *testing.T) {
	var gotReq ChatRequest
	client, port := testContainer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		json.NewEncoder(w).Encode(ChatResponse{Response: "hello back", ConversationID: gotReq.ConversationID})
	}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	resp, err := client.Chat(ctx, port, &ChatRequest{Message: "hello", ConversationID: "c1"})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if gotReq.Message != "hello" || gotReq.ConversationID != "c1" {
		t.Fatalf("unexpected request body: %+v", gotReq)
	}
	if resp.Response != "hello back" || resp.ConversationID != "c1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestClientChatContainerError(t *testing.T) {
	client, port := testContainer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "agent crashed", http.StatusInternalServerError)
	}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := client.Chat(ctx, port, &ChatRequest{Message: "hello"})
	if err == nil {
		t.Fatalf("expected error for container failure")
	}
}

func TestClientHealth(t *testing.T) {
	client, port := testContainer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"status":"healthy"}`)
	}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := client.Health(ctx, port); err != nil {
		t.Fatalf("Health failed: %v", err)
	}
}

func TestClientWorkingMemoryRoundTrip(t *testing.T) {
	entries := []MemoryEntry{}
	client, port := testContainer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/inject-context" && r.Method == http.MethodPost:
			var payload MemoryEntry
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Fatalf("failed to decode inject payload: %v", err)
			}
			entries = append(entries, payload)
			json.NewEncoder(w).Encode(map[string]interface{}{"entries": entries})
		case r.URL.Path == "/working-memory" && r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(map[string]interface{}{"entries": entries})
		case r.URL.Path == "/working-memory" && r.Method == http.MethodDelete:
			entries = nil
			fmt.Fprint(w, `{"status":"cleared"}`)
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, err := client.InjectContext(ctx, port, "escalations", "escalate P1s")
	if err != nil {
		t.Fatalf("InjectContext failed: %v", err)
	}
	if len(got) != 1 || got[0].Content != "escalate P1s" || got[0].Name != "escalations" {
		t.Fatalf("unexpected entries after inject: %+v", got)
	}

	got, err = client.WorkingMemory(ctx, port)
	if err != nil {
		t.Fatalf("WorkingMemory failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}

	if err := client.ClearWorkingMemory(ctx, port); err != nil {
		t.Fatalf("ClearWorkingMemory failed: %v", err)
	}
	got, err = client.WorkingMemory(ctx, port)
	if err != nil {
		t.Fatalf("WorkingMemory after clear failed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no entries after clear, got %+v", got)
	}
}

func TestClientUnreachableContainer(t *testing.T) {
	client := NewClient("127.0.0.1")

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	// Port 1 is never listening.
	if err := client.Health(ctx, 1); err == nil {
		t.Fatalf("expected error for unreachable container")
	}
}
