// Package main provides a terminal chat client for a deployed agent. It
// connects to the server's chat WebSocket and streams replies to stdout.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/agent-hr/agenthr/internal/chat"
)

func main() {
	addr := flag.String("addr", "ws://localhost:8080", "server base address")
	deploymentID := flag.String("deployment", "", "deployment ID to chat with")
	flag.Parse()

	log.SetFlags(log.Ltime)

	if *deploymentID == "" {
		fmt.Fprintln(os.Stderr, "usage: agenthr-chat -deployment dep_xxxxxxxx [-addr ws://host:port]")
		os.Exit(1)
	}

	// done is signalled at the end of each assistant turn so the prompt
	// reappears only after the reply finishes streaming.
	done := make(chan struct{}, 1)
	turnOver := func() {
		select {
		case done <- struct{}{}:
		default:
		}
	}

	var printMu sync.Mutex
	session := chat.NewSession(*addr, chat.WithEventHandler(func(ev chat.Event) {
		printMu.Lock()
		defer printMu.Unlock()
		switch ev.Kind {
		case "chunk":
			fmt.Print(ev.Text)
		case "done":
			fmt.Println()
			turnOver()
		case "error":
			fmt.Printf("\n[error] %s\n", ev.Text)
			turnOver()
		case "status":
			if ev.Status == chat.StatusDisconnected || ev.Status == chat.StatusError {
				turnOver()
			}
		}
	}))

	fmt.Printf("Connecting to %s...\n", *addr)
	if err := session.Open(*deploymentID); err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer session.Close()

	fmt.Printf("Connected to deployment %s\n", *deploymentID)
	fmt.Println("Type a message and press Enter to send.")
	fmt.Println("Commands: /reset to start a new conversation, /quit to exit")
	fmt.Println()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		fmt.Println("\nInterrupted")
		session.Close()
		os.Exit(0)
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		switch input {
		case "/quit":
			fmt.Println("Bye!")
			return
		case "/reset":
			session.ResetConversation()
			fmt.Println("Conversation reset.")
			continue
		}

		if !session.Send(input) {
			fmt.Printf("Message not sent (status: %s)\n", session.Status())
			continue
		}
		<-done
	}
}
