// Audit listener: tails ANSWER_COMPLETED events from the NATS bus and prints
// one line per answered question. Useful for watching a running deployment
// without touching the database.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ai-analyst-be/pkg/events"
	pktNats "ai-analyst-be/pkg/nats"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}

	sub, err := pktNats.NewSubscriber(natsURL)
	if err != nil {
		log.Fatalf("Failed to connect to NATS at %s: %v", natsURL, err)
	}
	defer sub.Close()

	err = sub.Subscribe("events.ANSWER_COMPLETED", "audit-log", func(ctx context.Context, event events.Event) error {
		printAnswerEvent(event)
		return nil
	})
	if err != nil {
		log.Fatalf("Failed to subscribe: %v", err)
	}

	color.New(color.FgCyan, color.Bold).Println("=== Answer Audit Log ===")
	fmt.Printf("Listening on %s, Ctrl+C to stop\n", natsURL)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
}

func printAnswerEvent(event events.Event) {
	payload := event.Payload()

	status, _ := payload["status"].(string)
	statusColor := color.New(color.FgGreen)
	if status != "ok" {
		statusColor = color.New(color.FgRed)
	}

	engine := "retrieval"
	if used, ok := payload["used_sql"].(bool); ok && used {
		engine = "structured"
	}

	fmt.Printf("%s session=%v steps=%v engine=%s\n",
		statusColor.Sprintf("[%s]", status),
		payload["chat_session_id"],
		payload["steps"],
		engine,
	)
}
