// Intake Viewer - live view of intake conversations.
// Consumes the turn and record topics and pushes them to browsers over WebSocket.
package main

import (
	"context"
	"embed"
	"encoding/json"
	"flag"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"voice-intake-service/internal/live"
	"voice-intake-service/internal/models"
	"voice-intake-service/internal/observability/logging"
)

//go:embed static/*
var staticFiles embed.FS

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func consumeKafka(ctx context.Context, hub *live.Hub, brokers []string, topic string, since time.Duration) {
	// Partition reader without a consumer group so every viewer sees everything.
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	if err := reader.SetOffsetAt(ctx, time.Now().Add(-since)); err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("Failed to seek, reading from the start")
	}
	log.Info().Str("topic", topic).Dur("since", since).Msg("Consuming intake events")

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Str("topic", topic).Msg("Kafka read error")
			time.Sleep(time.Second)
			continue
		}

		var head struct {
			EventType string `json:"eventType"`
		}
		if err := json.Unmarshal(msg.Value, &head); err != nil {
			log.Warn().Err(err).Msg("Skipping malformed event")
			continue
		}

		switch head.EventType {
		case models.EventTypeTurn:
			var ev models.TurnEvent
			if err := json.Unmarshal(msg.Value, &ev); err != nil {
				continue
			}
			log.Info().
				Str("sessionId", ev.SessionID).
				Str("state", ev.State).
				Str("user", truncate(ev.UserText, 40)).
				Msg("Turn")
		case models.EventTypeRecordCompleted:
			var ev models.RecordCompleted
			if err := json.Unmarshal(msg.Value, &ev); err != nil {
				continue
			}
			log.Info().Str("sessionId", ev.SessionID).Str("recordId", ev.RecordID).Msg("Record completed")
		default:
			continue
		}
		hub.Broadcast(json.RawMessage(msg.Value))
	}
}

func main() {
	port := flag.String("port", "8081", "HTTP server port")
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	topicTurns := flag.String("topic-turns", "voice.intake.turn", "Turn event topic")
	topicRecords := flag.String("topic-records", "voice.intake.record", "Completed record topic")
	since := flag.Duration("since", time.Hour, "Replay events newer than this")
	flag.Parse()

	logging.Init(logging.Config{Level: "info", Format: "console", TimeFormat: time.RFC3339})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := live.NewHub(nil)
	go hub.Run(ctx)

	brokerList := splitBrokers(*brokers)
	go consumeKafka(ctx, hub, brokerList, *topicTurns, *since)
	go consumeKafka(ctx, hub, brokerList, *topicRecords, *since)

	staticFS, _ := fs.Sub(staticFiles, "static")
	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(staticFS)))
	mux.HandleFunc("/ws", hub.ServeWS)

	srv := &http.Server{Addr: ":" + *port, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().
		Str("url", "http://localhost:"+*port).
		Strs("brokers", brokerList).
		Str("turns", *topicTurns).
		Str("records", *topicRecords).
		Msg("Intake viewer starting")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("Server error")
	}
}

func splitBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
