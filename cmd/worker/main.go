package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"badgetrack/internal/attendance"
	"badgetrack/internal/catalog"
	"badgetrack/internal/classify"
	"badgetrack/internal/config"
	"badgetrack/internal/derive"
	"badgetrack/internal/liveness"
	"badgetrack/internal/notify"
	"badgetrack/internal/queue"
	"badgetrack/internal/scanlog"
	"badgetrack/internal/store"
	"badgetrack/internal/sweep"
)

// Worker hosts the attendance pipeline: it consumes queue messages for the
// derivation engine and the classifier stages, refreshes the active-session
// projection on a ticker, and runs the absence sweeper on a cron schedule.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "badgetrack:scans")
	}

	catalogRepo := catalog.NewRepository(db.Client)
	records := attendance.NewRepository(db.Client)
	roster := catalog.NewRoster(catalogRepo, cfg.RosterRefresh)
	projections := liveness.NewStore(redisClient.Client, liveness.DefaultKey)

	engine := derive.NewEngine(roster, projections, records, q)
	classifier := classify.New(catalogRepo, records, cfg.GraceWindow, cfg.PresenceThreshold)
	notifier := notify.New(cfg.NotifierURL, cfg.NotifierSkip)

	if !cfg.NotifierSkip {
		if err := notifier.Health(ctx); err != nil {
			log.Printf("WARNING: mail relay not available: %v", err)
		} else {
			log.Println("mail relay connected")
		}
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Printf("invalid timezone %q, using UTC: %v", cfg.Timezone, err)
		loc = time.UTC
	}

	materializer := liveness.NewMaterializer(catalogRepo, projections, cfg.LivenessInterval)
	go materializer.Run(ctx)

	sweeper := sweep.New(catalogRepo, records, loc)
	sched := cron.New(cron.WithLocation(loc))
	if _, err := sched.AddFunc(cfg.SweepSchedule, func() {
		if err := sweeper.Run(ctx); err != nil {
			log.Printf("sweep failed: %v", err)
		}
	}); err != nil {
		log.Fatalf("invalid sweep schedule %q: %v", cfg.SweepSchedule, err)
	}
	sched.Start()
	defer sched.Stop()

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		switch msg.Type {
		case queue.TypeScan:
			var entry scanlog.Entry
			if err := json.Unmarshal(msg.Body, &entry); err != nil {
				log.Printf("bad scan message: %v", err)
				continue
			}
			if err := engine.HandleScan(ctx, entry); err != nil {
				log.Printf("scan %s processing failed: %v", entry.ID, err)
			}

		case queue.TypeCheckIn:
			key, ok := decodeKey(msg.Body)
			if !ok {
				continue
			}
			if err := classifier.HandleCheckIn(ctx, key); err != nil {
				log.Printf("check-in classification failed for %s/%s/%s: %v", key.EventID, key.SessionID, key.StudentID, err)
			}
			go notifier.CheckInRecorded(ctx, key)

		case queue.TypeCheckOut:
			key, ok := decodeKey(msg.Body)
			if !ok {
				continue
			}
			if err := classifier.HandleCheckOut(ctx, key); err != nil {
				log.Printf("check-out classification failed for %s/%s/%s: %v", key.EventID, key.SessionID, key.StudentID, err)
			}
			go notifier.CheckOutRecorded(ctx, key)

		default:
			log.Printf("unknown message type %q, dropping", msg.Type)
		}
	}

	log.Println("worker stopped")
}

func decodeKey(body []byte) (attendance.Key, bool) {
	var key attendance.Key
	if err := json.Unmarshal(body, &key); err != nil {
		log.Printf("bad record key message: %v", err)
		return attendance.Key{}, false
	}
	return key, true
}
