// Command reminder-job runs one reminder scan and prints the summary as
// JSON. It is meant for an external daily cron; the booking service can run
// the same scan in-process instead.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/testme/testme-backend/internal/booking/events"
	"github.com/testme/testme-backend/internal/booking/repository"
	"github.com/testme/testme-backend/internal/reminder"
	"github.com/testme/testme-backend/internal/sms"
	"github.com/testme/testme-backend/pkg/config"
	"github.com/testme/testme-backend/pkg/logger"
	"github.com/testme/testme-backend/pkg/messaging"
)

const serviceName = "reminder-job"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "reminder job failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// stdout carries the summary, so logs go to stderr
	log := logger.NewWithWriter(os.Stderr, serviceName, cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closer, err := repository.Open(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open booking store: %w", err)
	}
	defer closer.Close()

	gateway, err := sms.NewGateway(&cfg.SMS)
	if err != nil {
		return err
	}
	relay := sms.NewRelay(gateway, &cfg.SMS, log)

	var publisher *events.BookingEventPublisher
	if cfg.RabbitMQ.Enabled {
		rmq, err := messaging.New(&cfg.RabbitMQ, log)
		if err != nil {
			return fmt.Errorf("connect to RabbitMQ: %w", err)
		}
		defer rmq.Close()

		if publisher, err = events.NewBookingEventPublisher(rmq, log); err != nil {
			return err
		}
	}

	scanner, err := reminder.NewScanner(store, relay, publisher, &cfg.Reminder, log)
	if err != nil {
		return err
	}

	summary, err := scanner.Scan(ctx, time.Now())
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
