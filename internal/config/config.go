package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Annad25/gpu-monitor/internal/domain"
)

type Config struct {
	ServerID        string          // identity reported in alerts and witness lists
	HealthPort      int             // port for our /health and for probing peers
	Targets         []domain.Target // fixed peer set, "IP|NAME,IP2|NAME2"
	WebhookURLs     []string        // alert channels, comma-separated
	MongoURI        string          // empty means run with the in-memory store
	LogDir          string          // logs directory
	ConnectivityURL string          // used to tell "peer down" from "we are offline"

	TickInterval      time.Duration // cadence of the monitor loop
	MaxRetries        int           // peer re-probe budget before declaring down
	RetryBackoff      time.Duration // wait before each re-probe
	ConfirmationDelay time.Duration // minimum down time before the first alert
	ReminderInterval  time.Duration // spacing between repeat alerts
}

func FromEnv() Config {
	serverID := os.Getenv("SERVER_ID")
	if serverID == "" {
		serverID = "unknown-server"
	}

	port := 8051
	if v := os.Getenv("HEALTH_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			port = n
		}
	}

	logDir := os.Getenv("LOG_DIR")
	if logDir == "" {
		logDir = "logs"
	}

	connectivityURL := os.Getenv("CONNECTIVITY_URL")
	if connectivityURL == "" {
		connectivityURL = "https://www.google.com"
	}

	var webhooks []string
	for _, u := range strings.Split(os.Getenv("SLACK_WEBHOOK_URL"), ",") {
		if u = strings.TrimSpace(u); u != "" {
			webhooks = append(webhooks, u)
		}
	}

	return Config{
		ServerID:          serverID,
		HealthPort:        port,
		Targets:           domain.ParseTargets(os.Getenv("TARGETS")),
		WebhookURLs:       webhooks,
		MongoURI:          os.Getenv("MONGO_URI"),
		LogDir:            logDir,
		ConnectivityURL:   connectivityURL,
		TickInterval:      secondsEnv("TICK_INTERVAL_S", 30*time.Second),
		MaxRetries:        intEnv("MAX_RETRIES", 3),
		RetryBackoff:      secondsEnv("RETRY_BACKOFF_S", 10*time.Second),
		ConfirmationDelay: minutesEnv("CONFIRMATION_DELAY_M", 3*time.Minute),
		ReminderInterval:  hoursEnv("REMINDER_INTERVAL_H", 2*time.Hour),
	}
}

func intEnv(name string, def int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func secondsEnv(name string, def time.Duration) time.Duration {
	if n := intEnv(name, 0); n > 0 {
		return time.Duration(n) * time.Second
	}
	return def
}

func minutesEnv(name string, def time.Duration) time.Duration {
	if n := intEnv(name, 0); n > 0 {
		return time.Duration(n) * time.Minute
	}
	return def
}

func hoursEnv(name string, def time.Duration) time.Duration {
	if n := intEnv(name, 0); n > 0 {
		return time.Duration(n) * time.Hour
	}
	return def
}
