// cmd/preflight/main.go
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/Annad25/gpu-monitor/internal/domain"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	serverID := strings.TrimSpace(os.Getenv("SERVER_ID"))
	rawTargets := strings.TrimSpace(os.Getenv("TARGETS"))
	mongoURI := strings.TrimSpace(os.Getenv("MONGO_URI"))
	webhooks := strings.TrimSpace(os.Getenv("SLACK_WEBHOOK_URL"))
	port := strings.TrimSpace(os.Getenv("HEALTH_PORT"))

	if serverID == "" {
		warn("SERVER_ID is empty; alerts will name this instance \"unknown-server\".")
	} else {
		ok("SERVER_ID=" + serverID)
	}

	if rawTargets == "" {
		fail("TARGETS is empty (nothing to monitor).")
	}
	targets := domain.ParseTargets(rawTargets)
	if len(targets) == 0 {
		fail("TARGETS parsed to zero entries; expected IP|NAME,IP2|NAME2")
	}
	for _, t := range targets {
		if t.Name == domain.DefaultTargetName {
			warn("target " + t.IP + " has no display name; will show as " + domain.DefaultTargetName)
		}
	}
	ok(fmt.Sprintf("TARGETS: %d peers", len(targets)))

	if mongoURI == "" {
		warn("MONGO_URI empty — monitor runs with the in-memory store; crash state will not survive restarts.")
	} else {
		ok("MONGO_URI present")
	}

	if webhooks == "" {
		warn("SLACK_WEBHOOK_URL empty — no alerts will be delivered anywhere.")
	} else {
		ok(fmt.Sprintf("alert channels: %d", len(strings.Split(webhooks, ","))))
	}

	if port == "" {
		warn("HEALTH_PORT empty; default 8051 will be used — peers must probe the same port.")
	} else {
		ok("HEALTH_PORT=" + port)
	}

	ok("preflight passed")
}
