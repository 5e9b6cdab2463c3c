package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"herald/internal/app"
	"herald/internal/config"
	"herald/internal/store"
	logx "herald/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config file (yaml or json; optional)")
	flag.Parse()

	// With arguments, this invocation is the out-of-process enqueue entry
	// point; without, it is the daemon.
	if args := flag.Args(); len(args) > 0 {
		os.Exit(runEnqueue(cfgPath, strings.Join(args, " ")))
	}
	os.Exit(runDaemon(cfgPath))
}

func runEnqueue(cfgPath, message string) int {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error queueing notification:", err)
		return 1
	}

	mb := store.NewMailbox(cfg.MailboxPath(), logx.Nop())
	if err := mb.Enqueue(message); err != nil {
		fmt.Fprintln(os.Stderr, "error queueing notification:", err)
		return 1
	}

	fmt.Printf("Notification queued successfully: %s\n", preview(message, 50))
	return 0
}

func runDaemon(cfgPath string) int {
	// The credential is checked before any state is touched.
	token := strings.TrimSpace(os.Getenv(config.TokenEnv))
	if token == "" {
		fmt.Fprintf(os.Stderr, "fatal: %s environment variable is not set\n", config.TokenEnv)
		return 1
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfg, token)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		return 1
	}
	if err := a.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal start:", err)
		return 1
	}

	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	_ = a.Stop(stopCtx)
	return 0
}

func preview(s string, maxN int) string {
	rs := []rune(s)
	if len(rs) <= maxN {
		return s
	}
	return string(rs[:maxN]) + "..."
}
