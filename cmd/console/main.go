package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"eventsms/internal/models"
	"eventsms/internal/polling"
)

// ANSI color codes for terminal output
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	fs := flag.NewFlagSet(os.Args[1], flag.ExitOnError)
	apiURL := fs.String("api", envOr("EVENTSMS_API_URL", "http://localhost:8080"), "API base URL")
	event := fs.String("event", "", "Event code")
	phone := fs.String("phone", "", "Admin phone recorded in the audit log (default web-admin)")
	watch := fs.Bool("watch", false, "Watch the event after submitting")
	fs.Parse(os.Args[2:])

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := newAPIClient(*apiURL)

	switch os.Args[1] {
	case "submit":
		text := strings.Join(fs.Args(), " ")
		if text == "" {
			printError("command text is required")
			os.Exit(1)
		}
		coordinator := polling.New()
		if !submit(ctx, client, coordinator, *phone, *event, text) {
			os.Exit(1)
		}
		if *watch && *event != "" {
			runWatch(ctx, client, coordinator, *phone, *event, os.Stdin)
		}
	case "watch":
		if *event == "" {
			printError("-event is required")
			os.Exit(1)
		}
		runWatch(ctx, client, polling.New(), *phone, *event, os.Stdin)
	default:
		printUsage()
		os.Exit(1)
	}
}

func submit(ctx context.Context, client *apiClient, coordinator *polling.Coordinator, phone, event, text string) bool {
	resp, err := client.Submit(ctx, phone, event, text)
	if err != nil {
		printError(err.Error())
		return false
	}

	// every submission may have changed something worth watching
	coordinator.Touch()

	if resp.Success {
		printSuccess("✓ " + resp.SMSReply)
	} else {
		printWarning("✗ " + resp.SMSReply)
	}
	return resp.Success
}

// runWatch refreshes the event while the coordinator is active. An empty
// input line refreshes on demand; anything else is submitted as a command.
func runWatch(ctx context.Context, client *apiClient, coordinator *polling.Coordinator, phone, event string, in io.Reader) {
	printInfo(fmt.Sprintf("Watching %s. Enter a command, or an empty line to refresh. Ctrl-C to quit.", event))

	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				coordinator.Refresh()
				continue
			}
			submit(ctx, client, coordinator, phone, event, line)
		}
	}()

	fetch := func(ctx context.Context) (*time.Time, error) {
		detail, err := client.Detail(ctx, event)
		if err != nil {
			printError(err.Error())
			return nil, err
		}
		fmt.Println(summary(detail, coordinator))
		return detail.LastActivity, nil
	}

	coordinator.Watch(ctx, fetch)
}

func summary(d *models.EventDetail, coordinator *polling.Coordinator) string {
	s := d.Stats
	line := fmt.Sprintf("[%s] %s: %d pending, %d sent, %d delivered, %d failed (%.1f%% delivered)",
		time.Now().Format("15:04:05"), d.Code, s.Pending, s.Sent, s.Delivered, s.Failed, s.DeliveryRate*100)

	if len(d.Upcoming) > 0 {
		line += fmt.Sprintf(" | next %s at %s", d.Upcoming[0].MessageType, d.Upcoming[0].ScheduledTime.Local().Format("15:04"))
	}
	if until := coordinator.ExpiresAt(); !until.IsZero() {
		line += fmt.Sprintf(" | live until %s", until.Local().Format("15:04:05"))
	}
	return line
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func printSuccess(msg string) {
	fmt.Printf("%s%s%s\n", colorGreen, msg, colorReset)
}

func printError(msg string) {
	fmt.Fprintf(os.Stderr, "%s%s%s\n", colorRed, msg, colorReset)
}

func printInfo(msg string) {
	fmt.Printf("%s%s%s\n", colorCyan, msg, colorReset)
}

func printWarning(msg string) {
	fmt.Printf("%s%s%s\n", colorYellow, msg, colorReset)
}

func printUsage() {
	printInfo("=== Event SMS Operator Console ===\n")
	fmt.Println("Usage:")
	fmt.Println("  console submit [-event CODE] [-phone +NUMBER] [-watch] COMMAND...")
	fmt.Println("  console watch -event CODE [-phone +NUMBER]")
	fmt.Println("\nExamples:")
	fmt.Println("  console submit EXPO25 DELAY 15")
	fmt.Println("  console submit -event EXPO25 -watch MSG checkedin Doors open in Hall B")
	fmt.Println("  console watch -event EXPO25")
	fmt.Println("\nWhile watching, the view refreshes every 10s for 10 minutes after any activity.")
}
