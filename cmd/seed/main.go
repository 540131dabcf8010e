package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"eventsms/internal/config"
	"eventsms/internal/models"
	"eventsms/internal/repository"
)

// ANSI color codes for terminal output
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

var (
	eventCode      = flag.String("event", "DEMO", "Event code to create")
	attendeesCount = flag.Int("attendees", 20, "Number of attendees to create")
	checkedInRatio = flag.Float64("checked-in", 0.5, "Fraction of attendees already checked in")
	messagesCount  = flag.Int("messages", 6, "Number of scheduled messages to create")
	spacing        = flag.Duration("spacing", 20*time.Minute, "Time between scheduled messages")
	clearData      = flag.Bool("clear", false, "Delete the event and its data before inserting")
	showHelp       = flag.Bool("help", false, "Show usage information")
)

// message templates cycled through when scheduling
var templates = []struct {
	messageType string
	content     string
	audience    models.Audience
}{
	{"reminder", "Registration desk is open in the main lobby.", models.AudiencePending},
	{"announcement", "Welcome! The opening session starts shortly.", models.AudienceAll},
	{"announcement", "Workshops begin in rooms 2 and 3.", models.AudienceCheckedIn},
	{"reminder", "Don't forget to pick up your badge at the front desk.", models.AudiencePending},
	{"announcement", "Lunch is served in the east foyer.", models.AudienceCheckedIn},
	{"announcement", "Closing remarks in 15 minutes at the main stage.", models.AudienceAll},
}

func main() {
	flag.Parse()

	if *showHelp {
		printUsage()
		os.Exit(0)
	}

	_ = godotenv.Load()

	printInfo("=== Event SMS Seeder ===\n")

	cfg, err := config.Load()
	if err != nil {
		printError(fmt.Sprintf("Failed to load configuration: %v", err))
		os.Exit(1)
	}

	db, err := sql.Open("postgres", cfg.GetDatabaseDSN())
	if err != nil {
		printError(fmt.Sprintf("Failed to open database connection: %v", err))
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		printError(fmt.Sprintf("Failed to ping database: %v", err))
		os.Exit(1)
	}
	printSuccess("✓ Connected to database\n")

	ctx := context.Background()
	code := strings.ToUpper(*eventCode)

	if *clearData {
		if err := clearEvent(ctx, db, code); err != nil {
			printError(fmt.Sprintf("Failed to clear event: %v", err))
			os.Exit(1)
		}
	}

	eventID, err := ensureEvent(ctx, db, code)
	if err != nil {
		printError(fmt.Sprintf("Failed to create event: %v", err))
		os.Exit(1)
	}

	attendees, err := seedAttendees(ctx, db, eventID, *attendeesCount, *checkedInRatio)
	if err != nil {
		printError(fmt.Sprintf("Failed to seed attendees: %v", err))
		os.Exit(1)
	}

	messages, err := seedMessages(ctx, repository.NewMessageRepository(db), eventID, *messagesCount, *spacing)
	if err != nil {
		printError(fmt.Sprintf("Failed to seed messages: %v", err))
		os.Exit(1)
	}

	printInfo("\n=== Seeding Summary ===")
	printSuccess(fmt.Sprintf("✓ Event: %s (id %d)", code, eventID))
	printSuccess(fmt.Sprintf("✓ Attendees created: %d", attendees))
	printSuccess(fmt.Sprintf("✓ Messages scheduled: %d", messages))
	printInfo(fmt.Sprintf("\nTry: %s STATUS", code))
}

func clearEvent(ctx context.Context, db *sql.DB, code string) error {
	printWarning(fmt.Sprintf("Clearing event %s...", code))

	// attendees, messages and deliveries cascade
	if _, err := db.ExecContext(ctx, `DELETE FROM events WHERE UPPER(code) = $1`, code); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM sms_commands WHERE UPPER(event_code) = $1`, code); err != nil {
		return fmt.Errorf("failed to delete commands: %w", err)
	}
	return nil
}

func ensureEvent(ctx context.Context, db *sql.DB, code string) (int, error) {
	var id int
	err := db.QueryRowContext(ctx, `
		INSERT INTO events (code, name, event_date, is_active)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (code) DO UPDATE SET is_active = TRUE
		RETURNING id
	`, code, code+" Demo Event", time.Now().Add(3*time.Hour)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert event: %w", err)
	}
	return id, nil
}

func seedAttendees(ctx context.Context, db *sql.DB, eventID, count int, checkedIn float64) (int, error) {
	printInfo(fmt.Sprintf("Seeding %d attendees...", count))

	firstNames := []string{"Amina", "Brian", "Carol", "David", "Esther", "Felix", "Grace", "Hassan", "Irene", "Joseph"}
	lastNames := []string{"Njoroge", "Otieno", "Wanjiku", "Kamau", "Achieng", "Mwangi", "Chebet", "Omondi"}
	checkedInCount := int(float64(count) * checkedIn)

	created := 0
	for i := 1; i <= count; i++ {
		name := firstNames[i%len(firstNames)] + " " + lastNames[i%len(lastNames)]
		phone := fmt.Sprintf("+25471200%04d", i)

		var checkedInAt *time.Time
		if i <= checkedInCount {
			t := time.Now().Add(-time.Duration(i) * time.Minute)
			checkedInAt = &t
		}

		result, err := db.ExecContext(ctx, `
			INSERT INTO attendees (event_id, name, phone, checked_in_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (event_id, phone) DO NOTHING
		`, eventID, name, phone, checkedInAt)
		if err != nil {
			return created, fmt.Errorf("failed to insert attendee %s: %w", phone, err)
		}
		if n, _ := result.RowsAffected(); n > 0 {
			created++
		}
	}

	printSuccess(fmt.Sprintf("✓ Seeded %d attendees (skipped %d existing)", created, count-created))
	return created, nil
}

func seedMessages(ctx context.Context, messages repository.MessageRepository, eventID, count int, spacing time.Duration) (int, error) {
	printInfo(fmt.Sprintf("Scheduling %d messages...", count))

	start := time.Now().Add(spacing)
	for i := 0; i < count; i++ {
		tpl := templates[i%len(templates)]
		msg := &models.ScheduledMessage{
			EventID:         eventID,
			MessageType:     tpl.messageType,
			MessageCategory: "schedule",
			Content:         tpl.content,
			Audience:        tpl.audience,
			ScheduledTime:   start.Add(time.Duration(i) * spacing),
			Status:          models.MessageStatusPending,
		}
		if err := messages.Create(ctx, msg); err != nil {
			return i, err
		}
	}
	return count, nil
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
	printInfo("=== Event SMS Seeder ===\n")
	fmt.Println("Usage: go run ./cmd/seed [flags]")
	fmt.Println("\nFlags:")
	flag.PrintDefaults()
	fmt.Println("\nExamples:")
	fmt.Println("  go run ./cmd/seed")
	fmt.Println("  go run ./cmd/seed -event=CONF26 -attendees=200 -checked-in=0.3")
	fmt.Println("  go run ./cmd/seed -clear -messages=12 -spacing=5m")
	fmt.Println("\nNotes:")
	fmt.Println("  - Attendees use phone pattern +25471200XXXX")
	fmt.Println("  - Re-running without -clear adds messages but skips existing attendees")
}
