package main

import (
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Migration is one versioned SQL file
type Migration struct {
	Version   int
	Name      string
	Path      string
	AppliedAt *time.Time
}

// rollbackSQL undoes each schema version; tables drop in reverse order
var rollbackSQL = map[int]string{
	1: "DROP TABLE IF EXISTS events CASCADE;",
	2: "DROP TABLE IF EXISTS attendees CASCADE;",
	3: "DROP TABLE IF EXISTS scheduled_messages CASCADE;",
	4: "DROP TABLE IF EXISTS message_deliveries CASCADE;",
	5: "DROP TABLE IF EXISTS sms_commands CASCADE;",
}

var migrationPattern = regexp.MustCompile(`^(\d{3})_(.+)\.sql$`)

// Migrator applies embedded migrations to one database
type Migrator struct {
	db    *sql.DB
	files fs.FS
}

func (m *Migrator) ensureTable() error {
	_, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			applied_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}
	return nil
}

func (m *Migrator) applied() (map[int]Migration, error) {
	rows, err := m.db.Query(`SELECT version, name, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]Migration)
	for rows.Next() {
		var mig Migration
		if err := rows.Scan(&mig.Version, &mig.Name, &mig.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[mig.Version] = mig
	}
	return applied, rows.Err()
}

// Up applies every migration not yet recorded
func (m *Migrator) Up() error {
	printInfo("Running pending migrations...\n")

	applied, err := m.applied()
	if err != nil {
		return err
	}
	all, err := listMigrations(m.files, ".")
	if err != nil {
		return err
	}

	count := 0
	for _, mig := range all {
		if _, done := applied[mig.Version]; done {
			continue
		}
		if err := m.apply(mig); err != nil {
			return fmt.Errorf("failed to apply migration %03d_%s: %w", mig.Version, mig.Name, err)
		}
		count++
	}

	if count == 0 {
		printSuccess("✓ All migrations are up to date")
		return nil
	}
	printSuccess(fmt.Sprintf("\n✓ Successfully applied %d migration(s)", count))
	return nil
}

func (m *Migrator) apply(mig Migration) error {
	printInfo(fmt.Sprintf("Applying migration %03d_%s...", mig.Version, mig.Name))

	content, err := fs.ReadFile(m.files, mig.Path)
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	err = m.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration SQL: %w", err)
		}
		_, err := tx.Exec("INSERT INTO schema_migrations (version, name) VALUES ($1, $2)", mig.Version, mig.Name)
		if err != nil {
			return fmt.Errorf("failed to record migration: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	printSuccess(fmt.Sprintf("  ✓ Migration %03d applied", mig.Version))
	return nil
}

// Down rolls back the highest applied version
func (m *Migrator) Down() error {
	applied, err := m.applied()
	if err != nil {
		return err
	}
	versions := descendingVersions(applied)
	if len(versions) == 0 {
		printWarning("No migrations to roll back")
		return nil
	}
	return m.rollback(versions[0])
}

func (m *Migrator) rollback(version int) error {
	dropSQL, ok := rollbackSQL[version]
	if !ok {
		return fmt.Errorf("no rollback defined for migration version %d", version)
	}

	printInfo(fmt.Sprintf("Rolling back migration %03d...", version))
	err := m.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(dropSQL); err != nil {
			return fmt.Errorf("failed to execute rollback SQL: %w", err)
		}
		if _, err := tx.Exec("DELETE FROM schema_migrations WHERE version = $1", version); err != nil {
			return fmt.Errorf("failed to remove migration record: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	printSuccess(fmt.Sprintf("  ✓ Migration %03d rolled back", version))
	return nil
}

// Reset rolls back every applied version, newest first, and reapplies all
func (m *Migrator) Reset() error {
	printWarning("Resetting database (rollback all + reapply all)...\n")

	applied, err := m.applied()
	if err != nil {
		return err
	}
	for _, version := range descendingVersions(applied) {
		if err := m.rollback(version); err != nil {
			return err
		}
	}
	return m.Up()
}

// Status prints every known migration and whether it is applied
func (m *Migrator) Status() error {
	applied, err := m.applied()
	if err != nil {
		return err
	}
	all, err := listMigrations(m.files, ".")
	if err != nil {
		return err
	}

	fmt.Printf("%s%-10s %-40s %-12s %-20s%s\n", colorBold, "VERSION", "NAME", "STATUS", "APPLIED AT", colorReset)
	fmt.Println(strings.Repeat("-", 85))

	for _, mig := range all {
		status, color, at := "pending", colorYellow, "-"
		if done, ok := applied[mig.Version]; ok {
			status, color = "applied", colorGreen
			if done.AppliedAt != nil {
				at = done.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Printf("%03d        %-40s %s%-12s%s %-20s\n", mig.Version, mig.Name, color, status, colorReset, at)
	}

	fmt.Println(strings.Repeat("-", 85))
	printInfo(fmt.Sprintf("\nSummary: %d/%d migrations applied", len(applied), len(all)))
	return nil
}

// Seed runs the demo data files. Seeds are idempotent and not tracked.
func (m *Migrator) Seed() error {
	seeds, err := listMigrations(m.files, "seed")
	if err != nil {
		return err
	}
	if len(seeds) == 0 {
		printWarning("No seed files found")
		return nil
	}

	for _, seed := range seeds {
		content, err := fs.ReadFile(m.files, seed.Path)
		if err != nil {
			return fmt.Errorf("failed to read seed file: %w", err)
		}
		if _, err := m.db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute seed %03d_%s: %w", seed.Version, seed.Name, err)
		}
		printSuccess(fmt.Sprintf("  ✓ Seed %03d_%s applied", seed.Version, seed.Name))
	}
	return nil
}

func (m *Migrator) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// listMigrations returns the NNN_name.sql files directly under dir,
// ordered by version.
func listMigrations(files fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(files, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var out []Migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		matches := migrationPattern.FindStringSubmatch(entry.Name())
		if matches == nil {
			continue
		}
		version, _ := strconv.Atoi(matches[1])
		out = append(out, Migration{
			Version: version,
			Name:    matches[2],
			Path:    path.Join(dir, entry.Name()),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func descendingVersions(applied map[int]Migration) []int {
	versions := make([]int, 0, len(applied))
	for v := range applied {
		versions = append(versions, v)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(versions)))
	return versions
}
