package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/capsulemail/capsuled/internal/config"
	"github.com/capsulemail/capsuled/internal/db"
	"github.com/capsulemail/capsuled/internal/util"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo users and capsules",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1) load config
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		// 2) connect MySQL
		sqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.PoolOpts{
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
			PingTimeout:     cfg.MySQL.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		log.Println(">> Seeding demo users...")
		if err := seedUsers(sqlDB); err != nil {
			return err
		}

		log.Println(">> Seeding demo capsules...")
		if err := seedCapsules(sqlDB); err != nil {
			return err
		}

		log.Println(">> Seed completed")
		return nil
	},
}

type demoUser struct {
	name   string
	email  string
	apiKey string
	rps    *int
}

// seedUsers inserts deterministic demo users (idempotent).
func seedUsers(dbx *sqlx.DB) error {
	users := []demoUser{
		{name: "Alice", email: "alice@example.com", apiKey: "11111111111111111111111111111111", rps: intptr(20)},
		{name: "Bob", email: "bob@example.com", apiKey: "22222222222222222222222222222222", rps: intptr(50)},
		{name: "Demo", email: "demo@example.com", apiKey: "33333333333333333333333333333333", rps: nil},
	}

	for _, u := range users {
		_, err := dbx.Exec(`
			INSERT INTO users (name, email, api_key, status, rate_limit_rps, created_at, updated_at)
			VALUES (?, ?, ?, 'active', ?, NOW(), NOW())
			ON DUPLICATE KEY UPDATE updated_at = NOW()
		`, u.name, u.email, u.apiKey, u.rps)
		if err != nil {
			return fmt.Errorf("seed user %s: %w", u.name, err)
		}
	}
	return nil
}

// seedCapsules inserts a couple of pending capsules: one already due so the
// next delivery run picks it up, one scheduled well into the future.
func seedCapsules(dbx *sqlx.DB) error {
	var aliceID int64
	if err := dbx.Get(&aliceID, `SELECT id FROM users WHERE email = 'alice@example.com' LIMIT 1`); err != nil {
		return fmt.Errorf("lookup seed user: %w", err)
	}

	now := time.Now().UTC()
	rows := []struct {
		title       string
		body        string
		scheduledAt time.Time
	}{
		{title: "Hello from yesterday", body: "This message was due an hour ago.", scheduledAt: now.Add(-time.Hour)},
		{title: "See you next year", body: "Remember to water the plants.", scheduledAt: now.AddDate(1, 0, 0)},
	}

	for _, r := range rows {
		_, err := dbx.Exec(`
			INSERT INTO capsules
			    (id, owner_id, title, occasion, tags, recipient_email, scheduled_at,
			     body_inline, body_ref, status, created_at, updated_at)
			VALUES (?, ?, ?, '', 'demo', 'alice@example.com', ?, ?, '', 'pending', NOW(), NOW())
		`, util.NewID(), aliceID, r.title, r.scheduledAt, r.body)
		if err != nil {
			return fmt.Errorf("seed capsule %q: %w", r.title, err)
		}
	}
	return nil
}

func intptr(v int) *int { return &v }
