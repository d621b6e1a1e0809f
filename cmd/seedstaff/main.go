package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"safelink/internal/config"
	"safelink/internal/models"
	"safelink/internal/repositories/mongodb"
	"safelink/internal/utils"
	"safelink/pkg/database"
)

// seedstaff loads the responder roster from a JSON file and upserts it into
// the staff collection, keyed by email. Safe to re-run.
//
// Usage: seedstaff -file roster.json
func main() {
	file := flag.String("file", "roster.json", "path to the roster JSON file")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("Failed to read roster file: %v", err)
	}

	var roster []*models.Staff
	if err := json.Unmarshal(data, &roster); err != nil {
		log.Fatalf("Failed to parse roster file: %v", err)
	}

	db, err := database.NewMongoDB(&database.DatabaseConfig{
		URI:            cfg.Database.URI,
		Database:       cfg.Database.Database,
		MaxPoolSize:    cfg.Database.MaxPoolSize,
		MinPoolSize:    cfg.Database.MinPoolSize,
		ConnectTimeout: cfg.Database.ConnectTimeout,
		SocketTimeout:  cfg.Database.SocketTimeout,
	})
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer db.Close()

	staffRepo := mongodb.NewStaffRepository(db.Database)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	seeded := 0
	for _, staff := range roster {
		if staff.Email == "" || staff.Name == "" {
			log.Printf("Skipping roster entry with missing name or email: %+v", staff)
			continue
		}
		if staff.Role != models.StaffRoleProctorial && staff.Role != models.StaffRoleSecurity {
			log.Printf("Skipping %s: unknown role %q", staff.Email, staff.Role)
			continue
		}
		if staff.Phone != "" && !utils.IsValidPhone(staff.Phone) {
			log.Printf("Skipping %s: invalid phone %q", staff.Email, staff.Phone)
			continue
		}

		if err := staffRepo.UpsertByEmail(ctx, staff); err != nil {
			log.Fatalf("Failed to upsert %s: %v", staff.Email, err)
		}
		seeded++
	}

	log.Printf("Seeded %d staff members from %s", seeded, *file)
}
