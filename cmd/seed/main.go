package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/pandochealth/triage/internal/directory"
)

// Canonical specialty taxonomy, ordered for display. Idempotent to re-run.
var specialties = []string{
	"Family Medicine", "Internal Medicine", "Hospital Medicine", "Geriatric Medicine",
	"Preventive Medicine", "Emergency Medicine", "Critical Care Medicine", "Anesthesiology",
	"Cardiology", "Pulmonology", "Gastroenterology", "Hepatology", "Nephrology",
	"Endocrinology, Diabetes & Metabolism", "Rheumatology", "Infectious Diseases",
	"Hematology", "Medical Oncology", "Allergy & Immunology", "Pediatrics", "Neonatology",
	"Neurology", "Psychiatry", "Gynecology", "General Surgery", "Cardiothoracic Surgery",
	"Vascular Surgery", "Neurosurgery", "Orthopedic Surgery", "Otolaryngology (ENT)",
	"Plastic & Reconstructive Surgery", "Urology", "Ophthalmology", "Pediatric Surgery",
	"Dermatology", "Diagnostic Radiology", "Radiation Oncology",
	"Physical Medicine & Rehabilitation", "Sports Medicine", "Sleep Medicine",
	"Addiction Medicine", "Wound Care", "Pain Medicine", "Clinical Nutrition",
}

func main() {
	_ = godotenv.Load()

	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("ping db: %v", err)
	}

	store := directory.NewPostgresStore(db)
	for i, name := range specialties {
		spec := directory.Specialty{Name: name, Active: true, DisplayOrder: i + 1}
		if err := store.UpsertSpecialty(ctx, spec); err != nil {
			log.Fatalf("upsert %q: %v", name, err)
		}
	}

	fmt.Printf("seeded %d specialties\n", len(specialties))
}
