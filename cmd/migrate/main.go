package main

import (
	"errors"
	"flag"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/DuneV/Marketing-page-mockup-sub000/migrations"
)

func main() {
	down := flag.Bool("down", false, "roll back one migration instead of applying all")
	version := flag.Bool("version", false, "print the current schema version and exit")
	flag.Parse()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}

	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		log.Fatalf("open embedded migrations: %v", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer m.Close()

	if *version {
		v, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			log.Println("No migrations applied")
			return
		}
		if err != nil {
			log.Fatalf("version: %v", err)
		}
		log.Printf("Schema version %d (dirty=%t)", v, dirty)
		return
	}

	if *down {
		err = m.Steps(-1)
	} else {
		err = m.Up()
	}
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Println("Schema already up to date")
	case err != nil:
		log.Fatalf("migrate: %v", err)
	default:
		log.Println("Migrations applied")
	}
}
