package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/joho/godotenv"

	"commission-app/database"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found. Using system environment variables.")
	}
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	dsn := os.Getenv("DB_URL")
	if dsn == "" {
		log.Fatal("DB_URL not set")
	}

	m, err := database.NewMigrator(dsn)
	if err != nil {
		log.Fatal(err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.Printf("closing migrator: %v, %v", srcErr, dbErr)
		}
	}()

	switch os.Args[1] {
	case "up":
		report(m.Up(), "migrations applied")

	case "down":
		report(m.Steps(-1), "last migration rolled back")

	case "goto":
		if len(os.Args) < 3 {
			log.Fatal("goto needs a version number")
		}
		version, err := strconv.ParseUint(os.Args[2], 10, 64)
		if err != nil {
			log.Fatalf("invalid version: %v", err)
		}
		report(m.Migrate(uint(version)), fmt.Sprintf("migrated to version %d", version))

	case "status":
		version, dirty, err := m.Version()
		switch {
		case errors.Is(err, migrate.ErrNilVersion):
			log.Println("no migrations applied yet")
		case err != nil:
			log.Fatalf("read version: %v", err)
		case dirty:
			log.Printf("version %d (dirty)", version)
		default:
			log.Printf("version %d", version)
		}

	default:
		printUsage()
		os.Exit(1)
	}
}

func report(err error, done string) {
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Println("no change: schema already at target")
	case err != nil:
		log.Fatal(err)
	default:
		log.Println(done)
	}
}

func printUsage() {
	fmt.Println("usage: migrate <command>")
	fmt.Println("  up     apply all pending migrations")
	fmt.Println("  down   roll back the last migration")
	fmt.Println("  goto N migrate to version N")
	fmt.Println("  status print the current version")
}
