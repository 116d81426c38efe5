// Command verify_schema checks a database file for missing tables and
// migrated columns without changing it.
package main

import (
	"flag"
	"fmt"
	"os"

	"investment-core/pkg/db"
)

func main() {
	dbPath := flag.String("db", "./data/investment.db", "path to the SQLite database")
	flag.Parse()
	fmt.Printf("Verifying database at: %s\n", *dbPath)

	if _, err := os.Stat(*dbPath); err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", *dbPath, err)
		os.Exit(1)
	}
	database, err := db.New(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	missing, err := db.VerifySchema(database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "verify: %v\n", err)
		os.Exit(1)
	}
	if len(missing) == 0 {
		fmt.Println("✓ schema is up to date")
		return
	}
	for _, m := range missing {
		fmt.Printf("❌ %s MISSING\n", m)
	}
	fmt.Println("run the service once to apply migrations")
	os.Exit(2)
}
