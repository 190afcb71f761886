package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/the-bazaar/bazaar-backend/internal/config"
)

func main() {
	dir := flag.String("dir", "db/migrations", "Directory containing goose SQL migrations")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: migrate [--dir db/migrations] <up|down|status|reset|version|redo>")
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}
	command := flag.Arg(0)

	cfg := config.Load()
	sqlDB, err := goose.OpenDBWithDriver("postgres", cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer func() {
		if err := sqlDB.Close(); err != nil {
			log.Printf("warning: failed to close database: %v", err)
		}
	}()

	if err := goose.Run(command, sqlDB, *dir, flag.Args()[1:]...); err != nil {
		log.Fatalf("migrate %s: %v", command, err)
	}
}
