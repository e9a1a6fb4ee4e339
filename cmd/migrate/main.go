package main

import (
	"flag"
	"os"

	log "github.com/sirupsen/logrus"

	"snipewatch/pkg/config"
)

func main() {
	down := flag.Bool("down", false, "roll back the last migration instead of applying pending ones")
	flag.Parse()

	config.LoadDotEnv()
	cfg, err := config.LoadDatabaseFrom(os.LookupEnv)
	if err != nil {
		log.Fatal("Invalid database configuration: ", err)
	}

	db, err := config.ConnectDatabase(cfg.DSN())
	if err != nil {
		log.Fatal(err)
	}
	defer func() {
		if err := config.CloseDatabase(db); err != nil {
			log.WithError(err).Warn("Failed to close database")
		}
	}()

	if *down {
		err = config.RollbackMigration(db)
	} else {
		err = config.ExecuteMigrations(db)
	}
	if err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
