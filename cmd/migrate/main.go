package main

import (
	"context"
	"fmt"
	"log"

	"esusu/internal/config"
	"esusu/internal/db"
	"esusu/internal/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	database, err := db.Connect(cfg)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer database.Close()

	applied, err := migrations.Apply(context.Background(), database)
	if err != nil {
		log.Fatalf("failed to apply migrations: %v", err)
	}
	for _, filename := range applied {
		fmt.Printf("applied %s\n", filename)
	}
	if len(applied) == 0 {
		fmt.Println("schema is up to date")
	}
}
