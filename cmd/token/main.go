package main

import (
	"flag"
	"log"
	"os"

	"esusu/internal/tools/tokengen"
)

func main() {
	cfg, err := tokengen.ParseConfig(flag.CommandLine, os.Args[1:], os.Getenv("JWT_SECRET"))
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	if err := tokengen.Run(cfg, os.Stdout); err != nil {
		log.Fatalf("issue token: %v", err)
	}
}
