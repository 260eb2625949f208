package main

import (
	"context"
	"flag"
	"log"
	"strings"

	"github.com/joho/godotenv"

	"satchel/internal/config"
	"satchel/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	flag.Parse()

	// A .env in the working directory may carry SATCHEL_CONFIG and the
	// remote credential overrides; absence is fine.
	_ = godotenv.Load()

	cfg, _, _, err := config.Load(strings.TrimSpace(*configPath))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	opts := daemonrun.Options{LogLevel: strings.TrimSpace(*logLevel)}
	if err := daemonrun.Run(context.Background(), cfg, opts); err != nil {
		log.Fatalf("satcheld: %v", err)
	}
}
