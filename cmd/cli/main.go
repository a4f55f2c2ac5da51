package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"SymptoScan/internal/config"
	"SymptoScan/internal/geminiservice"
	"SymptoScan/internal/geolocation"
	"SymptoScan/internal/screen"
	"SymptoScan/internal/utility"
	"github.com/rs/zerolog/log"
)

// A terminal rendition of one screen. Each line typed is submitted as the
// symptom text; ":info" shows the disclaimer and ":q" quits.
func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("Fatal error: could not load configuration")
	}
	utility.ConfigureLogger(cfg.LogLevel, false)

	client := geminiservice.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiBaseURL, cfg.GeminiTimeout())
	orchestrator := geminiservice.NewOrchestrator(client, &log.Logger).
		WithConcurrentDispatch(cfg.DispatchMode == config.DispatchConcurrent)

	var locator geolocation.Locator = geolocation.DisabledLocator{}
	if cfg.LocationProvider == config.LocationStatic {
		locator = geolocation.StaticLocator{Position: geolocation.Coordinate{Latitude: *cfg.StaticLatitude, Longitude: *cfg.StaticLongitude}}
	}

	ctx := context.Background()
	loc := geolocation.Acquire(ctx, locator, &log.Logger)
	s := screen.New(screen.NewID(), orchestrator, loc, render, log.Logger)

	fmt.Println("Describe your symptoms and press Enter (:info for details, :q to quit).")
	if loc != nil {
		fmt.Printf("Using location %s\n", loc)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		switch strings.TrimSpace(line) {
		case ":q":
			return
		case ":info":
			fmt.Println(screen.InfoMessage)
			continue
		}

		// Validation and upstream errors are already rendered.
		_, _ = s.SubmitText(ctx, line)
	}
	if err := scanner.Err(); err != nil {
		log.Error().Err(err).Msg("Failed to read input")
	}
}

func render(v screen.View) {
	switch v.Phase {
	case screen.PhaseLoading:
		fmt.Println("Analyzing your symptoms...")
	case screen.PhaseSuccess:
		fmt.Printf("\n== Possible diagnosis ==\n%s\n\n== Recommendations ==\n%s\n\n", v.Diagnosis, v.Recommendation)
	case screen.PhaseError:
		fmt.Printf("Error: %s\n", v.ErrorMessage)
	}
}
