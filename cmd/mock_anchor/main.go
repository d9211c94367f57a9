// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/relabs-tech/virtual_trackers/internal/app"
	"github.com/relabs-tech/virtual_trackers/internal/config"
	"github.com/relabs-tech/virtual_trackers/internal/observability"
)

func main() {
	configPath := flag.String("config", "./trackers_config.txt", "path to configuration file")
	interval := flag.Duration("interval", 10*time.Millisecond, "anchor publish period")
	dropouts := flag.Bool("dropouts", false, "drop tracking for one second in every five")
	flag.Parse()

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	observability.InitLogger("mock_anchor", config.Get().LogLevel)

	log.Info().Dur("interval", *interval).Msg("starting mock anchor producer (mock → MQTT)")

	if err := app.RunMockAnchor(*interval, *dropouts); err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}
