// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"

	"github.com/rs/zerolog/log"

	"github.com/relabs-tech/virtual_trackers/internal/app"
	"github.com/relabs-tech/virtual_trackers/internal/config"
	"github.com/relabs-tech/virtual_trackers/internal/observability"
)

func main() {
	configPath := flag.String("config", "./trackers_config.txt", "path to configuration file")
	flag.Parse()

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	observability.InitLogger("console", config.Get().LogLevel)

	log.Info().Msg("starting virtual trackers console (MQTT subscriber)")

	if err := app.RunConsoleMQTT(); err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}
