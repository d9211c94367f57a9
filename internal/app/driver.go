// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/relabs-tech/virtual_trackers/internal/config"
	"github.com/relabs-tech/virtual_trackers/internal/driver"
	"github.com/relabs-tech/virtual_trackers/internal/mqttbus"
	"github.com/relabs-tech/virtual_trackers/internal/settings"
)

// RunDriver hosts the virtual trackers until SIGINT or SIGTERM.
func RunDriver() error {
	cfg := config.Get()
	if cfg == nil {
		return errors.New("config not initialized")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := settings.Open(cfg.SettingsPath)
	if err != nil {
		return fmt.Errorf("open settings: %w", err)
	}
	go store.Watch(ctx, cfg.SettingsReload())

	// --- connect to MQTT ---
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDDriver).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect: %w", token.Error())
	}
	defer client.Disconnect(250)
	log.Info().Str("broker", cfg.MQTTBroker).Msg("driver: connected to MQTT")

	source := mqttbus.NewSource(cfg.TopicPrefix, cfg.StaleAfter())
	if err := source.Subscribe(client); err != nil {
		return err
	}

	rt := driver.NewRuntime(mqttbus.NewSink(client, cfg.TopicPrefix), cfg.FirstDeviceIndex)
	provider := driver.NewProvider(driver.ProviderOptions{
		Store:        store,
		Source:       source,
		Host:         rt,
		TickInterval: cfg.Tick(),
	})
	n := provider.Init()
	log.Info().Int("devices", n).Str("settings", cfg.SettingsPath).Msg("driver: provider initialized")

	var srv *http.Server
	if cfg.WebServerPort > 0 {
		srv = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.WebServerPort),
			Handler:           NewWebHandler(provider, rt),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info().Str("addr", srv.Addr).Msg("driver: web server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("driver: web server failed")
			}
		}()
	}

	rt.Run(ctx, provider, cfg.Frame())

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("driver: web server shutdown")
		}
	}
	log.Info().Msg("driver: stopped")
	return nil
}
