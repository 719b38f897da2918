package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"

	"github.com/jeongseonghan/ofdm-modem/internal/audio"
	"github.com/jeongseonghan/ofdm-modem/internal/config"
	"github.com/jeongseonghan/ofdm-modem/internal/server"
)

// audioOutput adapts the PortAudio player to the server's Output.
type audioOutput struct {
	player *audio.Player
}

func (a *audioOutput) Play(samples []float64) error {
	return a.player.Play(samples)
}

func (a *audioOutput) Devices() ([]server.Device, error) {
	devices, err := audio.ListDevices()
	if err != nil {
		return nil, err
	}
	out := make([]server.Device, len(devices))
	for i, d := range devices {
		out[i] = server.Device{
			Name:              d.Name,
			MaxOutputChannels: d.MaxOutputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			IsDefault:         d.IsDefault,
		}
	}
	return out, nil
}

func main() {
	var (
		configFile  = pflag.StringP("config", "c", "", "YAML configuration file (defaults when empty)")
		addr        = pflag.StringP("addr", "a", "", "Server address (overrides config)")
		workers     = pflag.IntP("workers", "w", 0, "Modem slots (overrides config)")
		enableAudio = pflag.Bool("audio", false, "Enable audio playback (overrides config)")
		listDevices = pflag.Bool("list-devices", false, "List audio devices and exit")
	)
	pflag.Parse()

	cfg := config.Default()
	if *configFile != "" {
		var err error
		if cfg, err = config.Load(*configFile); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *workers > 0 {
		cfg.Server.Workers = *workers
	}
	if *enableAudio {
		cfg.Audio.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	if *listDevices {
		if err := audio.Init(); err != nil {
			log.Fatalf("Failed to initialize PortAudio: %v", err)
		}
		defer audio.Terminate()
		if err := audio.PrintDevices(os.Stdout); err != nil {
			log.Fatalf("Failed to list devices: %v", err)
		}
		return
	}

	var output server.Output
	if cfg.Audio.Enabled {
		if err := audio.Init(); err != nil {
			log.Fatalf("Failed to initialize PortAudio: %v", err)
		}
		defer audio.Terminate()

		player := audio.NewPlayer(cfg.Audio.SampleRate, cfg.Audio.FramesPerBuf, cfg.Audio.Amplitude)
		if err := player.Open(); err != nil {
			log.Fatalf("Failed to open audio output: %v", err)
		}
		defer player.Close()
		output = &audioOutput{player: player}
		log.Printf("Audio output enabled (%.0f Hz, %d frames/buffer)", cfg.Audio.SampleRate, cfg.Audio.FramesPerBuf)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := server.NewMetrics(reg)

	handlers, err := server.NewHandlers(cfg, output, metrics)
	if err != nil {
		log.Fatalf("Failed to create handlers: %v", err)
	}
	srv := server.NewServer(cfg.Server.Addr, handlers, reg)

	log.Printf("Modem: %d subcarriers, prefix %d, pilot every %d, %s, %s transform, %d workers",
		cfg.Modem.NumSubcarriers, cfg.Modem.CyclicPrefixLength, cfg.Modem.PilotInterval,
		cfg.Modem.Modulation, cfg.Modem.Transform, cfg.Server.Workers)

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()
	fmt.Printf("\n  OFDM Modem Server running at http://%s\n\n", cfg.Server.Addr)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server error: %v", err)
		}
	case <-sigCh:
		fmt.Println("\nShutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}
}
