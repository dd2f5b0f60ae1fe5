// Command joycond watches for Nintendo Switch controllers and presents
// them to the system as uniform virtual gamepads: Joy-Con pairs combine
// into one device, lone pads become a virtual Pro Controller, and rumble,
// LEDs and key remapping are relayed in both directions.
package main

import (
	"flag"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	joycond "github.com/joycond-linux/go-joycond"
	"github.com/joycond-linux/go-joycond/pkg/evloop"
)

func main() {
	debug := flag.Bool("debug", false, "enable debug logging")
	pretty := flag.Bool("pretty", false, "human-readable log output")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if *pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	opts, err := joycond.LoadOptions()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	mapping := joycond.NewMapping()
	opts.Seed(mapping)
	if err := mapping.LoadLayout(opts.StateDir); err != nil {
		log.Error().Err(err).Str("dir", opts.StateDir).Msg("failed to load key layout; using defaults")
	}

	loop := evloop.New()
	manager := joycond.NewManager(loop, mapping, opts)
	detector, err := joycond.NewDetector(manager, loop)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start controller detection")
	}

	var ready atomic.Bool
	ready.Store(true)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ready.Load() {
			loop.Dispatch()
			detector.Tick()
		}
	}()
	log.Info().Msg("joycond running")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigs
	log.Info().Stringer("signal", sig).Msg("shutting down")

	ready.Store(false)
	<-done

	detector.Close()
	manager.Close()
	loop.Close()
	if err := mapping.SaveLayout(opts.StateDir); err != nil {
		log.Error().Err(err).Msg("failed to persist key layout")
	}
}
