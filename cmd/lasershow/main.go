package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zbear0808/laser-idn-project-sub009/internal/config"
	"github.com/zbear0808/laser-idn-project-sub009/internal/hello"
	"github.com/zbear0808/laser-idn-project-sub009/internal/monitor"
	"github.com/zbear0808/laser-idn-project-sub009/internal/player"
	"github.com/zbear0808/laser-idn-project-sub009/internal/routing"
	"github.com/zbear0808/laser-idn-project-sub009/internal/show"
	"github.com/zbear0808/laser-idn-project-sub009/internal/stream"
)

func main() {
	var (
		configPath  = flag.String("config", "show.yaml", "path to show.yaml")
		addr        = flag.String("addr", ":8080", "HTTP listen address for the monitor")
		broadcast   = flag.String("broadcast", "255.255.255.255:7255", "discovery broadcast address")
		scanTimeout = flag.Duration("scan-timeout", 2*time.Second, "discovery wait time")
		noScan      = flag.Bool("no-scan", false, "skip discovery; use configured devices only")
		fps         = flag.Int("fps", 0, "target frames per second (overrides config)")
		profileName = flag.String("profile", "", "bit-depth preset (overrides config)")
		debug       = flag.Bool("debug", false, "verbose logging")
	)
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Warn().Err(err).Str("path", *configPath).Msg("config load failed; using built-in demo setup")
		cfg = demoConfig()
	}

	eFPS := cfg.FPS
	if *fps > 0 {
		eFPS = *fps
	}
	ePreset := cfg.Profile
	if *profileName != "" {
		ePreset = *profileName
	}
	profile, err := stream.ProfileByName(ePreset)
	if err != nil {
		log.Fatal().Err(err).Msg("bad bit-depth preset")
	}

	reg := hello.NewRegistry(log.Logger)
	for _, d := range cfg.Devices {
		reg.Register(d.ID, d.Addr, d.Port, d.ClientGroup)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !*noScan {
		ids, err := hello.DiscoverAndRegister(ctx, reg, *broadcast, *scanTimeout, log.Logger)
		if err != nil {
			log.Warn().Err(err).Msg("discovery failed; continuing with configured devices")
		} else {
			log.Info().Strs("devices", ids).Msg("discovered units")
		}
	}
	if len(reg.List()) == 0 {
		log.Warn().Msg("no devices registered; packets will have nowhere to go")
	}

	client, err := hello.NewClient(reg, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("hello client")
	}
	defer client.Close()

	outputs := cfg.ShowOutputs()
	outputsFn := func() []show.Output { return outputs }
	cue := demoCue()
	cueFn := func() show.Cue { return cue }

	mon := monitor.New(cueFn, outputsFn, log.Logger)
	mux := http.NewServeMux()
	mux.HandleFunc("/routing", mon.HandleRoutingWS)
	mux.HandleFunc("/packets", mon.HandlePacketsWS)
	mux.HandleFunc("/health", mon.HandleHealth)
	srv := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		log.Info().Str("addr", *addr).Msg("monitor listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("monitor server stopped")
		}
	}()

	streamer := player.New(player.Options{
		Profile:      profile,
		FPS:          eFPS,
		ConfigResend: time.Duration(cfg.ConfigResendMS) * time.Millisecond,
		Observer:     mon.ObservePacket,
	}, client, cueFn, outputsFn, newDemoSource(eFPS), log.Logger)

	log.Info().Int("fps", eFPS).Int("outputs", len(outputs)).
		Int("pos_bits", profile.PositionBits).Int("color_bits", profile.ColorBits).
		Msg("streaming")
	if err := streamer.Run(ctx); err != nil {
		log.Error().Err(err).Msg("streamer stopped")
	}

	_ = srv.Close()
	log.Info().Msg("shut down")
}

// demoConfig keeps the binary useful without a show.yaml: one local device,
// one output in the default zone group.
func demoConfig() *config.Config {
	return &config.Config{
		Profile: "default",
		FPS:     30,
		Devices: []config.DeviceCfg{
			{ID: "local", Addr: "127.0.0.1"},
		},
		Outputs: []config.OutputCfg{
			{ID: "main", Kind: "physical", DeviceID: "local", ZoneGroups: []int{routing.DefaultZoneGroup}},
		},
	}
}

func demoCue() show.Cue {
	return show.Cue{Name: "demo"}
}
