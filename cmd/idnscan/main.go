package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zbear0808/laser-idn-project-sub009/internal/hello"
)

func main() {
	var (
		broadcast = flag.String("broadcast", "255.255.255.255:7255", "broadcast address to scan")
		timeout   = flag.Duration("timeout", 2*time.Second, "how long to wait for responses")
		debug     = flag.Bool("debug", false, "verbose logging")
	)
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}

	results, err := hello.Scan(context.Background(), *broadcast, *timeout, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("scan failed")
	}
	if len(results) == 0 {
		fmt.Println("no units responded")
		return
	}
	for _, r := range results {
		status := ""
		if r.Status&hello.StatusRealtime != 0 {
			status += " realtime"
		}
		if r.Status&hello.StatusOccupied != 0 {
			status += " occupied"
		}
		if r.Status&hello.StatusExcluded != 0 {
			status += " excluded"
		}
		if r.Status&hello.StatusOffline != 0 {
			status += " offline"
		}
		if r.Status&hello.StatusMalfunction != 0 {
			status += " malfunction"
		}
		fmt.Printf("%-20s %-21s v%s unit=%s%s\n",
			r.HostName, r.Addr.String(), r.Version, r.UnitIDString(), status)
	}
}
