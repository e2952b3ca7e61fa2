// Command augurctl is a terminal client of the location API. It restores a
// share query, loads the report for its location and prints the chart, the
// share link and the overlay tile URL.
//
// Usage:
//
//	go run ./cmd/augurctl -query 'lat=-12.101622&lng=-76.985037&year=2050' \
//	  -uncertainty -download augur-data.txt
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/augurworld/augur/internal/adapter/locationapi"
	"github.com/augurworld/augur/internal/session"
	"github.com/augurworld/augur/internal/urlstate"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "augurctl:", err)
		os.Exit(1)
	}
}

func run() error {
	apiURL := flag.String("api", sharedcfg.EnvOrDefault("AUGUR_API_URL", "http://localhost:8080"), "base URL of the location API")
	query := flag.String("query", "", "share query, e.g. lat=47.37&lng=8.54&year=2040")
	uncertainty := flag.Bool("uncertainty", false, "show the uncertainty band")
	download := flag.String("download", "", "write the data download to this file")
	timeout := flag.Duration("timeout", 10*time.Second, "per-request timeout")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Parse()

	logger := sharedobs.NewLogger(*logLevel, "text")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := locationapi.New(*apiURL, *timeout, logger)
	serverCfg, err := client.Config(ctx)
	if err != nil {
		return fmt.Errorf("load server config: %w", err)
	}

	codec, err := urlstate.NewCodec(serverCfg.Years, serverCfg.OverlayPeriods, serverCfg.DefaultOverlayPeriod)
	if err != nil {
		return err
	}
	sess := session.New(client, codec, serverCfg.Periods, serverCfg.TileURLTemplate, logger)
	sess.SetUncertainty(*uncertainty)

	select {
	case <-sess.ApplyQuery(ctx, *query):
	case <-ctx.Done():
		return ctx.Err()
	}

	st := sess.State()
	if st.Coordinate == nil {
		return errors.New("the query does not name a valid location (lat and lng)")
	}
	if st.Status == session.StatusError {
		return fmt.Errorf("load location: %w", st.Err)
	}

	m, err := sess.Chart()
	if err != nil {
		return err
	}

	if st.Place != "" {
		fmt.Println(st.Place)
	}
	fmt.Printf("grid point %s\n\n", st.Report.Location.Key())
	fmt.Print(m.Text())

	link, err := codec.ShareURL(serverCfg.PublicBaseURL, urlstate.State{
		Coordinate:    st.Coordinate,
		Year:          st.Year,
		OverlayPeriod: st.OverlayPeriod,
		Language:      st.Language,
	})
	if err != nil {
		return err
	}
	fmt.Printf("\nshare:   %s\noverlay: %s\n", link, sess.OverlayTileURL())

	if *download != "" {
		body, err := client.Download(ctx, *st.Coordinate)
		if err != nil {
			return fmt.Errorf("download: %w", err)
		}
		if err := os.WriteFile(*download, body, 0o644); err != nil { //nolint:gosec // user-chosen output file
			return fmt.Errorf("write download: %w", err)
		}
		fmt.Printf("data:    %s\n", *download)
	}
	return nil
}
