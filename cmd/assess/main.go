package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/couchcryptid/road-risk-playground/internal/adapter/mapbox"
	"github.com/couchcryptid/road-risk-playground/internal/adapter/riskapi"
	"github.com/couchcryptid/road-risk-playground/internal/config"
	"github.com/couchcryptid/road-risk-playground/internal/domain"
	"github.com/couchcryptid/road-risk-playground/internal/observability"
	"github.com/couchcryptid/road-risk-playground/internal/session"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const momentLayout = "Mon Jan 2 2006 15:04 MST"

var (
	envFile string
	from    string
	to      string
	at      string
	wait    time.Duration

	rootCmd = &cobra.Command{
		Use:   "assess",
		Short: "Assess the crash risk of one drive.",
		Long: `Resolves an origin and a destination, asks the risk backend for the
route's crash risk at the given travel moment and prints the model inputs.

Places are either "lat,lng" pairs or free text geocoded through Mapbox.`,
		Example:      `  assess --from "30.2672,-97.7431" --to "Denton, TX" --at 2024-05-01T08:00`,
		SilenceUsage: true,
		RunE:         run,
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "The env file to read.")
	rootCmd.Flags().StringVar(&from, "from", "", "Origin as \"lat,lng\" or a place name.")
	rootCmd.Flags().StringVar(&to, "to", "", "Destination as \"lat,lng\" or a place name.")
	rootCmd.Flags().StringVar(&at, "at", "", "Travel moment (YYYY-MM-DDTHH:mm[:ss]); defaults to now.")
	rootCmd.Flags().DurationVar(&wait, "wait", time.Minute, "How long to wait for the assessment.")
	_ = rootCmd.MarkFlagRequired("from")
	_ = rootCmd.MarkFlagRequired("to")
}

func initConfig() {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load env file", "file", envFile, "error", err)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !cfg.RiskAPIEnabled() {
		return errors.New("RISK_API_BASE_URL is required")
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), wait)
	defer cancel()

	origin, err := resolvePlace(ctx, geocoder, from)
	if err != nil {
		return fmt.Errorf("origin: %w", err)
	}
	destination, err := resolvePlace(ctx, geocoder, to)
	if err != nil {
		return fmt.Errorf("destination: %w", err)
	}

	assessor := riskapi.NewClient(cfg.RiskAPIBaseURL, cfg.RiskAPITimeout, logger)
	sess := session.New("cli", assessor, nil, cfg.TravelLocation, logger, metrics)
	defer sess.Close()

	settled := make(chan session.View, 1)
	sess.OnView(func(v session.View) {
		if v.Request.Phase != domain.PhaseSuccess && v.Request.Phase != domain.PhaseError {
			return
		}
		select {
		case settled <- v:
		default:
		}
	})

	sel := sess.Selection()
	if err := sel.SetTravelMoment(at); err != nil {
		return err
	}
	if err := sel.SetOrigin(&origin); err != nil {
		return fmt.Errorf("origin: %w", err)
	}
	if err := sel.SetDestination(&destination); err != nil {
		return fmt.Errorf("destination: %w", err)
	}

	var v session.View
	select {
	case v = <-settled:
	case <-ctx.Done():
		return fmt.Errorf("waiting for assessment: %w", ctx.Err())
	}
	if v.Request.Phase == domain.PhaseError || v.Result == nil {
		return fmt.Errorf("assessment %d: %w", v.Request.ID, domain.ErrRequestFailed)
	}

	out := cmd.OutOrStdout()
	when, err := v.Selection.TravelMoment.Time(sel.Location())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s -> %s at %s\n\n", label(origin), label(destination), when.Format(momentLayout))
	v.Result.WriteTable(out)
	return nil
}
