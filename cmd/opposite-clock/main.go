package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"opposite-clock/config"
	"opposite-clock/internal/api"
	"opposite-clock/internal/catalog"
	"opposite-clock/internal/clock"
	"opposite-clock/internal/display"
	"opposite-clock/internal/imagery"
	"opposite-clock/internal/location"
	"opposite-clock/internal/logging"
	"opposite-clock/internal/metrics"
	"opposite-clock/internal/mqtt"
	"opposite-clock/internal/refresh"
	"opposite-clock/internal/storage"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	configFile string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "opposite-clock",
		Short: "Show a city where it is the other half of the day",
		Long:  "Resolves your timezone and keeps a board showing a random city where it is night when it is day for you, and the other way round",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logging.Setup(verbose)
			return config.LoadDotEnv(".env")
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(onceCmd())
	rootCmd.AddCommand(citiesCmd())
	rootCmd.AddCommand(imageCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the board service",
		Long:  "Start the refresh cycle, the API server and the MQTT publisher",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			m := metrics.New()

			db, err := storage.NewDatabase(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()
			log.Info().Str("path", cfg.Database.Path).Msg("database opened")

			cities, err := loadCatalog(cfg, db)
			if err != nil {
				return err
			}

			publisher, err := mqtt.NewPublisher(mqtt.PublisherConfig{
				Broker:      cfg.MQTT.Broker,
				ClientID:    cfg.MQTT.ClientID,
				Username:    cfg.MQTT.Username,
				Password:    cfg.MQTT.Password,
				TopicPrefix: cfg.MQTT.TopicPrefix,
				Enabled:     cfg.MQTT.Enabled,
			})
			if err != nil {
				log.Warn().Err(err).Msg("MQTT connection failed")
				publisher, _ = mqtt.NewPublisher(mqtt.PublisherConfig{})
			} else if cfg.MQTT.Enabled {
				log.Info().Str("broker", cfg.MQTT.Broker).Msg("MQTT connected")
				if err := publisher.PublishHomeAssistantDiscovery(); err != nil {
					log.Warn().Err(err).Msg("Home Assistant discovery failed")
				}
			}
			defer publisher.Close()

			board := display.NewBoard()
			sinks := display.Multi{board, display.NewLogSink()}
			if cfg.MQTT.Enabled {
				sinks = append(sinks, publisher)
			}

			images := newImageClient(cfg, m)

			cycle := refresh.New(refresh.Config{
				Resolver:      location.NewResolver(cfg.Location.Timezone),
				Cities:        cities,
				Images:        images,
				Sink:          sinks,
				Board:         board,
				Interval:      cfg.Refresh.Interval,
				SkipIfRunning: cfg.Refresh.SkipIfRunning,
				Metrics:       m,
				AfterUpdate: func(refresh.Report) {
					if !publisher.IsConnected() {
						return
					}
					if err := publisher.PublishSnapshot(board.Snapshot()); err != nil {
						log.Warn().Err(err).Msg("failed to publish board snapshot")
					}
				},
			})

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			if err := cycle.Start(ctx); err != nil {
				return fmt.Errorf("failed to start refresh cycle: %w", err)
			}

			var server *api.Server
			if cfg.API.Enabled {
				server = api.NewServer(api.ServerConfig{
					Port:        cfg.API.Port,
					Cycle:       cycle,
					Board:       board,
					Images:      images,
					Metrics:     m,
					ConfigPath:  cfg.SavePath(),
					CORSOrigins: cfg.API.CORSOrigins,
				})

				go func() {
					if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						log.Error().Err(err).Msg("API server error")
					}
				}()
			}

			log.Info().Msg("Opposite Clock started. Press Ctrl+C to stop.")

			<-sigChan
			log.Info().Msg("Shutting down...")
			cancel()
			cycle.Stop()

			if server != nil {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := server.Stop(shutdownCtx); err != nil {
					log.Warn().Err(err).Msg("API server shutdown")
				}
			}

			return nil
		},
	}
}

func onceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single update and print the board",
		Long:  "Resolve the location, run one full update and print the resulting board as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			cities, err := loadCatalog(cfg, nil)
			if err != nil {
				return err
			}

			board := display.NewBoard()
			cycle := refresh.New(refresh.Config{
				Resolver: location.NewResolver(cfg.Location.Timezone),
				Cities:   cities,
				Images:   newImageClient(cfg, nil),
				Sink:     display.Multi{board, display.NewLogSink()},
				Board:    board,
			})
			cycle.Activate()

			report, err := cycle.Update(cmd.Context())
			if err != nil {
				return fmt.Errorf("update failed: %w", err)
			}

			output, err := json.MarshalIndent(struct {
				Report refresh.Report   `json:"report"`
				Board  display.Snapshot `json:"board"`
			}{report, board.Snapshot()}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(output))
			return nil
		},
	}
}

func citiesCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "cities",
		Short: "List the city catalog",
		Long:  "Print every catalog city with its local time and whether it is day or night there right now",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			cities, err := loadCatalog(cfg, nil)
			if err != nil {
				return err
			}

			now := time.Now()
			statuses, err := catalog.Statuses(cities, now)
			if err != nil {
				return err
			}

			observer := location.NewResolver(cfg.Location.Timezone).Resolve()
			observerPhase, err := clock.PhaseOf(observer.Timezone, now)
			if err != nil {
				return fmt.Errorf("observer %s: %w", observer.Timezone, err)
			}

			switch strings.ToLower(format) {
			case "yaml", "yml":
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				defer enc.Close()
				return enc.Encode(statuses)
			case "table", "":
				renderCityTable(cmd.OutOrStdout(), statuses, observer, observerPhase)
				return nil
			default:
				return fmt.Errorf("unknown format %q (want table or yaml)", format)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format: table or yaml")
	return cmd
}

func renderCityTable(w io.Writer, statuses []catalog.Status, observer location.Observer, observerPhase clock.Phase) {
	fmt.Fprintf(w, "You: %s (%s), %s\n\n", observer.Label, observer.Timezone, observerPhase)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"City", "Country", "Timezone", "Local Time", "Phase", "Opposite"})
	table.SetAutoFormatHeaders(false)
	for _, s := range statuses {
		opposite := ""
		if s.Phase != observerPhase {
			opposite = "yes"
		}
		table.Append([]string{s.Name, s.Country, s.Timezone, s.LocalTime, s.Phase.String(), opposite})
	}
	table.Render()
}

func imageCmd() *cobra.Command {
	var night bool

	cmd := &cobra.Command{
		Use:   "image <city>",
		Short: "Look up a city image",
		Long:  "Run one image lookup for a city and print the URL and where it came from",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			client := newImageClient(cfg, nil)
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "Provider: %s\n", client.Provider())
			result := client.FetchCityImage(cmd.Context(), args[0], !night)

			fmt.Fprintf(out, "Query:    %s\n", result.Query)
			fmt.Fprintf(out, "Source:   %s\n", result.Source)
			fmt.Fprintf(out, "URL:      %s\n", result.URL)
			if result.Credit != "" {
				fmt.Fprintf(out, "Credit:   %s\n", result.Credit)
			}
			if result.Err != nil {
				fmt.Fprintf(out, "Reason:   %v\n", result.Err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&night, "night", false, "search for a night-time image")
	return cmd
}

// loadCatalog returns the validated city list. With a database, the
// configured file replaces the stored catalog, otherwise the defaults are
// seeded once and read back.
func loadCatalog(cfg *config.Config, db *storage.Database) ([]catalog.City, error) {
	var cities []catalog.City

	switch {
	case cfg.Catalog.File != "":
		loaded, err := catalog.LoadFile(cfg.Catalog.File)
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog: %w", err)
		}
		cities = loaded
		if db != nil {
			if err := db.ReplaceCities(cities); err != nil {
				return nil, fmt.Errorf("failed to store catalog: %w", err)
			}
		}
	case db != nil:
		seeded, err := db.SeedCities(catalog.Default())
		if err != nil {
			return nil, fmt.Errorf("failed to seed catalog: %w", err)
		}
		if seeded {
			log.Info().Msg("seeded default city catalog")
		}
		stored, err := db.ListCities()
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog: %w", err)
		}
		cities = stored
	default:
		cities = catalog.Default()
	}

	if err := catalog.Validate(cities); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	log.Info().Int("cities", len(cities)).Msg("catalog loaded")
	return cities, nil
}

func newImageClient(cfg *config.Config, m *metrics.Metrics) *imagery.Client {
	return imagery.NewClient(imagery.ClientConfig{
		AccessKey:   cfg.Unsplash.AccessKey,
		BaseURL:     cfg.Unsplash.BaseURL,
		FallbackURL: cfg.Unsplash.FallbackURL,
		Timeout:     cfg.Unsplash.Timeout,
		Metrics:     m,
	})
}
