package cmd

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "marketsim",
	Short: "A historical-data FX market simulator",
	Long: `Marketsim replays historical one-minute candle data through an order
matching engine.

It provides tools for:
  - Keeping a local gap-free candle store in sync with the broker API
  - Replaying stored history through market and limit orders
  - Aggregating minute candles into higher timeframes
  - Journaling order fills and portfolio valuations`,
}

var verbose bool

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initLogging)
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func initLogging() {
	// Secrets such as OANDA_API_KEY come from the environment; a local
	// .env file is a convenience, not a requirement.
	_ = godotenv.Load()

	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}
