package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/marketsim/config"
	"github.com/rustyeddy/marketsim/history"
	"github.com/rustyeddy/marketsim/market"
	"github.com/rustyeddy/marketsim/oanda"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Bring the local candle store up to date",
	Long: `Fetch downloads every one-minute candle between the latest stored
minute and the most recently completed minute, in batches, and appends
them to the local store.

The OANDA access token is read from the OANDA_API_KEY environment
variable.

Example:
  marketsim fetch -f simulation.yaml`,
	RunE: runFetch,
}

var fetchConfigPath string

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringVarP(&fetchConfigPath, "file", "f", "", "path to config file (required)")
	fetchCmd.MarkFlagRequired("file")
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(fetchConfigPath)
	if err != nil {
		return err
	}

	token := os.Getenv("OANDA_API_KEY")
	if token == "" {
		return fmt.Errorf("OANDA_API_KEY is not set")
	}

	gw, store, err := openGateway(cfg, oanda.NewClient(token, cfg.Oanda.BaseURL), market.SystemClock{})
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := gw.RetrieveClosedCandles()
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	fmt.Printf("Stored %d candles in %s\n", n, cfg.History.DBPath)
	return nil
}

// openGateway wires the candle store, bulk archives and fetcher per config.
func openGateway(cfg *config.Config, fetch history.Fetcher, clock market.Clock) (*history.Gateway, *history.Store, error) {
	store, err := history.OpenStore(cfg.History.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	throttle, err := cfg.History.ParseThrottle()
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	gw := history.NewGateway(store, fetch, history.NewArchiveLoader(cfg.History.ArchiveDir), clock, history.GatewayConfig{
		Instrument: cfg.Market.Instrument,
		BatchSize:  cfg.History.BatchSize,
		Throttle:   throttle,
		Bootstrap:  cfg.History.Bootstrap,
		Alignment:  cfg.Market.Alignment(),
	})
	return gw, store, nil
}
