package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/marketsim/config"
	"github.com/rustyeddy/marketsim/history"
	"github.com/rustyeddy/marketsim/journal"
	"github.com/rustyeddy/marketsim/market"
	"github.com/rustyeddy/marketsim/sim"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay stored history through the matching engine",
	Long: `Run replays one-minute candles between the configured start and end
times, ticking the matching engine once per step and journaling fills,
cancellations and portfolio valuations.

Example:
  marketsim run -f simulation.yaml --side buy --units 1000 --limit 1.0200`,
	RunE: runSimulation,
}

var (
	runConfigPath string
	runSide       string
	runKind       string
	runUnits      int
	runLimit      float64
	runExpire     time.Duration
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "file", "f", "", "path to config file (required)")
	runCmd.Flags().StringVar(&runSide, "side", "buy", "order side (buy, sell)")
	runCmd.Flags().StringVar(&runKind, "kind", "market", "order kind (market, limit)")
	runCmd.Flags().IntVar(&runUnits, "units", 0, "order units; 0 runs the replay without an order")
	runCmd.Flags().Float64Var(&runLimit, "limit", 0, "limit price for limit orders")
	runCmd.Flags().DurationVar(&runExpire, "expire", 0, "order lifetime; 0 is good-till-cancelled")

	runCmd.MarkFlagRequired("file")
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(runConfigPath)
	if err != nil {
		return err
	}
	if cfg.Simulation.Start.IsZero() || cfg.Simulation.End.IsZero() {
		return fmt.Errorf("simulation.start and simulation.end are required for run")
	}

	tick, err := cfg.Simulation.ParseTick()
	if err != nil {
		return err
	}

	clock := sim.NewClock(cfg.Simulation.Start)

	gw, store, err := openGateway(cfg, replayFetcher{}, clock)
	if err != nil {
		return err
	}
	defer store.Close()

	jnl, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer jnl.Close()

	policy := sim.ExpireOnOpenTicks
	if cfg.Engine.ExpireWhileClosed {
		policy = sim.ExpireWhileClosed
	}

	mkt := history.NewMarket(gw, clock, cfg.Market.Instrument)
	engine := sim.NewEngine(mkt, clock, policy)

	tracker := &portfolioTracker{}
	listener := journal.NewListener(jnl, tracker)

	if runUnits > 0 {
		order, err := buildOrder(cfg.Market.Instrument, clock.Now())
		if err != nil {
			return err
		}
		req, err := engine.Submit(listener, order)
		if err != nil {
			return err
		}
		log.Info().Str("order", req.ID).Str("side", runSide).Str("kind", runKind).Msg("order submitted")
	}

	ticks := 0
	for !clock.Now().After(cfg.Simulation.End) {
		engine.Tick()

		if mkt.IsAvailable() {
			snap := journal.SnapshotRecord{
				Time: clock.Now(),
				Pips: tracker.portfolio.Pips(mkt.CurrentPrice),
			}
			if err := jnl.RecordSnapshot(snap); err != nil {
				log.Warn().Err(err).Msg("snapshot write failed")
			}
		}

		clock.Advance(tick)
		ticks++
	}

	fmt.Printf("Replay complete: %d ticks, %d orders still open\n", ticks, len(engine.OpenOrders()))
	fmt.Printf("  Portfolio: %.1f pips\n", tracker.portfolio.Pips(mkt.CurrentPrice))
	return nil
}

func buildOrder(instrument string, now time.Time) (sim.Order, error) {
	var order sim.Order
	switch strings.ToLower(runSide) + "/" + strings.ToLower(runKind) {
	case "buy/market":
		order = sim.BuyMarket(instrument, runUnits)
	case "sell/market":
		order = sim.SellMarket(instrument, runUnits)
	case "buy/limit":
		order = sim.BuyLimit(instrument, runUnits, market.FromFloat(runLimit))
	case "sell/limit":
		order = sim.SellLimit(instrument, runUnits, market.FromFloat(runLimit))
	default:
		return sim.Order{}, fmt.Errorf("unknown side/kind %s/%s", runSide, runKind)
	}

	if runExpire > 0 {
		order = order.WithExpiration(now.Add(runExpire))
	}
	return order, nil
}

func openJournal(cfg *config.Config) (journal.Journal, error) {
	switch cfg.Journal.Type {
	case "csv":
		return journal.NewCSV(cfg.Journal.OrdersFile, cfg.Journal.SnapshotsFile)
	default:
		return journal.NewSQLite(cfg.Journal.DBPath)
	}
}

// portfolioTracker turns fills into open positions for valuation.
type portfolioTracker struct {
	portfolio sim.Portfolio
}

func (p *portfolioTracker) OnFilled(req sim.OrderRequest) {
	p.portfolio.Positions = append(p.portfolio.Positions, sim.Position{
		Instrument: req.Instrument,
		Units:      req.Units,
		Side:       req.Side,
		EntryPrice: req.ExecutionPrice,
	})
}

func (p *portfolioTracker) OnCancelled(req sim.OrderRequest) {}

// replayFetcher rejects incremental fetches; replays read cached archives only.
type replayFetcher struct{}

func (replayFetcher) FetchCandles(string, market.TimeRange) (market.Series, error) {
	return nil, fmt.Errorf("incremental fetch disabled during replay")
}
