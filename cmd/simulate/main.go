package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/rarestbarbie/majesty-sub001/internal/config"
	"github.com/rarestbarbie/majesty-sub001/internal/model"
	"github.com/rarestbarbie/majesty-sub001/internal/sim"
	"github.com/rarestbarbie/majesty-sub001/internal/ticker"
)

var (
	configFile   string
	turns        int
	seed         uint64
	quiet        bool
	verbose      bool
	snapshotFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the economy headless for a number of turns",
		Long: `Runs a scenario without the HTTP server and prints per-turn
summaries, final market prices and agent balances.`,
		Args: cobra.NoArgs,
		RunE: runSimulation,
	}

	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to scenario YAML (default: bundled example)")
	rootCmd.Flags().IntVarP(&turns, "turns", "t", 30, "Number of turns to run")
	rootCmd.Flags().Uint64VarP(&seed, "seed", "s", 0, "Override the scenario seed")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Only print the final tables")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log every turn")
	rootCmd.Flags().StringVarP(&snapshotFile, "snapshot", "o", "", "Write the final snapshot to this file")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runSimulation(cmd *cobra.Command, _ []string) error {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	titleColor := color.New(color.FgCyan, color.Bold)
	successColor := color.New(color.FgGreen, color.Bold)
	infoColor := color.New(color.FgYellow)

	if turns < 1 {
		return fmt.Errorf("--turns must be positive, got %d", turns)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		color.Red("Error loading config: %v", err)
		return err
	}
	if cmd.Flags().Changed("seed") {
		cfg.Simulation.Seed = seed
	}
	tickers, err := ticker.FromScenario(cfg.Scenario)
	if err != nil {
		return err
	}

	s, err := sim.New(cfg)
	if err != nil {
		color.Red("Error building scenario: %v", err)
		return err
	}
	if !quiet {
		infoColor.Printf("Loaded %d factories, %d pops, %d markets (seed %d)\n\n",
			len(s.Factories), len(s.Pops), len(s.Exchange.Markets), cfg.Simulation.Seed)
	}

	header := []string{"Day", "Produced", "Hires", "Loops", "Arb Profit"}
	for _, cur := range s.Currencies() {
		header = append(header, tickers.Symbol(model.Fiat(cur)))
	}
	turnTable := tablewriter.NewTable(os.Stdout, tablewriter.WithHeader(header))

	for range turns {
		r := s.Step()
		row := []string{
			strconv.FormatInt(r.Day, 10),
			strconv.FormatInt(r.Produced, 10),
			strconv.FormatInt(r.Hires, 10),
			strconv.Itoa(len(r.Arbitrage)),
			strconv.FormatInt(r.ArbitrageProfit(), 10),
		}
		for _, cur := range s.Currencies() {
			row = append(row, strconv.FormatInt(r.Money[cur], 10))
		}
		_ = turnTable.Append(row)
	}

	if !quiet {
		titleColor.Println("Turns")
		_ = turnTable.Render()
		fmt.Println()
	}

	titleColor.Println("Markets")
	printMarkets(s, tickers)
	fmt.Println()

	titleColor.Println("Agents")
	printAgents(s)

	if snapshotFile != "" {
		data, err := s.Encode()
		if err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}
		if err := os.WriteFile(snapshotFile, data, 0o644); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
		infoColor.Printf("\nSnapshot written to %s (%d bytes)\n", snapshotFile, len(data))
	}

	successColor.Printf("\nCompleted %d turns, day %d\n", turns, s.Day)
	return nil
}

func printMarkets(s *sim.Simulation, tickers *ticker.Registry) {
	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Ticker", "Base", "Quote", "Price", "Yesterday", "Volume"}),
	)
	for _, p := range s.Exchange.Pairs() {
		m := s.Exchange.Markets[p]
		var volume int64
		if n := len(m.History); n > 0 {
			volume = m.History[n-1].VolumeBase
		}
		_ = table.Append([]string{
			tickers.Format(p),
			strconv.FormatInt(m.Pool.Base, 10),
			strconv.FormatInt(m.Pool.Quote, 10),
			m.Pool.Price().Decimal().StringFixed(4),
			m.Yesterday().Decimal().StringFixed(4),
			strconv.FormatInt(volume, 10),
		})
	}
	_ = table.Render()
}

func printAgents(s *sim.Simulation) {
	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"ID", "Kind", "Type", "Location", "Size", "Cash", "Staff", "Produced"}),
	)
	for _, f := range s.Factories {
		_ = table.Append([]string{
			strconv.FormatInt(int64(f.ID), 10),
			"factory",
			f.Type,
			strconv.FormatInt(int64(f.Location), 10),
			strconv.FormatInt(f.Size, 10),
			strconv.FormatInt(f.Account.Balance(), 10),
			fmt.Sprintf("%d+%d", f.Workers.Count, f.Clerks.Count),
			strconv.FormatInt(f.Produced, 10),
		})
	}
	for _, p := range s.Pops {
		_ = table.Append([]string{
			strconv.FormatInt(int64(p.ID), 10),
			"pop",
			p.Type,
			strconv.FormatInt(int64(p.Location), 10),
			strconv.FormatInt(p.Size, 10),
			strconv.FormatInt(p.Account.Balance(), 10),
			strconv.FormatInt(p.Employed, 10),
			"",
		})
	}
	_ = table.Render()
}
