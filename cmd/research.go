package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/prosearch/config"
	"github.com/mohammad-safakhou/prosearch/internal/research"
	"github.com/mohammad-safakhou/prosearch/internal/telemetry"
)

// researchCMD runs a single research session from the terminal and prints the
// resolved answer.
func researchCMD() *cobra.Command {
	var cfgPath string
	var o research.Overrides
	var run = &cobra.Command{
		Use:   "research [question]",
		Short: "Run one research session and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)

			shutdown, err := telemetry.SetupTracing(cmd.Context(), cfg.Telemetry)
			if err != nil {
				return err
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdown(ctx)
			}()

			agent, err := research.NewAgent(cfg, telemetry.New(cfg.Telemetry))
			if err != nil {
				return err
			}

			question := strings.Join(args, " ")
			result, err := agent.Ask(cmd.Context(), question, o)
			if err != nil {
				return err
			}

			fmt.Println(result.Answer)
			if len(result.Sources) > 0 {
				fmt.Println()
				for i, src := range result.Sources {
					fmt.Printf("%d. %s (%s)\n", i+1, src.Title, src.URL)
				}
			}
			fmt.Printf("\n%d queries, %d loops, %s\n", len(result.SearchQueries), result.ResearchLoops, result.Elapsed.Round(10*time.Millisecond))
			return nil
		},
	}
	run.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")
	run.Flags().StringVar(&o.LLMProvider, "llm-provider", "", "LLM provider override")
	run.Flags().StringVar(&o.Model, "model", "", "reasoning model override")
	run.Flags().StringVar(&o.SearchProvider, "search-provider", "", "search provider override")
	run.Flags().StringVar(&o.Effort, "effort", "", "research effort: low, medium or high")
	run.Flags().IntVar(&o.MaxResearchLoops, "max-loops", 0, "max research loops override")
	run.Flags().IntVar(&o.InitialSearchQueryCount, "initial-queries", 0, "initial search query count override")

	return run
}
