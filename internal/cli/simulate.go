package cli

import (
	"fmt"
	"os"

	"cuequiz-service/internal/app"
	"cuequiz-service/internal/catalog"
	"cuequiz-service/internal/config"
	"cuequiz-service/internal/logging"
	"cuequiz-service/internal/sim"
	"github.com/spf13/cobra"
)

// NewSimulateCmd replays a viewer script against the built-in catalogs without a browser.
func NewSimulateCmd(configPath *string) *cobra.Command {
	var scriptPath string
	var trace bool
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay a scripted viewing session and print the score summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger := logging.New(cfg.App.Name, cfg.App.Env, cfg.App.LogLevel)

			script := sim.Demo()
			if scriptPath != "" {
				data, err := os.ReadFile(scriptPath)
				if err != nil {
					return fmt.Errorf("read script: %w", err)
				}
				if script, err = sim.ParseScript(data); err != nil {
					return err
				}
			}
			catalogID := script.Catalog
			if catalogID == "" {
				catalogID = cfg.Catalog.Default
			}
			c, ok := catalog.Defaults()[catalogID]
			if !ok {
				return fmt.Errorf("catalog %q: not built in", catalogID)
			}

			opts := app.Options{
				RevealDelay:  config.TTLDuration(cfg.Timing.RevealDelay, app.DefaultRevealDelay),
				LoadingDelay: config.TTLDuration(cfg.Timing.LoadingDelay, app.DefaultLoadingDelay),
			}
			res, err := sim.Run(c, script, opts, logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if trace {
				for _, ev := range res.Trace {
					fmt.Fprintf(out, "%7.2fs  video %6.2fs  %-9s %s\n", ev.At, ev.Position, ev.Kind, ev.Detail)
				}
			}
			sum := res.Final.Summary
			if sum == nil {
				logger.Warn().Str("phase", string(res.Final.Phase)).Msg("script finished before the quiz completed")
				return nil
			}
			for _, item := range sum.Items {
				fmt.Fprintf(out, "Q%d %-9s %s\n", item.QuestionID, item.Outcome, item.Prompt)
			}
			fmt.Fprintf(out, "Score: %d/%d (%d%%) correct=%d incorrect=%d skipped=%d\n",
				sum.Correct, sum.Total, sum.Percentage, sum.Correct, sum.Incorrect, sum.Skipped)
			logger.Info().Str("catalog", catalogID).Int("percentage", sum.Percentage).Msg("simulation finished")
			return nil
		},
	}
	cmd.Flags().StringVar(&scriptPath, "script", "", "path to a YAML viewer script (defaults to the built-in demo)")
	cmd.Flags().BoolVar(&trace, "trace", false, "print every event of the run")
	return cmd
}
