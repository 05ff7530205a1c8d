package main

import (
	"github.com/spf13/cobra"

	"github.com/jonathan/testing-assistant/internal/config"
	"github.com/jonathan/testing-assistant/internal/stage"
)

// stageFlags are the knobs every stage subcommand exposes.
type stageFlags struct {
	module       string
	start        int
	end          int
	instructions string
	tries        int
	noVerify     bool
	dbURL        string
}

// newStageCommand builds a subcommand around a stage definition. All
// five stages share the same flag surface.
func newStageCommand(stageName, short, long string) *cobra.Command {
	var flags stageFlags

	cmd := &cobra.Command{
		Use:   stageName,
		Short: short,
		Long:  long,
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := stage.ByName(stageName)
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if flags.dbURL == "" {
				flags.dbURL = cfg.DatabaseURL
			}
			return stage.Execute(cmd.Context(), def, cfg, stage.Options{
				Module:       flags.module,
				Start:        flags.start,
				End:          flags.end,
				Instructions: flags.instructions,
				Tries:        flags.tries,
				NoVerify:     flags.noVerify,
				DatabaseURL:  flags.dbURL,
			})
		},
	}

	cmd.Flags().StringVarP(&flags.module, "module", "m", config.ModuleCashAllocation, "Clearing module (collateral_blocking or cash_allocation)")
	cmd.Flags().IntVar(&flags.start, "start", 0, "First record index to process")
	cmd.Flags().IntVar(&flags.end, "end", 0, "Record index to stop before (0 = all)")
	cmd.Flags().StringVarP(&flags.instructions, "instructions", "i", "", "Extra instructions appended to the generation prompt")
	cmd.Flags().IntVar(&flags.tries, "tries", 0, "Attempt budget per record (0 = stage default)")
	cmd.Flags().BoolVar(&flags.noVerify, "no-verify", false, "Skip the verifier leg and accept the first valid draft")
	cmd.Flags().StringVar(&flags.dbURL, "db-url", "", "Postgres URL for run persistence (optional)")

	return cmd
}
