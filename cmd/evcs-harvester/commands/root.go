package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"evcs-harvester/lib/configutil"
	"evcs-harvester/lib/serviceutil"
	"evcs-harvester/lib/telemetry"
	"evcs-harvester/services/harvest"
)

var rootCmd = &cobra.Command{
	Use:   "evcs-harvester",
	Short: "evcs-harvester scrapes the national EV charging station directory and emails tabular exports.",
	Run: func(cmd *cobra.Command, args []string) {
		configutil.LoadDotenv()

		cfg, err := harvest.LoadConfig()
		if err != nil {
			serviceutil.Fatal("failed to load config", err)
		}

		result := harvest.NewRunner(cfg).Run(cmd.Context())
		telemetry.ReportPerfSnapshot(cmd.Context())

		fmt.Println(harvest.ConsoleSummary(harvest.Summarize(result)))
		if result.Err != nil {
			os.Exit(1)
		}
	},
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
