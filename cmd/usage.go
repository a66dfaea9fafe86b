package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/yaoapp/relay/config"
	"github.com/yaoapp/relay/usage"
)

var usageDays int
var usageLimit int
var usageOut string

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Inspect the usage meter",
	Long:  `Inspect the usage meter`,
}

var usageSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Aggregate usage over a window",
	Run: func(cmd *cobra.Command, args []string) {
		meter := openMeter()
		defer meter.Close()

		summary, err := meter.GetSummary(usageDays)
		if err != nil {
			fatal(err)
		}

		fmt.Println(color.GreenString("Usage, last %d days", usageDays))
		fmt.Println(color.WhiteString("---------------------------------"))
		fmt.Printf("Requests:        %d\n", summary.Requests)
		fmt.Printf("Input tokens:    %d\n", summary.Tokens.Input)
		fmt.Printf("Output tokens:   %d\n", summary.Tokens.Output)
		fmt.Printf("Thinking tokens: %d\n", summary.Tokens.Thinking)
		fmt.Printf("Cost:            $%.4f\n", summary.CostUSD)
		fmt.Printf("Avg latency:     %.0f ms\n", summary.AvgLatencyMs)
		fmt.Printf("Avg speed:       %.1f tok/s\n", summary.AvgTokensPerSec)

		if recommend, err := meter.RecommendTOON(); err == nil && recommend {
			fmt.Println(color.YellowString("\nRecent traffic is JSON-heavy; a token-oriented notation for tool payloads would cut cost"))
		}
	},
}

var usageTopCmd = &cobra.Command{
	Use:   "top",
	Short: "Most used models",
	Run: func(cmd *cobra.Command, args []string) {
		meter := openMeter()
		defer meter.Close()

		stats, err := meter.TopModels(usageLimit, usageDays)
		if err != nil {
			fatal(err)
		}

		fmt.Println(color.GreenString("Top models, last %d days", usageDays))
		fmt.Println(color.WhiteString("---------------------------------"))
		for _, stat := range stats {
			fmt.Printf("%-40s %6d req %10d tok  $%.4f avg\n",
				stat.Model, stat.RequestCount, stat.TotalTokens, stat.AvgCostUSD)
		}
	},
}

var usageExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export usage rows to CSV",
	Run: func(cmd *cobra.Command, args []string) {
		meter := openMeter()
		defer meter.Close()

		if err := meter.ExportCSV(usageOut, usageDays); err != nil {
			fatal(err)
		}
		fmt.Println(color.GreenString("Exported to %s", usageOut))
	},
}

func openMeter() *usage.Meter {
	Boot()
	meter, err := usage.Open(config.Conf.UsageDBPath)
	if err != nil {
		fatal(err)
	}
	return meter
}

func fatal(err error) {
	fmt.Println(color.RedString("Fatal: %s", err.Error()))
	os.Exit(1)
}

func init() {
	usageCmd.AddCommand(usageSummaryCmd, usageTopCmd, usageExportCmd)
	usageCmd.PersistentFlags().IntVarP(&usageDays, "days", "d", 7, "Window in days")
	usageTopCmd.PersistentFlags().IntVarP(&usageLimit, "limit", "l", 10, "Number of models")
	usageExportCmd.PersistentFlags().StringVarP(&usageOut, "out", "o", "relay-usage.csv", "Output file")
}
