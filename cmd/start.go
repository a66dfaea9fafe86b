package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/yaoapp/kun/log"
	"github.com/yaoapp/relay/config"
	"github.com/yaoapp/relay/gateway"
	"github.com/yaoapp/relay/share"
)

var startWatch bool

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the gateway",
	Long:  `Start the gateway`,
	Run: func(cmd *cobra.Command, args []string) {
		Boot()
		cfg := config.Conf

		mode := ""
		if cfg.Mode == "development" {
			mode = color.RedString("development")
		}
		fmt.Println(color.GreenString("\nRelay Gateway v%s %s", share.VERSION, mode))
		fmt.Println(color.WhiteString("---------------------------------"))
		fmt.Println(color.GreenString("Backend:  %s", cfg.ProviderBaseURL))
		for _, tc := range cfg.Tiers() {
			endpoint := tc.Endpoint
			if endpoint == "" {
				endpoint = "(global)"
			}
			fmt.Println(color.CyanString("%-7s=> %s  %s", tc.Tier, tc.Model, endpoint))
		}
		fmt.Println(color.WhiteString("---------------------------------"))
		fmt.Println(color.GreenString("Listening: http://%s:%d/v1/messages\n", cfg.Host, cfg.Port))

		g, err := gateway.New(cfg)
		if err != nil {
			fmt.Println(color.RedString("Fatal: %s", err.Error()))
			os.Exit(1)
		}

		if startWatch {
			file := envFile
			if file == "" {
				file = ".env"
			}
			if err := config.Watch(file, g.Reload); err != nil {
				log.Warn("[start] watch %s: %s", file, err.Error())
			}
		}

		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
		go func() {
			<-interrupt
			fmt.Println(color.YellowString("\nShutting down"))
			if startWatch {
				config.StopWatch()
			}
			if err := g.Stop(); err != nil {
				log.Error("[start] stop: %s", err.Error())
			}
		}()

		if err := g.Start(); err != nil {
			fmt.Println(color.RedString("Fatal: %s", err.Error()))
			os.Exit(1)
		}
		fmt.Println(color.YellowString("Service stopped"))
	},
}

func init() {
	startCmd.PersistentFlags().BoolVarP(&startWatch, "watch", "w", false, "Reload the config when the env file changes")
}
