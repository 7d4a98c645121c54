package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rflorenc/iot-device-migrator/internal/config"
	"github.com/rflorenc/iot-device-migrator/internal/logger"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type cmdGlobal struct {
	cmd *cobra.Command
	cfg *config.Config
}

// PreRun overlays the config file and sets up logging before any command.
func (c *cmdGlobal) PreRun(cmd *cobra.Command, args []string) error {
	err := c.cfg.Load(cmd.Flags())
	if err != nil {
		return err
	}

	_, err = logger.InitLogger(c.cfg.LogFile, c.cfg.LogLevel)
	return err
}

func newApp() *cobra.Command {
	app := &cobra.Command{}
	app.Use = "migrator"
	app.Short = "Move IoT devices between IoT Hub, DPS and IoT Central"
	app.Long = `Description:
  Move IoT devices between IoT Hub, DPS and IoT Central

  Without a sub-command the HTTP API is started, same as "migrator serve".
`

	app.SilenceUsage = true
	app.SilenceErrors = true
	app.CompletionOptions = cobra.CompletionOptions{DisableDefaultCmd: true}

	globalCmd := cmdGlobal{cmd: app, cfg: config.Default()}
	globalCmd.cfg.BindFlags(app.PersistentFlags())

	app.PersistentPreRunE = globalCmd.PreRun

	app.SetVersionTemplate("{{.Version}}\n")
	app.Version = fmt.Sprintf("migrator %s (commit: %s, built: %s)", version, commit, date)

	serveCmd := cmdServe{global: &globalCmd}
	app.AddCommand(serveCmd.Command())
	app.RunE = serveCmd.Run

	sasCmd := cmdSASToken{global: &globalCmd}
	app.AddCommand(sasCmd.Command())

	hubJobsCmd := cmdHubJobs{global: &globalCmd}
	app.AddCommand(hubJobsCmd.Command())

	return app
}

func main() {
	err := newApp().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
