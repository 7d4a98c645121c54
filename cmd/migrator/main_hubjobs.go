package main

import (
	"log/slog"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rflorenc/iot-device-migrator/internal/logger"
	"github.com/rflorenc/iot-device-migrator/internal/models"
	"github.com/rflorenc/iot-device-migrator/internal/store"
)

type cmdHubJobs struct {
	global *cmdGlobal
}

func (c *cmdHubJobs) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "hub-jobs"
	cmd.Short = "List stored hub jobs"
	cmd.Long = `Description:
  List stored hub jobs

  Prints the deferred IoT Hub to Central migrations kept in the configured
  store. Enrollment keys are never printed.
`
	cmd.Args = cobra.NoArgs
	cmd.RunE = c.Run

	return cmd
}

// hubJobRow is the printed form of a HubJob.
type hubJobRow struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name,omitempty"`
	Status     string `yaml:"status"`
	Hub        string `yaml:"hub"`
	DPS        string `yaml:"dps"`
	App        string `yaml:"app"`
	TemplateID string `yaml:"template,omitempty"`
	Enrolled   bool   `yaml:"enrolled"`
	IDScope    string `yaml:"id_scope,omitempty"`
}

func newHubJobRow(j models.HubJob) hubJobRow {
	row := hubJobRow{
		ID:         j.ID,
		Name:       j.Name,
		Status:     string(j.Status),
		Hub:        j.HubHost,
		DPS:        j.DPSHost,
		App:        j.AppHost,
		TemplateID: j.TemplateID,
		Enrolled:   j.Enrollment.HasKeys(),
	}

	if j.Enrollment != nil {
		row.IDScope = j.Enrollment.IDScope
	}

	return row
}

func (c *cmdHubJobs) Run(cmd *cobra.Command, args []string) error {
	st, err := store.New(c.global.cfg.Store)
	if err != nil {
		return err
	}

	defer func() {
		err := st.Close()
		if err != nil {
			slog.Warn("Failed to close hub job store", logger.Err(err))
		}
	}()

	jobs, err := st.List(cmd.Context())
	if err != nil {
		return err
	}

	rows := make([]hubJobRow, 0, len(jobs))
	for _, j := range jobs {
		rows = append(rows, newHubJobRow(j))
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	defer enc.Close()

	return enc.Encode(rows)
}
