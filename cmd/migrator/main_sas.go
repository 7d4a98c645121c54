package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rflorenc/iot-device-migrator/internal/sas"
)

type cmdSASToken struct {
	global *cmdGlobal

	flagHost   string
	flagKey    string
	flagPolicy string
}

func (c *cmdSASToken) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "sas-token"
	cmd.Short = "Sign a SAS token for an IoT Hub or DPS host"
	cmd.Long = `Description:
  Sign a SAS token for an IoT Hub or DPS host

  The token is valid for one hour. Pass --policy for shared access policy
  keys (iothubowner, provisioningserviceowner).
`
	cmd.Args = cobra.NoArgs
	cmd.RunE = c.Run

	cmd.Flags().StringVar(&c.flagHost, "host", "", "Resource host name, e.g. myhub.azure-devices.net")
	cmd.Flags().StringVar(&c.flagKey, "key", "", "Base64 encoded signing key")
	cmd.Flags().StringVar(&c.flagPolicy, "policy", "", "Shared access policy name")
	_ = cmd.MarkFlagRequired("host")
	_ = cmd.MarkFlagRequired("key")

	return cmd
}

func (c *cmdSASToken) Run(cmd *cobra.Command, args []string) error {
	token, err := sas.GenerateNow(c.flagHost, c.flagKey, c.flagPolicy)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
