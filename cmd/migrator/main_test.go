package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rflorenc/iot-device-migrator/internal/models"
	"github.com/rflorenc/iot-device-migrator/internal/store"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	app := newApp()
	app.SetOut(&out)
	app.SetErr(&out)
	app.SetArgs(args)

	err := app.Execute()
	return out.String(), err
}

func TestSASTokenCommand(t *testing.T) {
	out, err := runApp(t, "sas-token", "--store", "memory", "--host", "hub1.azure-devices.net", "--key", "c2VjcmV0", "--policy", "iothubowner")
	require.NoError(t, err)

	token := strings.TrimSpace(out)
	require.True(t, strings.HasPrefix(token, "SharedAccessSignature sr=hub1.azure-devices.net&sig="), token)
	require.True(t, strings.HasSuffix(token, "&skn=iothubowner"), token)
}

func TestSASTokenCommand_BadKey(t *testing.T) {
	_, err := runApp(t, "sas-token", "--store", "memory", "--host", "hub1.azure-devices.net", "--key", "not base64!")
	require.Error(t, err)
}

func TestSASTokenCommand_MissingFlags(t *testing.T) {
	_, err := runApp(t, "sas-token", "--store", "memory", "--host", "hub1.azure-devices.net")
	require.Error(t, err)
}

func TestHubJobsCommand(t *testing.T) {
	dir := t.TempDir()

	st, err := store.NewFile(dir)
	require.NoError(t, err)
	_, err = st.Append(context.Background(), models.HubJob{
		HubName: "hub1",
		HubHost: "hub1.azure-devices.net",
		DPSHost: "dps1.azure-devices-provisioning.net",
		AppHost: "app1.azureiotcentral.com",
		Enrollment: &models.EnrollmentGroup{
			PrimaryKey:   "cHJpbWFyeQ==",
			SecondaryKey: "c2Vjb25kYXJ5",
		},
	})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := runApp(t, "hub-jobs", "--store", "file", "--store-dir", dir)
	require.NoError(t, err)
	require.Contains(t, out, "id: dps-to-central-0")
	require.Contains(t, out, "status: pending")
	require.Contains(t, out, "hub: hub1.azure-devices.net")
	require.Contains(t, out, "enrolled: true")
	require.NotContains(t, out, "cHJpbWFyeQ==")
}

func TestHubJobsCommand_Empty(t *testing.T) {
	out, err := runApp(t, "hub-jobs", "--store", "memory")
	require.NoError(t, err)
	require.Equal(t, "[]\n", out)
}

func TestInvalidConfig(t *testing.T) {
	_, err := runApp(t, "hub-jobs", "--store", "bogus")
	require.ErrorContains(t, err, "unknown store backend")

	_, err = runApp(t, "hub-jobs", "--store", "memory", "--log-level", "chatty")
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := runApp(t, "--version")
	require.NoError(t, err)
	require.Equal(t, "migrator dev (commit: none, built: unknown)\n", out)
}
