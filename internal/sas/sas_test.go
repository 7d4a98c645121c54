package sas

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testKey = "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY="

func TestGenerate(t *testing.T) {
	now := time.UnixMilli(1700000000500)

	tests := []struct {
		name   string
		policy string
		want   string
	}{
		{
			name:   "with policy",
			policy: "iothubowner",
			want:   "SharedAccessSignature sr=hubA.azure-devices.net&sig=fw4Sdwaf1MIHaKj8fFtGO7HJZ8Dx%2BCg12LEOcfglvi0%3D&se=1700003601&skn=iothubowner",
		},
		{
			name:   "without policy",
			policy: "",
			want:   "SharedAccessSignature sr=hubA.azure-devices.net&sig=fw4Sdwaf1MIHaKj8fFtGO7HJZ8Dx%2BCg12LEOcfglvi0%3D&se=1700003601",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Generate("hubA.azure-devices.net", testKey, tc.policy, now)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	now := time.Unix(1700000000, 0)
	a, err := Generate("dps.azure-devices-provisioning.net", testKey, "provisioningserviceowner", now)
	require.NoError(t, err)
	b, err := Generate("dps.azure-devices-provisioning.net", testKey, "provisioningserviceowner", now)
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.True(t, strings.Contains(a, "&se=1700003600"))
}

func TestGenerate_BadKey(t *testing.T) {
	_, err := Generate("hubA.azure-devices.net", "not base64!", "", time.Now())
	require.Error(t, err)
}

func TestExpiresAt(t *testing.T) {
	require.Equal(t, int64(1700003600), expiresAt(time.Unix(1700000000, 0)))
	require.Equal(t, int64(1700003601), expiresAt(time.UnixMilli(1700000000001)))
}
