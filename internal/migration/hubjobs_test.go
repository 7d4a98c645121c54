package migration

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rflorenc/iot-device-migrator/internal/models"
)

func strPtr(s string) *string { return &s }

// pendingHubJob submits a HubToCentral migration and returns its job id.
func pendingHubJob(t *testing.T, o *Orchestrator) string {
	t.Helper()
	res, err := o.Submit(context.Background(), models.FormValues{
		Name:   "hubs",
		Mode:   models.ModeHubToCentral,
		Source: dpsSource(),
		Target: models.Target{ID: "contoso", Params: models.CentralTargetParams{DeviceTemplateID: "dtmi:contoso:t;1"}},
	}, discard)
	require.NoError(t, err)
	require.Len(t, res.HubJobs, 1)
	return res.HubJobs[0].ID
}

func hubFixture(missing ...string) *fakeServices {
	svc := newFakeServices()
	svc.hubKeys["hubA-id"] = "b3duZXI="
	svc.central("contoso").scope = "0ne00TARGET"
	hub := &fakeHub{
		devices: []models.Device{{DeviceID: "d1"}, {DeviceID: "d2"}, {DeviceID: "d3"}},
		missing: map[string]bool{},
	}
	for _, id := range missing {
		hub.missing[id] = true
	}
	svc.hubs["hubA.azure-devices.net"] = hub
	return svc
}

func TestSetEnrollment_PartialMerge(t *testing.T) {
	o, _ := newTestOrchestrator(hubFixture())
	id := pendingHubJob(t, o)

	job, err := o.SetEnrollment(context.Background(), id, models.EnrollmentKeys{PrimaryKey: strPtr("cHJpbWFyeQ==")})
	require.NoError(t, err)
	require.Equal(t, "cHJpbWFyeQ==", job.Enrollment.PrimaryKey)
	require.False(t, job.Enrollment.HasKeys())

	job, err = o.SetEnrollment(context.Background(), id, models.EnrollmentKeys{SecondaryKey: strPtr("c2Vjb25kYXJ5")})
	require.NoError(t, err)
	require.Equal(t, "cHJpbWFyeQ==", job.Enrollment.PrimaryKey)
	require.Equal(t, "c2Vjb25kYXJ5", job.Enrollment.SecondaryKey)
	require.True(t, job.Enrollment.HasKeys())
}

func TestRunHubJob_Completed(t *testing.T) {
	svc := hubFixture()
	o, st := newTestOrchestrator(svc)
	id := pendingHubJob(t, o)
	_, err := o.SetEnrollment(context.Background(), id, models.EnrollmentKeys{
		PrimaryKey:   strPtr(sourceKeys.PrimaryKey),
		SecondaryKey: strPtr(sourceKeys.SecondaryKey),
	})
	require.NoError(t, err)

	var lines []string
	job, err := o.RunHubJob(context.Background(), id, func(l string) { lines = append(lines, l) })
	require.NoError(t, err)
	require.Equal(t, models.HubJobCompleted, job.Status)
	require.Equal(t, "0ne00TARGET", job.Enrollment.IDScope)
	require.NotEmpty(t, lines)

	stored, err := st.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, models.HubJobCompleted, stored.Status)

	hub := svc.hubs["hubA.azure-devices.net"]
	require.Len(t, hub.invoked, 3)
	for _, p := range hub.invoked {
		require.Equal(t, models.DeviceMovePayload{IDScope: "0ne00TARGET", DeviceTemplateID: "dtmi:contoso:t;1"}, p)
	}

	require.Len(t, svc.tokens, 1)
	require.True(t, strings.HasPrefix(svc.tokens[0], "SharedAccessSignature sr=hubA.azure-devices.net&sig="))
	require.True(t, strings.HasSuffix(svc.tokens[0], "&se=1700003601&skn=iothubowner"))

	_, err = o.RunHubJob(context.Background(), id, discard)
	apiErr, ok := models.AsAPIError(err)
	require.True(t, ok)
	require.Equal(t, "Invalid hub job", apiErr.Title)
}

func TestRunHubJob_DeviceNotFound(t *testing.T) {
	svc := hubFixture("d2")
	o, st := newTestOrchestrator(svc)
	id := pendingHubJob(t, o)
	_, err := o.SetEnrollment(context.Background(), id, models.EnrollmentKeys{
		PrimaryKey:   strPtr(sourceKeys.PrimaryKey),
		SecondaryKey: strPtr(sourceKeys.SecondaryKey),
	})
	require.NoError(t, err)

	job, err := o.RunHubJob(context.Background(), id, discard)
	apiErr, ok := models.AsAPIError(err)
	require.True(t, ok, "want APIError, got %v", err)
	require.Equal(t, "IoT Hub error", apiErr.Title)
	require.Contains(t, apiErr.Message, "d2")
	require.Equal(t, models.HubJobFailed, job.Status)

	// Siblings are not cancelled by the failure.
	require.Len(t, svc.hubs["hubA.azure-devices.net"].invoked, 3)

	stored, err := st.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, models.HubJobFailed, stored.Status)

	_, err = o.SetEnrollment(context.Background(), id, models.EnrollmentKeys{PrimaryKey: strPtr("x")})
	require.Error(t, err)
}

func TestRunHubJob_NeedsKeys(t *testing.T) {
	o, st := newTestOrchestrator(hubFixture())
	id := pendingHubJob(t, o)

	_, err := o.RunHubJob(context.Background(), id, discard)
	apiErr, ok := models.AsAPIError(err)
	require.True(t, ok)
	require.Equal(t, "Enrollment error", apiErr.Title)

	stored, err := st.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, models.HubJobPending, stored.Status)
}

func TestRunHubJob_KeyLookupFails(t *testing.T) {
	svc := hubFixture()
	delete(svc.hubKeys, "hubA-id")
	o, _ := newTestOrchestrator(svc)
	id := pendingHubJob(t, o)
	_, err := o.SetEnrollment(context.Background(), id, models.EnrollmentKeys{
		PrimaryKey:   strPtr(sourceKeys.PrimaryKey),
		SecondaryKey: strPtr(sourceKeys.SecondaryKey),
	})
	require.NoError(t, err)

	job, err := o.RunHubJob(context.Background(), id, discard)
	require.Error(t, err)
	require.Equal(t, models.HubJobFailed, job.Status)
}

func TestRunHubJob_ConcurrentRunsClaimOnce(t *testing.T) {
	svc := hubFixture()
	o, st := newTestOrchestrator(svc)
	id := pendingHubJob(t, o)
	_, err := o.SetEnrollment(context.Background(), id, models.EnrollmentKeys{
		PrimaryKey:   strPtr(sourceKeys.PrimaryKey),
		SecondaryKey: strPtr(sourceKeys.SecondaryKey),
	})
	require.NoError(t, err)

	const runs = 8
	errs := make([]error, runs)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, errs[i] = o.RunHubJob(context.Background(), id, discard)
		}()
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		apiErr, ok := models.AsAPIError(err)
		require.True(t, ok, "want APIError, got %v", err)
		require.Equal(t, "Invalid hub job", apiErr.Title)
	}
	require.Equal(t, 1, succeeded)

	hub := svc.hubs["hubA.azure-devices.net"]
	require.Equal(t, 3, hub.calls)

	stored, err := st.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, models.HubJobCompleted, stored.Status)
}

func TestClaimHubJob(t *testing.T) {
	o, st := newTestOrchestrator(hubFixture())
	id := pendingHubJob(t, o)

	_, err := o.ClaimHubJob(context.Background(), id)
	apiErr, ok := models.AsAPIError(err)
	require.True(t, ok)
	require.Equal(t, "Enrollment error", apiErr.Title)

	_, err = o.SetEnrollment(context.Background(), id, models.EnrollmentKeys{
		PrimaryKey:   strPtr(sourceKeys.PrimaryKey),
		SecondaryKey: strPtr(sourceKeys.SecondaryKey),
	})
	require.NoError(t, err)

	job, err := o.ClaimHubJob(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, models.HubJobRunning, job.Status)

	_, err = o.ClaimHubJob(context.Background(), id)
	apiErr, ok = models.AsAPIError(err)
	require.True(t, ok)
	require.Equal(t, "Invalid hub job", apiErr.Title)

	stored, err := st.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, models.HubJobRunning, stored.Status)
}
