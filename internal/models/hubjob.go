package models

import "fmt"

// HubJobStatus is the lifecycle state of a HubJob.
type HubJobStatus string

const (
	HubJobPending   HubJobStatus = "pending"
	HubJobRunning   HubJobStatus = "running"
	HubJobCompleted HubJobStatus = "completed"
	HubJobFailed    HubJobStatus = "failed"
)

// HubJobIDPrefix prefixes the ids of stored hub jobs.
const HubJobIDPrefix = "dps-to-central-"

// HubJob is a deferred IoT Hub to Central migration. It only exists in the
// local store.
type HubJob struct {
	ID         string           `json:"id"`
	Name       string           `json:"name,omitempty"`
	HubName    string           `json:"hubName"`
	HubHost    string           `json:"hubHost"`
	HubID      string           `json:"hubId"`
	DPSLink    string           `json:"dpsLink"`
	DPSID      string           `json:"dpsId"`
	DPSHost    string           `json:"dpsHost"`
	DPSIDScope string           `json:"dpsIdScope"`
	AppHost    string           `json:"appHost"`
	TemplateID string           `json:"templateId,omitempty"`
	Status     HubJobStatus     `json:"status"`
	Enrollment *EnrollmentGroup `json:"enrollment,omitempty"`
}

// HubJobID returns the id of the n-th stored hub job.
func HubJobID(n int) string {
	return fmt.Sprintf("%s%d", HubJobIDPrefix, n)
}

// CanTransition reports whether a job may move from s to next. Jobs never
// return to pending, and terminal states are final.
func (s HubJobStatus) CanTransition(next HubJobStatus) bool {
	switch s {
	case HubJobPending:
		return next == HubJobRunning
	case HubJobRunning:
		return next == HubJobCompleted || next == HubJobFailed
	}
	return false
}

// Terminal reports whether s is completed or failed.
func (s HubJobStatus) Terminal() bool {
	return s == HubJobCompleted || s == HubJobFailed
}
