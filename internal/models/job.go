package models

import (
	"encoding/json"
	"fmt"
)

// JobDescription tags every job this tool submits. Listing only shows jobs
// carrying it.
const JobDescription = "AUTOMATED-DEVICE-MOVE"

// DeviceMoveCommand is the command and direct method name devices register.
const DeviceMoveCommand = "DeviceMove"

// DeviceMovePayload is the value delivered to each device with DeviceMove.
type DeviceMovePayload struct {
	IDScope             string `json:"idScope"`
	DPSID               string `json:"dpsId,omitempty"`
	DPSName             string `json:"dpsName,omitempty"`
	CentralAppName      string `json:"centralAppName,omitempty"`
	CentralAppSubdomain string `json:"centralAppSubdomain,omitempty"`
	DeviceTemplateID    string `json:"deviceTemplateId,omitempty"`
}

// JobData is one step of a Central job.
type JobData struct {
	Type   string            `json:"type"`
	Target string            `json:"target"`
	Path   string            `json:"path"`
	Value  DeviceMovePayload `json:"value"`
}

// JobPayload is the body of a Central job submission.
type JobPayload struct {
	DisplayName string    `json:"displayName"`
	Group       string    `json:"group"`
	Description string    `json:"description"`
	Data        []JobData `json:"data"`
}

// NewDeviceMoveJob builds the job that sends DeviceMove to every device of
// group. The command is addressed as <component>.DeviceMove on the template.
func NewDeviceMoveJob(name, group, templateID, component string, value DeviceMovePayload) JobPayload {
	return JobPayload{
		DisplayName: name,
		Group:       group,
		Description: JobDescription,
		Data: []JobData{{
			Type:   "command",
			Target: templateID,
			Path:   component + "." + DeviceMoveCommand,
			Value:  value,
		}},
	}
}

// JobResult is a job as listed by a Central application, decorated with the
// owning application and a link to it.
type JobResult struct {
	ID          string          `json:"id"`
	DisplayName string          `json:"displayName"`
	Group       string          `json:"group"`
	Description string          `json:"description,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	Status      string          `json:"status"`
	AppName     string          `json:"appName,omitempty"`
	JobLink     string          `json:"jobLink,omitempty"`
	Progress    *JobProgress    `json:"progress,omitempty"`
}

// IsMigration reports whether the job was submitted by this tool.
func (j JobResult) IsMigration() bool {
	return j.Description == JobDescription
}

// JobLinkFor returns the Central UI link of a job.
func JobLinkFor(subdomain, domain, jobID string) string {
	return fmt.Sprintf("https://%s.%s/jobs/instances/%s", subdomain, domain, jobID)
}

// JobProgress holds the per-device counters of a Central job.
type JobProgress struct {
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Pending   int    `json:"pending"`
	Label     string `json:"label"`
}

// StatusLabel derives the display status from the counters.
func (p JobProgress) StatusLabel() string {
	switch {
	case p.Pending > 0:
		return "Pending"
	case p.Failed > 0:
		return "Failed"
	default:
		return "Completed"
	}
}
