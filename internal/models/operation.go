package models

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Operation status values.
const (
	OperationRunning   = "running"
	OperationCompleted = "completed"
	OperationFailed    = "failed"
)

// Operation is an async unit of work started from the API (submit a
// migration, run a hub job).
type Operation struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"` // "migration-submit", "hub-job-run"
	Subject    string      `json:"subject,omitempty"`
	Status     string      `json:"status"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	Error      string      `json:"error,omitempty"`
	ErrorTitle string      `json:"error_title,omitempty"`
	Output     []string    `json:"output"`
	Result     interface{} `json:"result,omitempty"`
	mu         sync.Mutex
}

// AppendLog adds a log line to the operation output.
func (o *Operation) AppendLog(line string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Output = append(o.Output, line)
}

// LogsSince returns log lines starting from the given index.
func (o *Operation) LogsSince(offset int) []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if offset >= len(o.Output) {
		return nil
	}
	lines := make([]string, len(o.Output)-offset)
	copy(lines, o.Output[offset:])
	return lines
}

// Complete marks the operation as completed with an optional result.
func (o *Operation) Complete(result interface{}) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Status = OperationCompleted
	o.Result = result
	now := time.Now()
	o.FinishedAt = &now
}

// Fail marks the operation as failed. An APIError keeps its title.
func (o *Operation) Fail(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Status = OperationFailed
	if apiErr, ok := AsAPIError(err); ok {
		o.ErrorTitle = apiErr.Title
		o.Error = apiErr.Message
	} else {
		o.Error = err.Error()
	}
	now := time.Now()
	o.FinishedAt = &now
}

// State returns the status under lock.
func (o *Operation) State() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.Status
}

// Snapshot returns a copy safe to serialize while the operation runs.
func (o *Operation) Snapshot() *Operation {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.Output))
	copy(out, o.Output)
	return &Operation{
		ID:         o.ID,
		Type:       o.Type,
		Subject:    o.Subject,
		Status:     o.Status,
		StartedAt:  o.StartedAt,
		FinishedAt: o.FinishedAt,
		Error:      o.Error,
		ErrorTitle: o.ErrorTitle,
		Output:     out,
		Result:     o.Result,
	}
}

// OperationStore is an in-memory thread-safe store for operations.
type OperationStore struct {
	mu  sync.RWMutex
	ops map[string]*Operation
}

// NewOperationStore creates an empty operation store.
func NewOperationStore() *OperationStore {
	return &OperationStore{ops: make(map[string]*Operation)}
}

// Create adds a new running operation, assigning it a UUID.
func (s *OperationStore) Create(opType, subject string) *Operation {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := &Operation{
		ID:        uuid.New().String(),
		Type:      opType,
		Subject:   subject,
		Status:    OperationRunning,
		StartedAt: time.Now(),
		Output:    []string{},
	}
	s.ops[o.ID] = o
	return o
}

// Get returns an operation by ID.
func (s *OperationStore) Get(id string) *Operation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ops[id]
}

// List returns all operations, most recent first.
func (s *OperationStore) List() []*Operation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*Operation, 0, len(s.ops))
	for _, o := range s.ops {
		result = append(result, o)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})
	return result
}
