package models

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestOperation_Lifecycle(t *testing.T) {
	store := NewOperationStore()
	op := store.Create("hub-job-run", "dps-to-central-0")

	if op.ID == "" || op.State() != OperationRunning {
		t.Fatalf("new operation = %+v", op.Snapshot())
	}

	op.AppendLog("one")
	op.AppendLog("two")
	if got := op.LogsSince(1); len(got) != 1 || got[0] != "two" {
		t.Errorf("LogsSince(1) = %v", got)
	}
	if got := op.LogsSince(5); got != nil {
		t.Errorf("LogsSince(5) = %v, want nil", got)
	}

	op.Fail(NewAPIError("IoT Hub error", "Device d2 not found or not online."))
	snap := op.Snapshot()
	if snap.Status != OperationFailed || snap.ErrorTitle != "IoT Hub error" || snap.Error != "Device d2 not found or not online." {
		t.Errorf("failed snapshot = %+v", snap)
	}
	if snap.FinishedAt == nil {
		t.Error("FinishedAt not set")
	}
}

func TestOperation_FailPlainError(t *testing.T) {
	op := NewOperationStore().Create("migration-submit", "")
	op.Fail(errors.New("boom"))
	if op.Error != "boom" || op.ErrorTitle != "" {
		t.Errorf("Error = %q, ErrorTitle = %q", op.Error, op.ErrorTitle)
	}
}

func TestOperation_SnapshotIsACopy(t *testing.T) {
	op := NewOperationStore().Create("migration-submit", "")
	op.AppendLog("first")
	snap := op.Snapshot()
	op.AppendLog("second")
	if len(snap.Output) != 1 {
		t.Errorf("snapshot output changed: %v", snap.Output)
	}
}

func TestOperationStore_ListNewestFirst(t *testing.T) {
	store := NewOperationStore()
	first := store.Create("a", "")
	first.StartedAt = time.Now().Add(-time.Minute)
	second := store.Create("b", "")

	list := store.List()
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Errorf("List() order wrong")
	}
	if store.Get(first.ID) != first {
		t.Error("Get returned a different operation")
	}
	if store.Get("missing") != nil {
		t.Error("Get(missing) should be nil")
	}
}

func TestOperationStore_Concurrent(t *testing.T) {
	store := NewOperationStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			op := store.Create("hub-job-run", "")
			op.AppendLog("line")
			op.Complete(nil)
			_ = store.List()
		}()
	}
	wg.Wait()
	if got := len(store.List()); got != 50 {
		t.Errorf("List() has %d operations, want 50", got)
	}
}
