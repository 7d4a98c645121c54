package migration

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rflorenc/iot-device-migrator/internal/logger"
)

// runConcurrentList calls f for every entity in its own goroutine and waits
// for all of them. A failure does not cancel the others. The returned error
// joins every failure, in entity order.
func runConcurrentList[T any](entities []T, f func(T) error) error {
	results := make([]error, len(entities))

	var wg sync.WaitGroup
	for i, e := range entities {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = f(e)
		}()
	}
	wg.Wait()

	var failed []error
	for _, err := range results {
		if err != nil {
			slog.Error("Failed concurrent action", logger.Err(err))
			failed = append(failed, err)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d concurrent actions failed: %w", len(failed), len(entities), errors.Join(failed...))
}
