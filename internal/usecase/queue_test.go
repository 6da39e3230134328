package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestQueue_Do(t *testing.T) {
	t.Run("Spaces Task Starts", func(t *testing.T) {
		q := NewQueue(50 * time.Millisecond)
		var starts []time.Time

		for i := 0; i < 3; i++ {
			err := q.Do(context.Background(), func(ctx context.Context) error {
				starts = append(starts, time.Now())
				return nil
			})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		}

		for i := 1; i < len(starts); i++ {
			if gap := starts[i].Sub(starts[i-1]); gap < 40*time.Millisecond {
				t.Errorf("gap %d too small: %v", i, gap)
			}
		}
	})

	t.Run("Runs One At A Time", func(t *testing.T) {
		q := NewQueue(0)
		var (
			mu      sync.Mutex
			running int
			maxSeen int
			wg      sync.WaitGroup
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = q.Do(context.Background(), func(ctx context.Context) error {
					mu.Lock()
					running++
					if running > maxSeen {
						maxSeen = running
					}
					mu.Unlock()
					time.Sleep(2 * time.Millisecond)
					mu.Lock()
					running--
					mu.Unlock()
					return nil
				})
			}()
		}
		wg.Wait()
		if maxSeen != 1 {
			t.Errorf("expected concurrency 1, saw %d", maxSeen)
		}
	})

	t.Run("Cancelled While Waiting", func(t *testing.T) {
		q := NewQueue(time.Hour)
		_ = q.Do(context.Background(), func(ctx context.Context) error { return nil })

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		ran := false
		err := q.Do(ctx, func(ctx context.Context) error { ran = true; return nil })
		if err == nil {
			t.Fatal("expected an error, got nil")
		}
		if ran {
			t.Error("task must not run after cancellation")
		}
	})

	t.Run("Task Error Returned", func(t *testing.T) {
		q := NewQueue(0)
		want := errors.New("task failed")
		if err := q.Do(context.Background(), func(ctx context.Context) error { return want }); !errors.Is(err, want) {
			t.Errorf("got %v want %v", err, want)
		}
	})
}
