package partuploader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
)

type fakePartStore struct {
	mu        sync.Mutex
	calls     int
	offsets   []int64
	failAt    map[int64]error
	delayAt   map[int64]time.Duration
	completed map[int64]bool
}

func newFakePartStore() *fakePartStore {
	return &fakePartStore{
		failAt:    map[int64]error{},
		delayAt:   map[int64]time.Duration{},
		completed: map[int64]bool{},
	}
}

func (s *fakePartStore) UploadPart(ctx context.Context, sessionID string, offset int64, payload []byte, checksum string) error {
	s.mu.Lock()
	s.calls++
	s.offsets = append(s.offsets, offset)
	delay := s.delayAt[offset]
	failure := s.failAt[offset]
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if failure != nil {
		return failure
	}

	s.mu.Lock()
	s.completed[offset] = true
	s.mu.Unlock()
	return nil
}

func (s *fakePartStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func makeParts(lengths ...int) []Part {
	parts := make([]Part, len(lengths))
	var offset int64
	for i, length := range lengths {
		payload := make([]byte, length)
		for j := range payload {
			payload[j] = byte(i)
		}
		parts[i] = Part{Index: i, Offset: offset, Payload: payload}
		offset += int64(length)
	}
	return parts
}

func TestUploadParts_Success(t *testing.T) {
	store := newFakePartStore()
	parts := makeParts(100, 100, 100, 40)

	uploader := New(store, 2, log.NewLogger())
	results, err := uploader.UploadParts(context.Background(), "session-1", parts)
	if err != nil {
		t.Fatalf("UploadParts() error: %v", err)
	}

	if len(results) != len(parts) {
		t.Fatalf("got %d results, want %d", len(results), len(parts))
	}
	for i, result := range results {
		if result.Err != nil {
			t.Errorf("result %d carries error: %v", i, result.Err)
		}
		if result.Offset != parts[i].Offset {
			t.Errorf("result %d has offset %d, want %d (results must be in ascending offset order)",
				i, result.Offset, parts[i].Offset)
		}
		if result.Checksum == "" {
			t.Errorf("result %d has empty checksum", i)
		}
	}
	if store.callCount() != len(parts) {
		t.Errorf("store received %d calls, want %d", store.callCount(), len(parts))
	}
}

func TestUploadParts_ExactlyOncePerWorkerCount(t *testing.T) {
	const numParts = 6
	for _, concurrency := range []int{1, 2, 4, numParts} {
		t.Run(fmt.Sprintf("W=%d", concurrency), func(t *testing.T) {
			store := newFakePartStore()
			parts := makeParts(10, 10, 10, 10, 10, 10)

			uploader := New(store, concurrency, log.NewLogger())
			results, err := uploader.UploadParts(context.Background(), "session-1", parts)
			if err != nil {
				t.Fatalf("UploadParts() error: %v", err)
			}

			if len(results) != numParts {
				t.Errorf("got %d results, want %d", len(results), numParts)
			}
			if store.callCount() != numParts {
				t.Errorf("store received %d calls, want exactly %d", store.callCount(), numParts)
			}
		})
	}
}

func TestUploadParts_FailureDoesNotCancelInFlightWork(t *testing.T) {
	store := newFakePartStore()
	parts := makeParts(10, 10, 10)
	// part at offset 0 fails immediately, part at offset 20 is deliberately slow
	store.failAt[0] = errors.New("simulated network error")
	store.delayAt[20] = 300 * time.Millisecond

	uploader := New(store, 3, log.NewLogger())
	results, err := uploader.UploadParts(context.Background(), "session-1", parts)

	if err == nil {
		t.Fatal("expected aggregate error")
	}
	if !errors.Is(err, ErrUploadFailed) {
		t.Errorf("error = %v, want ErrUploadFailed", err)
	}
	if len(results) != len(parts) {
		t.Fatalf("got %d results, want %d even on failure", len(results), len(parts))
	}
	if results[0].Err == nil {
		t.Error("failed part result does not carry its error")
	}

	store.mu.Lock()
	slowCompleted := store.completed[20]
	store.mu.Unlock()
	if !slowCompleted {
		t.Error("slow part was not run to completion before failure was reported")
	}
}

func TestUploadParts_Empty(t *testing.T) {
	store := newFakePartStore()

	uploader := New(store, 2, log.NewLogger())
	results, err := uploader.UploadParts(context.Background(), "session-1", nil)
	if err != nil {
		t.Fatalf("UploadParts() error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
	if store.callCount() != 0 {
		t.Errorf("store received %d calls, want 0", store.callCount())
	}
}

func TestStats(t *testing.T) {
	stats := NewStats()

	if stats.FinishedCount() != 0 {
		t.Errorf("expected 0 finished, got %d", stats.FinishedCount())
	}
	if stats.Average() != 0 {
		t.Errorf("expected 0 average, got %v", stats.Average())
	}

	stats.Update(100 * time.Millisecond)
	stats.Update(300 * time.Millisecond)

	if stats.FinishedCount() != 2 {
		t.Errorf("expected 2 finished, got %d", stats.FinishedCount())
	}
	if stats.Average() != 200*time.Millisecond {
		t.Errorf("expected 200ms average, got %v", stats.Average())
	}
	if stats.TotalDuration() != 400*time.Millisecond {
		t.Errorf("expected 400ms total, got %v", stats.TotalDuration())
	}
}
