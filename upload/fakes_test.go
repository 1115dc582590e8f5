package upload

import (
	"context"
	"sync"
)

type fakeStore struct {
	mu sync.Mutex

	sessionID    string
	initiateErr  error
	failOffsets  map[int64]error
	completeErr  error

	initiateCalls     int
	initiatedPartSize int64
	partChecksums     map[int64]string
	partLengths       map[int64]int64
	completeCalled    bool
	completedChecksum string
	completedSize     int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessionID:     "fake-session-id",
		failOffsets:   map[int64]error{},
		partChecksums: map[int64]string{},
		partLengths:   map[int64]int64{},
	}
}

func (s *fakeStore) Initiate(ctx context.Context, description string, partSize int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initiateCalls++
	s.initiatedPartSize = partSize
	if s.initiateErr != nil {
		return "", s.initiateErr
	}
	return s.sessionID, nil
}

func (s *fakeStore) UploadPart(ctx context.Context, sessionID string, offset int64, payload []byte, checksum string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOffsets[offset]; err != nil {
		return err
	}
	s.partChecksums[offset] = checksum
	s.partLengths[offset] = int64(len(payload))
	return nil
}

func (s *fakeStore) Complete(ctx context.Context, sessionID, checksum string, totalSize int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completeCalled = true
	s.completedChecksum = checksum
	s.completedSize = totalSize
	if s.completeErr != nil {
		return "", s.completeErr
	}
	return "fake-archive-id", nil
}
