package consent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var ErrConsentDenied = errors.New("location consent denied")

type deviceAnswer struct {
	coords *Coordinates
	denied bool
}

// DeviceBroker is a LocationProvider that waits for the patient's device to
// answer a consent prompt over HTTP. Current blocks until Grant or Deny is
// called for the patient, or ctx expires. Multiple concurrent requests for
// the same patient each receive the same answer.
type DeviceBroker struct {
	mu      sync.Mutex
	waiters map[uuid.UUID][]chan deviceAnswer
}

func NewDeviceBroker() *DeviceBroker {
	return &DeviceBroker{waiters: make(map[uuid.UUID][]chan deviceAnswer)}
}

func (b *DeviceBroker) Current(ctx context.Context, patientID uuid.UUID) (*Coordinates, error) {
	ch := make(chan deviceAnswer, 1)

	b.mu.Lock()
	b.waiters[patientID] = append(b.waiters[patientID], ch)
	b.mu.Unlock()

	defer b.remove(patientID, ch)

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for location consent: %w", ctx.Err())
	case ans := <-ch:
		if ans.denied {
			return nil, ErrConsentDenied
		}
		return ans.coords, nil
	}
}

// Grant delivers a location fix to every pending request for the patient.
// It reports whether any request was waiting.
func (b *DeviceBroker) Grant(patientID uuid.UUID, coords Coordinates) bool {
	return b.answer(patientID, deviceAnswer{coords: &coords})
}

// Deny rejects every pending request for the patient.
func (b *DeviceBroker) Deny(patientID uuid.UUID) bool {
	return b.answer(patientID, deviceAnswer{denied: true})
}

func (b *DeviceBroker) answer(patientID uuid.UUID, ans deviceAnswer) bool {
	b.mu.Lock()
	chans := b.waiters[patientID]
	delete(b.waiters, patientID)
	b.mu.Unlock()

	for _, ch := range chans {
		ch <- ans
	}
	return len(chans) > 0
}

func (b *DeviceBroker) remove(patientID uuid.UUID, ch chan deviceAnswer) {
	b.mu.Lock()
	defer b.mu.Unlock()

	chans := b.waiters[patientID]
	for i, c := range chans {
		if c == ch {
			b.waiters[patientID] = append(chans[:i], chans[i+1:]...)
			break
		}
	}
	if len(b.waiters[patientID]) == 0 {
		delete(b.waiters, patientID)
	}
}

var _ LocationProvider = (*DeviceBroker)(nil)
