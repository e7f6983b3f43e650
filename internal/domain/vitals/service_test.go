package vitals

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vitalink/vitalink/internal/platform/realtime"
)

// -- Mock Repository --

type mockSnapshotRepo struct {
	store map[uuid.UUID]*Snapshot
}

func newMockSnapshotRepo() *mockSnapshotRepo {
	return &mockSnapshotRepo{store: make(map[uuid.UUID]*Snapshot)}
}

func (m *mockSnapshotRepo) Create(_ context.Context, s *Snapshot) error {
	s.ID = uuid.New()
	m.store[s.ID] = s
	return nil
}

func (m *mockSnapshotRepo) Latest(_ context.Context, patientID uuid.UUID) (*Snapshot, error) {
	var latest *Snapshot
	for _, s := range m.store {
		if s.PatientID != patientID {
			continue
		}
		if latest == nil || s.RecordedAt.After(latest.RecordedAt) {
			latest = s
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest, nil
}

func (m *mockSnapshotRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Snapshot, int, error) {
	var r []*Snapshot
	for _, s := range m.store {
		if s.PatientID == patientID {
			r = append(r, s)
		}
	}
	sort.Slice(r, func(i, j int) bool { return r[i].RecordedAt.After(r[j].RecordedAt) })
	return r, len(r), nil
}

// mockPublisher records published events.

type mockPublisher struct {
	events []realtime.Event
}

func (m *mockPublisher) Publish(_ context.Context, e realtime.Event) error {
	m.events = append(m.events, e)
	return nil
}

func intptr(n int) *int           { return &n }
func floatptr(f float64) *float64 { return &f }

// -- Service Tests --

func TestRecord_Success(t *testing.T) {
	pub := &mockPublisher{}
	svc := NewService(newMockSnapshotRepo(), pub, zerolog.Nop())
	pid := uuid.New()

	snap := &Snapshot{
		PatientID: pid,
		HeartRate: intptr(72),
	}
	if err := svc.Record(context.Background(), snap); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.ID == uuid.Nil {
		t.Error("expected ID to be set")
	}
	if snap.RecordedAt.IsZero() {
		t.Error("expected RecordedAt to default to now")
	}
}

func TestRecord_BroadcastsChangeEvent(t *testing.T) {
	pub := &mockPublisher{}
	svc := NewService(newMockSnapshotRepo(), pub, zerolog.Nop())
	pid := uuid.New()

	snap := &Snapshot{PatientID: pid, HeartRate: intptr(80)}
	if err := svc.Record(context.Background(), snap); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pub.events) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(pub.events))
	}
	e := pub.events[0]
	if e.Topic != realtime.VitalsTopic(pid) {
		t.Errorf("expected topic %s, got %s", realtime.VitalsTopic(pid), e.Topic)
	}
	if e.Resource != "vitals" {
		t.Errorf("expected resource vitals, got %s", e.Resource)
	}
	if e.ResourceID != snap.ID.String() {
		t.Errorf("expected resource id %s, got %s", snap.ID, e.ResourceID)
	}
}

func TestRecord_NilPublisherOK(t *testing.T) {
	svc := NewService(newMockSnapshotRepo(), nil, zerolog.Nop())
	snap := &Snapshot{PatientID: uuid.New(), HeartRate: intptr(70)}
	if err := svc.Record(context.Background(), snap); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRecord_NoMeasurements(t *testing.T) {
	svc := NewService(newMockSnapshotRepo(), nil, zerolog.Nop())
	snap := &Snapshot{PatientID: uuid.New()}
	if err := svc.Record(context.Background(), snap); err == nil {
		t.Fatal("expected error for empty snapshot")
	}
}

func TestRecord_MissingPatient(t *testing.T) {
	svc := NewService(newMockSnapshotRepo(), nil, zerolog.Nop())
	snap := &Snapshot{HeartRate: intptr(70)}
	if err := svc.Record(context.Background(), snap); err == nil {
		t.Fatal("expected error for missing patient_id")
	}
}

func TestRecord_OutOfRange(t *testing.T) {
	svc := NewService(newMockSnapshotRepo(), nil, zerolog.Nop())

	cases := []struct {
		name string
		snap *Snapshot
	}{
		{"negative heart rate", &Snapshot{PatientID: uuid.New(), HeartRate: intptr(-5)}},
		{"absurd heart rate", &Snapshot{PatientID: uuid.New(), HeartRate: intptr(900)}},
		{"oxygen above 100", &Snapshot{PatientID: uuid.New(), OxygenSaturation: floatptr(120)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := svc.Record(context.Background(), tc.snap); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLatest_ReturnsMostRecent(t *testing.T) {
	repo := newMockSnapshotRepo()
	svc := NewService(repo, nil, zerolog.Nop())
	pid := uuid.New()

	old := &Snapshot{PatientID: pid, HeartRate: intptr(60), RecordedAt: time.Now().Add(-time.Hour)}
	recent := &Snapshot{PatientID: pid, HeartRate: intptr(95), RecordedAt: time.Now()}
	if err := svc.Record(context.Background(), old); err != nil {
		t.Fatalf("record old: %v", err)
	}
	if err := svc.Record(context.Background(), recent); err != nil {
		t.Fatalf("record recent: %v", err)
	}

	got, err := svc.Latest(context.Background(), pid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != recent.ID {
		t.Errorf("expected latest snapshot %s, got %s", recent.ID, got.ID)
	}
	if *got.HeartRate != 95 {
		t.Errorf("expected heart rate 95, got %d", *got.HeartRate)
	}
}

func TestLatest_NoVitals(t *testing.T) {
	svc := NewService(newMockSnapshotRepo(), nil, zerolog.Nop())
	if _, err := svc.Latest(context.Background(), uuid.New()); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestHistory_DescendingOrder(t *testing.T) {
	repo := newMockSnapshotRepo()
	svc := NewService(repo, nil, zerolog.Nop())
	pid := uuid.New()

	base := time.Now().Add(-3 * time.Hour)
	for i := 0; i < 3; i++ {
		snap := &Snapshot{PatientID: pid, HeartRate: intptr(60 + i), RecordedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := svc.Record(context.Background(), snap); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	items, total, err := svc.History(context.Background(), pid, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 {
		t.Errorf("expected total=3, got %d", total)
	}
	for i := 1; i < len(items); i++ {
		if items[i].RecordedAt.After(items[i-1].RecordedAt) {
			t.Errorf("history not in descending order at %d", i)
		}
	}
}
