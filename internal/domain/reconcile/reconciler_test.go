package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/amnandan9/Parkinsons-Detection-System/internal/domain/patient"
	"github.com/amnandan9/Parkinsons-Detection-System/internal/platform/localstore"
	"github.com/amnandan9/Parkinsons-Detection-System/internal/platform/syncclient"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakePuller struct {
	records []patient.Record
	err     error
	cursors []string
}

func (f *fakePuller) Pull(_ context.Context, cursor string) (syncclient.Changes, error) {
	f.cursors = append(f.cursors, cursor)
	if f.err != nil {
		return syncclient.Changes{Records: []patient.Record{}}, f.err
	}
	return syncclient.Changes{Records: patient.Clone(f.records), Cursor: "c1"}, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	fail   map[string]bool
	pushed []patient.Record
}

func (f *fakePublisher) SyncPatientRecord(_ context.Context, r patient.Record) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[r.ID] {
		return false
	}
	f.pushed = append(f.pushed, r)
	return true
}

// failingRepo fails every SaveAll.
type failingRepo struct {
	patient.Repository
}

func (failingRepo) SaveAll(context.Context, []patient.Record) error {
	return errors.New("disk full")
}

func newTestReconciler(p syncclient.Puller, repo patient.Repository, pub RecordPublisher) *Reconciler {
	return New(p, repo, pub, zerolog.Nop(), WithClock(func() time.Time { return now }), WithPushConcurrency(3))
}

func minutesAgo(m float64) time.Time {
	return now.Add(-time.Duration(m * float64(time.Minute)))
}

func TestRun_MergesServerRecordsAndDerivesStatus(t *testing.T) {
	ctx := context.Background()
	repo := patient.NewKVRepo(localstore.NewMemory())
	repo.SaveAll(ctx, []patient.Record{
		{ID: "p1", PatientID: "p1", PatientName: "Local Alice", LastLogin: minutesAgo(40), Status: patient.StatusOffline, TotalAnalyses: 4},
		{ID: "p3", PatientID: "p3", LastLogin: minutesAgo(2), Status: patient.StatusBusy},
	})
	puller := &fakePuller{records: []patient.Record{
		{ID: "p1", PatientID: "p1", PatientName: "Server Alice", LastLogin: minutesAgo(10), Status: patient.StatusBusy, TotalAnalyses: 4},
		{ID: "p2", PatientID: "p2", LastLogin: minutesAgo(20), Status: patient.StatusAvailable},
	}}
	pub := &fakePublisher{}

	res, err := newTestReconciler(puller, repo, pub).Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Pulled != 2 || res.Healed != 0 {
		t.Errorf("unexpected counters: %+v", res)
	}

	byID := map[string]patient.Record{}
	for _, r := range res.Records {
		byID[r.ID] = r
	}
	if len(byID) != 3 {
		t.Fatalf("expected 3 records, got %d", len(byID))
	}
	if byID["p1"].PatientName != "Server Alice" || byID["p1"].Status != patient.StatusAvailable {
		t.Errorf("p1: expected server fields and derived available, got %+v", byID["p1"])
	}
	if byID["p2"].Status != patient.StatusBusy {
		t.Errorf("p2: expected busy at 20 min, got %q", byID["p2"].Status)
	}
	if byID["p3"].Status != patient.StatusActive {
		t.Errorf("p3: local-only record should be kept and derived active, got %q", byID["p3"].Status)
	}

	stored, _ := repo.List(ctx)
	if len(stored) != 3 {
		t.Errorf("expected merged set persisted, got %d", len(stored))
	}
	if res.Pushed != 3 || len(pub.pushed) != 3 {
		t.Errorf("expected every record pushed, got %d", res.Pushed)
	}
	if puller.cursors[0] != "" {
		t.Errorf("first pull should start without a cursor")
	}
}

func TestRun_BookAppointmentSurvivesDerivation(t *testing.T) {
	ctx := context.Background()
	requested := minutesAgo(1)
	repo := patient.NewKVRepo(localstore.NewMemory())
	puller := &fakePuller{records: []patient.Record{
		{ID: "p1", PatientID: "p1", LastLogin: minutesAgo(90), Status: patient.StatusBookAppointment, AppointmentRequestedAt: &requested},
	}}

	res, _ := newTestReconciler(puller, repo, &fakePublisher{}).Run(ctx)
	if res.Records[0].Status != patient.StatusBookAppointment {
		t.Errorf("expected book_appointment kept, got %q", res.Records[0].Status)
	}
}

func TestRun_StaleLocalRecordDoesNotClearServerAppointment(t *testing.T) {
	ctx := context.Background()
	requested := minutesAgo(1)
	repo := patient.NewKVRepo(localstore.NewMemory())
	repo.SaveAll(ctx, []patient.Record{{ID: "p1", PatientID: "p1", LastLogin: minutesAgo(3), Status: patient.StatusActive}})
	puller := &fakePuller{records: []patient.Record{
		{ID: "p1", PatientID: "p1", LastLogin: minutesAgo(3), Status: patient.StatusBookAppointment, AppointmentRequestedAt: &requested},
	}}

	res, _ := newTestReconciler(puller, repo, &fakePublisher{}).Run(ctx)
	got := res.Records[0]
	if got.Status != patient.StatusBookAppointment || got.AppointmentRequestedAt == nil {
		t.Errorf("server appointment lost: %+v", got)
	}
}

func TestRun_EmptyServerHealsFromLocal(t *testing.T) {
	ctx := context.Background()
	repo := patient.NewKVRepo(localstore.NewMemory())
	repo.SaveAll(ctx, []patient.Record{
		{ID: "p1", PatientID: "p1", LastLogin: minutesAgo(1)},
		{ID: "p2", PatientID: "p2", LastLogin: minutesAgo(1)},
	})
	pub := &fakePublisher{}

	res, err := newTestReconciler(&fakePuller{}, repo, pub).Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Healed != 2 {
		t.Errorf("expected 2 healed, got %d", res.Healed)
	}
	// Heal push plus the regular push of the derived set.
	if len(pub.pushed) != 4 {
		t.Errorf("expected 4 pushes, got %d", len(pub.pushed))
	}
}

func TestRun_PullFailureKeepsLocalAndPushes(t *testing.T) {
	ctx := context.Background()
	repo := patient.NewKVRepo(localstore.NewMemory())
	repo.SaveAll(ctx, []patient.Record{{ID: "p1", PatientID: "p1", LastLogin: minutesAgo(45), Status: patient.StatusActive}})
	puller := &fakePuller{err: errors.New("connection refused")}

	res, err := newTestReconciler(puller, repo, &fakePublisher{}).Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Healed != 1 || res.Records[0].Status != patient.StatusOffline {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestRun_NothingAnywhere(t *testing.T) {
	pub := &fakePublisher{}
	res, err := newTestReconciler(&fakePuller{}, patient.NewKVRepo(localstore.NewMemory()), pub).Run(context.Background())
	if err != nil || len(res.Records) != 0 || len(pub.pushed) != 0 {
		t.Errorf("expected a no-op pass, got %+v, %v", res, err)
	}
}

func TestRun_PushFailuresAreCountedNotFatal(t *testing.T) {
	ctx := context.Background()
	puller := &fakePuller{records: []patient.Record{
		{ID: "p1", PatientID: "p1", LastLogin: minutesAgo(1)},
		{ID: "p2", PatientID: "p2", LastLogin: minutesAgo(1)},
	}}
	pub := &fakePublisher{fail: map[string]bool{"p2": true}}

	res, err := newTestReconciler(puller, patient.NewKVRepo(localstore.NewMemory()), pub).Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Pushed != 1 || res.PushFailed != 1 {
		t.Errorf("expected 1 pushed and 1 failed, got %+v", res)
	}
}

func TestRun_PersistenceErrorsAreCombined(t *testing.T) {
	ctx := context.Background()
	repo := failingRepo{patient.NewKVRepo(localstore.NewMemory())}
	puller := &fakePuller{records: []patient.Record{{ID: "p1", PatientID: "p1", LastLogin: minutesAgo(1)}}}
	pub := &fakePublisher{}

	res, err := newTestReconciler(puller, repo, pub).Run(ctx)
	if err == nil {
		t.Fatal("expected error")
	}
	if res.Pushed != 1 {
		t.Error("pushes should still be attempted after a local write failure")
	}
}

func TestRun_CursorAdvances(t *testing.T) {
	puller := &fakePuller{records: []patient.Record{{ID: "p1", PatientID: "p1"}}}
	r := newTestReconciler(puller, patient.NewKVRepo(localstore.NewMemory()), &fakePublisher{})
	r.Run(context.Background())
	r.Run(context.Background())
	if puller.cursors[1] != "c1" {
		t.Errorf("expected second pull to use cursor c1, got %q", puller.cursors[1])
	}
}
