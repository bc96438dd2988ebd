package syncserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/amnandan9/Parkinsons-Detection-System/internal/domain/patient"
	"github.com/amnandan9/Parkinsons-Detection-System/internal/platform/syncproto"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *FileStore) {
	t.Helper()
	store := newTestStore(t)
	svc := NewService(store, zerolog.Nop())
	svc.SetClock(func() time.Time { return testNow })
	return svc, store
}

func event(t *testing.T, typ syncproto.EventType, data interface{}) syncproto.Event {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatal(err)
	}
	return syncproto.Event{Type: typ, Data: raw}
}

func mustApply(t *testing.T, svc *Service, evt syncproto.Event) {
	t.Helper()
	if err := svc.Apply(context.Background(), evt); err != nil {
		t.Fatalf("apply %s: %v", evt.Type, err)
	}
}

func records(t *testing.T, svc *Service) []patient.Record {
	t.Helper()
	rs, err := svc.PatientRecords(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return rs
}

func TestApply_PatientRecordUpsertIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	rec := patient.NewRecord("p1", "Alice", "alice@example.com", testNow)
	rec.TotalAnalyses = 2

	mustApply(t, svc, event(t, syncproto.TypePatientRecord, rec))
	mustApply(t, svc, event(t, syncproto.TypePatientRecord, rec))

	rs := records(t, svc)
	if len(rs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(rs))
	}
	got := rs[0]
	if got.ID != "p1" || got.PatientName != "Alice" || got.TotalAnalyses != 2 || got.Status != patient.StatusAvailable || !got.LastLogin.Equal(testNow) {
		t.Errorf("record does not equal payload: %+v", got)
	}
}

func TestApply_PatientRecordMatchesByPatientID(t *testing.T) {
	svc, _ := newTestService(t)
	mustApply(t, svc, event(t, syncproto.TypePatientRecord, map[string]interface{}{"id": "a", "patientId": "p1", "patientName": "Old"}))
	mustApply(t, svc, event(t, syncproto.TypePatientRecord, map[string]interface{}{"id": "b", "patientId": "p1", "patientName": "New"}))

	rs := records(t, svc)
	if len(rs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(rs))
	}
	if rs[0].PatientName != "New" || rs[0].ID != "b" {
		t.Errorf("expected shallow merge of incoming fields, got %+v", rs[0])
	}
}

func TestApply_PatientRecordWithoutStatusKeepsStatus(t *testing.T) {
	svc, _ := newTestService(t)
	mustApply(t, svc, event(t, syncproto.TypePatientRecord, map[string]interface{}{
		"id": "p1", "patientId": "p1", "status": "book_appointment", "appointmentRequestedAt": testNow,
	}))
	mustApply(t, svc, event(t, syncproto.TypePatientRecord, map[string]interface{}{
		"id": "p1", "patientId": "p1", "patientName": "Alice", "status": "",
	}))

	got := records(t, svc)[0]
	if got.Status != patient.StatusBookAppointment {
		t.Errorf("expected status kept, got %q", got.Status)
	}
	if got.AppointmentRequestedAt == nil || !got.AppointmentRequestedAt.Equal(testNow) {
		t.Errorf("expected appointmentRequestedAt kept, got %v", got.AppointmentRequestedAt)
	}
	if got.PatientName != "Alice" {
		t.Errorf("expected other fields merged, got %q", got.PatientName)
	}
}

func TestApply_PatientRecordRegressesUnprotectedFields(t *testing.T) {
	// Only status and appointmentRequestedAt are protected; a stale sync
	// can lower totalAnalyses.
	svc, _ := newTestService(t)
	mustApply(t, svc, event(t, syncproto.TypePatientRecord, map[string]interface{}{"id": "p1", "patientId": "p1", "totalAnalyses": 5}))
	mustApply(t, svc, event(t, syncproto.TypePatientRecord, map[string]interface{}{"id": "p1", "patientId": "p1", "totalAnalyses": 1}))
	if got := records(t, svc)[0].TotalAnalyses; got != 1 {
		t.Errorf("expected last writer to win on totalAnalyses, got %d", got)
	}
}

func TestApply_PatientRecordRequiresIdentity(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.Apply(context.Background(), event(t, syncproto.TypePatientRecord, map[string]interface{}{"patientName": "nobody"}))
	if !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("expected ErrInvalidPayload, got %v", err)
	}
}

func TestApply_PatientRecordRejectsUnknownStatus(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.Apply(context.Background(), event(t, syncproto.TypePatientRecord, map[string]interface{}{
		"id": "p1", "patientId": "p1", "status": "sleeping",
	}))
	if !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("expected ErrInvalidPayload, got %v", err)
	}
	if rs := records(t, svc); len(rs) != 0 {
		t.Errorf("expected nothing stored, got %+v", rs)
	}
}

func TestApply_AppointmentAppendsAndMarksRecord(t *testing.T) {
	svc, _ := newTestService(t)
	mustApply(t, svc, event(t, syncproto.TypePatientRecord, patient.NewRecord("p1", "Alice", "a@example.com", testNow)))

	requested := testNow.Add(time.Minute)
	appt := syncproto.AppointmentEvent{PatientID: "p1", PatientName: "Alice", Status: patient.StatusBookAppointment, Timestamp: &requested}
	mustApply(t, svc, event(t, syncproto.TypeAppointment, appt))
	mustApply(t, svc, event(t, syncproto.TypeAppointment, appt))

	appts, _ := svc.Appointments(context.Background())
	if len(appts) != 2 {
		t.Errorf("appointments are not deduplicated, expected 2, got %d", len(appts))
	}
	got := records(t, svc)[0]
	if got.Status != patient.StatusBookAppointment {
		t.Errorf("expected book_appointment, got %q", got.Status)
	}
	if got.AppointmentRequestedAt == nil || !got.AppointmentRequestedAt.Equal(requested) {
		t.Errorf("expected appointmentRequestedAt %v, got %v", requested, got.AppointmentRequestedAt)
	}
}

func TestApply_AppointmentWithoutTimestampUsesEnvelopeThenClock(t *testing.T) {
	svc, _ := newTestService(t)
	mustApply(t, svc, event(t, syncproto.TypePatientRecord, patient.NewRecord("p1", "Alice", "a@example.com", testNow)))

	evt := event(t, syncproto.TypeAppointment, map[string]string{"patientId": "p1"})
	envelope := testNow.Add(-time.Hour)
	evt.Timestamp = &envelope
	mustApply(t, svc, evt)
	mustApply(t, svc, event(t, syncproto.TypeAppointment, map[string]string{"patientId": "p1"}))

	appts, _ := svc.Appointments(context.Background())
	if !appts[0].Timestamp.Equal(envelope) {
		t.Errorf("expected envelope timestamp, got %v", appts[0].Timestamp)
	}
	if !appts[1].Timestamp.Equal(testNow) {
		t.Errorf("expected server clock, got %v", appts[1].Timestamp)
	}
	if got := records(t, svc)[0].AppointmentRequestedAt; got == nil || !got.Equal(testNow) {
		t.Errorf("expected appointmentRequestedAt from clock, got %v", got)
	}
}

func TestApply_AppointmentForUnknownPatientOnlyLogs(t *testing.T) {
	svc, _ := newTestService(t)
	mustApply(t, svc, event(t, syncproto.TypeAppointment, map[string]string{"patientId": "ghost"}))
	appts, _ := svc.Appointments(context.Background())
	if len(appts) != 1 {
		t.Errorf("expected appointment to be logged, got %d", len(appts))
	}
	if len(records(t, svc)) != 0 {
		t.Error("appointment must not create a record")
	}
}

func TestApply_LoginLogout(t *testing.T) {
	svc, store := newTestService(t)
	se := syncproto.SessionEvent{UserID: "u1", Email: "d@example.com", Name: "Dr", UserType: "doctor"}
	mustApply(t, svc, event(t, syncproto.TypeLogin, se))
	mustApply(t, svc, event(t, syncproto.TypeLogout, se))
	mustApply(t, svc, event(t, syncproto.TypeLogout, se))

	doc, _ := store.Snapshot(context.Background())
	if len(doc.LoginLogs) != 1 || len(doc.LogoutLogs) != 2 {
		t.Errorf("expected 1 login and 2 logouts, got %d/%d", len(doc.LoginLogs), len(doc.LogoutLogs))
	}
	if doc.LoginLogs[0].Timestamp == nil || !doc.LoginLogs[0].Timestamp.Equal(testNow) {
		t.Errorf("expected stamped login, got %v", doc.LoginLogs[0].Timestamp)
	}
	if len(doc.PatientRecords) != 0 {
		t.Error("session events must not touch records")
	}
}

func TestApply_DeletePatientMatchesIDOrPatientID(t *testing.T) {
	svc, store := newTestService(t)
	mustApply(t, svc, event(t, syncproto.TypePatientRecord, map[string]string{"id": "p1", "patientId": "p1"}))
	mustApply(t, svc, event(t, syncproto.TypePatientRecord, map[string]string{"id": "p1", "patientId": "other"}))
	store.Update(context.Background(), func(doc *Document) error {
		doc.PatientRecords = append(doc.PatientRecords,
			patient.Record{ID: "legacy", PatientID: "p1"},
			patient.Record{ID: "p2", PatientID: "p2"},
		)
		return nil
	})

	mustApply(t, svc, event(t, syncproto.TypeDeletePatient, syncproto.DeletePatient{PatientID: "p1", PatientName: "Alice"}))

	rs := records(t, svc)
	if len(rs) != 1 || rs[0].ID != "p2" {
		t.Errorf("expected only p2 to remain, got %+v", rs)
	}
	doc, _ := store.Snapshot(context.Background())
	if len(doc.DeleteLogs) != 1 || doc.DeleteLogs[0].Type != syncproto.DeleteKindPatient || doc.DeleteLogs[0].PatientName != "Alice" {
		t.Errorf("expected one patient delete log, got %+v", doc.DeleteLogs)
	}
}

func TestApply_DeleteDoctorCascades(t *testing.T) {
	svc, store := newTestService(t)
	store.Update(context.Background(), func(doc *Document) error {
		doc.PatientRecords = append(doc.PatientRecords,
			patient.Record{ID: "x1", PatientID: "d1"},
			patient.Record{ID: "x2", PatientID: "d1"},
			patient.Record{ID: "d1", PatientID: "p9"},
			patient.Record{ID: "p2", PatientID: "p2"},
		)
		return nil
	})

	mustApply(t, svc, event(t, syncproto.TypeDeleteDoctor, syncproto.DeleteDoctor{DoctorID: "d1", DoctorName: "Dr Who"}))

	rs := records(t, svc)
	if len(rs) != 2 {
		t.Fatalf("expected 2 records to remain, got %+v", rs)
	}
	for _, r := range rs {
		if r.PatientID == "d1" {
			t.Errorf("record %s with doctor's patientId survived", r.ID)
		}
	}
	doc, _ := store.Snapshot(context.Background())
	if len(doc.DeleteLogs) != 1 || doc.DeleteLogs[0].Type != syncproto.DeleteKindDoctor || doc.DeleteLogs[0].DoctorID != "d1" {
		t.Errorf("expected one doctor delete log, got %+v", doc.DeleteLogs)
	}
}

func TestApply_DeleteQRCodeOnlyLogs(t *testing.T) {
	svc, store := newTestService(t)
	mustApply(t, svc, event(t, syncproto.TypePatientRecord, map[string]string{"id": "p1", "patientId": "p1"}))
	mustApply(t, svc, event(t, syncproto.TypeDeleteQRCode, syncproto.DeleteQRCode{QRCodeID: "QR_1", DoctorName: "Dr"}))

	doc, _ := store.Snapshot(context.Background())
	if len(doc.PatientRecords) != 1 {
		t.Error("qrcode delete must not touch records")
	}
	if len(doc.DeleteLogs) != 1 || doc.DeleteLogs[0].Type != syncproto.DeleteKindQRCode || doc.DeleteLogs[0].QRCodeID != "QR_1" {
		t.Errorf("expected qrcode delete log, got %+v", doc.DeleteLogs)
	}
}

func TestApply_UnknownType(t *testing.T) {
	svc, store := newTestService(t)
	err := svc.Apply(context.Background(), event(t, "bogus", map[string]string{}))
	if !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
	doc, _ := store.Snapshot(context.Background())
	if len(doc.DeleteLogs)+len(doc.LoginLogs)+len(doc.PatientRecords) != 0 {
		t.Error("unknown event mutated the document")
	}
}

func TestApply_MalformedPayload(t *testing.T) {
	svc, _ := newTestService(t)
	evt := syncproto.Event{Type: syncproto.TypeLogin, Data: json.RawMessage(`"not an object"`)}
	if err := svc.Apply(context.Background(), evt); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("expected ErrInvalidPayload, got %v", err)
	}
	evt = syncproto.Event{Type: syncproto.TypeLogin}
	if err := svc.Apply(context.Background(), evt); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("expected ErrInvalidPayload for missing data, got %v", err)
	}
}

func TestApply_ConcurrentWritesAreNotLost(t *testing.T) {
	svc, store := newTestService(t)
	const writers = 40

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("p%d", i)
			if err := svc.Apply(context.Background(), event(t, syncproto.TypePatientRecord, map[string]string{"id": id, "patientId": id})); err != nil {
				t.Errorf("apply %s: %v", id, err)
			}
			if err := svc.Apply(context.Background(), event(t, syncproto.TypeAppointment, map[string]string{"patientId": id})); err != nil {
				t.Errorf("appointment %s: %v", id, err)
			}
		}(i)
	}
	wg.Wait()

	reopened, err := OpenFileStore(store.Path(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	doc, _ := reopened.Snapshot(context.Background())
	if len(doc.PatientRecords) != writers {
		t.Errorf("expected %d records on disk, got %d", writers, len(doc.PatientRecords))
	}
	if len(doc.Appointments) != writers {
		t.Errorf("expected %d appointments on disk, got %d", writers, len(doc.Appointments))
	}
}
