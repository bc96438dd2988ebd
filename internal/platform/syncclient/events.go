package syncclient

import (
	"context"
	"time"

	"github.com/amnandan9/Parkinsons-Detection-System/internal/domain/patient"
	"github.com/amnandan9/Parkinsons-Detection-System/internal/platform/syncproto"
)

// Publisher delivers a sync event and reports whether it reached the
// server. Both Client and Outbox implement it.
type Publisher interface {
	Publish(ctx context.Context, t syncproto.EventType, data interface{}) bool
}

// Events exposes one method per sync event type.
type Events struct {
	pub Publisher
	now func() time.Time
}

func NewEvents(pub Publisher) *Events {
	return &Events{pub: pub, now: time.Now}
}

func (e *Events) SyncPatientRecord(ctx context.Context, r patient.Record) bool {
	return e.pub.Publish(ctx, syncproto.TypePatientRecord, r)
}

func (e *Events) SyncAppointment(ctx context.Context, a syncproto.AppointmentEvent) bool {
	return e.pub.Publish(ctx, syncproto.TypeAppointment, a)
}

func (e *Events) SyncLogin(ctx context.Context, s syncproto.SessionEvent) bool {
	return e.pub.Publish(ctx, syncproto.TypeLogin, e.stamped(s))
}

func (e *Events) SyncLogout(ctx context.Context, s syncproto.SessionEvent) bool {
	return e.pub.Publish(ctx, syncproto.TypeLogout, e.stamped(s))
}

func (e *Events) SyncDeletePatient(ctx context.Context, patientID, patientName string) bool {
	at := e.now().UTC()
	return e.pub.Publish(ctx, syncproto.TypeDeletePatient, syncproto.DeletePatient{
		PatientID: patientID, PatientName: patientName, Timestamp: &at,
	})
}

func (e *Events) SyncDeleteDoctor(ctx context.Context, doctorID, doctorName string) bool {
	at := e.now().UTC()
	return e.pub.Publish(ctx, syncproto.TypeDeleteDoctor, syncproto.DeleteDoctor{
		DoctorID: doctorID, DoctorName: doctorName, Timestamp: &at,
	})
}

func (e *Events) SyncDeleteQRCode(ctx context.Context, qrCodeID, doctorName string) bool {
	at := e.now().UTC()
	return e.pub.Publish(ctx, syncproto.TypeDeleteQRCode, syncproto.DeleteQRCode{
		QRCodeID: qrCodeID, DoctorName: doctorName, Timestamp: &at,
	})
}

func (e *Events) stamped(s syncproto.SessionEvent) syncproto.SessionEvent {
	if s.Timestamp == nil {
		at := e.now().UTC()
		s.Timestamp = &at
	}
	return s
}
