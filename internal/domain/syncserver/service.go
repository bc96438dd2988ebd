package syncserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/amnandan9/Parkinsons-Detection-System/internal/domain/patient"
	"github.com/amnandan9/Parkinsons-Detection-System/internal/platform/syncproto"
)

var (
	ErrUnknownType    = errors.New("unknown sync type")
	ErrInvalidPayload = errors.New("invalid sync payload")
)

type Service struct {
	store  Store
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(store Store, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.With().Str("component", "sync_server").Logger(),
		now:    time.Now,
	}
}

// SetClock overrides the time source used for events that carry no
// timestamp.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Apply validates evt and merges it into the document. Unknown types and
// undecodable payloads are rejected before the store is touched.
func (s *Service) Apply(ctx context.Context, evt syncproto.Event) error {
	if !evt.Type.Known() {
		return ErrUnknownType
	}
	s.logger.Info().Str("type", string(evt.Type)).RawJSON("data", rawOrNull(evt.Data)).Msg("received sync")

	mutate, err := s.mutation(evt)
	if err != nil {
		return err
	}
	return s.store.Update(ctx, mutate)
}

func (s *Service) mutation(evt syncproto.Event) (func(*Document) error, error) {
	// stamp picks the payload's own timestamp, then the envelope's, then
	// the server clock.
	stamp := func(payload *time.Time) time.Time {
		if payload != nil && !payload.IsZero() {
			return *payload
		}
		if evt.Timestamp != nil && !evt.Timestamp.IsZero() {
			return *evt.Timestamp
		}
		return s.now().UTC()
	}

	switch evt.Type {
	case syncproto.TypePatientRecord:
		var p patient.Patch
		if err := decode(evt.Data, &p); err != nil {
			return nil, err
		}
		id, patientID := p.Key()
		if id == "" && patientID == "" {
			return nil, fmt.Errorf("%w: id or patientId is required", ErrInvalidPayload)
		}
		if p.Status != nil && *p.Status != "" && !p.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidPayload, *p.Status)
		}
		return func(doc *Document) error {
			upsertRecord(doc, p)
			return nil
		}, nil

	case syncproto.TypeAppointment:
		var a syncproto.AppointmentEvent
		if err := decode(evt.Data, &a); err != nil {
			return nil, err
		}
		if a.PatientID == "" {
			return nil, fmt.Errorf("%w: patientId is required", ErrInvalidPayload)
		}
		return func(doc *Document) error {
			at := stamp(a.Timestamp)
			entry := a
			entry.Timestamp = &at
			doc.Appointments = append(doc.Appointments, entry)

			if i := patient.Index(doc.PatientRecords, a.PatientID, a.PatientID); i >= 0 {
				requested := at
				doc.PatientRecords[i].Status = patient.StatusBookAppointment
				doc.PatientRecords[i].AppointmentRequestedAt = &requested
			}
			return nil
		}, nil

	case syncproto.TypeLogin, syncproto.TypeLogout:
		var se syncproto.SessionEvent
		if err := decode(evt.Data, &se); err != nil {
			return nil, err
		}
		login := evt.Type == syncproto.TypeLogin
		return func(doc *Document) error {
			at := stamp(se.Timestamp)
			entry := se
			entry.Timestamp = &at
			if login {
				doc.LoginLogs = append(doc.LoginLogs, entry)
			} else {
				doc.LogoutLogs = append(doc.LogoutLogs, entry)
			}
			return nil
		}, nil

	case syncproto.TypeDeletePatient:
		var d syncproto.DeletePatient
		if err := decode(evt.Data, &d); err != nil {
			return nil, err
		}
		if d.PatientID == "" {
			return nil, fmt.Errorf("%w: patientId is required", ErrInvalidPayload)
		}
		return func(doc *Document) error {
			doc.PatientRecords = removeRecords(doc.PatientRecords, func(r patient.Record) bool {
				return r.RefersTo(d.PatientID)
			})
			doc.DeleteLogs = append(doc.DeleteLogs, syncproto.DeleteLogEntry{
				Type:        syncproto.DeleteKindPatient,
				PatientID:   d.PatientID,
				PatientName: d.PatientName,
				Timestamp:   stamp(d.Timestamp),
			})
			return nil
		}, nil

	case syncproto.TypeDeleteDoctor:
		var d syncproto.DeleteDoctor
		if err := decode(evt.Data, &d); err != nil {
			return nil, err
		}
		if d.DoctorID == "" {
			return nil, fmt.Errorf("%w: doctorId is required", ErrInvalidPayload)
		}
		return func(doc *Document) error {
			// Only mis-tagged records carry a doctor's id as patientId.
			doc.PatientRecords = removeRecords(doc.PatientRecords, func(r patient.Record) bool {
				return r.PatientID == d.DoctorID
			})
			doc.DeleteLogs = append(doc.DeleteLogs, syncproto.DeleteLogEntry{
				Type:       syncproto.DeleteKindDoctor,
				DoctorID:   d.DoctorID,
				DoctorName: d.DoctorName,
				Timestamp:  stamp(d.Timestamp),
			})
			return nil
		}, nil

	case syncproto.TypeDeleteQRCode:
		var d syncproto.DeleteQRCode
		if err := decode(evt.Data, &d); err != nil {
			return nil, err
		}
		return func(doc *Document) error {
			doc.DeleteLogs = append(doc.DeleteLogs, syncproto.DeleteLogEntry{
				Type:       syncproto.DeleteKindQRCode,
				QRCodeID:   d.QRCodeID,
				DoctorName: d.DoctorName,
				Timestamp:  stamp(d.Timestamp),
			})
			return nil
		}, nil
	}
	return nil, ErrUnknownType
}

// PatientRecords returns the current record list.
func (s *Service) PatientRecords(ctx context.Context) ([]patient.Record, error) {
	doc, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return doc.PatientRecords, nil
}

// Appointments returns the appointment log in arrival order.
func (s *Service) Appointments(ctx context.Context) ([]syncproto.AppointmentEvent, error) {
	doc, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Appointments, nil
}

func upsertRecord(doc *Document, p patient.Patch) {
	id, patientID := p.Key()
	if i := patient.Index(doc.PatientRecords, id, patientID); i >= 0 {
		doc.PatientRecords[i] = doc.PatientRecords[i].Apply(p)
		return
	}
	doc.PatientRecords = append(doc.PatientRecords, p.Record())
}

func removeRecords(records []patient.Record, drop func(patient.Record) bool) []patient.Record {
	kept := records[:0]
	for _, r := range records {
		if !drop(r) {
			kept = append(kept, r)
		}
	}
	return kept
}

func decode(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: data is required", ErrInvalidPayload)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

func rawOrNull(raw json.RawMessage) []byte {
	if len(raw) == 0 || !json.Valid(raw) {
		return []byte("null")
	}
	return raw
}
