// Package portal implements the user-facing actions of the patient, doctor
// and admin dashboards on top of the local store.
package portal

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/amnandan9/Parkinsons-Detection-System/internal/domain/account"
	"github.com/amnandan9/Parkinsons-Detection-System/internal/domain/patient"
	"github.com/amnandan9/Parkinsons-Detection-System/internal/domain/qrcode"
	"github.com/amnandan9/Parkinsons-Detection-System/internal/platform/syncproto"
)

var (
	ErrNotPatient     = errors.New("only patients can book appointments")
	ErrNotAdmin       = errors.New("admin access required")
	ErrQRCodeNotFound = errors.New("qr code not found")
)

// Publisher is the subset of sync events raised by portal actions.
type Publisher interface {
	SyncPatientRecord(ctx context.Context, r patient.Record) bool
	SyncAppointment(ctx context.Context, a syncproto.AppointmentEvent) bool
	SyncDeletePatient(ctx context.Context, patientID, patientName string) bool
	SyncDeleteDoctor(ctx context.Context, doctorID, doctorName string) bool
	SyncDeleteQRCode(ctx context.Context, qrCodeID, doctorName string) bool
}

type Service struct {
	accounts account.Repository
	records  patient.Repository
	qrcodes  *qrcode.Service
	events   Publisher
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(accounts account.Repository, records patient.Repository, qrcodes *qrcode.Service, events Publisher, logger zerolog.Logger) *Service {
	return &Service{
		accounts: accounts,
		records:  records,
		qrcodes:  qrcodes,
		events:   events,
		logger:   logger.With().Str("component", "portal").Logger(),
		now:      time.Now,
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// RecordAnalysis updates a patient's record after a completed analysis and
// syncs it. Non-patients have no record and are ignored.
func (s *Service) RecordAnalysis(ctx context.Context, u account.User) (*patient.Record, error) {
	if u.UserType != account.UserTypePatient {
		return nil, nil
	}
	rec, err := s.records.Find(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	rec.LastLogin = now
	rec.TotalAnalyses++
	rec.LastAnalysis = &now
	rec.Status = patient.StatusBusy
	if err := s.records.Upsert(ctx, *rec); err != nil {
		return nil, err
	}
	s.events.SyncPatientRecord(ctx, *rec)
	return rec, nil
}

// BookAppointment marks the patient's record as requesting an appointment
// and publishes both the appointment and the record. It reports whether
// both reached the server; the local change stands either way.
func (s *Service) BookAppointment(ctx context.Context, u account.User) (bool, error) {
	if u.UserType != account.UserTypePatient {
		return false, ErrNotPatient
	}
	rec, err := s.records.Find(ctx, u.ID)
	if err != nil {
		return false, err
	}
	now := s.now().UTC()
	rec.Status = patient.StatusBookAppointment
	rec.AppointmentRequestedAt = &now
	if err := s.records.Upsert(ctx, *rec); err != nil {
		return false, err
	}

	apptSynced := s.events.SyncAppointment(ctx, syncproto.AppointmentEvent{
		PatientID:    u.ID,
		PatientName:  u.Name,
		PatientEmail: u.Email,
		Status:       patient.StatusBookAppointment,
		Timestamp:    &now,
	})
	recSynced := s.events.SyncPatientRecord(ctx, *rec)
	s.logger.Info().Str("patient_id", u.ID).Bool("synced", apptSynced && recSynced).Msg("appointment requested")
	return apptSynced && recSynced, nil
}

// DeletePatient removes the patient's records and account from this device
// and publishes the deletion.
func (s *Service) DeletePatient(ctx context.Context, patientID, patientName string) (bool, error) {
	removed, err := s.records.Remove(ctx, patientID)
	if err != nil {
		return false, err
	}
	hadAccount, err := s.accounts.Remove(ctx, patientID)
	if err != nil {
		return false, err
	}
	s.logger.Info().Str("patient_id", patientID).Int("records", removed).Bool("account", hadAccount).Msg("patient deleted")
	return s.events.SyncDeletePatient(ctx, patientID, patientName), nil
}

// DeleteDoctor removes the doctor's account and QR codes and publishes the
// deletion.
func (s *Service) DeleteDoctor(ctx context.Context, doctorID, doctorName string) (bool, error) {
	if _, err := s.accounts.Remove(ctx, doctorID); err != nil {
		return false, err
	}
	codes, err := s.qrcodes.DeleteForDoctor(ctx, doctorID)
	if err != nil {
		return false, err
	}
	s.logger.Info().Str("doctor_id", doctorID).Int("qr_codes", codes).Msg("doctor deleted")
	return s.events.SyncDeleteDoctor(ctx, doctorID, doctorName), nil
}

// DeleteQRCode removes one QR code and publishes the deletion.
func (s *Service) DeleteQRCode(ctx context.Context, qrCodeID string) (bool, error) {
	qr, err := s.qrcodes.Delete(ctx, qrCodeID)
	if errors.Is(err, qrcode.ErrNotFound) {
		return false, ErrQRCodeNotFound
	}
	if err != nil {
		return false, err
	}
	return s.events.SyncDeleteQRCode(ctx, qr.ID, qr.DoctorName), nil
}

// Doctors lists registered doctors without their passwords.
func (s *Service) Doctors(ctx context.Context) ([]account.User, error) {
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, err
	}
	out := []account.User{}
	for _, a := range accounts {
		if a.UserType == account.UserTypeDoctor {
			out = append(out, a.User)
		}
	}
	return out, nil
}

// RequireAdmin returns ErrNotAdmin unless u is an administrator.
func RequireAdmin(u *account.User) error {
	if u == nil || u.UserType != account.UserTypeAdmin {
		return ErrNotAdmin
	}
	return nil
}
