// Package syncproto defines the HTTP/JSON wire format shared by the sync
// server and its clients.
package syncproto

import (
	"encoding/json"
	"time"

	"github.com/amnandan9/Parkinsons-Detection-System/internal/domain/patient"
)

// Endpoint paths.
const (
	PathSync           = "/api/sync"
	PathPatientRecords = "/api/patient-records"
	PathAppointments   = "/api/appointments"
	PathHealth         = "/api/health"
)

// EventType names a sync event.
type EventType string

const (
	TypePatientRecord EventType = "patient_record"
	TypeAppointment   EventType = "appointment"
	TypeLogin         EventType = "login"
	TypeLogout        EventType = "logout"
	TypeDeletePatient EventType = "delete_patient"
	TypeDeleteDoctor  EventType = "delete_doctor"
	TypeDeleteQRCode  EventType = "delete_qrcode"
)

var knownTypes = map[EventType]bool{
	TypePatientRecord: true, TypeAppointment: true, TypeLogin: true, TypeLogout: true,
	TypeDeletePatient: true, TypeDeleteDoctor: true, TypeDeleteQRCode: true,
}

// Known reports whether t is a sync event type the server understands.
func (t EventType) Known() bool {
	return knownTypes[t]
}

// Event is the envelope POSTed to /api/sync.
type Event struct {
	Type      EventType       `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp *time.Time      `json:"timestamp,omitempty"`
}

// NewEvent marshals data into an envelope stamped with at.
func NewEvent(t EventType, data interface{}, at time.Time) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	ts := at.UTC()
	return Event{Type: t, Data: raw, Timestamp: &ts}, nil
}

// AppointmentEvent is an appointment request, appended to the server log.
type AppointmentEvent struct {
	PatientID    string         `json:"patientId"`
	PatientName  string         `json:"patientName"`
	PatientEmail string         `json:"patientEmail"`
	Status       patient.Status `json:"status"`
	Timestamp    *time.Time     `json:"timestamp,omitempty"`
}

// SessionEvent is a login or logout entry.
type SessionEvent struct {
	UserID    string     `json:"userId"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	UserType  string     `json:"userType"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// DeletePatient is the payload of a delete_patient event.
type DeletePatient struct {
	PatientID   string     `json:"patientId"`
	PatientName string     `json:"patientName"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
}

// DeleteDoctor is the payload of a delete_doctor event.
type DeleteDoctor struct {
	DoctorID   string     `json:"doctorId"`
	DoctorName string     `json:"doctorName"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}

// DeleteQRCode is the payload of a delete_qrcode event.
type DeleteQRCode struct {
	QRCodeID   string     `json:"qrCodeId"`
	DoctorName string     `json:"doctorName"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}

// Delete log tags.
const (
	DeleteKindPatient = "patient"
	DeleteKindDoctor  = "doctor"
	DeleteKindQRCode  = "qrcode"
)

// DeleteLogEntry is an append-only record of a delete event; only the
// fields of the matching payload are set.
type DeleteLogEntry struct {
	Type        string    `json:"type"`
	PatientID   string    `json:"patientId,omitempty"`
	PatientName string    `json:"patientName,omitempty"`
	DoctorID    string    `json:"doctorId,omitempty"`
	DoctorName  string    `json:"doctorName,omitempty"`
	QRCodeID    string    `json:"qrCodeId,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// SyncResponse is the success body of POST /api/sync.
type SyncResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RecordsResponse is the body of GET /api/patient-records.
type RecordsResponse struct {
	Records []patient.Record `json:"records"`
}

// AppointmentsResponse is the body of GET /api/appointments.
type AppointmentsResponse struct {
	Appointments []AppointmentEvent `json:"appointments"`
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
