package syncserver

import (
	"github.com/amnandan9/Parkinsons-Detection-System/internal/domain/patient"
	"github.com/amnandan9/Parkinsons-Detection-System/internal/platform/syncproto"
)

// Document is the whole shared state, persisted as a single JSON file.
type Document struct {
	PatientRecords []patient.Record             `json:"patientRecords"`
	Appointments   []syncproto.AppointmentEvent `json:"appointments"`
	LoginLogs      []syncproto.SessionEvent     `json:"loginLogs"`
	LogoutLogs     []syncproto.SessionEvent     `json:"logoutLogs"`
	DeleteLogs     []syncproto.DeleteLogEntry   `json:"deleteLogs"`
}

// NewDocument returns the empty document every store starts from.
func NewDocument() *Document {
	d := &Document{}
	d.normalize()
	return d
}

// normalize replaces nil collections so they serialise as [] rather than
// null. Files written by older servers may lack deleteLogs entirely.
func (d *Document) normalize() {
	if d.PatientRecords == nil {
		d.PatientRecords = []patient.Record{}
	}
	if d.Appointments == nil {
		d.Appointments = []syncproto.AppointmentEvent{}
	}
	if d.LoginLogs == nil {
		d.LoginLogs = []syncproto.SessionEvent{}
	}
	if d.LogoutLogs == nil {
		d.LogoutLogs = []syncproto.SessionEvent{}
	}
	if d.DeleteLogs == nil {
		d.DeleteLogs = []syncproto.DeleteLogEntry{}
	}
}

// Clone returns a copy that can be mutated without affecting d. Log
// entries are immutable once appended, so their slices are copied shallowly.
func (d *Document) Clone() *Document {
	c := &Document{
		PatientRecords: patient.Clone(d.PatientRecords),
		Appointments:   append([]syncproto.AppointmentEvent(nil), d.Appointments...),
		LoginLogs:      append([]syncproto.SessionEvent(nil), d.LoginLogs...),
		LogoutLogs:     append([]syncproto.SessionEvent(nil), d.LogoutLogs...),
		DeleteLogs:     append([]syncproto.DeleteLogEntry(nil), d.DeleteLogs...),
	}
	c.normalize()
	return c
}
