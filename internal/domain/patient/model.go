package patient

import "time"

// Status is the presence/workflow state shown on the dashboards.
type Status string

const (
	StatusAvailable       Status = "available"
	StatusBusy            Status = "busy"
	StatusOffline         Status = "offline"
	StatusBookAppointment Status = "book_appointment"
	StatusActive          Status = "active"
)

var validStatuses = map[Status]bool{
	StatusAvailable: true, StatusBusy: true, StatusOffline: true,
	StatusBookAppointment: true, StatusActive: true,
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return validStatuses[s]
}

// Sticky reports whether automatic status derivation must leave s alone.
func (s Status) Sticky() bool {
	return s == StatusBookAppointment
}

// Record is the per-patient summary replicated between devices and the
// sync server. PatientID duplicates ID.
type Record struct {
	ID                     string     `json:"id"`
	PatientID              string     `json:"patientId"`
	PatientName            string     `json:"patientName"`
	PatientEmail           string     `json:"patientEmail"`
	LastLogin              time.Time  `json:"lastLogin"`
	Status                 Status     `json:"status"`
	TotalAnalyses          int        `json:"totalAnalyses"`
	LastAnalysis           *time.Time `json:"lastAnalysis,omitempty"`
	AppointmentRequestedAt *time.Time `json:"appointmentRequestedAt,omitempty"`
}

// NewRecord builds the record created when a patient registers.
func NewRecord(id, name, email string, now time.Time) Record {
	return Record{
		ID:            id,
		PatientID:     id,
		PatientName:   name,
		PatientEmail:  email,
		LastLogin:     now,
		Status:        StatusAvailable,
		TotalAnalyses: 0,
	}
}

// Patch is a partial record as received over the wire: nil means the
// field was absent from the payload.
type Patch struct {
	ID                     *string    `json:"id,omitempty"`
	PatientID              *string    `json:"patientId,omitempty"`
	PatientName            *string    `json:"patientName,omitempty"`
	PatientEmail           *string    `json:"patientEmail,omitempty"`
	LastLogin              *time.Time `json:"lastLogin,omitempty"`
	Status                 *Status    `json:"status,omitempty"`
	TotalAnalyses          *int       `json:"totalAnalyses,omitempty"`
	LastAnalysis           *time.Time `json:"lastAnalysis,omitempty"`
	AppointmentRequestedAt *time.Time `json:"appointmentRequestedAt,omitempty"`
}

// Key returns the identifiers carried by the patch, empty when absent.
func (p Patch) Key() (id, patientID string) {
	if p.ID != nil {
		id = *p.ID
	}
	if p.PatientID != nil {
		patientID = *p.PatientID
	}
	return id, patientID
}

// Record materialises the patch as a new record.
func (p Patch) Record() Record {
	return Record{}.Apply(p)
}

// AsPatch returns r as a patch. Optional timestamps stay absent when unset
// so that merging a full record behaves like overlaying its JSON form.
func (r Record) AsPatch() Patch {
	status := r.Status
	total := r.TotalAnalyses
	p := Patch{
		ID:                     &r.ID,
		PatientID:              &r.PatientID,
		PatientName:            &r.PatientName,
		PatientEmail:           &r.PatientEmail,
		Status:                 &status,
		TotalAnalyses:          &total,
		LastAnalysis:           r.LastAnalysis,
		AppointmentRequestedAt: r.AppointmentRequestedAt,
	}
	if !r.LastLogin.IsZero() {
		lastLogin := r.LastLogin
		p.LastLogin = &lastLogin
	}
	return p
}

// Apply overlays every field present in p onto r. Status and
// AppointmentRequestedAt only change when the incoming value is present and
// non-empty; otherwise the existing value is kept.
func (r Record) Apply(p Patch) Record {
	if p.ID != nil {
		r.ID = *p.ID
	}
	if p.PatientID != nil {
		r.PatientID = *p.PatientID
	}
	if p.PatientName != nil {
		r.PatientName = *p.PatientName
	}
	if p.PatientEmail != nil {
		r.PatientEmail = *p.PatientEmail
	}
	if p.LastLogin != nil {
		r.LastLogin = *p.LastLogin
	}
	if p.TotalAnalyses != nil {
		r.TotalAnalyses = *p.TotalAnalyses
	}
	if p.LastAnalysis != nil {
		t := *p.LastAnalysis
		r.LastAnalysis = &t
	}
	if p.Status != nil && *p.Status != "" {
		r.Status = *p.Status
	}
	if p.AppointmentRequestedAt != nil && !p.AppointmentRequestedAt.IsZero() {
		t := *p.AppointmentRequestedAt
		r.AppointmentRequestedAt = &t
	}
	return r
}

// Matches reports whether r is the record identified by id or patientID.
// Empty identifiers never match.
func (r Record) Matches(id, patientID string) bool {
	return (id != "" && r.ID == id) || (patientID != "" && r.PatientID == patientID)
}

// RefersTo reports whether r belongs to the given patient id, checking both
// the id and patientId fields.
func (r Record) RefersTo(patientID string) bool {
	return r.Matches(patientID, patientID)
}

// Index returns the position of the first record matching id or patientID,
// or -1.
func Index(records []Record, id, patientID string) int {
	for i, r := range records {
		if r.Matches(id, patientID) {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of records.
func Clone(records []Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = r.clone()
	}
	return out
}

func (r Record) clone() Record {
	if r.LastAnalysis != nil {
		t := *r.LastAnalysis
		r.LastAnalysis = &t
	}
	if r.AppointmentRequestedAt != nil {
		t := *r.AppointmentRequestedAt
		r.AppointmentRequestedAt = &t
	}
	return r
}
