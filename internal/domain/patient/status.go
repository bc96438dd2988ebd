package patient

import "time"

// Presence thresholds, in minutes since last login.
const (
	ActiveWithinMinutes    = 5
	AvailableWithinMinutes = 15
	OfflineAfterMinutes    = 30
)

// DeriveStatus computes the presence status of r at now. Sticky statuses
// are returned unchanged.
func DeriveStatus(r Record, now time.Time) Status {
	if r.Status.Sticky() {
		return r.Status
	}
	minutes := now.Sub(r.LastLogin).Minutes()
	switch {
	case minutes > OfflineAfterMinutes:
		return StatusOffline
	case minutes <= ActiveWithinMinutes:
		return StatusActive
	case minutes <= AvailableWithinMinutes:
		return StatusAvailable
	default:
		return StatusBusy
	}
}

// DeriveAll returns a copy of records with every non-sticky status
// recomputed at now.
func DeriveAll(records []Record, now time.Time) []Record {
	out := Clone(records)
	for i := range out {
		out[i].Status = DeriveStatus(out[i], now)
	}
	return out
}

// Merge overlays remote records onto local ones: a remote record replaces
// the fields of the local record sharing its id or patientId, subject to
// the Apply rules, and unmatched remote records are appended.
func Merge(local, remote []Record) []Record {
	merged := Clone(local)
	for _, rr := range remote {
		if i := Index(merged, rr.ID, rr.PatientID); i >= 0 {
			merged[i] = merged[i].Apply(rr.AsPatch())
			continue
		}
		merged = append(merged, rr.clone())
	}
	return merged
}
