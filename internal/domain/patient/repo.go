package patient

import "context"

// Repository is the device-local list of patient records.
type Repository interface {
	List(ctx context.Context) ([]Record, error)
	SaveAll(ctx context.Context, records []Record) error
	// Find returns the record whose id or patientId equals id.
	Find(ctx context.Context, id string) (*Record, error)
	// Upsert replaces the record sharing r's id or patientId, or appends r.
	Upsert(ctx context.Context, r Record) error
	// Remove deletes every record whose id or patientId equals id and
	// returns how many were removed.
	Remove(ctx context.Context, id string) (int, error)
}
