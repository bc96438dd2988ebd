package patient

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/amnandan9/Parkinsons-Detection-System/internal/platform/localstore"
)

var ErrRecordNotFound = errors.New("patient record not found")

type kvRepo struct {
	kv localstore.KV
	mu sync.Mutex
}

// NewKVRepo stores records under the local store's patient records key.
func NewKVRepo(kv localstore.KV) Repository {
	return &kvRepo{kv: kv}
}

func (r *kvRepo) List(_ context.Context) ([]Record, error) {
	return r.load()
}

func (r *kvRepo) SaveAll(_ context.Context, records []Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.save(records)
}

func (r *kvRepo) Find(_ context.Context, id string) (*Record, error) {
	records, err := r.load()
	if err != nil {
		return nil, err
	}
	if i := Index(records, id, id); i >= 0 {
		rec := records[i]
		return &rec, nil
	}
	return nil, ErrRecordNotFound
}

func (r *kvRepo) Upsert(_ context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	records, err := r.load()
	if err != nil {
		return err
	}
	if i := Index(records, rec.ID, rec.PatientID); i >= 0 {
		records[i] = rec
	} else {
		records = append(records, rec)
	}
	return r.save(records)
}

func (r *kvRepo) Remove(_ context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	records, err := r.load()
	if err != nil {
		return 0, err
	}
	kept := make([]Record, 0, len(records))
	for _, rec := range records {
		if !rec.RefersTo(id) {
			kept = append(kept, rec)
		}
	}
	removed := len(records) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	return removed, r.save(kept)
}

func (r *kvRepo) load() ([]Record, error) {
	var records []Record
	if _, err := r.kv.Get(localstore.KeyPatientRecords, &records); err != nil {
		return nil, fmt.Errorf("load patient records: %w", err)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

func (r *kvRepo) save(records []Record) error {
	if records == nil {
		records = []Record{}
	}
	if err := r.kv.Set(localstore.KeyPatientRecords, records); err != nil {
		return fmt.Errorf("save patient records: %w", err)
	}
	return nil
}
