// Package qrcode manages doctor sign-in codes stored on the device.
package qrcode

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/amnandan9/Parkinsons-Detection-System/internal/platform/localstore"
)

var (
	ErrNotFound    = errors.New("qr code not found")
	ErrInvalidCode = errors.New("invalid qr code")
)

type Service struct {
	kv  localstore.KV
	now func() time.Time
	mu  sync.Mutex
}

func NewService(kv localstore.KV) *Service {
	return &Service{kv: kv, now: time.Now}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Create issues a new active code for the doctor.
func (s *Service) Create(_ context.Context, doctorID, doctorName, doctorEmail string) (*QRCode, error) {
	if doctorID == "" {
		return nil, fmt.Errorf("doctor id is required")
	}
	now := s.now().UTC()
	sessionID := GenerateSessionID(now)
	qr := QRCode{
		ID:          GenerateID(now),
		DoctorID:    doctorID,
		DoctorName:  doctorName,
		DoctorEmail: doctorEmail,
		QRCode:      CodeString(doctorID, sessionID),
		SessionID:   sessionID,
		CreatedAt:   now,
		LastSignIn:  now,
		IsActive:    true,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	codes, err := s.load()
	if err != nil {
		return nil, err
	}
	if err := s.save(append(codes, qr)); err != nil {
		return nil, err
	}
	return &qr, nil
}

// List returns the doctor's codes.
func (s *Service) List(_ context.Context, doctorID string) ([]QRCode, error) {
	codes, err := s.load()
	if err != nil {
		return nil, err
	}
	out := []QRCode{}
	for _, qr := range codes {
		if qr.DoctorID == doctorID {
			out = append(out, qr)
		}
	}
	return out, nil
}

// All returns every code on the device.
func (s *Service) All(_ context.Context) ([]QRCode, error) {
	return s.load()
}

func (s *Service) Get(_ context.Context, id string) (*QRCode, error) {
	codes, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, qr := range codes {
		if qr.ID == id {
			return &qr, nil
		}
	}
	return nil, ErrNotFound
}

// FindBySession returns the stored code issued for sessionID.
func (s *Service) FindBySession(_ context.Context, sessionID string) (*QRCode, error) {
	codes, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, qr := range codes {
		if qr.SessionID == sessionID {
			return &qr, nil
		}
	}
	return nil, ErrNotFound
}

// Delete removes one code.
func (s *Service) Delete(_ context.Context, id string) (*QRCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	codes, err := s.load()
	if err != nil {
		return nil, err
	}
	for i, qr := range codes {
		if qr.ID == id {
			deleted := qr
			codes = append(codes[:i], codes[i+1:]...)
			return &deleted, s.save(codes)
		}
	}
	return nil, ErrNotFound
}

// DeleteForDoctor removes every code belonging to the doctor.
func (s *Service) DeleteForDoctor(_ context.Context, doctorID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	codes, err := s.load()
	if err != nil {
		return 0, err
	}
	kept := make([]QRCode, 0, len(codes))
	for _, qr := range codes {
		if qr.DoctorID != doctorID {
			kept = append(kept, qr)
		}
	}
	removed := len(codes) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	return removed, s.save(kept)
}

// UpdateSignIn stamps the code's last sign-in and reactivates it.
func (s *Service) UpdateSignIn(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	codes, err := s.load()
	if err != nil {
		return err
	}
	for i := range codes {
		if codes[i].ID == id {
			codes[i].LastSignIn = s.now().UTC()
			codes[i].IsActive = true
			return s.save(codes)
		}
	}
	return ErrNotFound
}

func (s *Service) load() ([]QRCode, error) {
	var codes []QRCode
	if _, err := s.kv.Get(localstore.KeyDoctorQRCodes, &codes); err != nil {
		return nil, fmt.Errorf("load qr codes: %w", err)
	}
	if codes == nil {
		codes = []QRCode{}
	}
	return codes, nil
}

func (s *Service) save(codes []QRCode) error {
	if err := s.kv.Set(localstore.KeyDoctorQRCodes, codes); err != nil {
		return fmt.Errorf("save qr codes: %w", err)
	}
	return nil
}
