// Package account implements registration, login and logout against the
// device's local store, publishing the matching sync events.
package account

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/amnandan9/Parkinsons-Detection-System/internal/domain/patient"
	"github.com/amnandan9/Parkinsons-Detection-System/internal/domain/qrcode"
	"github.com/amnandan9/Parkinsons-Detection-System/internal/platform/syncproto"
)

var (
	ErrEmailTaken         = errors.New("an account with this email already exists")
	ErrAdminRegistration  = errors.New("admin accounts cannot be registered")
	ErrInvalidUserType    = errors.New("invalid user type")
	ErrMissingField       = errors.New("email, password and name are required")
	ErrInvalidCredentials = errors.New("invalid email, password or user type")
	ErrInvalidQRCode      = errors.New("qr code is not valid for this system")
	ErrDoctorNotFound     = errors.New("the doctor associated with this qr code was not found")
)

// Publisher is the subset of sync events raised by session changes.
type Publisher interface {
	SyncLogin(ctx context.Context, s syncproto.SessionEvent) bool
	SyncLogout(ctx context.Context, s syncproto.SessionEvent) bool
	SyncPatientRecord(ctx context.Context, r patient.Record) bool
}

type Service struct {
	accounts Repository
	records  patient.Repository
	qrcodes  *qrcode.Service
	events   Publisher
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(accounts Repository, records patient.Repository, qrcodes *qrcode.Service, events Publisher, logger zerolog.Logger) *Service {
	return &Service{
		accounts: accounts,
		records:  records,
		qrcodes:  qrcodes,
		events:   events,
		logger:   logger.With().Str("component", "account").Logger(),
		now:      time.Now,
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Register creates an account and signs it in. Patients get a fresh record
// that is synced; doctors get a sign-in QR code.
func (s *Service) Register(ctx context.Context, email, password, name string, userType UserType) (*User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" || strings.TrimSpace(name) == "" {
		return nil, ErrMissingField
	}
	if userType == UserTypeAdmin {
		return nil, ErrAdminRegistration
	}
	if !userType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUserType, userType)
	}

	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range accounts {
		if a.Email == email {
			return nil, ErrEmailTaken
		}
	}

	now := s.now().UTC()
	acct := Account{
		User: User{
			ID:        strconv.FormatInt(now.UnixMilli(), 10),
			Email:     email,
			Name:      name,
			UserType:  userType,
			CreatedAt: now,
		},
		Password: password,
	}
	if err := s.accounts.Add(ctx, acct); err != nil {
		return nil, err
	}
	if err := s.accounts.SetCurrent(ctx, acct.User); err != nil {
		return nil, err
	}

	switch userType {
	case UserTypePatient:
		rec := patient.NewRecord(acct.ID, acct.Name, acct.Email, now)
		if err := s.records.Upsert(ctx, rec); err != nil {
			return nil, err
		}
		s.events.SyncPatientRecord(ctx, rec)
	case UserTypeDoctor:
		if _, err := s.qrcodes.Create(ctx, acct.ID, acct.Name, acct.Email); err != nil {
			s.logger.Error().Err(err).Str("doctor_id", acct.ID).Msg("failed to create doctor qr code")
		}
	}

	s.logger.Info().Str("user_id", acct.ID).Str("user_type", string(userType)).Msg("registered")
	u := acct.User
	return &u, nil
}

// Login signs in the built-in admin or a registered account.
func (s *Service) Login(ctx context.Context, email, password string, userType UserType) (*User, error) {
	if (userType == UserTypeAdmin || email == AdminEmail) && email == AdminEmail && password == AdminPassword {
		admin := User{
			ID:        AdminID,
			Email:     AdminEmail,
			Name:      AdminName,
			UserType:  UserTypeAdmin,
			CreatedAt: s.now().UTC(),
		}
		if err := s.accounts.SetCurrent(ctx, admin); err != nil {
			return nil, err
		}
		s.events.SyncLogin(ctx, admin.Session())
		return &admin, nil
	}

	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, err
	}
	var found *Account
	for i, a := range accounts {
		if a.Email == email && a.Password == password && a.UserType == userType {
			found = &accounts[i]
			break
		}
	}
	if found == nil {
		return nil, ErrInvalidCredentials
	}

	u := found.User
	if err := s.accounts.SetCurrent(ctx, u); err != nil {
		return nil, err
	}
	s.events.SyncLogin(ctx, u.Session())

	if userType == UserTypePatient {
		rec, err := s.records.Find(ctx, u.ID)
		switch {
		case errors.Is(err, patient.ErrRecordNotFound):
		case err != nil:
			return nil, err
		default:
			rec.LastLogin = s.now().UTC()
			rec.Status = patient.StatusAvailable
			if err := s.records.Upsert(ctx, *rec); err != nil {
				return nil, err
			}
			s.events.SyncPatientRecord(ctx, *rec)
		}
	}

	s.logger.Info().Str("user_id", u.ID).Str("user_type", string(u.UserType)).Msg("logged in")
	return &u, nil
}

// Logout clears the session and returns the user that was signed in, or nil
// when nobody was.
func (s *Service) Logout(ctx context.Context) (*User, error) {
	cur, err := s.accounts.Current(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.ClearCurrent(ctx); err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, nil
	}
	s.events.SyncLogout(ctx, cur.Session())
	s.logger.Info().Str("user_id", cur.ID).Msg("logged out")
	return cur, nil
}

// CurrentUser returns the signed-in user, or nil.
func (s *Service) CurrentUser(ctx context.Context) (*User, error) {
	return s.accounts.Current(ctx)
}

// LoginWithQRCode signs in the doctor a scanned code belongs to. The code
// only needs to be stored locally for its sign-in time to be recorded.
func (s *Service) LoginWithQRCode(ctx context.Context, code string) (*User, error) {
	doctorID, sessionID, err := qrcode.Parse(code)
	if err != nil {
		return nil, ErrInvalidQRCode
	}

	qr, err := s.qrcodes.FindBySession(ctx, sessionID)
	switch {
	case err == nil:
		if err := s.qrcodes.UpdateSignIn(ctx, qr.ID); err != nil {
			s.logger.Error().Err(err).Str("qr_id", qr.ID).Msg("failed to update qr code sign-in")
		}
	case !errors.Is(err, qrcode.ErrNotFound):
		return nil, err
	}

	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range accounts {
		if a.ID == doctorID && a.UserType == UserTypeDoctor {
			return s.Login(ctx, a.Email, a.Password, UserTypeDoctor)
		}
	}
	return nil, ErrDoctorNotFound
}
