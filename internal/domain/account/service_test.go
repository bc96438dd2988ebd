package account

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/amnandan9/Parkinsons-Detection-System/internal/domain/patient"
	"github.com/amnandan9/Parkinsons-Detection-System/internal/domain/qrcode"
	"github.com/amnandan9/Parkinsons-Detection-System/internal/platform/localstore"
	"github.com/amnandan9/Parkinsons-Detection-System/internal/platform/syncproto"
)

var t0 = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakePublisher struct {
	logins  []syncproto.SessionEvent
	logouts []syncproto.SessionEvent
	records []patient.Record
}

func (f *fakePublisher) SyncLogin(_ context.Context, s syncproto.SessionEvent) bool {
	f.logins = append(f.logins, s)
	return true
}

func (f *fakePublisher) SyncLogout(_ context.Context, s syncproto.SessionEvent) bool {
	f.logouts = append(f.logouts, s)
	return true
}

func (f *fakePublisher) SyncPatientRecord(_ context.Context, r patient.Record) bool {
	f.records = append(f.records, r)
	return true
}

type fixture struct {
	svc     *Service
	pub     *fakePublisher
	records patient.Repository
	qrcodes *qrcode.Service
	clock   time.Time
}

func newFixture() *fixture {
	kv := localstore.NewMemory()
	f := &fixture{
		pub:     &fakePublisher{},
		records: patient.NewKVRepo(kv),
		qrcodes: qrcode.NewService(kv),
		clock:   t0,
	}
	f.svc = NewService(NewKVRepo(kv), f.records, f.qrcodes, f.pub, zerolog.Nop())
	f.svc.SetClock(func() time.Time { return f.clock })
	f.qrcodes.SetClock(func() time.Time { return f.clock })
	return f
}

func TestRegister_Patient(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	u, err := f.svc.Register(ctx, "alice@example.com", "pw", "Alice", UserTypePatient)
	if err != nil {
		t.Fatal(err)
	}
	if u.ID != "1773144000000" || u.UserType != UserTypePatient {
		t.Errorf("unexpected user %+v", u)
	}

	cur, _ := f.svc.CurrentUser(ctx)
	if cur == nil || cur.ID != u.ID {
		t.Errorf("expected registered user to be signed in, got %+v", cur)
	}

	rec, err := f.records.Find(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != patient.StatusAvailable || rec.TotalAnalyses != 0 || !rec.LastLogin.Equal(t0) || rec.PatientID != u.ID {
		t.Errorf("unexpected record %+v", rec)
	}
	if len(f.pub.records) != 1 {
		t.Errorf("expected one patient_record sync, got %d", len(f.pub.records))
	}
	if len(f.pub.logins) != 0 {
		t.Error("registration must not emit a login event")
	}
}

func TestRegister_DoctorGetsQRCode(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u, err := f.svc.Register(ctx, "who@example.com", "pw", "Dr Who", UserTypeDoctor)
	if err != nil {
		t.Fatal(err)
	}
	codes, _ := f.qrcodes.List(ctx, u.ID)
	if len(codes) != 1 {
		t.Errorf("expected one qr code, got %d", len(codes))
	}
	if len(f.pub.records) != 0 {
		t.Error("doctors have no patient record")
	}
}

func TestRegister_Rejections(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.svc.Register(ctx, "alice@example.com", "pw", "Alice", UserTypePatient)

	tests := []struct {
		name     string
		email    string
		userType UserType
		want     error
	}{
		{"duplicate email", "alice@example.com", UserTypeDoctor, ErrEmailTaken},
		{"admin", "root@example.com", UserTypeAdmin, ErrAdminRegistration},
		{"unknown type", "x@example.com", "nurse", ErrInvalidUserType},
		{"missing email", "", UserTypePatient, ErrMissingField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Register(ctx, tt.email, "pw", "Someone", tt.userType)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestLogin_Admin(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for _, ut := range []UserType{UserTypeAdmin, UserTypeDoctor} {
		u, err := f.svc.Login(ctx, AdminEmail, AdminPassword, ut)
		if err != nil {
			t.Fatalf("%s: %v", ut, err)
		}
		if u.ID != AdminID || u.UserType != UserTypeAdmin {
			t.Errorf("unexpected admin %+v", u)
		}
	}
	if len(f.pub.logins) != 2 || f.pub.logins[0].UserID != AdminID {
		t.Errorf("expected admin logins synced, got %+v", f.pub.logins)
	}
	if _, err := f.svc.Login(ctx, AdminEmail, "wrong", UserTypeAdmin); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLogin_PatientRefreshesRecord(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u, _ := f.svc.Register(ctx, "alice@example.com", "pw", "Alice", UserTypePatient)
	f.svc.Logout(ctx)

	rec, _ := f.records.Find(ctx, u.ID)
	rec.Status = patient.StatusBusy
	f.records.Upsert(ctx, *rec)

	f.clock = t0.Add(20 * time.Minute)
	if _, err := f.svc.Login(ctx, "alice@example.com", "pw", UserTypePatient); err != nil {
		t.Fatal(err)
	}
	rec, _ = f.records.Find(ctx, u.ID)
	if rec.Status != patient.StatusAvailable || !rec.LastLogin.Equal(f.clock) {
		t.Errorf("record not refreshed: %+v", rec)
	}
	if len(f.pub.logins) != 1 {
		t.Errorf("expected exactly one login event, got %d", len(f.pub.logins))
	}
	if got := f.pub.records[len(f.pub.records)-1]; got.Status != patient.StatusAvailable {
		t.Errorf("expected refreshed record synced, got %+v", got)
	}
}

func TestLogin_WrongUserType(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.svc.Register(ctx, "alice@example.com", "pw", "Alice", UserTypePatient)
	if _, err := f.svc.Login(ctx, "alice@example.com", "pw", UserTypeDoctor); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if len(f.pub.logins) != 0 {
		t.Error("failed login must not sync")
	}
}

func TestLogout(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	u, err := f.svc.Logout(ctx)
	if err != nil || u != nil {
		t.Errorf("logout without session: %+v %v", u, err)
	}
	if len(f.pub.logouts) != 0 {
		t.Error("no logout event expected without a session")
	}

	f.svc.Login(ctx, AdminEmail, AdminPassword, UserTypeAdmin)
	u, _ = f.svc.Logout(ctx)
	if u == nil || u.ID != AdminID {
		t.Errorf("expected admin logged out, got %+v", u)
	}
	if len(f.pub.logouts) != 1 {
		t.Errorf("expected one logout event, got %d", len(f.pub.logouts))
	}
	if cur, _ := f.svc.CurrentUser(ctx); cur != nil {
		t.Error("session not cleared")
	}
}

func TestLoginWithQRCode(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	doc, _ := f.svc.Register(ctx, "who@example.com", "pw", "Dr Who", UserTypeDoctor)
	f.svc.Logout(ctx)
	codes, _ := f.qrcodes.List(ctx, doc.ID)

	f.clock = t0.Add(time.Hour)
	u, err := f.svc.LoginWithQRCode(ctx, codes[0].QRCode)
	if err != nil {
		t.Fatal(err)
	}
	if u.ID != doc.ID || u.UserType != UserTypeDoctor {
		t.Errorf("unexpected user %+v", u)
	}
	qr, _ := f.qrcodes.Get(ctx, codes[0].ID)
	if !qr.LastSignIn.Equal(f.clock) {
		t.Errorf("sign-in time not updated: %v", qr.LastSignIn)
	}
	if len(f.pub.logins) != 1 {
		t.Errorf("expected one login event, got %d", len(f.pub.logins))
	}
}

func TestLoginWithQRCode_Errors(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if _, err := f.svc.LoginWithQRCode(ctx, "not a code"); !errors.Is(err, ErrInvalidQRCode) {
		t.Errorf("expected ErrInvalidQRCode, got %v", err)
	}
	code := qrcode.CodeString("999", qrcode.GenerateSessionID(t0))
	if _, err := f.svc.LoginWithQRCode(ctx, code); !errors.Is(err, ErrDoctorNotFound) {
		t.Errorf("expected ErrDoctorNotFound, got %v", err)
	}
}
