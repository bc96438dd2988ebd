package qrcode

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CodePrefix starts every doctor sign-in code.
const CodePrefix = "PDDIAGNOSYS_DOCTOR_"

var codePattern = regexp.MustCompile(`PDDIAGNOSYS_DOCTOR_([^_]+)_(.+)`)

// QRCode is a doctor's sign-in code, kept on the device that created it.
type QRCode struct {
	ID          string    `json:"id"`
	DoctorID    string    `json:"doctorId"`
	DoctorName  string    `json:"doctorName"`
	DoctorEmail string    `json:"doctorEmail"`
	QRCode      string    `json:"qrCode"`
	SessionID   string    `json:"sessionId"`
	CreatedAt   time.Time `json:"createdAt"`
	LastSignIn  time.Time `json:"lastSignIn"`
	IsActive    bool      `json:"isActive"`
}

// GenerateSessionID returns SESSION_<unix ms>_<random>.
func GenerateSessionID(now time.Time) string {
	return fmt.Sprintf("SESSION_%d_%s", now.UnixMilli(), randomSuffix(13))
}

// GenerateID returns QR_<unix ms>_<random>.
func GenerateID(now time.Time) string {
	return fmt.Sprintf("QR_%d_%s", now.UnixMilli(), randomSuffix(7))
}

// CodeString builds the string encoded in the QR image.
func CodeString(doctorID, sessionID string) string {
	return CodePrefix + doctorID + "_" + sessionID
}

// Parse extracts the doctor and session ids from a scanned code.
func Parse(code string) (doctorID, sessionID string, err error) {
	m := codePattern.FindStringSubmatch(code)
	if m == nil {
		return "", "", ErrInvalidCode
	}
	return m[1], m[2], nil
}

func randomSuffix(n int) string {
	s := strings.ReplaceAll(uuid.New().String(), "-", "")
	return s[:n]
}
