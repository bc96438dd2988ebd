package diagnosis

import (
	"fmt"
	"strings"
	"time"
)

const rule = "═══════════════════════════════════════════════════════════════"

// ReportFilename is the suggested download name for a report generated at t.
func ReportFilename(t time.Time) string {
	return "PD_Diagnosis_Report_" + t.Format("2006-01-02") + ".txt"
}

// Report renders s as the plain-text diagnostic report.
func Report(s Summary, generatedAt time.Time) string {
	var b strings.Builder
	section := func(title string) {
		fmt.Fprintf(&b, "\n%s\n%s\n%s\n", rule, centered(title), rule)
	}

	section("PD DIAGNOSYS - DIAGNOSTIC REPORT")
	fmt.Fprintf(&b, "\nReport Generated: %s\n", generatedAt.Format("2006-01-02 15:04:05"))

	section("PATIENT INFORMATION")
	if p := s.PatientInfo; p != nil {
		userType := "Patient"
		if p.UserType == "doctor" {
			userType = "Doctor"
		}
		fmt.Fprintf(&b, "\nName: %s\nEmail: %s\nUser Type: %s\n", p.Name, p.Email, userType)
	} else {
		b.WriteString("\nName: Not Available\nEmail: Not Available\nUser Type: Not Available\n")
	}

	section("DIAGNOSIS RESULTS")
	fmt.Fprintf(&b, "\nDiagnosis: %s\nConfidence Level: %s%%\n\n", s.Diagnosis.Label(), formatConfidence(s.Confidence))
	if s.Diagnosis == PD {
		b.WriteString("⚠️  The analysis indicates patterns consistent with Parkinson's Disease.\n")
	} else {
		b.WriteString("✓  The analysis indicates normal facial motor control patterns.\n")
	}

	section("EMOTION-WISE ANALYSIS SCORES")
	for _, e := range s.EmotionScores {
		bar := strings.Repeat("█", int(e.Score/5))
		fmt.Fprintf(&b, "\n%-15s: %.1f%% %s\n", e.Emotion, e.Score, bar)
	}

	section("TECHNICAL DETAILS")
	b.WriteString(`
Model Architecture:
  • Feature Extractor: EfficientNetV2
  • Expression Synthesis: StarGAN
  • Quality Filter: FaceQNet
  • Classifier: Fully Connected Layer (6d × 2)

Training Datasets:
  • PDFE (Parkinson's Disease Facial Expression dataset)
  • CK+ (Extended Cohn-Kanade dataset)
  • RaFD (Radboud Faces Database)
`)

	section("MEDICAL DISCLAIMER")
	b.WriteString(`
This is an AI-assisted diagnostic tool for research purposes.
Results should not replace professional medical diagnosis.
Always consult qualified healthcare professionals for medical
advice and clinical diagnosis.
`)

	section("END OF REPORT")
	return b.String()
}

// Label is the human-readable diagnosis.
func (d Diagnosis) Label() string {
	if d == PD {
		return "Parkinson's Disease"
	}
	return "Non-Parkinson's Disease"
}

func centered(title string) string {
	pad := (len([]rune(rule)) - len(title)) / 2
	if pad < 0 {
		pad = 0
	}
	return strings.Repeat(" ", pad) + title
}

// formatConfidence prints whole numbers without a decimal part.
func formatConfidence(c float64) string {
	if c == float64(int64(c)) {
		return fmt.Sprintf("%d", int64(c))
	}
	return fmt.Sprintf("%.1f", c)
}
