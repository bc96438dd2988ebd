// Package diagnosis is the mock facial-expression classifier: results are
// derived from tokens in the uploaded image filenames.
package diagnosis

import (
	"errors"
	"math"
	"path"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

type Diagnosis string

const (
	PD  Diagnosis = "PD"
	NPD Diagnosis = "NPD"
)

// RequiredImages is the number of expressions captured per analysis.
const RequiredImages = 6

var ErrNoImages = errors.New("at least one image is required")

// emotionKeys is ordered: the first matching prefix wins.
var emotionKeys = []struct {
	key     string
	emotion string
}{
	{"ang", "anger"},
	{"dis", "disgust"},
	{"fea", "fear"},
	{"hap", "happiness"},
	{"sad", "sadness"},
	{"sup", "surprise"},
}

var (
	extPattern = regexp.MustCompile(`\.[^/.]+$`)
	pdMarker   = regexp.MustCompile(`[_\s]pd[_\s]|^pd[_\s]|[_\s]pd$`)
	npdMarker  = regexp.MustCompile(`[_\s]npd[_\s]|^npd[_\s]|[_\s]npd$`)
)

// ImageResult is the classification of one image.
type ImageResult struct {
	Emotion    string  `json:"emotion"`
	Percentage float64 `json:"percentage"`
	IsPD       bool    `json:"isPD"`
	IsNPD      bool    `json:"isNPD"`
	Filename   string  `json:"filename"`
}

type EmotionScore struct {
	Emotion string  `json:"emotion"`
	Score   float64 `json:"score"`
}

type PatientInfo struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	UserType string `json:"userType"`
}

// Summary is the outcome of analysing a set of images.
type Summary struct {
	Diagnosis     Diagnosis      `json:"diagnosis"`
	Confidence    float64        `json:"confidence"`
	EmotionScores []EmotionScore `json:"emotionScores"`
	PatientInfo   *PatientInfo   `json:"patientInfo,omitempty"`
}

// AnalyzeFilename classifies one image by its name, e.g. "hap++_PD.jpg" is
// 90% happiness with a PD marker.
func AnalyzeFilename(filename string) ImageResult {
	base := extPattern.ReplaceAllString(strings.ToLower(path.Base(filename)), "")

	emotion := ""
	for _, e := range emotionKeys {
		if strings.HasPrefix(base, e.key) {
			emotion = e.emotion
			break
		}
	}
	if emotion == "" {
		for _, e := range emotionKeys {
			if strings.Contains(base, e.key) {
				emotion = e.emotion
				break
			}
		}
	}
	if emotion == "" {
		emotion = base
		if r := []rune(emotion); len(r) > 3 {
			emotion = string(r[:3])
		}
	}

	pct := math.Min(100, 80+5*float64(strings.Count(base, "+")))

	return ImageResult{
		Emotion:    capitalize(emotion),
		Percentage: pct,
		IsPD:       pdMarker.MatchString(base),
		IsNPD:      npdMarker.MatchString(base),
		Filename:   filename,
	}
}

// AnalyzeImages classifies every image and combines the markers into a
// diagnosis. patient may be nil.
func AnalyzeImages(filenames []string, patient *PatientInfo) (Summary, error) {
	if len(filenames) == 0 {
		return Summary{}, ErrNoImages
	}

	scores := make([]EmotionScore, 0, len(filenames))
	var pd, npd int
	var total float64
	for _, name := range filenames {
		r := AnalyzeFilename(name)
		scores = append(scores, EmotionScore{Emotion: r.Emotion, Score: r.Percentage})
		total += r.Percentage
		if r.IsPD {
			pd++
		}
		if r.IsNPD {
			npd++
		}
	}
	avg := total / float64(len(filenames))

	diag := NPD
	var confidence float64
	switch {
	case pd > npd:
		diag = PD
		confidence = math.Min(100, 50+10*float64(pd))
	case npd > pd:
		confidence = math.Min(100, 50+10*float64(npd))
	case pd == 0:
		confidence = clamp(avg*0.9, 50, 95)
	default:
		confidence = clamp(avg*0.85, 50, 95)
	}

	return Summary{
		Diagnosis:     diag,
		Confidence:    math.Round(confidence*10) / 10,
		EmotionScores: scores,
		PatientInfo:   patient,
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, n := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[n:]
}
