// Package validate classifies normalized marketplace items: it rejects
// bundles, premium variants, and mis-channeled listings, extracts grading
// information from titles, and decides the listing channel.
package validate

import (
	"regexp"
	"strconv"

	"github.com/slabwatch/slabwatch/internal/model"
)

// Ordered pattern table for grader extraction. First match wins, so PSA is
// tried before BGS and SGC, matching marketplace title conventions.
var gradePatterns = []struct {
	re     *regexp.Regexp
	grader model.Grader
}{
	{regexp.MustCompile(`(?i)\bPSA\s*(\d+(?:\.\d+)?)\b`), model.GraderPSA},
	{regexp.MustCompile(`(?i)\bBGS\s*(\d+(?:\.\d+)?)\b`), model.GraderBGS},
	{regexp.MustCompile(`(?i)\bSGC\s*(\d+(?:\.\d+)?)\b`), model.GraderSGC},
}

// ExtractGrade derives grader and numeric grade from a listing title. A
// title matching no grader pattern is classified as Raw.
func ExtractGrade(title string) model.GradeInfo {
	for _, p := range gradePatterns {
		m := p.re.FindStringSubmatch(title)
		if m == nil {
			continue
		}
		num, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		return model.GradeInfo{
			Grader: p.grader,
			Grade:  string(p.grader) + " " + m[1],
			Number: num,
		}
	}
	return model.GradeInfo{Grade: "Raw"}
}
