package ai

import "strings"

type departmentKeywords struct {
	department string
	keywords   []string
}

// departmentMap is checked in order; the department with the most keyword
// hits wins and earlier entries win ties.
var departmentMap = []departmentKeywords{
	{"Public Works Department (PWD)", []string{"pothole", "road", "street", "footpath", "pavement", "cave-in", "highway", "asphalt", "divider"}},
	{"Water Supply & Sewerage Board", []string{"water", "pipeline", "leak", "pressure", "contaminated", "tap", "no water"}},
	{"Public Health Engineering Department (PHED)", []string{"drain", "sewage", "manhole", "overflow", "foul smell", "sewer"}},
	{"Sanitation & Waste Management Department", []string{"garbage", "trash", "waste", "bin", "dumping", "dead animal", "litter", "dustbin", "rubbish", "sweeping"}},
	{"Department of Street Lighting", []string{"street light", "streetlight", "light", "lamp", "dark street", "no light", "flickering"}},
	{"Electricity Department", []string{"electric", "electricity", "power", "voltage", "wire", "transformer", "spark", "power cut"}},
	{"Department of Public Health", []string{"mosquito", "dengue", "malaria", "fogging", "stagnant", "public toilet", "food safety"}},
	{"Public Safety & Vigilance Department", []string{"theft", "crime", "illegal", "encroachment", "nuisance", "police", "noise", "cctv"}},
	{"Horticulture Department", []string{"tree", "park", "garden", "branch", "playground"}},
	{"Traffic Engineering Cell", []string{"traffic", "signal", "zebra crossing", "speed breaker"}},
}

var womenSafetyKeywords = []string{
	"harassment", "stalking", "stalker", "eve teasing", "followed", "following me",
	"unsafe for women", "molest", "assault", "women safety",
}

// KeywordDepartment routes text by keyword count, falling back to the
// general cell.
func KeywordDepartment(text string) string {
	lower := strings.ToLower(text)
	best, bestScore := GeneralDepartment, 0
	for _, entry := range departmentMap {
		score := 0
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = entry.department, score
		}
	}
	return best
}

// Departments lists every routable department, general cell last.
func Departments() []string {
	out := make([]string, 0, len(departmentMap)+1)
	for _, entry := range departmentMap {
		out = append(out, entry.department)
	}
	return append(out, GeneralDepartment)
}

func IsWomenSafety(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range womenSafetyKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
