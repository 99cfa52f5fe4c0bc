package services

import (
	"regexp"
	"sort"
	"strings"

	"engdocs-qa-platform/models"
)

// Labeled-field patterns for engineering test reports. Each captures a
// single value group.
var metadataPatterns = map[string]*regexp.Regexp{
	"vehicle_model":   regexp.MustCompile(`(?i)Model:\s*([A-Za-z0-9 \-]+?)(?:\n|$)`),
	"chassis_no":      regexp.MustCompile(`(?i)Chassis\s*(?:No\.?|Number)?:?\s*([A-Z0-9]+)`),
	"test_date":       regexp.MustCompile(`(?i)Date:\s*(\d{2}[.\-/]\d{2}[.\-/]\d{4})`),
	"doc_id":          regexp.MustCompile(`(?i)(?:Test\s*Report\s*No\.?|ETR):?\s*(ETR[_\-]?\d+[_\-]?\d*[_\-]?\d*)`),
	"registration_no": regexp.MustCompile(`(?i)(?:Reg(?:istration)?\.?\s*No\.?|Regd\.?\s*No\.?):?\s*([A-Z]{2}\d{2}[A-Z]{1,3}\d{4})`),
	"engine_no":       regexp.MustCompile(`(?i)Engine\s*(?:Model|Type|No\.?):?\s*([A-Za-z0-9\- ]+?)(?:\n|$)`),
	"gross_weight":    regexp.MustCompile(`(?i)(?:GVW|Gross\s*Vehicle\s*Weight):?\s*(\d+(?:\.\d+)?)\s*(?:kg)?`),
	"power":           regexp.MustCompile(`(?i)(?:Power|Max\.?\s*Power):?\s*(\d+(?:\.\d+)?)\s*(?:kW|hp)`),
}

var (
	standardsPattern = regexp.MustCompile(`(?i)\b(?:IS|AIS|ISO|ECE\s*R)[ :\-]*\d+(?:[:\-]\d+)*\b`)
	compliancePass   = regexp.MustCompile(`(?i)\b(?:meeting|pass(?:ed)?|compliant)\b`)
	complianceFail   = regexp.MustCompile(`(?i)\b(?:not\s+meeting|fail(?:ed)?|non[\- ]?compliant)\b`)
	sectionHeading   = regexp.MustCompile(`(?m)^\s*(?:\d+(?:\.\d+)*\.?\s+)?([A-Z][A-Z /&\-]{3,60})\s*$`)
)

// testTypeTerms are the test families recognized in report prose. First
// hit becomes the primary test type.
var testTypeTerms = []string{
	"gradability", "brake", "noise", "cooling", "weighment", "agility",
	"articulation", "steering", "suspension", "emission", "durability",
	"performance", "safety",
}

// vehicleTerms become keywords on exact (case-sensitive) occurrence.
var vehicleTerms = []string{
	"CNG", "BSVI", "BSIV", "kW", "torque", "power", "GVW",
	"diesel", "petrol", "hybrid", "EV", "electric",
}

// ExtractMetadata pulls structured fields from a text blob. It is a pure
// function: unknown fields stay empty and it never errors.
func ExtractMetadata(text, docName string) models.ChunkMetadata {
	md := models.ChunkMetadata{DocID: docName}

	assign := map[string]*string{
		"vehicle_model":   &md.VehicleModel,
		"chassis_no":      &md.ChassisNo,
		"test_date":       &md.TestDate,
		"doc_id":          &md.DocID,
		"registration_no": &md.RegistrationNo,
		"engine_no":       &md.EngineNo,
		"gross_weight":    &md.GrossWeight,
		"power":           &md.Power,
	}
	for key, pattern := range metadataPatterns {
		if m := pattern.FindStringSubmatch(text); m != nil {
			*assign[key] = strings.TrimSpace(m[1])
		}
	}

	if standards := standardsPattern.FindAllString(text, -1); standards != nil {
		md.Standards = dedupe(standards)
	}

	lower := strings.ToLower(text)
	for _, term := range testTypeTerms {
		if strings.Contains(lower, term) {
			if md.TestType == "" {
				md.TestType = term
			}
			md.Keywords = append(md.Keywords, term)
		}
	}

	if compliancePass.MatchString(text) {
		md.ComplianceStatus = append(md.ComplianceStatus, "pass")
	}
	if complianceFail.MatchString(text) {
		md.ComplianceStatus = append(md.ComplianceStatus, "fail")
	}

	for _, term := range vehicleTerms {
		if strings.Contains(text, term) {
			md.Keywords = append(md.Keywords, term)
		}
	}
	md.Keywords = dedupe(md.Keywords)

	if m := sectionHeading.FindStringSubmatch(text); m != nil {
		md.Section = strings.TrimSpace(m[1])
	}

	return md
}

// MergeMetadata combines document-level and chunk-level records: list
// fields union, scalar fields chunk-overrides-document when the chunk
// value is non-empty.
func MergeMetadata(doc, chunk models.ChunkMetadata) models.ChunkMetadata {
	merged := doc

	merged.Keywords = dedupe(append(append([]string{}, doc.Keywords...), chunk.Keywords...))
	merged.Standards = dedupe(append(append([]string{}, doc.Standards...), chunk.Standards...))
	merged.ComplianceStatus = dedupe(append(append([]string{}, doc.ComplianceStatus...), chunk.ComplianceStatus...))

	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&merged.DocID, chunk.DocID)
	override(&merged.Section, chunk.Section)
	override(&merged.VehicleModel, chunk.VehicleModel)
	override(&merged.ChassisNo, chunk.ChassisNo)
	override(&merged.TestDate, chunk.TestDate)
	override(&merged.TestType, chunk.TestType)
	override(&merged.RegistrationNo, chunk.RegistrationNo)
	override(&merged.EngineNo, chunk.EngineNo)
	override(&merged.GrossWeight, chunk.GrossWeight)
	override(&merged.Power, chunk.Power)

	if chunk.PageNumber > 0 {
		merged.PageNumber = chunk.PageNumber
	}
	return merged
}

// dedupe removes duplicates preserving a stable order.
func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
