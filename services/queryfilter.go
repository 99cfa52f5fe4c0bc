package services

import (
	"regexp"
	"strings"

	"engdocs-qa-platform/models"
)

// Structured selectors recognized in user queries.
var (
	// ETR_02_24_12, ETR-01-25-03, etr 12_24_104
	queryDocID = regexp.MustCompile(`(?i)ETR[-_]?\d{1,2}[-_]\d{2}[-_]\d{1,4}`)
	// Pro 3012, Pro 6028XPT, Pro 2110 XPT
	queryVehicleModel = regexp.MustCompile(`(?i)Pro\s*\d{4}(?:\s*[A-Z]{2,4})?`)
	// MC2BHGRC0RB110801
	queryChassisNo = regexp.MustCompile(`(?i)MC[0-9A-Z]{14,17}`)
	queryTestType  = regexp.MustCompile(`(?i)(brake\s*test|noise\s*test|performance\s*test|emission\s*test|` +
		`endurance\s*test|durability\s*test|gradeability|fuel\s*consumption|acceleration|load\s*test)`)
)

// ExtractQueryFilters detects structured selectors in a query.
// Document ids are normalized to underscore-uppercase, test types to
// underscore-lowercase, chassis numbers to uppercase.
func ExtractQueryFilters(query string) models.SearchFilters {
	var f models.SearchFilters

	if m := queryDocID.FindString(query); m != "" {
		f.DocID = strings.ToUpper(strings.ReplaceAll(m, "-", "_"))
	}
	if m := queryVehicleModel.FindString(query); m != "" {
		f.VehicleModel = strings.TrimSpace(m)
	}
	if m := queryChassisNo.FindString(query); m != "" {
		f.ChassisNo = strings.ToUpper(m)
	}
	if m := queryTestType.FindString(query); m != "" {
		f.TestType = strings.ReplaceAll(strings.ToLower(m), " ", "_")
	}
	return f
}

// EnhanceQuery appends the matched selector literals so the sparse index
// scores them even when they only appear in payload metadata.
func EnhanceQuery(query string, f models.SearchFilters) string {
	var parts []string
	if f.DocID != "" {
		parts = append(parts, "Document: "+f.DocID)
	}
	if f.VehicleModel != "" {
		parts = append(parts, "Vehicle: "+f.VehicleModel)
	}
	if f.ChassisNo != "" {
		parts = append(parts, "Chassis: "+f.ChassisNo)
	}
	if len(parts) == 0 {
		return query
	}
	return query + " [" + strings.Join(parts, " | ") + "]"
}

// DocIDVariants returns the formatting variations a stored document id
// may use for the same logical id.
func DocIDVariants(docID string) []string {
	return dedupe([]string{
		docID,
		strings.ReplaceAll(docID, "_", "-"),
		strings.ReplaceAll(docID, "_", " "),
		strings.ToLower(docID),
	})
}
