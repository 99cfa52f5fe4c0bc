package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"engdocs-qa-platform/models"
)

const sampleReport = `TEST REPORT
Test Report No.: ETR_02_24_12
Model: Pro 3012 CNG
Chassis No.: MC2BHGRC0RB110801
Date: 15.03.2024
Regd. No.: MH12AB1234
Engine Model: 3.8L NA CNG
GVW: 16200 kg
Max. Power: 123 kW

BRAKE PERFORMANCE
The vehicle was tested per IS 11852:2001 and AIS-153.
Results were found meeting the requirements.`

func TestExtractMetadataLabeledFields(t *testing.T) {
	md := ExtractMetadata(sampleReport, "ETR_02_24_12.pdf")

	assert.Equal(t, "ETR_02_24_12", md.DocID)
	assert.Equal(t, "Pro 3012 CNG", md.VehicleModel)
	assert.Equal(t, "MC2BHGRC0RB110801", md.ChassisNo)
	assert.Equal(t, "15.03.2024", md.TestDate)
	assert.Equal(t, "MH12AB1234", md.RegistrationNo)
	assert.Equal(t, "16200", md.GrossWeight)
	assert.Equal(t, "123", md.Power)
}

func TestExtractMetadataStandardsAndCompliance(t *testing.T) {
	md := ExtractMetadata(sampleReport, "report.pdf")

	assert.Contains(t, md.Standards, "IS 11852:2001")
	assert.Contains(t, md.Standards, "AIS-153")
	assert.Equal(t, []string{"pass"}, md.ComplianceStatus)
}

func TestExtractMetadataComplianceFail(t *testing.T) {
	md := ExtractMetadata("The sample was not meeting the noise limit.", "r.pdf")
	assert.Contains(t, md.ComplianceStatus, "fail")
}

func TestExtractMetadataTestTypeAndKeywords(t *testing.T) {
	md := ExtractMetadata(sampleReport, "report.pdf")

	assert.Equal(t, "brake", md.TestType)
	assert.Contains(t, md.Keywords, "brake")
	assert.Contains(t, md.Keywords, "CNG")
	assert.Contains(t, md.Keywords, "kW")
	assert.Contains(t, md.Keywords, "GVW")
}

func TestExtractMetadataSectionHeading(t *testing.T) {
	md := ExtractMetadata("3.1 STEERING EFFORT TEST\nEffort measured at standstill.", "r.pdf")
	assert.Equal(t, "STEERING EFFORT TEST", md.Section)
}

func TestExtractMetadataDocNameFallback(t *testing.T) {
	md := ExtractMetadata("no labeled fields here", "ETR_05_23_81.pdf")
	assert.Equal(t, "ETR_05_23_81.pdf", md.DocID)
}

func TestMergeMetadataChunkOverridesScalars(t *testing.T) {
	doc := models.ChunkMetadata{
		DocID:        "ETR_02_24_12",
		VehicleModel: "Pro 3012",
		TestType:     "brake",
		Keywords:     []string{"brake", "CNG"},
		Standards:    []string{"IS 11852:2001"},
	}
	chunk := models.ChunkMetadata{
		Section:    "NOISE TEST",
		TestType:   "noise",
		Keywords:   []string{"noise"},
		PageNumber: 9,
	}

	merged := MergeMetadata(doc, chunk)

	assert.Equal(t, "ETR_02_24_12", merged.DocID)
	assert.Equal(t, "Pro 3012", merged.VehicleModel)
	assert.Equal(t, "NOISE TEST", merged.Section)
	assert.Equal(t, "noise", merged.TestType)
	assert.Equal(t, 9, merged.PageNumber)
	assert.ElementsMatch(t, []string{"brake", "CNG", "noise"}, merged.Keywords)
	assert.Equal(t, []string{"IS 11852:2001"}, merged.Standards)
}

func TestMergeMetadataEmptyChunkKeepsDocValues(t *testing.T) {
	doc := models.ChunkMetadata{DocID: "ETR_02_24_12", TestDate: "15.03.2024", PageNumber: 1}
	merged := MergeMetadata(doc, models.ChunkMetadata{})
	assert.Equal(t, doc, merged)
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, dedupe([]string{"b", "a", "b", "a"}))
	assert.Nil(t, dedupe(nil))
}
