package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"engdocs-qa-platform/models"
)

func TestExtractQueryFiltersDocID(t *testing.T) {
	f := ExtractQueryFilters("what are the brake results in etr-02-24-12?")
	assert.Equal(t, "ETR_02_24_12", f.DocID)
	assert.Equal(t, "brake_test", f.TestType)
}

func TestExtractQueryFiltersVehicleAndChassis(t *testing.T) {
	f := ExtractQueryFilters("gradeability of Pro 3012 with chassis MC2BHGRC0RB110801")
	assert.Equal(t, "Pro 3012", f.VehicleModel)
	assert.Equal(t, "MC2BHGRC0RB110801", f.ChassisNo)
}

func TestExtractQueryFiltersNone(t *testing.T) {
	f := ExtractQueryFilters("summarize the cooling performance findings")
	assert.True(t, f.Empty())
}

func TestEnhanceQueryAppendsSelectors(t *testing.T) {
	f := models.SearchFilters{DocID: "ETR_02_24_12", VehicleModel: "Pro 3012"}
	got := EnhanceQuery("what were the results", f)
	assert.Equal(t, "what were the results [Document: ETR_02_24_12 | Vehicle: Pro 3012]", got)
}

func TestEnhanceQueryNoFiltersUnchanged(t *testing.T) {
	q := "summarize the document"
	assert.Equal(t, q, EnhanceQuery(q, models.SearchFilters{}))
}

func TestEnhanceQueryChassisOnly(t *testing.T) {
	f := models.SearchFilters{ChassisNo: "MC2BHGRC0RB110801"}
	got := EnhanceQuery("brake data", f)
	assert.Equal(t, "brake data [Chassis: MC2BHGRC0RB110801]", got)
}

func TestDocIDVariants(t *testing.T) {
	variants := DocIDVariants("ETR_02_24_12")
	assert.Contains(t, variants, "ETR_02_24_12")
	assert.Contains(t, variants, "ETR-02-24-12")
	assert.Contains(t, variants, "ETR 02 24 12")
	assert.Contains(t, variants, "etr_02_24_12")
}
