package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTemplateRender(t *testing.T) {
	tmpl := &MessageTemplate{
		Subject: "Viewing at {{property_title}}",
		Body:    "Hi {{first_name}}, {{property_title}} is listed at {{property_price}}. {{unknown}}",
	}

	prop := &Property{Title: "3 Bed in Parkhurst", Price: 1_250_000}
	vars := prop.TemplateVariables()
	vars["first_name"] = "Lerato"

	subject, body := tmpl.Render(vars)
	assert.Equal(t, "Viewing at 3 Bed in Parkhurst", subject)
	// Unknown placeholders stay visible rather than vanishing silently
	assert.Equal(t, "Hi Lerato, 3 Bed in Parkhurst is listed at R 1,250,000. {{unknown}}", body)
}

func TestFormatRand(t *testing.T) {
	assert.Equal(t, "R 950", formatRand(950))
	assert.Equal(t, "R 1,250,000", formatRand(1_250_000))
	assert.Equal(t, "R 12,500,000", formatRand(12_500_000.75))
	assert.Equal(t, "R 0", formatRand(0))
}
