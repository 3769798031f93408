package extract

import "strings"

const maxPromptChars = 12000

// buildInstructions is the domain part of the system prompt.
func buildInstructions() string {
	parts := []string{
		"You extract freight shipping requests into the provided JSON Schema.",
		"Use null for anything not stated in the document; never guess.",
		"shipment.origin and shipment.destination are the places the goods move from and to (city, port or country as written).",
		"route.port_of_loading and route.port_of_discharge are only set when ports are named explicitly.",
		"vehicle.vin is a 17 character VIN exactly as written, uppercase.",
		"Keep numbers as strings with their units split into value and unit.",
		"Dates use ISO-8601 (YYYY-MM-DD).",
		"confidence is your 0..1 certainty that the extracted fields are correct.",
	}
	return strings.Join(parts, " ")
}

// buildUserPrompt packages the document text with filename and format hints.
func buildUserPrompt(in Input) string {
	var b strings.Builder
	if f := strings.TrimSpace(in.Filename); f != "" {
		b.WriteString("Filename: ")
		b.WriteString(f)
		b.WriteString("\n")
	}
	if f := strings.TrimSpace(in.Format); f != "" {
		b.WriteString("Document type: ")
		b.WriteString(f)
		b.WriteString("\n")
	}
	text := strings.TrimSpace(in.Text)
	b.WriteString("\nDocument text:\n")
	if len(text) > maxPromptChars {
		b.WriteString(text[:maxPromptChars])
		b.WriteString("\n...(truncated)")
	} else {
		b.WriteString(text)
	}
	return b.String()
}
