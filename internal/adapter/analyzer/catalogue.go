package analyzer

import "github.com/cd8875/clinical-ai-assistant/internal/domain"

// wordChars is a Unicode-aware \w.
const wordChars = `[\p{L}\p{N}_]`

// DefaultConfidence is assigned to every match of the built-in catalogue.
const DefaultConfidence = 0.85

// Category is one entry of the entity catalogue: a label, the key it is
// grouped under in structured output, and the patterns that detect it.
// Patterns are matched case-insensitively. With WholeWord set a match
// only counts when no letter, digit or underscore touches either end;
// unlike RE2's \b this holds for non-ASCII letters too.
type Category struct {
	Label      domain.Label
	Key        string
	Patterns   []string
	Confidence float64
	WholeWord  bool
}

// DefaultCatalogue returns the built-in clinical catalogue. Diagnoses,
// procedures and symptoms carry no patterns and only reserve their
// structured keys.
func DefaultCatalogue() []Category {
	return []Category{
		{
			Label: domain.LabelMedication,
			Key:   "medications",
			Patterns: []string{
				wordChars + `+mycin`,
				wordChars + `+cillin`,
				wordChars + `+prazole`,
				wordChars + `+statin`,
				wordChars + `+olol`,
				wordChars + `+pine`,
				`aspirin`,
				`metformin`,
				`lisinopril`,
				`ibuprofen`,
				`insulin`,
			},
			Confidence: DefaultConfidence,
			WholeWord:  true,
		},
		{
			Label: domain.LabelLabValue,
			Key:   "lab_values",
			Patterns: []string{
				`\b(?:HbA1c|A1C)[:\s]*(\d+\.?\d*)\s*%`,
				`\b(?:BP|Blood Pressure)[:\s]*(\d+)/(\d+)`,
				`\b(?:glucose|sugar)[:\s]*(\d+)\s*mg/dL`,
				`\b(?:creatinine)[:\s]*(\d+\.?\d*)\s*mg/dL`,
				`\b(?:hemoglobin|Hb)[:\s]*(\d+\.?\d*)\s*g/dL`,
				`\b(?:WBC|white blood cell)[:\s]*(\d+\.?\d*)`,
				`\b(?:platelet)[:\s]*(\d+\.?\d*)`,
			},
			Confidence: DefaultConfidence,
		},
		{
			Label: domain.LabelVitalSigns,
			Key:   "vital_signs",
			Patterns: []string{
				`\b(?:temperature|temp)[:\s]*(\d+\.?\d*)\s*°?[FC]`,
				`\b(?:heart rate|HR|pulse)[:\s]*(\d+)\s*bpm`,
				`\b(?:respiratory rate|RR)[:\s]*(\d+)`,
				`\b(?:SpO2|oxygen saturation)[:\s]*(\d+)\s*%`,
			},
			Confidence: DefaultConfidence,
		},
		{Label: domain.LabelDiagnosis, Key: "diagnoses", Confidence: DefaultConfidence},
		{Label: domain.LabelProcedure, Key: "procedures", Confidence: DefaultConfidence},
		{Label: domain.LabelSymptom, Key: "symptoms", Confidence: DefaultConfidence},
	}
}
