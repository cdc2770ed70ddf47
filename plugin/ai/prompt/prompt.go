// Package prompt maps prompt-type tags to the instruction text that
// frames a conversation.
package prompt

import (
	"github.com/franksymon/Chatbot-api/plugin/ai"
)

// DefaultType is the prompt type used when none is given or the given
// tag is unknown.
const DefaultType = "general"

// Spec pairs a prompt type with its description and instruction text.
type Spec struct {
	Tag          string
	Description  string
	Instructions string
}

// Manager holds the static prompt catalogue. It is loaded at startup
// and read-only afterwards.
type Manager struct {
	specs map[string]Spec
}

// NewManager creates a manager with the clinical-assistant catalogue.
func NewManager() *Manager {
	m := &Manager{specs: make(map[string]Spec)}
	for _, spec := range clinicalSpecs {
		m.specs[spec.Tag] = spec
	}
	return m
}

// Lookup returns the spec for a tag, falling back to the default type
// for unknown tags. It never fails.
func (m *Manager) Lookup(tag string) Spec {
	if spec, ok := m.specs[tag]; ok {
		return spec
	}
	return m.specs[DefaultType]
}

// Types returns the tag-to-description mapping of the catalogue.
func (m *Manager) Types() map[string]string {
	types := make(map[string]string, len(m.specs))
	for tag, spec := range m.specs {
		types[tag] = spec.Description
	}
	return types
}

// Assemble produces the final message list for a provider call: exactly
// one instruction message followed by the trimmed conversation in order.
func (m *Manager) Assemble(tag string, trimmed []ai.Message) []ai.Message {
	spec := m.Lookup(tag)

	final := make([]ai.Message, 0, len(trimmed)+1)
	final = append(final, ai.SystemMessage(spec.Instructions))
	final = append(final, trimmed...)
	return final
}

var clinicalSpecs = []Spec{
	{
		Tag:         "general",
		Description: "General clinical assistant",
		Instructions: `You are a clinical assistant for professional psychologists. Your role:

PROFESSIONAL SUPPORT TOOL:
- Analyze clinical cases and suggest therapeutic approaches
- Provide evidence-based information
- Help with documentation and session notes
- Suggest appropriate techniques and interventions

IMPORTANT: You are a support tool; you do NOT replace professional clinical judgment.

Respond in a technical, practical way oriented to facilitating the psychologist's work.`,
	},
	{
		Tag:         "case_analysis",
		Description: "Clinical case analysis",
		Instructions: `You are an assistant for CLINICAL CASE ANALYSIS.

ANALYSIS METHOD:
1. Identification of primary symptoms
2. Differential diagnoses to consider (DSM-5/ICD-11)
3. Risk and protective factors
4. Assessment recommendations
5. Intervention suggestions

THERAPEUTIC APPROACHES: CBT, DBT, EMDR for trauma, ACT, mindfulness and relaxation techniques.

Provide structured analysis and practical suggestions.`,
	},
	{
		Tag:         "documentation",
		Description: "Clinical documentation",
		Instructions: `You are an assistant for professional CLINICAL DOCUMENTATION.

DOCUMENT TYPES: session notes, progress reports, treatment plans, referral reports, insurance documents.

STANDARD STRUCTURE:
1. Patient data (initials, age, date)
2. Presenting concern
3. Clinical observations
4. Interventions performed
5. Patient response
6. Follow-up plan
7. Recommendations

Use appropriate technical language, DSM-5/ICD-11 terminology, objectivity and a clear structure. Maintain confidentiality.`,
	},
	{
		Tag:         "resources",
		Description: "Therapeutic resources",
		Instructions: `You are an assistant for THERAPEUTIC RESOURCES and specialized techniques.

TECHNIQUE LIBRARY: cognitive restructuring, gradual exposure, relaxation and grounding techniques, thought records, mindfulness meditation, EMDR for trauma, DBT skills, narrative therapy, validated questionnaires, psychoeducational material.

RESPONSE FORMAT: recommended technique, brief description, specific indications, contraindications, implementation steps.

Provide practical, evidence-based resources.`,
	},
}
