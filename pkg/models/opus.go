package models

import (
	"encoding/json"
	"fmt"
)

// Module names every Opus Magnum document is expected to carry. The set can
// grow without orchestrator changes; only these are required on parse.
const (
	ModuleDNAClient          = "dna_client"
	ModuleTacticalIndicators = "tactical_indicators"
	ModulePsychometric       = "psychometric_profile"
	ModuleDeepMotivation     = "deep_motivation"
	ModulePredictivePaths    = "predictive_paths"
	ModuleStrategicPlaybook  = "strategic_playbook"
	ModuleDecisionVectors    = "decision_vectors"
)

var requiredModules = []string{
	ModuleDNAClient,
	ModuleTacticalIndicators,
	ModulePsychometric,
	ModuleDeepMotivation,
	ModulePredictivePaths,
	ModuleStrategicPlaybook,
	ModuleDecisionVectors,
}

// OpusMagnum is the deep model's structured analysis document. Modules are
// kept as raw JSON so that schema drift inside a module (extra fields,
// optional fields) survives the round trip to storage and the push channel
// untouched.
type OpusMagnum struct {
	OverallConfidence float64                    `json:"overall_confidence"`
	SuggestedStage    string                     `json:"suggested_stage"`
	Modules           map[string]json.RawMessage `json:"modules"`

	raw []byte
}

// Raw returns the original document bytes, unknown fields included. This is
// what gets persisted and pushed.
func (d *OpusMagnum) Raw() []byte { return d.raw }

// Stage normalizes the document's suggested_stage, which the model may emit
// in either accepted language.
func (d *OpusMagnum) Stage() (JourneyStage, bool) {
	return NormalizeStage(d.SuggestedStage)
}

// ModuleConfidence extracts a module's own confidence_score, if present.
func (d *OpusMagnum) ModuleConfidence(name string) (float64, bool) {
	mod, ok := d.Modules[name]
	if !ok {
		return 0, false
	}
	var probe struct {
		ConfidenceScore *float64 `json:"confidence_score"`
	}
	if err := json.Unmarshal(mod, &probe); err != nil || probe.ConfidenceScore == nil {
		return 0, false
	}
	return *probe.ConfidenceScore, true
}

// ParseOpusMagnum validates the deep model's output. The parser is permissive
// about module internals (unknown fields pass through via Raw) and strict
// only about the required structure: a confidence in range, a recognizable
// stage, and the required module set.
func ParseOpusMagnum(data []byte) (*OpusMagnum, error) {
	var doc OpusMagnum
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("opus magnum document is not valid JSON: %w", err)
	}
	if doc.OverallConfidence < 0 || doc.OverallConfidence > 100 {
		return nil, fmt.Errorf("overall_confidence %v out of range [0,100]", doc.OverallConfidence)
	}
	if _, ok := NormalizeStage(doc.SuggestedStage); !ok {
		return nil, fmt.Errorf("unrecognized suggested_stage %q", doc.SuggestedStage)
	}
	if len(doc.Modules) == 0 {
		return nil, fmt.Errorf("modules object missing or empty")
	}
	for _, name := range requiredModules {
		if _, ok := doc.Modules[name]; !ok {
			return nil, fmt.Errorf("required module %q missing", name)
		}
	}
	doc.raw = data
	return &doc, nil
}
