// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package conditions turns patient narratives into canonical condition tags
// and expands term sets with clinical synonyms. Both registries are static
// and read-only after package initialization.
package conditions

import (
	"strings"

	"github.com/pdiddy/trialscout/pkg/types"
)

// registry is the canonical condition table. Order is significant: Extract
// returns tags in registry order.
var registry = []types.ConditionTag{
	{Name: "Diabetes", Triggers: []string{"diabetes", "diabetic", "blood sugar", "insulin"}},
	{Name: "Hypertension", Triggers: []string{"hypertension", "high blood pressure"}},
	{Name: "Heart Disease", Triggers: []string{"heart disease", "heart attack", "cardiac", "coronary", "heart failure"}},
	{Name: "Stroke", Triggers: []string{"stroke", "cerebrovascular"}},
	{Name: "Lung Cancer", Triggers: []string{"lung cancer", "nsclc", "small cell carcinoma"}},
	{Name: "Breast Cancer", Triggers: []string{"breast cancer", "mastectomy", "her2"}},
	{Name: "Prostate Cancer", Triggers: []string{"prostate cancer"}},
	{Name: "Brain Cancer", Triggers: []string{"brain cancer", "brain tumor", "brain tumour"}},
	{Name: "Glioma", Triggers: []string{"glioma", "glioblastoma", "gbm", "astrocytoma"}},
	{Name: "Leukemia", Triggers: []string{"leukemia", "leukaemia"}},
	{Name: "Lymphoma", Triggers: []string{"lymphoma", "hodgkin"}},
	{Name: "Alzheimer's Disease", Triggers: []string{"alzheimer", "dementia", "memory loss"}},
	{Name: "Parkinson's Disease", Triggers: []string{"parkinson"}},
	{Name: "Multiple Sclerosis", Triggers: []string{"multiple sclerosis"}},
	{Name: "Epilepsy", Triggers: []string{"epilepsy", "seizure"}},
	{Name: "Migraine", Triggers: []string{"migraine"}},
	{Name: "Asthma", Triggers: []string{"asthma"}},
	{Name: "COPD", Triggers: []string{"copd", "emphysema", "chronic bronchitis"}},
	{Name: "Arthritis", Triggers: []string{"arthritis"}},
	{Name: "Depression", Triggers: []string{"depression", "depressive"}},
	{Name: "Anxiety", Triggers: []string{"anxiety", "panic attack"}},
	{Name: "Chronic Kidney Disease", Triggers: []string{"kidney disease", "renal failure", "dialysis"}},
	{Name: "HIV", Triggers: []string{"hiv", "human immunodeficiency virus"}},
	{Name: "Obesity", Triggers: []string{"obesity", "obese"}},
	{Name: "Autism", Triggers: []string{"autism", "autistic"}},
}

// Registry returns a copy of the condition table.
func Registry() []types.ConditionTag {
	out := make([]types.ConditionTag, len(registry))
	copy(out, registry)
	return out
}

// Lookup returns the registered tag with the given name, ignoring case.
func Lookup(name string) (types.ConditionTag, bool) {
	for _, tag := range registry {
		if strings.EqualFold(tag.Name, strings.TrimSpace(name)) {
			return tag, true
		}
	}
	return types.ConditionTag{}, false
}

// Extract returns every tag with at least one trigger phrase occurring in
// narrative, compared case-insensitively as plain substrings. An empty or
// unmatched narrative yields an empty result.
func Extract(narrative string) []types.ConditionTag {
	text := strings.ToLower(narrative)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var tags []types.ConditionTag
	for _, tag := range registry {
		for _, trigger := range tag.Triggers {
			if strings.Contains(text, trigger) {
				tags = append(tags, tag)
				break
			}
		}
	}
	return tags
}

// Names returns the canonical names of tags, in order.
func Names(tags []types.ConditionTag) []string {
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	return names
}
