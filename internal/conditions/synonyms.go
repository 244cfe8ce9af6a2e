// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package conditions

import "strings"

type synonymEntry struct {
	key      string
	synonyms []string
}

// synonymTable maps a lowercased canonical disease name to related phrasing.
// Order breaks ties between partial matches.
var synonymTable = []synonymEntry{
	{"diabetes", []string{"diabetes mellitus", "diabetic", "hyperglycemia", "insulin resistance", "type 2 diabetes", "type 1 diabetes"}},
	{"hypertension", []string{"high blood pressure", "elevated blood pressure", "arterial hypertension"}},
	{"heart disease", []string{"cardiovascular disease", "coronary artery disease", "heart failure", "cardiomyopathy"}},
	{"stroke", []string{"cerebrovascular accident", "ischemic stroke", "brain infarction"}},
	{"lung cancer", []string{"non-small cell lung cancer", "small cell lung cancer", "lung neoplasm", "lung carcinoma"}},
	{"breast cancer", []string{"breast carcinoma", "breast neoplasm", "mammary carcinoma"}},
	{"prostate cancer", []string{"prostate carcinoma", "prostatic neoplasm"}},
	{"brain cancer", []string{"brain tumor", "brain neoplasm", "glioma", "cns tumor"}},
	{"glioma", []string{"glioblastoma", "glioblastoma multiforme", "astrocytoma", "high-grade glioma"}},
	{"leukemia", []string{"leukaemia", "acute myeloid leukemia", "chronic lymphocytic leukemia"}},
	{"lymphoma", []string{"hodgkin lymphoma", "non-hodgkin lymphoma"}},
	{"alzheimer's disease", []string{"alzheimer disease", "dementia", "cognitive decline", "mild cognitive impairment"}},
	{"parkinson's disease", []string{"parkinson disease", "parkinsonism", "movement disorder"}},
	{"multiple sclerosis", []string{"demyelinating disease", "relapsing-remitting multiple sclerosis"}},
	{"epilepsy", []string{"seizure disorder", "seizures", "convulsions"}},
	{"migraine", []string{"migraine disorders", "chronic headache"}},
	{"asthma", []string{"bronchial asthma", "reactive airway disease", "wheezing"}},
	{"copd", []string{"chronic obstructive pulmonary disease", "emphysema", "chronic bronchitis"}},
	{"arthritis", []string{"rheumatoid arthritis", "osteoarthritis", "joint inflammation"}},
	{"depression", []string{"major depressive disorder", "depressive disorder", "clinical depression"}},
	{"anxiety", []string{"anxiety disorder", "generalized anxiety disorder", "panic disorder"}},
	{"chronic kidney disease", []string{"renal insufficiency", "kidney failure", "nephropathy"}},
	{"hiv", []string{"hiv infection", "human immunodeficiency virus", "acquired immunodeficiency syndrome"}},
	{"obesity", []string{"overweight", "morbid obesity", "body mass index"}},
	{"autism", []string{"autism spectrum disorder", "asd", "autistic disorder"}},
}

// Expand returns terms plus the clinical synonyms reachable from them. Each
// term maps to at most one dictionary entry: an exact key match, or else the
// first entry whose key contains the term or is contained in it. Synonyms
// are expanded in turn until no new term appears, so the result is closed:
// Expand(Expand(x)) equals Expand(x). Input terms are kept verbatim and the
// output preserves first-seen order.
func Expand(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	var out []string
	add := func(t string) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}

	for _, t := range terms {
		add(t)
	}
	// out grows while it is walked; the loop ends at the closure.
	for i := 0; i < len(out); i++ {
		for _, s := range synonymsFor(out[i]) {
			add(s)
		}
	}
	return out
}

// synonymsFor returns the synonym list selected for one term.
func synonymsFor(term string) []string {
	norm := strings.ToLower(strings.TrimSpace(term))
	if norm == "" {
		return nil
	}
	for _, e := range synonymTable {
		if e.key == norm {
			return e.synonyms
		}
	}
	for _, e := range synonymTable {
		if strings.Contains(e.key, norm) || strings.Contains(norm, e.key) {
			return e.synonyms
		}
	}
	return nil
}
