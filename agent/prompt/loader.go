package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/classifier.txt
	classifierRaw string

	//go:embed template/receptionist.txt
	receptionistRaw string

	//go:embed template/composer.txt
	composerRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Classifier   string
	Receptionist string
	Composer     string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings. Safe to
// call concurrently; the embed is compile-time.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Classifier:   strings.TrimSpace(classifierRaw),
		Receptionist: strings.TrimSpace(receptionistRaw),
		Composer:     strings.TrimSpace(composerRaw),
	}
}
