package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/pchaya/aftercare/agent/contract"
	groqx "github.com/pchaya/aftercare/pkg/groq"
)

// Config carries the default model settings plus per-agent overrides. The
// classifier runs cold; the receptionist warmer for conversational tone.
type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://api.groq.com/openai/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2048"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.3"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	EmbeddingModel     string        `envconfig:"EMBEDDING_MODEL" split_words:"true" default:"text-embedding-3-small"`

	ClassifierModel         string  `envconfig:"CLASSIFIER_MODEL" split_words:"true"`
	ComposerModel           string  `envconfig:"COMPOSER_MODEL" split_words:"true"`
	ReceptionistModel       string  `envconfig:"RECEPTIONIST_MODEL" split_words:"true"`
	ClassifierTemperature   float32 `envconfig:"CLASSIFIER_TEMPERATURE" split_words:"true" default:"0.1"`
	ComposerTemperature     float32 `envconfig:"COMPOSER_TEMPERATURE" split_words:"true" default:"-1"`
	ReceptionistTemperature float32 `envconfig:"RECEPTIONIST_TEMPERATURE" split_words:"true" default:"0.7"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: llm api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

// GroqFor resolves the effective provider config for one agent role.
func (c Config) GroqFor(agentType contractx.AgentType) groqx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	switch agentType {
	case contractx.AgentTypeClassifier:
		if v := strings.TrimSpace(c.ClassifierModel); v != "" {
			modelName = v
		}
		if c.ClassifierTemperature >= 0 {
			temp = c.ClassifierTemperature
		}
	case contractx.AgentTypeComposer:
		if v := strings.TrimSpace(c.ComposerModel); v != "" {
			modelName = v
		}
		if c.ComposerTemperature >= 0 {
			temp = c.ComposerTemperature
		}
	case contractx.AgentTypeReceptionist:
		if v := strings.TrimSpace(c.ReceptionistModel); v != "" {
			modelName = v
		}
		if c.ReceptionistTemperature >= 0 {
			temp = c.ReceptionistTemperature
		}
	}

	maxCompletionToken := c.MaxCompletionToken
	return groqx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		EmbeddingModel:     strings.TrimSpace(c.EmbeddingModel),
	}
}
