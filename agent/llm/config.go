package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/parcel-scout/agent/contract"
	openrouterx "github.com/tanpawarit/parcel-scout/pkg/openrouter"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"60s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true" default:"parcel-scout"`

	OrchestratorModel       string  `envconfig:"ORCHESTRATOR_MODEL" split_words:"true"`
	EcoModel                string  `envconfig:"ECO_MODEL" split_words:"true"`
	LegalModel              string  `envconfig:"LEGAL_MODEL" split_words:"true"`
	FinanceModel            string  `envconfig:"FINANCE_MODEL" split_words:"true"`
	AggregatorModel         string  `envconfig:"AGGREGATOR_MODEL" split_words:"true"`
	OrchestratorTemperature float32 `envconfig:"ORCHESTRATOR_TEMPERATURE" split_words:"true" default:"-1"`
	EcoTemperature          float32 `envconfig:"ECO_TEMPERATURE" split_words:"true" default:"-1"`
	LegalTemperature        float32 `envconfig:"LEGAL_TEMPERATURE" split_words:"true" default:"-1"`
	FinanceTemperature      float32 `envconfig:"FINANCE_TEMPERATURE" split_words:"true" default:"-1"`
	AggregatorTemperature   float32 `envconfig:"AGGREGATOR_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

func (c Config) OpenRouterFor(agentType contractx.AgentType) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	override := func(m string, t float32) {
		if v := strings.TrimSpace(m); v != "" {
			modelName = v
		}
		if t >= 0 {
			temp = t
		}
	}

	switch agentType {
	case contractx.AgentTypeOrchestrator:
		override(c.OrchestratorModel, c.OrchestratorTemperature)
	case contractx.AgentTypeEco:
		override(c.EcoModel, c.EcoTemperature)
	case contractx.AgentTypeLegal:
		override(c.LegalModel, c.LegalTemperature)
	case contractx.AgentTypeFinance:
		override(c.FinanceModel, c.FinanceTemperature)
	case contractx.AgentTypeAggregator:
		override(c.AggregatorModel, c.AggregatorTemperature)
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            c.SiteURL,
		SiteName:           c.SiteName,
	}
}
