package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/responses"
)

type profileItem struct {
	AgeIndicators       string `json:"age_indicators" jsonschema_description:"Hints about the fan's age"`
	JobOrCareer         string `json:"job_or_career" jsonschema_description:"Occupation or career hints"`
	LocationHints       string `json:"location_hints" jsonschema_description:"Where the fan lives or travels"`
	RelationshipStatus  string `json:"relationship_status" jsonschema_description:"Partner or family situation"`
	PersonalityTraits   string `json:"personality_traits" jsonschema_description:"Recurring traits in how the fan behaves"`
	EmotionalNeeds      string `json:"emotional_needs" jsonschema_description:"What the fan seems to look for emotionally"`
	PurchaseMotivations string `json:"purchase_motivations" jsonschema_description:"Why the fan buys content"`
	CommunicationStyle  string `json:"communication_style" jsonschema_description:"Tone and style of the fan's messages"`
	LifeEvents          string `json:"life_events" jsonschema_description:"Notable events the fan mentions"`
}

type profileEnvelope struct {
	Profiles []profileItem `json:"profiles"`
}

var profileEnvelopeSchema = GenerateSchema[profileEnvelope]()

type ProfilerConfig struct {
	Model           string
	MaxOutputTokens int64
	// StructuredOutput asks the API to enforce the profile schema. The answer then arrives as
	// {"profiles":[...]}, which the array extraction downstream still handles.
	StructuredOutput bool
	Flex             bool
}

// OpenAIProfiler sends a batch of transcripts in a single Responses API request and returns the
// raw answer text.
type OpenAIProfiler struct {
	client *openai.Client
	cfg    ProfilerConfig
}

func NewOpenAIProfiler(client *openai.Client, cfg ProfilerConfig) (*OpenAIProfiler, error) {
	if client == nil {
		return nil, errors.New("NewOpenAIProfiler: client is nil")
	}
	if cfg.Model == "" {
		return nil, errors.New("NewOpenAIProfiler: model is empty")
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 8000
	}
	return &OpenAIProfiler{client: client, cfg: cfg}, nil
}

func (p *OpenAIProfiler) params(transcripts []string) responses.ResponseNewParams {
	params := responses.ResponseNewParams{
		Model:           p.cfg.Model,
		MaxOutputTokens: openai.Int(p.cfg.MaxOutputTokens),
		Instructions:    openai.String(profilerSystemPrompt),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(buildProfilePrompt(transcripts), responses.EasyInputMessageRoleUser),
			},
		},
	}
	if p.cfg.Flex {
		params.ServiceTier = responses.ResponseNewParamsServiceTierFlex
	}
	if p.cfg.StructuredOutput {
		params.Text = responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:        "FanProfiles",
					Schema:      profileEnvelopeSchema,
					Strict:      openai.Bool(true),
					Description: openai.String("One profile per fan, in input order"),
					Type:        "json_schema",
				},
			},
		}
	}
	return params
}

func (p *OpenAIProfiler) ProfileTranscripts(ctx context.Context, transcripts []string) (string, error) {
	if len(transcripts) == 0 {
		return "[]", nil
	}
	resp, err := CallWithRetry(ctx, p.client, p.params(transcripts))
	if err != nil {
		return "", err
	}
	out := strings.TrimSpace(resp.OutputText())
	if out == "" {
		return "", errors.New("OpenAIProfiler: empty response")
	}
	return out, nil
}
