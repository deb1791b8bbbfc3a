package contract

import (
	"time"
)

type AgentType string

const (
	AgentTypeOrchestrator AgentType = "orchestrator"
	AgentTypeEco          AgentType = "eco"
	AgentTypeLegal        AgentType = "legal"
	AgentTypeFinance      AgentType = "finance"
	AgentTypeAggregator   AgentType = "aggregator"
)

// MessageKind tags the variant carried by a Message.
type MessageKind string

const (
	MessageHuman      MessageKind = "human"
	MessageAssistant  MessageKind = "assistant"
	MessageToolResult MessageKind = "tool_result"
)

// Message is one entry of an append-only conversation log.
// Human messages use Content only, assistant messages may carry ToolCalls,
// tool results carry CallID + ToolName and the payload in Content.
type Message struct {
	Kind      MessageKind `json:"kind"`
	Content   string      `json:"content,omitempty"`
	ToolCalls []ToolCall  `json:"tool_calls,omitempty"`
	CallID    string      `json:"call_id,omitempty"`
	ToolName  string      `json:"tool_name,omitempty"`
}

type ToolCall struct {
	ID   string         `json:"id"`
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

func NewHumanMessage(text string) Message {
	return Message{Kind: MessageHuman, Content: text}
}

func NewAssistantMessage(text string, calls ...ToolCall) Message {
	return Message{Kind: MessageAssistant, Content: text, ToolCalls: calls}
}

func NewToolResultMessage(callID, tool, payload string) Message {
	return Message{Kind: MessageToolResult, CallID: callID, ToolName: tool, Content: payload}
}

func (m Message) HasToolCalls() bool {
	return m.Kind == MessageAssistant && len(m.ToolCalls) > 0
}

type PlotType string

const (
	PlotBuilding     PlotType = "building"
	PlotAgricultural PlotType = "agricultural"
	PlotCommercial   PlotType = "commercial"
)

type Address struct {
	Street     string `json:"street" validate:"required"`
	City       string `json:"city" validate:"required"`
	PostalCode string `json:"postalCode" validate:"required"`
	State      string `json:"state" validate:"required"`
}

type GeoCoordinates struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// PropertyListing is a read-only snapshot of one parcel.
type PropertyListing struct {
	ID             string          `json:"id" validate:"required,uuid"`
	Title          string          `json:"title" validate:"required"`
	Address        Address         `json:"address"`
	PlotArea       float64         `json:"plotArea" validate:"gt=0"`
	Price          float64         `json:"price" validate:"gt=0"`
	PricePerSqm    float64         `json:"pricePerSqm" validate:"gt=0"`
	PlotType       PlotType        `json:"plotType" validate:"oneof=building agricultural commercial"`
	URL            string          `json:"url" validate:"required,url"`
	RetrievedAt    time.Time       `json:"retrievedAt" validate:"required"`
	GeoCoordinates *GeoCoordinates `json:"geoCoordinates,omitempty"`
}

// DomainEvaluation is the verdict of one specialist.
type DomainEvaluation[D any] struct {
	Score   float64 `json:"score" validate:"gte=0,lte=100"`
	Summary string  `json:"summary" validate:"required"`
	Details D       `json:"details"`
}

type EcoDetails struct {
	LandCover             string `json:"landCover" validate:"required"`
	SoilSealing           string `json:"soilSealing" validate:"required"`
	BiodiversityPotential string `json:"biodiversityPotential" validate:"required"`
	ClimateResilience     string `json:"climateResilience" validate:"required"`
}

type LegalDetails struct {
	ZoningCompliance      string   `json:"zoningCompliance" validate:"required"`
	ProtectedAreaStatus   string   `json:"protectedAreaStatus" validate:"required"`
	PotentialRestrictions []string `json:"potentialRestrictions"`
}

type FinanceDetails struct {
	MarketValueComparison string             `json:"marketValueComparison" validate:"required"`
	PotentialROI          string             `json:"potentialRoi" validate:"required"`
	CostBreakdown         map[string]float64 `json:"costBreakdown"`
}

type (
	EcoImpactEvaluation = DomainEvaluation[EcoDetails]
	LegalEvaluation     = DomainEvaluation[LegalDetails]
	FinanceEvaluation   = DomainEvaluation[FinanceDetails]
)

type Recommendation string

const (
	HighlyRecommended Recommendation = "HIGHLY_RECOMMENDED"
	Recommended       Recommendation = "RECOMMENDED"
	Neutral           Recommendation = "NEUTRAL"
	NotRecommended    Recommendation = "NOT_RECOMMENDED"
)

func (r Recommendation) Valid() bool {
	switch r {
	case HighlyRecommended, Recommended, Neutral, NotRecommended:
		return true
	default:
		return false
	}
}

type Evaluations struct {
	EcoImpact EcoImpactEvaluation `json:"ecoImpact"`
	Legal     LegalEvaluation     `json:"legal"`
	Finance   FinanceEvaluation   `json:"finance"`
}

// AggregatedEvaluation links one listing with all three specialist verdicts.
type AggregatedEvaluation struct {
	ListingID        string          `json:"listingId" validate:"required"`
	PropertyDetails  PropertyListing `json:"propertyDetails"`
	Evaluations      Evaluations     `json:"evaluations"`
	OverallScore     int             `json:"overallScore" validate:"gte=0,lte=100"`
	Recommendation   Recommendation  `json:"recommendation" validate:"oneof=HIGHLY_RECOMMENDED RECOMMENDED NEUTRAL NOT_RECOMMENDED"`
	ExecutiveSummary string          `json:"executiveSummary" validate:"required"`
}

// AggregatorVerdict is what the aggregation judge proposes.
type AggregatorVerdict struct {
	OverallScore     int            `json:"overallScore"`
	Recommendation   Recommendation `json:"recommendation"`
	ExecutiveSummary string         `json:"executiveSummary"`
}

type IntermediateStep struct {
	Tool   string `json:"tool"`
	Input  any    `json:"input"`
	Output any    `json:"output"`
}

// SpecialistOutput is the payload a specialist tool hands back to its caller.
type SpecialistOutput struct {
	FinalOutput       string             `json:"finalOutput"`
	IntermediateSteps []IntermediateStep `json:"intermediateSteps"`
}

type TraceKind string

const (
	TraceTool     TraceKind = "tool"
	TraceSubagent TraceKind = "subagent"
)

type TraceEntry struct {
	Kind     TraceKind    `json:"type"`
	Name     string       `json:"name"`
	Input    any          `json:"input"`
	Output   any          `json:"output"`
	Children []TraceEntry `json:"children,omitempty"`
}
