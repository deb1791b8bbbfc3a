package tool

import (
	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/parcel-scout/agent/contract"
)

const (
	ToolScrapeListing              = "scrapeListing"
	ToolGetEnvironmentalData       = "getEnvironmentalData"
	ToolGetRegulatoryData          = "getRegulatoryData"
	ToolWebSearch                  = "webSearch"
	ToolEvaluateEcoImpact          = "evaluateEcoImpact"
	ToolEvaluateLegalCompliance    = "evaluateLegalCompliance"
	ToolEvaluateFinancialViability = "evaluateFinancialViability"
)

var friendlyNames = map[string]string{
	ToolScrapeListing:              "Listing Scraper",
	ToolGetEnvironmentalData:       "Environmental Data (Land Monitoring)",
	ToolGetRegulatoryData:          "Regulatory Data (Zoning & Protected Areas)",
	ToolWebSearch:                  "Web Search",
	ToolEvaluateEcoImpact:          "ECO Specialist",
	ToolEvaluateLegalCompliance:    "Legal Specialist",
	ToolEvaluateFinancialViability: "Finance Specialist",
}

// FriendlyName returns the display name of a tool, or the name itself when unmapped.
func FriendlyName(name string) string {
	if v, ok := friendlyNames[name]; ok {
		return v
	}
	return name
}

var specialistAgents = map[string]contractx.AgentType{
	ToolEvaluateEcoImpact:          contractx.AgentTypeEco,
	ToolEvaluateLegalCompliance:    contractx.AgentTypeLegal,
	ToolEvaluateFinancialViability: contractx.AgentTypeFinance,
}

// IsSpecialist reports whether name dispatches to a specialist sub-pipeline.
func IsSpecialist(name string) bool {
	_, ok := specialistAgents[name]
	return ok
}

// SpecialistToolName is the dispatch tool of one specialist agent.
func SpecialistToolName(agent contractx.AgentType) string {
	for name, a := range specialistAgents {
		if a == agent {
			return name
		}
	}
	return ""
}

// DataClients reaches the four data services. Nil clients leave their tools out.
type DataClients struct {
	Listing     Invoker
	Environment Invoker
	Regulatory  Invoker
	Search      Invoker
}

// ForSpecialist returns the tool menu of one domain specialist.
func ForSpecialist(agent contractx.AgentType, clients DataClients) []contractx.Tool {
	search := webSearch(clients.Search)
	switch agent {
	case contractx.AgentTypeEco:
		return compact(environmentalData(clients.Environment), search)
	case contractx.AgentTypeLegal:
		return compact(regulatoryData(clients.Regulatory), search)
	case contractx.AgentTypeFinance:
		return compact(search)
	default:
		return nil
	}
}

// ForOrchestrator returns the top-level menu: listing scraper, the three
// specialist dispatchers and web search.
func ForOrchestrator(clients DataClients, eco, legal, finance SpecialistRunner) []contractx.Tool {
	return compact(
		scrapeListing(clients.Listing),
		specialistTool(ToolEvaluateEcoImpact, "ECO", "Invokes the ECO specialist agent to evaluate the ecological potential of a property.", eco),
		specialistTool(ToolEvaluateLegalCompliance, "Legal", "Invokes the Legal specialist agent to evaluate the legal viability of acquiring a property.", legal),
		specialistTool(ToolEvaluateFinancialViability, "Finance", "Invokes the Finance specialist agent to evaluate the financial viability of a property.", finance),
		webSearch(clients.Search),
	)
}

func scrapeListing(client Invoker) contractx.Tool {
	if client == nil {
		return nil
	}
	return NewRPCTool(&schema.ToolInfo{
		Name: ToolScrapeListing,
		Desc: "Fetches the details of a single property listing from its URL. This should be the first step in any property evaluation.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"url": {Type: schema.String, Desc: "The full URL of the property listing.", Required: true},
		}),
	}, client, "fetchSingleListingByUrl", "listing")
}

func environmentalData(client Invoker) contractx.Tool {
	if client == nil {
		return nil
	}
	return NewRPCTool(&schema.ToolInfo{
		Name:        ToolGetEnvironmentalData,
		Desc:        "Fetches environmental and land monitoring data for a geographic location. Use this to assess land cover, soil sealing and other ecological factors.",
		ParamsOneOf: schema.NewParamsOneOfByParams(coordinateParams()),
	}, client, "getLandMonitoringData", "environmental data")
}

func regulatoryData(client Invoker) contractx.Tool {
	if client == nil {
		return nil
	}
	return NewRPCTool(&schema.ToolInfo{
		Name:        ToolGetRegulatoryData,
		Desc:        "Fetches zoning, protected-area and land-use regulations for a geographic location.",
		ParamsOneOf: schema.NewParamsOneOfByParams(coordinateParams()),
	}, client, "getRegulatoryData", "regulatory data")
}

func webSearch(client Invoker) contractx.Tool {
	if client == nil {
		return nil
	}
	return NewRPCTool(&schema.ToolInfo{
		Name: ToolWebSearch,
		Desc: "Searches the web for current information about land prices, regulations, climate risks or ecology.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {Type: schema.String, Desc: "The search query.", Required: true},
		}),
	}, client, "search", "search results")
}

func coordinateParams() map[string]*schema.ParameterInfo {
	return map[string]*schema.ParameterInfo{
		"latitude":  {Type: schema.Number, Desc: "The latitude of the property.", Required: true},
		"longitude": {Type: schema.Number, Desc: "The longitude of the property.", Required: true},
	}
}

func specialistTool(name, label, desc string, runner SpecialistRunner) contractx.Tool {
	if runner == nil {
		return nil
	}
	return NewSpecialistTool(&schema.ToolInfo{
		Name: name,
		Desc: desc,
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"propertyDetails": {Type: schema.String, Desc: "A JSON string containing the full details of the property listing.", Required: true},
		}),
	}, label, runner)
}

func compact(tools ...contractx.Tool) []contractx.Tool {
	out := make([]contractx.Tool, 0, len(tools))
	for _, t := range tools {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}
