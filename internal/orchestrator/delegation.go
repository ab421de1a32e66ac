package orchestrator

import (
	"strings"

	"maestro/internal/router"
)

// delegationRule maps trigger keywords to the specialist domain and the
// step type its plan request should carry.
type delegationRule struct {
	keywords []string
	domain   router.Domain
	stepType string
}

// delegationRules is checked in order; the first rule with a keyword hit
// wins. Keyword routing is deliberate here: delegation must be fast and
// deterministic, and the oracle already had its say during intent
// analysis.
var delegationRules = []delegationRule{
	{
		keywords: []string{"http://", "https://", "website", "web page", "webpage", "url", "summarize the page", "fetch"},
		domain:   router.DomainWeb,
		stepType: "web_intelligence",
	},
	{
		keywords: []string{"battery", "screen", "volume", "device", "type ", "click", "tap "},
		domain:   router.DomainDevice,
		stepType: "device_control",
	},
	{
		keywords: []string{"file", "directory", "folder", "read the", "list the"},
		domain:   router.DomainFiles,
		stepType: "file_operations",
	},
	{
		keywords: []string{"environment", "system info", "what machine", "capabilities", "discover"},
		domain:   router.DomainIntelligence,
		stepType: "environment_discovery",
	},
	{
		keywords: []string{"consolidate", "combine the results", "report on", "reformat"},
		domain:   router.DomainData,
		stepType: "data_processing",
	},
}

// delegate picks the specialist domain for a complex request. Specialists
// named by the classifier take precedence over keyword rules; unmatched
// input lands in the general domain.
func delegate(input string, specialists []string) (router.Domain, string) {
	for _, s := range specialists {
		switch router.Domain(strings.ToLower(strings.TrimSpace(s))) {
		case router.DomainWeb:
			return router.DomainWeb, "web_intelligence"
		case router.DomainDevice:
			return router.DomainDevice, "device_control"
		case router.DomainFiles:
			return router.DomainFiles, "file_operations"
		case router.DomainIntelligence:
			return router.DomainIntelligence, "environment_discovery"
		case router.DomainData:
			return router.DomainData, "data_processing"
		}
	}

	lower := strings.ToLower(input)
	for _, rule := range delegationRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.domain, rule.stepType
			}
		}
	}
	return router.DomainGeneral, "general_operation"
}
