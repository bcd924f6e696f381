// Package mitigation proposes and executes risk-reducing actions against
// twin nodes. The action set is closed and table-driven: every action's
// cost, effect size and applicability live in one catalog, and both the
// advisor and the executor dispatch over it.
package mitigation

import "twinguard-lab/internal/domain/models"

// actionSpec is the catalog entry for one action type
type actionSpec struct {
	riskReduction    float64 // expected composite-risk drop when executed
	minutes          int     // estimated wall-clock time to complete
	automatable      bool
	requiresApproval bool
	dependsOn        []models.ActionType // advisory ordering only
	categories       []models.Category   // empty means any category
}

var catalog = map[models.ActionType]actionSpec{
	models.ActionIsolate: {
		riskReduction:    0.35,
		minutes:          2,
		automatable:      true,
		requiresApproval: true, // cuts service to every dependent
	},
	models.ActionLoadShed: {
		riskReduction: 0.25,
		minutes:       5,
		automatable:   true,
		categories:    []models.Category{models.CategoryPower, models.CategoryDataCenter},
	},
	models.ActionReroute: {
		riskReduction: 0.20,
		minutes:       10,
		automatable:   true,
		dependsOn:     []models.ActionType{models.ActionActivateBackup},
	},
	models.ActionActivateBackup: {
		riskReduction: 0.15,
		minutes:       8,
		automatable:   true,
	},
	models.ActionEnableCooling: {
		riskReduction: 0.15,
		minutes:       3,
		automatable:   true,
		categories:    []models.Category{models.CategoryPower, models.CategoryDataCenter},
	},
	models.ActionCyberLockdown: {
		riskReduction:    0.30,
		minutes:          1,
		automatable:      true,
		requiresApproval: true,
	},
	models.ActionCredentialReset: {
		riskReduction: 0.20,
		minutes:       15,
		automatable:   true,
	},
	models.ActionDispatchCrew: {
		riskReduction:    0.25,
		minutes:          120,
		automatable:      false, // humans drive trucks
		requiresApproval: true,
	},
}

// actionsByFailure ranks the actions worth proposing per failure mode,
// most effective first.
var actionsByFailure = map[models.FailureType][]models.ActionType{
	models.FailureOverload: {
		models.ActionLoadShed,
		models.ActionEnableCooling,
		models.ActionReroute,
	},
	models.FailureCyberIntrusion: {
		models.ActionCyberLockdown,
		models.ActionCredentialReset,
		models.ActionIsolate,
	},
	models.FailureEquipmentWear: {
		models.ActionDispatchCrew,
		models.ActionLoadShed,
	},
	models.FailureEnvironmental: {
		models.ActionActivateBackup,
		models.ActionDispatchCrew,
	},
	models.FailureCascade: {
		models.ActionIsolate,
		models.ActionActivateBackup,
		models.ActionReroute,
	},
}

// SuggestedActions returns the ranked actions for a failure mode
func SuggestedActions(t models.FailureType) []models.ActionType {
	return append([]models.ActionType(nil), actionsByFailure[t]...)
}

// applicable reports whether the action makes sense for a node category
func (s actionSpec) applicable(c models.Category) bool {
	if len(s.categories) == 0 {
		return true
	}
	for _, cat := range s.categories {
		if cat == c {
			return true
		}
	}
	return false
}

// priorityFor maps failure probability to recommendation priority
func priorityFor(probability float64) models.Priority {
	switch {
	case probability >= 0.85:
		return models.PriorityImmediate
	case probability >= 0.70:
		return models.PriorityHigh
	case probability >= 0.55:
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}
