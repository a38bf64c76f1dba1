package normalize

import "github.com/edvin/subsync/internal/config"

// Rules is the static exclusion and substitution rule set applied during
// reconciliation. Exclusions run on two axes: an explicit deny-list of
// entity ids (test and internal accounts) and a status allow-list (only
// lifecycle states relevant to reconciliation pass through).
type Rules struct {
	excludedPlanIDs     map[int64]bool
	excludedCustomerIDs map[int64]bool
	allowedStatuses     map[string]bool
	statusLabels        map[string]string
	intervalLabels      map[string]string
}

func NewRules(cfg config.RuleSettings) *Rules {
	r := &Rules{
		excludedPlanIDs:     make(map[int64]bool, len(cfg.ExcludedPlanIDs)),
		excludedCustomerIDs: make(map[int64]bool, len(cfg.ExcludedCustomerIDs)),
		allowedStatuses:     make(map[string]bool, len(cfg.AllowedStatuses)),
		statusLabels:        cfg.StatusLabels,
		intervalLabels:      cfg.IntervalLabels,
	}
	for _, id := range cfg.ExcludedPlanIDs {
		r.excludedPlanIDs[id] = true
	}
	for _, id := range cfg.ExcludedCustomerIDs {
		r.excludedCustomerIDs[id] = true
	}
	for _, s := range cfg.AllowedStatuses {
		r.allowedStatuses[s] = true
	}
	return r
}

func (r *Rules) PlanExcluded(id int64) bool     { return r.excludedPlanIDs[id] }
func (r *Rules) CustomerExcluded(id int64) bool { return r.excludedCustomerIDs[id] }
func (r *Rules) StatusAllowed(status string) bool {
	return r.allowedStatuses[status]
}

// StatusLabel translates a source status into the sheet vocabulary, passing
// unknown values through unchanged.
func (r *Rules) StatusLabel(status string) string {
	if label, ok := r.statusLabels[status]; ok {
		return label
	}
	return status
}

// IntervalLabel translates a source billing interval into the sheet
// vocabulary, passing unknown values through unchanged.
func (r *Rules) IntervalLabel(interval string) string {
	if label, ok := r.intervalLabels[interval]; ok {
		return label
	}
	return interval
}
