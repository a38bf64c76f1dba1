package reconcile

// AppendManualContracts appends CRM manual contract entries to the
// reconciled table. Contracts have no subscription-platform identity, so
// every identifier is the zero sentinel and only the tax identifier and the
// configured plan label are populated. They are appended, never merged.
func AppendManualContracts(facts []SubscriptionFact, taxIDs []string, planLabel string) []SubscriptionFact {
	for _, taxID := range taxIDs {
		facts = append(facts, SubscriptionFact{
			PlanName: planLabel,
			TaxID:    StringTaxID(taxID),
			Manual:   true,
		})
	}
	return facts
}
