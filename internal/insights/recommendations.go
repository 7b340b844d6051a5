package insights

// Recommend applies the fixed recommendation rules in order. An empty slice
// is a valid result.
func Recommend(overview Overview, diagnostics Diagnostics, predictions Predictions) []string {
	recs := []string{}
	if overview.PercentageChange > 10 {
		recs = append(recs, RecommendSpendingIncreased)
	}
	if len(diagnostics.Spikes) > 0 {
		recs = append(recs, RecommendUnusualSpikes)
	}
	if len(diagnostics.Subscriptions) > 2 {
		recs = append(recs, RecommendSubscriptions)
	}
	if len(predictions.Overruns) > 0 {
		recs = append(recs, RecommendBudgetOverrun)
	}
	return recs
}
