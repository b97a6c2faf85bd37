package render

// FallbackSubstituter supplies a deterministic placeholder result when
// the provider's quota is permanently exhausted, so the pipeline still
// reaches a terminal, mergeable state.
type FallbackSubstituter struct {
	VideoURL string
	Duration float64
}

// FallbackResult is the placeholder clip content
type FallbackResult struct {
	URL        string
	Duration   float64
	Diagnostic string
}

// Substitute produces the placeholder result with its degraded-output notice
func (f FallbackSubstituter) Substitute() FallbackResult {
	return FallbackResult{
		URL:        f.VideoURL,
		Duration:   f.Duration,
		Diagnostic: "Quota exceeded. Used placeholder video.",
	}
}
