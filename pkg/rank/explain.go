package rank

import (
	"fmt"
	"strings"

	"github.com/elonfeng/feedrank/pkg/insight"
)

const maxExplanationFactors = 3

// Explain describes in one sentence why a post was recommended.
func Explain(rp insight.RankedPost) string {
	var factors []string

	if rp.QualityScore > 70 {
		factors = append(factors, "high-quality analysis")
	}
	if rp.AuthorReputationScore > 50 {
		factors = append(factors, "reputable author")
	}
	if rp.LikeCount > 10 {
		factors = append(factors, "strong community engagement")
	}
	if rp.HelpfulCount > 5 {
		factors = append(factors, "marked as helpful by users")
	}
	if rp.Ticker != "" {
		factors = append(factors, "relevant to "+rp.Ticker)
	}
	if rp.Sector != "" {
		factors = append(factors, fmt.Sprintf("covers %s sector", rp.Sector))
	}
	if len(factors) == 0 {
		factors = append(factors, "relevant content")
	}
	if len(factors) > maxExplanationFactors {
		factors = factors[:maxExplanationFactors]
	}

	return fmt.Sprintf("This post is recommended because it features %s.", strings.Join(factors, ", "))
}

// ExplainTop attaches explanations to the first n entries in place.
func ExplainTop(ranked []insight.RankedPost, n int) {
	for i := range ranked {
		if i >= n {
			return
		}
		ranked[i].Explanation = Explain(ranked[i])
	}
}
