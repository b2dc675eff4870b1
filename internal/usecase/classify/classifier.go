// Package classify turns a natural-language question into a structured
// classification using keyword and pattern heuristics. Classification is
// pure: same input, same output, no I/O, never an error.
package classify

import (
	"regexp"
	"strings"

	"github.com/datapilot-ai/datapilot/internal/domain/aggregate"
	"github.com/datapilot-ai/datapilot/internal/domain/classification"
)

// Classifier is stateless and safe for concurrent use.
type Classifier struct{}

// New creates a classifier.
func New() *Classifier {
	return &Classifier{}
}

var functionKeywords = []struct {
	keyword string
	fn      aggregate.Function
}{
	{"how many", aggregate.FuncCount},
	{"number of", aggregate.FuncCount},
	{"count", aggregate.FuncCount},
	{"average", aggregate.FuncAvg},
	{"mean", aggregate.FuncAvg},
	{"avg", aggregate.FuncAvg},
	{"total", aggregate.FuncSum},
	{"sum", aggregate.FuncSum},
	{"maximum", aggregate.FuncMax},
	{"highest", aggregate.FuncMax},
	{"most expensive", aggregate.FuncMax},
	{"max", aggregate.FuncMax},
	{"minimum", aggregate.FuncMin},
	{"lowest", aggregate.FuncMin},
	{"cheapest", aggregate.FuncMin},
	{"min", aggregate.FuncMin},
}

var filterKeywords = []string{
	"where",
	"filter",
	"filtered",
	"only",
	"whose",
	"matching",
	"category",
	"type is",
	"with the",
}

var complexityPhrases = []string{
	"compare",
	"comparison",
	"versus",
	" vs ",
	"trend",
	"over time",
	"breakdown",
	"break down",
	"group by",
	"grouped by",
	"correlation",
	"distribution",
	"forecast",
}

var (
	productRe = regexp.MustCompile(
		`\b(?:of|for|about)\s+(?:the\s+|each\s+|all\s+)?([a-z][a-z0-9' -]*?)(?:\s+(?:in|during|for|by|where|with|from|per)\b|[?.!,]|$)`)
	dateRe = regexp.MustCompile(
		`\b(?:in|during|for)\s+(?:the\s+)?((?:19|20)\d{2}|january|february|march|april|may|june|july|august|september|october|november|december|q[1-4](?:\s+(?:19|20)\d{2})?)\b`)
	categoryRe = regexp.MustCompile(
		`\b(?:category|type)\s+(?:is\s+|=\s*|:\s*)?"?([a-z][a-z0-9' -]*?)"?(?:\s+(?:in|during|where|with)\b|[?.!,]|$)`)
	locationRe = regexp.MustCompile(
		`\b(?:in|at)\s+(?:the\s+)?([a-z][a-z' -]*?)\s+(?:region|store|branch|office|warehouse|location)\b`)
)

// Not products: words the product pattern tends to capture from
// aggregation phrasing ("number of records", "sum of sales").
var genericTerms = map[string]bool{
	"records": true, "rows": true, "items": true, "entries": true,
	"sales": true, "orders": true, "data": true, "results": true,
	"products": true, "everything": true, "them": true, "those": true,
	"each": true, "all": true,
}

// Classify analyzes the question text and produces a classification.
func (c *Classifier) Classify(text string) classification.Classification {
	lower := strings.ToLower(strings.TrimSpace(text))

	fn, fnMatches := detectFunction(lower)
	entities := extractEntities(lower)
	hasFilter := detectFilter(lower, entities)
	hasAggregation := fnMatches > 0

	var qtype classification.Type
	switch {
	case hasAggregation && hasFilter:
		qtype = classification.TypeHybrid
	case hasAggregation:
		qtype = classification.TypeAggregation
	case hasFilter:
		qtype = classification.TypeFilter
	default:
		qtype = classification.TypeSemantic
	}

	kind := deriveKind(qtype, fn, entities, lower)

	cls := classification.Classification{
		Type:             qtype,
		Entities:         entities,
		Function:         fn,
		Kind:             kind,
		Complexity:       deriveComplexity(lower, entities, fnMatches),
		NeedsPrecomputed: kind != "" && (qtype == classification.TypeAggregation || qtype == classification.TypeHybrid),
	}
	cls.Confidence = deriveConfidence(cls, fnMatches)
	return cls
}

func detectFunction(lower string) (aggregate.Function, int) {
	var fn aggregate.Function
	matches := 0
	seen := map[aggregate.Function]bool{}
	for _, entry := range functionKeywords {
		if !strings.Contains(lower, entry.keyword) {
			continue
		}
		if seen[entry.fn] {
			continue
		}
		seen[entry.fn] = true
		matches++
		if fn == "" {
			fn = entry.fn
		}
	}
	return fn, matches
}

func detectFilter(lower string, entities classification.Entities) bool {
	for _, kw := range filterKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	// An explicit category or location narrows the result set even
	// without a filter verb.
	return entities.Category != "" || entities.Location != ""
}

func extractEntities(lower string) classification.Entities {
	var e classification.Entities

	if m := locationRe.FindStringSubmatch(lower); m != nil {
		e.Location = strings.TrimSpace(m[1])
	}
	if m := categoryRe.FindStringSubmatch(lower); m != nil {
		e.Category = strings.TrimSpace(m[1])
	}
	if m := dateRe.FindStringSubmatch(lower); m != nil {
		e.Date = strings.TrimSpace(m[1])
	}
	if m := productRe.FindStringSubmatch(lower); m != nil {
		candidate := strings.TrimSpace(m[1])
		if candidate != "" && !genericTerms[candidate] &&
			candidate != e.Category && candidate != e.Location && candidate != e.Date {
			e.Product = candidate
		}
	}
	return e
}

// deriveKind maps the (function, entity) combination onto a precomputable
// aggregation kind. Empty when the question does not line up with one.
func deriveKind(
	qtype classification.Type, fn aggregate.Function,
	entities classification.Entities, lower string,
) aggregate.Kind {
	if qtype != classification.TypeAggregation && qtype != classification.TypeHybrid {
		return ""
	}

	switch {
	case entities.Product != "":
		switch fn {
		case aggregate.FuncAvg:
			if strings.Contains(lower, "price") || strings.Contains(lower, "cost") {
				return aggregate.KindAveragePriceByProduct
			}
		case aggregate.FuncCount:
			return aggregate.KindCountByProduct
		case aggregate.FuncSum:
			return aggregate.KindTotalByProduct
		}
	case entities.Category != "":
		switch fn {
		case aggregate.FuncCount:
			return aggregate.KindCountByCategory
		case aggregate.FuncSum:
			return aggregate.KindTotalByCategory
		}
	case entities.Date != "":
		if fn == aggregate.FuncSum {
			return aggregate.KindTotalByDate
		}
	}
	return ""
}

func deriveComplexity(lower string, entities classification.Entities, fnMatches int) classification.Complexity {
	for _, phrase := range complexityPhrases {
		if strings.Contains(lower, phrase) {
			return classification.ComplexityHigh
		}
	}
	if entities.Count() > 1 || fnMatches > 1 {
		return classification.ComplexityMedium
	}
	return classification.ComplexityLow
}

// deriveConfidence starts from a 0.7 baseline and nudges it by how well
// the signals agree, clamped to [0, 1].
func deriveConfidence(cls classification.Classification, fnMatches int) float64 {
	conf := 0.7
	switch cls.Type {
	case classification.TypeAggregation:
		if cls.Function != "" {
			conf += 0.1
		}
		if cls.Kind != "" {
			conf += 0.05
		}
	case classification.TypeFilter:
		if !cls.Entities.IsEmpty() {
			conf += 0.1
		}
	case classification.TypeHybrid:
		conf -= 0.05
		if cls.Kind != "" {
			conf += 0.05
		}
	}
	if cls.Entities.Count() > 0 {
		conf += 0.05
	}
	if fnMatches > 1 {
		conf -= 0.05
	}
	if conf > 1 {
		conf = 1
	}
	if conf < 0 {
		conf = 0
	}
	return conf
}
