package aggregate

import "fmt"

// Kind names a precomputed aggregation family.
type Kind string

// Precomputed aggregation kinds.
const (
	KindTotalByProduct        Kind = "total-by-product"
	KindAveragePriceByProduct Kind = "average-price-by-product"
	KindCountByProduct        Kind = "count-by-product"
	KindTotalByCategory       Kind = "total-by-category"
	KindCountByCategory       Kind = "count-by-category"
	KindTotalByDate           Kind = "total-by-date"
)

// All returns every supported kind, in rebuild order.
func All() []Kind {
	return []Kind{
		KindTotalByProduct,
		KindAveragePriceByProduct,
		KindCountByProduct,
		KindTotalByCategory,
		KindCountByCategory,
		KindTotalByDate,
	}
}

// IsValid checks if the kind is one of the supported values.
func (k Kind) IsValid() bool {
	switch k {
	case KindTotalByProduct, KindAveragePriceByProduct, KindCountByProduct,
		KindTotalByCategory, KindCountByCategory, KindTotalByDate:
		return true
	}
	return false
}

// Function returns the aggregation function the kind is built from.
func (k Kind) Function() Function {
	switch k {
	case KindAveragePriceByProduct:
		return FuncAvg
	case KindCountByProduct, KindCountByCategory:
		return FuncCount
	default:
		return FuncSum
	}
}

// Describe renders the natural-language description stored alongside the value.
// The description is what gets embedded, so templates stay fixed per kind.
func (k Kind) Describe(subject string, value float64) string {
	switch k {
	case KindTotalByProduct:
		return fmt.Sprintf("The total sales of %s is %.2f.", subject, value)
	case KindAveragePriceByProduct:
		return fmt.Sprintf("The average price of %s is %.2f.", subject, value)
	case KindCountByProduct:
		return fmt.Sprintf("There are %.0f sales records for %s.", value, subject)
	case KindTotalByCategory:
		return fmt.Sprintf("The total sales in the %s category is %.2f.", subject, value)
	case KindCountByCategory:
		return fmt.Sprintf("There are %.0f records in the %s category.", value, subject)
	case KindTotalByDate:
		return fmt.Sprintf("The total sales during %s is %.2f.", subject, value)
	default:
		return fmt.Sprintf("The %s value for %s is %.2f.", string(k), subject, value)
	}
}

// PointID builds the deterministic vector point identifier for a
// (source, kind, subject) triple. Rebuilds overwrite by this key.
func PointID(sourceID string, k Kind, subjectID string) string {
	return fmt.Sprintf("%s:%s:%s", sourceID, k, subjectID)
}
