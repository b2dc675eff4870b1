package aggregate

// Function is a numeric aggregation function.
type Function string

// Aggregation function constants.
const (
	FuncSum   Function = "sum"
	FuncAvg   Function = "avg"
	FuncCount Function = "count"
	FuncMax   Function = "max"
	FuncMin   Function = "min"
)

// IsValid checks if the function is one of the supported values.
func (f Function) IsValid() bool {
	switch f {
	case FuncSum, FuncAvg, FuncCount, FuncMax, FuncMin:
		return true
	}
	return false
}
