// Package backend holds helpers shared by the backend adapters.
package backend

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/searchapi/internal/core/domain"
)

// OptionFeatures lists optional features a server declares, such as
// "search_api_data_type_location".
const OptionFeatures = "features"

// Features returns the features declared in a server's options.
func Features(server domain.Server) map[string]bool {
	out := make(map[string]bool)
	switch v := server.Options[OptionFeatures].(type) {
	case []string:
		for _, f := range v {
			out[f] = true
		}
	case []any:
		for _, f := range v {
			if s, ok := f.(string); ok {
				out[s] = true
			}
		}
	case string:
		for _, f := range strings.Split(v, ",") {
			if f = strings.TrimSpace(f); f != "" {
				out[f] = true
			}
		}
	}
	return out
}

// FieldSignature describes the stored shape of an index: field ids with
// their types. Boosts are left out since they only affect queries.
func FieldSignature(index *domain.IndexConfig) string {
	parts := make([]string, 0, len(index.Fields))
	for _, id := range index.FieldIDs() {
		f := index.Fields[id]
		parts = append(parts, id+"="+f.Type+"/"+f.RealType)
	}
	sort.Strings(parts)
	return strings.Join(parts, ";")
}

// StoredType returns the type values of a field are stored as: the real
// type when the backend supports it, the configured type otherwise.
func StoredType(f domain.FieldConfig, supports func(string) bool) string {
	if f.RealType != "" && supports("search_api_data_type_"+f.RealType) {
		return f.RealType
	}
	return f.Type
}

// IsNumeric reports whether values of the type compare as numbers.
func IsNumeric(t string) bool {
	switch domain.ExtractInnerType(t) {
	case domain.TypeInteger, domain.TypeDecimal, domain.TypeDate:
		return true
	}
	return false
}

// ToFloat converts numbers, numeric strings, booleans and dates (as unix
// seconds) to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case time.Time:
		return float64(n.Unix()), true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return f, true
		}
		if t, err := time.Parse(time.RFC3339, n); err == nil {
			return float64(t.Unix()), true
		}
	}
	return 0, false
}

// ToString renders a scalar value as text.
func ToString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case time.Time:
		return s.Format(time.RFC3339)
	case fmt.Stringer:
		return s.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Compare orders two values of a field type. Numeric types compare as
// numbers, everything else as strings. It returns false when the values
// cannot be compared.
func Compare(fieldType string, a, b any) (int, bool) {
	if IsNumeric(fieldType) || domain.ExtractInnerType(fieldType) == domain.TypeBoolean {
		x, ok1 := ToFloat(a)
		y, ok2 := ToFloat(b)
		if !ok1 || !ok2 {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		default:
			return 0, true
		}
	}
	return strings.Compare(ToString(a), ToString(b)), true
}

// Matches reports whether any of values satisfies the filter.
// For OperatorNotEquals it reports whether none of them equals the value.
func Matches(fieldType string, values []any, f domain.Filter) bool {
	op := f.Operator
	if op == "" {
		op = domain.OperatorEquals
	}
	if op == domain.OperatorNotEquals {
		for _, v := range values {
			if c, ok := Compare(fieldType, v, f.Value); ok && c == 0 {
				return false
			}
		}
		return true
	}
	for _, v := range values {
		c, ok := Compare(fieldType, v, f.Value)
		if !ok {
			continue
		}
		switch op {
		case domain.OperatorEquals:
			if c == 0 {
				return true
			}
		case domain.OperatorLess:
			if c < 0 {
				return true
			}
		case domain.OperatorLessEq:
			if c <= 0 {
				return true
			}
		case domain.OperatorGreater:
			if c > 0 {
				return true
			}
		case domain.OperatorGreaterEq:
			if c >= 0 {
				return true
			}
		}
	}
	return false
}

// Page applies offset and limit to n results and returns the slice bounds.
// A limit of zero or less means no limit.
func Page(n, offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if offset > n {
		offset = n
	}
	end := n
	if limit > 0 && offset+limit < n {
		end = offset + limit
	}
	return offset, end
}
