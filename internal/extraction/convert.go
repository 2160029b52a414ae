package extraction

import "github.com/custodia-labs/searchapi/internal/core/domain"

// ConvertValues switches a field to its custom type and runs the type's
// conversion callback on every value. Values the callback rejects are dropped.
func ConvertValues(f *domain.Field, info domain.DataTypeInfo) {
	if f.RealType == "" {
		return
	}
	f.Type = f.RealType
	if info.Convert == nil {
		return
	}
	out := make([]any, 0, len(f.Values))
	for _, v := range f.Values {
		if c, ok := info.Convert(v, f.OriginalType); ok {
			out = append(out, c)
		}
	}
	f.Values = out
}
