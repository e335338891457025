package mapboxglstyle

import (
	"github.com/jamesrr39/goutil/errorsx"
)

const (
	FilterOperatorEquals       = "=="
	FilterOperatorNotEqual     = "!="
	FilterOperatorLess         = "<"
	FilterOperatorLessEqual    = "<="
	FilterOperatorGreater      = ">"
	FilterOperatorGreaterEqual = ">="
	FilterOperatorAny          = "any"
	FilterOperatorAll          = "all"
	FilterOperatorNone         = "none"
	FilterOperatorIn           = "in"
	FilterOperatorNotIn        = "!in"
	FilterOperatorHas          = "has"
	FilterOperatorNotHas       = "!has"
)

/*
	"filter": ["==", "$type", "Point"],

	"filter": ["all",["==","$type","Polygon"],["in","class","residential","suburb","neighbourhood"]]

	"filter": ["==", ["get", "class"], "river"]
*/

type Filter interface{}

// ValidateFilter checks the shape of a filter: an array, with an operator as the first item.
// Comparison filters also have their arity checked, in both the legacy and the expression form.
// Other expression filters are passed through to the engine after the operator check.
func ValidateFilter(filter Filter) errorsx.Error {
	base, err := filterToSlice(filter)
	if err != nil {
		return err
	}

	if len(base) == 0 {
		return errorsx.Errorf("filter is empty")
	}

	operator, ok := base[0].(string)
	if !ok {
		return errorsx.Errorf("filter operator must be a string but was %T", base[0])
	}

	switch operator {
	case FilterOperatorAny, FilterOperatorAll, FilterOperatorNone:
		for _, subFilter := range base[1:] {
			switch subFilter.(type) {
			case []interface{}, []string:
				err := ValidateFilter(subFilter)
				if err != nil {
					return errorsx.Wrap(err, "operator", operator)
				}
			default:
				// literals, such as ["all", true], are valid expressions
			}
		}
		return nil
	case FilterOperatorEquals, FilterOperatorNotEqual,
		FilterOperatorLess, FilterOperatorLessEqual,
		FilterOperatorGreater, FilterOperatorGreaterEqual:
		if len(base) < 3 {
			return errorsx.Errorf("filter operator %q takes at least 2 arguments but was given %d", operator, len(base)-1)
		}
		if _, isKey := base[1].(string); isKey && len(base) != 3 {
			// legacy form: ["==", key, value]
			return errorsx.Errorf("filter operator %q takes 2 arguments but was given %d", operator, len(base)-1)
		}
		if len(base) > 4 {
			// expression form: ["==", a, b] or ["==", a, b, collator]
			return errorsx.Errorf("filter operator %q takes at most 3 arguments but was given %d", operator, len(base)-1)
		}
		return nil
	case FilterOperatorIn, FilterOperatorNotIn, FilterOperatorHas, FilterOperatorNotHas:
		if len(base) < 2 {
			return errorsx.Errorf("filter operator %q needs a key", operator)
		}
		return nil
	default:
		// expression syntax, ["get", "class"], ["match", ...] etc.
		if operator == "" {
			return errorsx.Errorf("filter operator is empty")
		}
		return nil
	}
}

func filterToSlice(filter Filter) ([]interface{}, errorsx.Error) {
	switch f := filter.(type) {
	case []interface{}:
		return f, nil
	case []string:
		base := make([]interface{}, len(f))
		for i, item := range f {
			base[i] = item
		}
		return base, nil
	case nil:
		return nil, errorsx.Errorf("filter is null")
	default:
		return nil, errorsx.Errorf("filter must be an array but was %T", filter)
	}
}
