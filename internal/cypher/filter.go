package cypher

import (
	"fmt"
	"reflect"
	"strings"
)

// ComparisonOperator relates a node property to a filter value
type ComparisonOperator string

const (
	Equals           ComparisonOperator = "="
	NotEquals        ComparisonOperator = "<>"
	GreaterThan      ComparisonOperator = ">"
	GreaterThanEqual ComparisonOperator = ">="
	LessThan         ComparisonOperator = "<"
	LessThanEqual    ComparisonOperator = "<="
	In               ComparisonOperator = "IN"
	Contains         ComparisonOperator = "CONTAINS"
	StartingWith     ComparisonOperator = "STARTS WITH"
	EndingWith       ComparisonOperator = "ENDS WITH"
	IsNull           ComparisonOperator = "IS NULL"
	Exists           ComparisonOperator = "EXISTS"
	IsTrue           ComparisonOperator = "IS TRUE"
)

// Unary returns true for operators that take no value
func (c ComparisonOperator) Unary() bool {
	switch c {
	case IsNull, Exists, IsTrue:
		return true
	}
	return false
}

func (c ComparisonOperator) valid() bool {
	switch c {
	case Equals, NotEquals, GreaterThan, GreaterThanEqual, LessThan, LessThanEqual,
		In, Contains, StartingWith, EndingWith, IsNull, Exists, IsTrue:
		return true
	}
	return false
}

// BooleanOperator joins a filter to the one before it
type BooleanOperator string

const (
	And BooleanOperator = "AND"
	Or  BooleanOperator = "OR"
)

// Filter restricts matched nodes by one property
type Filter struct {
	Property   string
	Comparison ComparisonOperator
	Value      any
	Operator   BooleanOperator
	Negated    bool
}

// NewFilter creates an equality filter
func NewFilter(property string, value any) Filter {
	return Filter{Property: property, Comparison: Equals, Value: value, Operator: And}
}

// Compare creates a filter with an explicit comparison
func Compare(property string, comparison ComparisonOperator, value any) Filter {
	return Filter{Property: property, Comparison: comparison, Value: value, Operator: And}
}

// Not returns a negated copy of the filter
func (f Filter) Not() Filter {
	f.Negated = !f.Negated
	return f
}

// OrElse returns a copy joined to the previous filter with OR
func (f Filter) OrElse() Filter {
	f.Operator = Or
	return f
}

// Validate checks the filter is well formed
func (f Filter) Validate() error {
	if f.Property == "" {
		return fmt.Errorf("filter has no property")
	}
	if !f.Comparison.valid() {
		return fmt.Errorf("filter on %q has unknown comparison %q", f.Property, f.Comparison)
	}
	if f.Operator != "" && f.Operator != And && f.Operator != Or {
		return fmt.Errorf("filter on %q has unknown boolean operator %q", f.Property, f.Operator)
	}
	if f.Comparison == In {
		kind := reflect.ValueOf(f.Value).Kind()
		if kind != reflect.Slice && kind != reflect.Array {
			return fmt.Errorf("filter on %q: IN needs a list value, got %T", f.Property, f.Value)
		}
	}
	return nil
}

// Filters is an ordered list of filters
type Filters []Filter

// And appends f joined with AND
func (fs Filters) And(f Filter) Filters {
	f.Operator = And
	return append(fs, f)
}

// Or appends f joined with OR
func (fs Filters) Or(f Filter) Filters {
	f.Operator = Or
	return append(fs, f)
}

// Validate checks every filter
func (fs Filters) Validate() error {
	for _, f := range fs {
		if err := f.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Properties lists the property keys the filters reference
func (fs Filters) Properties() []string {
	props := make([]string, 0, len(fs))
	for _, f := range fs {
		props = append(props, f.Property)
	}
	return props
}

// ParameterName returns the parameter name used for the i-th filter
func ParameterName(property string, i int) string {
	var b strings.Builder
	for _, r := range property {
		if r == '_' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return fmt.Sprintf("%s_%d", b.String(), i)
}

// predicate renders the boolean expression for the filters on alias
func (fs Filters) predicate(alias string) string {
	var b strings.Builder
	for i, f := range fs {
		if i > 0 {
			op := f.Operator
			if op == "" {
				op = And
			}
			fmt.Fprintf(&b, " %s ", op)
		}
		if f.Negated {
			b.WriteString("NOT ")
		}
		b.WriteString("(")
		b.WriteString(f.expression(alias, ParameterName(f.Property, i)))
		b.WriteString(")")
	}
	return b.String()
}

func (f Filter) expression(alias, param string) string {
	prop := alias + "." + Quote(f.Property)
	switch f.Comparison {
	case IsNull:
		return prop + " IS NULL"
	case Exists:
		return prop + " IS NOT NULL"
	case IsTrue:
		return prop + " = true"
	default:
		return fmt.Sprintf("%s %s $%s", prop, f.Comparison, param)
	}
}

// parameters returns the values bound by the filters
func (fs Filters) parameters() map[string]any {
	params := make(map[string]any, len(fs))
	for i, f := range fs {
		if f.Comparison.Unary() {
			continue
		}
		params[ParameterName(f.Property, i)] = f.Value
	}
	return params
}

// shape describes the filters without their values
func (fs Filters) shape() string {
	var b strings.Builder
	for _, f := range fs {
		fmt.Fprintf(&b, "%s|%s|%s|%t;", f.Operator, f.Property, f.Comparison, f.Negated)
	}
	return b.String()
}

// Quote escapes an identifier with backticks
func Quote(identifier string) string {
	return "`" + strings.ReplaceAll(identifier, "`", "``") + "`"
}
