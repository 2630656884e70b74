package embedded

import (
	"fmt"
	"reflect"
	"strings"

	"graphogm/internal/cypher"
)

// selectBuilder assembles a node SELECT with its arguments in text order
type selectBuilder struct {
	sql  strings.Builder
	args []any
}

func (b *selectBuilder) write(text string, args ...any) {
	b.sql.WriteString(text)
	b.args = append(b.args, args...)
}

// from writes the FROM clause, joining on label when one is given
func (b *selectBuilder) from(label string) {
	b.write(" FROM nodes n")
	if label != "" {
		b.write(" JOIN node_labels l ON l.node_id = n.id AND l.label = ?", label)
	}
}

// where writes the WHERE clause for ids and filters
func (b *selectBuilder) where(ids []int64, filters cypher.Filters) error {
	if len(ids) == 0 && len(filters) == 0 {
		return nil
	}
	b.write(" WHERE ")
	if len(ids) > 0 {
		b.write("n.id IN (" + placeholders(len(ids)) + ")")
		for _, id := range ids {
			b.args = append(b.args, id)
		}
		if len(filters) > 0 {
			b.write(" AND ")
		}
	}
	if len(filters) == 0 {
		return nil
	}

	b.write("(")
	for i, f := range filters {
		if i > 0 {
			op := f.Operator
			if op == "" {
				op = cypher.And
			}
			b.write(" " + string(op) + " ")
		}
		if f.Negated {
			b.write("NOT ")
		}
		b.write("(")
		if err := b.condition(f); err != nil {
			return err
		}
		b.write(")")
	}
	b.write(")")
	return nil
}

// condition writes one filter as SQL over the JSON properties column
func (b *selectBuilder) condition(f cypher.Filter) error {
	path := jsonPath(f.Property)
	extract := "json_extract(n.properties, ?)"

	switch f.Comparison {
	case cypher.Equals, cypher.NotEquals, cypher.GreaterThan, cypher.GreaterThanEqual,
		cypher.LessThan, cypher.LessThanEqual:
		b.write(extract+" "+string(f.Comparison)+" ?", path, sqlValue(f.Value))
	case cypher.In:
		values := listValues(f.Value)
		if len(values) == 0 {
			b.write("0")
			return nil
		}
		b.write(extract+" IN ("+placeholders(len(values))+")", path)
		for _, v := range values {
			b.args = append(b.args, sqlValue(v))
		}
	case cypher.Contains:
		b.write("json_type(n.properties, ?) = 'text' AND instr("+extract+", ?) > 0", path, path, f.Value)
	case cypher.StartingWith:
		b.write("json_type(n.properties, ?) = 'text' AND substr("+extract+", 1, length(?)) = ?",
			path, path, f.Value, f.Value)
	case cypher.EndingWith:
		b.write("json_type(n.properties, ?) = 'text' AND (? = '' OR substr("+extract+", -length(?)) = ?)",
			path, f.Value, path, f.Value, f.Value)
	case cypher.IsNull:
		b.write(extract+" IS NULL", path)
	case cypher.Exists:
		b.write(extract+" IS NOT NULL", path)
	case cypher.IsTrue:
		b.write("json_type(n.properties, ?) = 'true'", path)
	default:
		return fmt.Errorf("unsupported comparison %q", f.Comparison)
	}
	return nil
}

// orderBy writes the ORDER BY clause; nulls sort last ascending like Cypher
func (b *selectBuilder) orderBy(sort *cypher.SortOrder) {
	b.write(" ORDER BY ")
	for _, c := range sort.Clauses() {
		nulls := "NULLS LAST"
		if c.Direction == cypher.Descending {
			nulls = "NULLS FIRST"
		}
		b.write("json_extract(n.properties, ?) "+string(c.Direction)+" "+nulls+", ", jsonPath(c.Property))
	}
	b.write("n.id")
}

// page writes LIMIT and OFFSET
func (b *selectBuilder) page(p *cypher.Pagination) {
	if p == nil {
		return
	}
	b.write(" LIMIT ? OFFSET ?", p.Size, p.Skip())
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func listValues(v any) []any {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil
	}
	values := make([]any, rv.Len())
	for i := range values {
		values[i] = rv.Index(i).Interface()
	}
	return values
}
