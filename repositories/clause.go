package repositories

import (
	"fmt"
	"strings"
)

// Condition is one predicate of a content listing filter. Conditions are
// compiled to parameterized SQL fragments; bound values keep the order in
// which conditions (and their members) were given.
type Condition interface {
	write(b *strings.Builder, args *[]interface{})
}

// Equals compares a column against a value. A nil value compiles to
// IS NOT DISTINCT FROM, so filtering on parent_id = nil matches root rows.
type Equals struct {
	Column string
	Value  interface{}
}

func (e Equals) write(b *strings.Builder, args *[]interface{}) {
	if e.Value == nil {
		fmt.Fprintf(b, "contents.%s IS NOT DISTINCT FROM ?", e.Column)
		*args = append(*args, nil)
		return
	}
	fmt.Fprintf(b, "contents.%s = ?", e.Column)
	*args = append(*args, e.Value)
}

// Or joins its members with OR inside one parenthesized group.
type Or []Equals

func (o Or) write(b *strings.Builder, args *[]interface{}) {
	b.WriteString("(")
	for i, alt := range o {
		if i > 0 {
			b.WriteString(" OR ")
		}
		fmt.Fprintf(b, "contents.%s = ?", alt.Column)
		*args = append(*args, alt.Value)
	}
	b.WriteString(")")
}

// NotNull requires every listed column to be non-null.
type NotNull []string

func (n NotNull) write(b *strings.Builder, _ *[]interface{}) {
	for i, column := range n {
		if i > 0 {
			b.WriteString(" AND ")
		}
		fmt.Fprintf(b, "contents.%s IS NOT NULL", column)
	}
}

// OwnerUsername resolves a username case-insensitively through the users
// table instead of requiring callers to know the owner id.
type OwnerUsername struct {
	Username string
}

func (o OwnerUsername) write(b *strings.Builder, args *[]interface{}) {
	b.WriteString(ownerUsernameSubquery)
	*args = append(*args, o.Username)
}

const ownerUsernameSubquery = `contents.owner_id = (SELECT id FROM users WHERE LOWER(username) = LOWER(?) LIMIT 1)`

// BuildWhere compiles a condition list into a WHERE clause and its bound
// values. An empty list yields an empty clause.
func BuildWhere(conditions []Condition) (string, []interface{}) {
	if len(conditions) == 0 {
		return "", nil
	}

	var b strings.Builder
	args := make([]interface{}, 0, len(conditions))
	b.WriteString("WHERE ")
	for i, condition := range conditions {
		if i > 0 {
			b.WriteString(" AND ")
		}
		condition.write(&b, &args)
	}
	return b.String(), args
}
