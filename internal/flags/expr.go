// Package flags models data-quality segment queries as an explicit
// boolean expression tree over named flags, evaluated with interval
// algebra against a segment store. Building the query as a tree keeps
// its construction testable without a live database.
package flags

import (
	"context"
	"fmt"
	"sort"

	"github.com/alecgunny/pyomicron/internal/model"
)

// Store answers which intervals of a range a single named flag was
// active for. Implementations query the external segment database and
// are treated as read-only and possibly stale.
type Store interface {
	Query(ctx context.Context, flag string, within model.Range) ([]model.Range, error)
}

// Expr is a boolean expression over named flags. Eval returns the
// normalized intervals of within for which the expression holds.
type Expr interface {
	Eval(ctx context.Context, store Store, within model.Range) ([]model.Range, error)
	Names() []string
	String() string
}

// Flag is a single named data-quality flag.
type Flag string

func (f Flag) Eval(ctx context.Context, store Store, within model.Range) ([]model.Range, error) {
	ranges, err := store.Query(ctx, string(f), within)
	if err != nil {
		return nil, fmt.Errorf("query flag %s: %w", f, err)
	}
	clipped := make([]model.Range, 0, len(ranges))
	for _, r := range ranges {
		if c := r.Intersect(within); c.Duration() > 0 {
			clipped = append(clipped, c)
		}
	}
	return model.Normalize(clipped), nil
}

func (f Flag) Names() []string { return []string{string(f)} }
func (f Flag) String() string  { return string(f) }

// And holds where both operands hold.
type And struct{ L, R Expr }

func (a And) Eval(ctx context.Context, store Store, within model.Range) ([]model.Range, error) {
	left, err := a.L.Eval(ctx, store, within)
	if err != nil {
		return nil, err
	}
	right, err := a.R.Eval(ctx, store, within)
	if err != nil {
		return nil, err
	}
	return model.Intersect(left, right), nil
}

func (a And) Names() []string { return mergeNames(a.L, a.R) }
func (a And) String() string  { return fmt.Sprintf("(%s & %s)", a.L, a.R) }

// Or holds where either operand holds.
type Or struct{ L, R Expr }

func (o Or) Eval(ctx context.Context, store Store, within model.Range) ([]model.Range, error) {
	left, err := o.L.Eval(ctx, store, within)
	if err != nil {
		return nil, err
	}
	right, err := o.R.Eval(ctx, store, within)
	if err != nil {
		return nil, err
	}
	return model.Union(left, right), nil
}

func (o Or) Names() []string { return mergeNames(o.L, o.R) }
func (o Or) String() string  { return fmt.Sprintf("(%s | %s)", o.L, o.R) }

// Not holds where the operand does not, acting as a veto.
type Not struct{ X Expr }

func (n Not) Eval(ctx context.Context, store Store, within model.Range) ([]model.Range, error) {
	inner, err := n.X.Eval(ctx, store, within)
	if err != nil {
		return nil, err
	}
	return model.Complement(inner, within), nil
}

func (n Not) Names() []string { return n.X.Names() }
func (n Not) String() string  { return fmt.Sprintf("!%s", n.X) }

func mergeNames(exprs ...Expr) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range exprs {
		for _, name := range e.Names() {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	sort.Strings(out)
	return out
}
