// Package numbering holds maintenance jobs for document number sequences
package numbering

import (
	"context"
	"fmt"
	"sort"

	domain "github.com/invoiced/backend/internal/domain/numbering"
	"github.com/invoiced/backend/internal/domain/shared"
	"github.com/invoiced/backend/internal/domain/tenancy"
	"go.uber.org/zap"
)

// NumberSource lists stored document numbers across every tenant
type NumberSource interface {
	ScanAllTenants(ctx context.Context, objectType domain.ObjectType, fn func(tenantID shared.TenantID, number string) error) error
}

// Advance records a counter moved forward by the reconciler
type Advance struct {
	Key  domain.Key
	From int64
	To   int64
}

// Result summarizes one reconciliation run
type Result struct {
	Scanned  int
	Unparsed int
	Advanced []Advance
}

// Reconciler moves lagging sequence counters past the highest number that is
// actually stored, e.g. after a restored backup or a manual data fix.
// Counters are never lowered.
type Reconciler struct {
	gen    *domain.Generator
	source NumberSource
	types  []domain.ObjectType
	logger *zap.Logger
}

// NewReconciler creates a Reconciler for the given object types
func NewReconciler(gen *domain.Generator, source NumberSource, logger *zap.Logger, types ...domain.ObjectType) *Reconciler {
	if len(types) == 0 {
		types = []domain.ObjectType{
			domain.ObjectTypeCustomer,
			domain.ObjectTypeInvoice,
			domain.ObjectTypeCreditNote,
			domain.ObjectTypeEstimate,
		}
	}
	return &Reconciler{gen: gen, source: source, types: types, logger: logger}
}

// Run reconciles every tenant's sequences
func (r *Reconciler) Run(ctx context.Context) (*Result, error) {
	res := &Result{}
	for _, objectType := range r.types {
		if err := r.reconcile(ctx, objectType, res); err != nil {
			return res, fmt.Errorf("reconcile %s: %w", objectType, err)
		}
	}
	r.logger.Info("numbering reconciliation finished",
		zap.Int("scanned", res.Scanned),
		zap.Int("unparsed", res.Unparsed),
		zap.Int("advanced", len(res.Advanced)),
	)
	return res, nil
}

func (r *Reconciler) reconcile(ctx context.Context, objectType domain.ObjectType, res *Result) error {
	numbers := make(map[shared.TenantID][]string)
	err := r.source.ScanAllTenants(ctx, objectType, func(tenantID shared.TenantID, number string) error {
		numbers[tenantID] = append(numbers[tenantID], number)
		res.Scanned++
		return nil
	})
	if err != nil {
		return err
	}

	tenants := make([]shared.TenantID, 0, len(numbers))
	for id := range numbers {
		tenants = append(tenants, id)
	}
	sort.Slice(tenants, func(i, j int) bool { return tenants[i] < tenants[j] })

	for _, tenantID := range tenants {
		if err := ctx.Err(); err != nil {
			return err
		}
		tctx := tenancy.ForTenant(ctx, tenantID)
		seq := r.gen.For(tenantID, objectType)
		st, err := seq.Inspect(tctx)
		if err != nil {
			return err
		}

		var highest int64
		for _, number := range numbers[tenantID] {
			n, ok := domain.ParseNumber(st.Template, number)
			if !ok {
				res.Unparsed++
				continue
			}
			highest = max(highest, n)
		}
		if highest < st.Next {
			continue
		}

		if err := seq.Write(tctx, highest+1); err != nil {
			return fmt.Errorf("advance %s: %w", seq.Key(), err)
		}
		res.Advanced = append(res.Advanced, Advance{Key: seq.Key(), From: st.Next, To: highest + 1})
		r.logger.Warn("advanced lagging numbering sequence",
			zap.String("sequence", seq.Key().String()),
			zap.Int64("from", st.Next),
			zap.Int64("to", highest+1),
		)
	}
	return nil
}
