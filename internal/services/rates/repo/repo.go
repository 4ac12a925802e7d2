// Package repo provides Postgres bindings for the rates domain.Repo
package repo

import (
	"context"
	"fmt"

	"bazaar/internal/modkit/repokit"
	"bazaar/internal/services/rates/domain"
)

type (
	// PG is a Postgres binder for domain.Repo
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// Compile-time assertion: queries implements domain.Repo
var _ domain.Repo = (*queries)(nil)

// NewPG returns a Postgres binder for Repo
func NewPG() repokit.Binder[domain.Repo] { return PG{} }

// Bind implements repokit.Binder
func (PG) Bind(q repokit.Queryer) domain.Repo { return &queries{q: q} }

// CurrentRates reads the live rate table. Codes are stored uppercase; the
// defensive upper() keeps a stray lowercase row from shadowing a real one
func (r *queries) CurrentRates(ctx context.Context) ([]domain.Rate, error) {
	rows, err := r.q.Query(ctx, `
		SELECT upper(code), per_usd, updated_at
		FROM currency_rates
		WHERE per_usd > 0
		ORDER BY code
	`)
	if err != nil {
		return nil, fmt.Errorf("current rates: %w", err)
	}
	defer rows.Close()

	var out []domain.Rate
	for rows.Next() {
		var rt domain.Rate
		if err := rows.Scan(&rt.Code, &rt.PerUSD, &rt.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan rate: %w", err)
		}
		out = append(out, rt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rates: %w", err)
	}
	return out, nil
}
