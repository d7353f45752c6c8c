// Package oracles holds the SQL invariant checks run against a live
// database while actors hammer the engine. Each query returns rows only
// when its invariant is violated.
package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_no_transition_out_of_terminal",
			SQL: `SELECT * FROM offer_status_history
                  WHERE from_status IN ('accepted','rejected','expired')`,
		},
		{
			Name: "O2_history_chain_connected",
			SQL: `WITH chain AS (
                      SELECT offer_id, from_status, to_status,
                             LAG(to_status) OVER (PARTITION BY offer_id ORDER BY id) AS prev_to
                      FROM offer_status_history)
                  SELECT * FROM chain
                  WHERE (prev_to IS NULL AND from_status <> 'pending')
                     OR (prev_to IS NOT NULL AND from_status <> prev_to)`,
		},
		{
			Name: "O3_status_matches_last_history_row",
			SQL: `SELECT o.id, o.status, h.to_status FROM offers o
                  JOIN LATERAL (
                      SELECT to_status FROM offer_status_history
                      WHERE offer_id = o.id ORDER BY id DESC LIMIT 1
                  ) h ON TRUE
                  WHERE o.status <> h.to_status`,
		},
		{
			Name: "O4_tags_distinct",
			SQL: `SELECT id, notifications_sent FROM offers
                  WHERE array_length(notifications_sent, 1) IS NOT NULL
                    AND array_length(notifications_sent, 1) <>
                        (SELECT COUNT(DISTINCT t) FROM unnest(notifications_sent) AS t)`,
		},
		{
			Name: "O5_single_customer_decision",
			SQL: `SELECT offer_id, COUNT(*) FROM offer_status_history
                  WHERE trigger = 'customerAction'
                  GROUP BY offer_id HAVING COUNT(*) > 1`,
		},
	}
}

// Run executes every oracle and returns the name and first offending row
// of the first one that fails.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return "", "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		if rows.Next() {
			values, _ := rows.Values()
			rows.Close()
			return o.Name, fmt.Sprintf("%v", values), nil
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return "", "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		rows.Close()
	}
	return "", "", nil
}
