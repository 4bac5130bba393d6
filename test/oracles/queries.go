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
			Name: "O1_status_matches_history",
			SQL: `SELECT c.reference_id, c.status, h.status FROM claims c
                  JOIN LATERAL (
                      SELECT status FROM claim_status_history
                      WHERE claim_ref = c.reference_id ORDER BY seq DESC LIMIT 1) h ON true
                  WHERE h.status <> c.status`,
		},
		{
			Name: "O2_history_gap_free",
			SQL: `WITH seqs AS (
                      SELECT claim_ref, seq,
                             ROW_NUMBER() OVER (PARTITION BY claim_ref ORDER BY seq) AS n
                      FROM claim_status_history)
                  SELECT * FROM seqs WHERE seq <> n`,
		},
		{
			Name: "O3_history_starts_received",
			SQL: `SELECT claim_ref, status FROM claim_status_history
                  WHERE seq = 1 AND status <> 'received'`,
		},
		{
			Name: "O4_history_legal_edges",
			SQL: `WITH steps AS (
                      SELECT claim_ref, seq, status,
                             LAG(status) OVER (PARTITION BY claim_ref ORDER BY seq) AS prev
                      FROM claim_status_history)
                  SELECT claim_ref, seq, prev, status FROM steps
                  WHERE prev IS NOT NULL
                    AND NOT (status = 'rejected' AND prev NOT IN ('finalized','rejected'))
                    AND (prev, status) NOT IN (
                        ('received','processing'),
                        ('processing','waiting_for_employer'),
                        ('processing','verified'),
                        ('waiting_for_employer','verified'),
                        ('verified','tax_calculated'),
                        ('tax_calculated','finalized'))`,
		},
		{
			Name: "O5_single_open_verification",
			SQL: `SELECT claim_ref, COUNT(*) FROM verification_requests
                  WHERE status = 'pending'
                  GROUP BY claim_ref HAVING COUNT(*) > 1`,
		},
		{
			Name: "O6_completed_verification_has_response",
			SQL: `SELECT id, claim_ref FROM verification_requests
                  WHERE status = 'completed' AND (response IS NULL OR completed_at IS NULL)`,
		},
		{
			Name: "O7_tax_requires_verified",
			SQL: `SELECT t.claim_ref, c.status FROM tax_calculations t
                  JOIN claims c ON c.reference_id = t.claim_ref
                  WHERE NOT EXISTS (
                      SELECT 1 FROM claim_status_history h
                      WHERE h.claim_ref = t.claim_ref AND h.status = 'verified')`,
		},
		{
			Name: "O8_tax_total_consistent",
			SQL: `SELECT claim_ref, state_tax, federal_tax, total_tax FROM tax_calculations
                  WHERE total_tax <> state_tax + federal_tax`,
		},
		{
			Name: "O9_outbox_drains",
			SQL: `SELECT id::text, topic, attempts FROM outbox
                  WHERE status = 'pending' AND now() - created_at > interval '5 minutes'`,
		},
		{
			Name: "O10_completed_verification_moved_claim",
			SQL: `SELECT v.id::text, v.claim_ref FROM verification_requests v
                  WHERE v.status = 'completed'
                    AND NOT EXISTS (
                        SELECT 1 FROM claim_status_history h
                        WHERE h.claim_ref = v.claim_ref AND h.status = 'verified')`,
		},
		{
			Name: "O11_status_event_per_history_row",
			SQL: `WITH hist AS (
                      SELECT claim_ref, COUNT(*) AS n FROM claim_status_history GROUP BY claim_ref),
                  events AS (
                      SELECT payload->>'claimReferenceId' AS claim_ref, COUNT(*) AS n FROM outbox
                      WHERE topic = 'claim.status_changed' GROUP BY 1)
                  SELECT hist.claim_ref, hist.n, COALESCE(events.n, 0) FROM hist
                  LEFT JOIN events ON events.claim_ref = hist.claim_ref
                  WHERE hist.n <> COALESCE(events.n, 0)`,
		},
		{
			Name: "O12_cancelled_verification_claim_terminal",
			SQL: `SELECT v.id::text, v.claim_ref FROM verification_requests v
                  JOIN claims c ON c.reference_id = v.claim_ref
                  WHERE v.status = 'cancelled' AND c.status NOT IN ('finalized','rejected')`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
	}
	return "", "", nil
}
