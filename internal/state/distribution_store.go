// ./internal/state/distribution_store.go
package state

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/folio-protocol/folio-core/internal/types"
)

// SaveDistribution upserts a fee distribution snapshot. The crank mutates
// only the distributed flags and the closed bit, but the whole row is
// rewritten for simplicity.
func SaveDistribution(d *types.FeeDistributionSnapshot) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	recipientsJSON, err := json.Marshal(d.Recipients)
	if err != nil {
		return fmt.Errorf("failed to marshal distribution recipients: %w", err)
	}

	stmt := `
        INSERT INTO fee_distributions (
            distribution_id, amount_to_distribute, recipients, distributed, initiator, closed, updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP)
        ON CONFLICT (distribution_id) DO UPDATE SET
            distributed = EXCLUDED.distributed,
            closed = EXCLUDED.closed,
            updated_at = CURRENT_TIMESTAMP;`

	_, err = DB.Exec(stmt,
		d.ID, d.AmountToDistribute.String(), recipientsJSON,
		pq.Array(d.Distributed), d.Initiator, d.Closed,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert distribution %s: %w", d.ID, err)
	}

	log.Debug().Str("distribution_id", d.ID.String()).Bool("closed", d.Closed).Msg("Saved fee distribution")
	return nil
}

// LoadDistribution reads one distribution snapshot by ID.
func LoadDistribution(id uuid.UUID) (*types.FeeDistributionSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT amount_to_distribute, recipients, distributed, initiator, closed
        FROM fee_distributions
        WHERE distribution_id = $1;`

	d := &types.FeeDistributionSnapshot{ID: id}
	var (
		amountStr      string
		recipientsJSON []byte
		distributed    pq.BoolArray
	)
	row := DB.QueryRow(query, id)
	err := row.Scan(&amountStr, &recipientsJSON, &distributed, &d.Initiator, &d.Closed)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no distribution %s: %w", id, err)
		}
		return nil, fmt.Errorf("failed to scan distribution %s: %w", id, err)
	}

	if d.AmountToDistribute, err = scanInt("amount_to_distribute", amountStr); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(recipientsJSON, &d.Recipients); err != nil {
		return nil, fmt.Errorf("failed to unmarshal distribution recipients for %s: %w", id, err)
	}
	d.Distributed = []bool(distributed)
	return d, nil
}

// LoadOpenDistributions returns every distribution the crank has not closed.
func LoadOpenDistributions() ([]*types.FeeDistributionSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT distribution_id, amount_to_distribute, recipients, distributed, initiator, closed
        FROM fee_distributions
        WHERE NOT closed
        ORDER BY created_at;`

	rows, err := DB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query open distributions: %w", err)
	}
	defer rows.Close()

	var distributions []*types.FeeDistributionSnapshot
	for rows.Next() {
		d := &types.FeeDistributionSnapshot{}
		var (
			amountStr      string
			recipientsJSON []byte
			distributed    pq.BoolArray
		)
		if err := rows.Scan(&d.ID, &amountStr, &recipientsJSON, &distributed, &d.Initiator, &d.Closed); err != nil {
			return nil, fmt.Errorf("failed to scan open distribution row: %w", err)
		}
		if d.AmountToDistribute, err = scanInt("amount_to_distribute", amountStr); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(recipientsJSON, &d.Recipients); err != nil {
			return nil, fmt.Errorf("failed to unmarshal open distribution recipients: %w", err)
		}
		d.Distributed = []bool(distributed)
		distributions = append(distributions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate open distribution rows: %w", err)
	}
	return distributions, nil
}
