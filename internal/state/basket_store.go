// ./internal/state/basket_store.go
package state

import (
	"database/sql"
	"encoding/json"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/folio-protocol/folio-core/internal/types"
)

// SaveBasketState upserts the fee bookkeeping row for one basket.
// TotalSupply is persisted alongside so the status API can price limits
// without a second source of truth.
func SaveBasketState(basketID uint64, s types.BasketState, totalSupply sdkmath.Int, recipients []types.FeeRecipient) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	recipientsJSON, err := json.Marshal(recipients)
	if err != nil {
		return fmt.Errorf("failed to marshal fee recipients: %w", err)
	}

	stmt := `
        INSERT INTO basket_state (
            basket_id, tvl_fee_rate, mint_fee_rate,
            dao_pending_fee_shares, fee_recipients_pending_fee_shares,
            last_poke, total_supply, fee_recipients, updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, CURRENT_TIMESTAMP)
        ON CONFLICT (basket_id) DO UPDATE SET
            tvl_fee_rate = EXCLUDED.tvl_fee_rate,
            mint_fee_rate = EXCLUDED.mint_fee_rate,
            dao_pending_fee_shares = EXCLUDED.dao_pending_fee_shares,
            fee_recipients_pending_fee_shares = EXCLUDED.fee_recipients_pending_fee_shares,
            last_poke = EXCLUDED.last_poke,
            total_supply = EXCLUDED.total_supply,
            fee_recipients = EXCLUDED.fee_recipients,
            updated_at = CURRENT_TIMESTAMP;`

	_, err = DB.Exec(stmt,
		basketID,
		s.TVLFeeRate.String(), s.MintFeeRate.String(),
		s.DAOPendingFeeShares.String(), s.FeeRecipientsPendingFeeShares.String(),
		s.LastPoke, totalSupply.String(), recipientsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert basket state for basket %d: %w", basketID, err)
	}

	log.Debug().Uint64("basket_id", basketID).Int64("last_poke", s.LastPoke).Msg("Saved basket state")
	return nil
}

// LoadBasketState reads the fee bookkeeping row for one basket. Returns
// sql.ErrNoRows wrapped if the basket has never been persisted.
func LoadBasketState(basketID uint64) (types.BasketState, sdkmath.Int, []types.FeeRecipient, error) {
	var s types.BasketState
	if DB == nil {
		return s, sdkmath.Int{}, nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT tvl_fee_rate, mint_fee_rate,
               dao_pending_fee_shares, fee_recipients_pending_fee_shares,
               last_poke, total_supply, fee_recipients
        FROM basket_state
        WHERE basket_id = $1;`

	var (
		tvlFeeRate, mintFeeRate       string
		daoPending, recipientsPending string
		totalSupplyStr                string
		recipientsJSON                []byte
	)
	row := DB.QueryRow(query, basketID)
	err := row.Scan(&tvlFeeRate, &mintFeeRate, &daoPending, &recipientsPending,
		&s.LastPoke, &totalSupplyStr, &recipientsJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return s, sdkmath.Int{}, nil, fmt.Errorf("no basket state for basket %d: %w", basketID, err)
		}
		return s, sdkmath.Int{}, nil, fmt.Errorf("failed to scan basket state for basket %d: %w", basketID, err)
	}

	if s.TVLFeeRate, err = scanInt("tvl_fee_rate", tvlFeeRate); err != nil {
		return s, sdkmath.Int{}, nil, err
	}
	if s.MintFeeRate, err = scanInt("mint_fee_rate", mintFeeRate); err != nil {
		return s, sdkmath.Int{}, nil, err
	}
	if s.DAOPendingFeeShares, err = scanInt("dao_pending_fee_shares", daoPending); err != nil {
		return s, sdkmath.Int{}, nil, err
	}
	if s.FeeRecipientsPendingFeeShares, err = scanInt("fee_recipients_pending_fee_shares", recipientsPending); err != nil {
		return s, sdkmath.Int{}, nil, err
	}
	totalSupply, err := scanInt("total_supply", totalSupplyStr)
	if err != nil {
		return s, sdkmath.Int{}, nil, err
	}

	var recipients []types.FeeRecipient
	if err := json.Unmarshal(recipientsJSON, &recipients); err != nil {
		return s, sdkmath.Int{}, nil, fmt.Errorf("failed to unmarshal fee recipients for basket %d: %w", basketID, err)
	}

	log.Debug().Uint64("basket_id", basketID).Msg("Loaded basket state")
	return s, totalSupply, recipients, nil
}

// RecordPoke appends one entry to the poke log.
func RecordPoke(basketID uint64, pokeTimestamp, elapsedSeconds int64, feeSharesMinted, daoShares sdkmath.Int) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	stmt := `
        INSERT INTO poke_log (basket_id, poke_timestamp, elapsed_seconds, fee_shares_minted, dao_shares)
        VALUES ($1, $2, $3, $4, $5);`

	_, err := DB.Exec(stmt, basketID, pokeTimestamp, elapsedSeconds,
		feeSharesMinted.String(), daoShares.String())
	if err != nil {
		return fmt.Errorf("failed to record poke for basket %d: %w", basketID, err)
	}
	return nil
}

// PokeLogEntry is one row of the keeper's accrual history.
type PokeLogEntry struct {
	BasketID        uint64      `json:"basket_id"`
	PokeTimestamp   int64       `json:"poke_timestamp"`
	ElapsedSeconds  int64       `json:"elapsed_seconds"`
	FeeSharesMinted sdkmath.Int `json:"fee_shares_minted"`
	DAOShares       sdkmath.Int `json:"dao_shares"`
}

// LoadRecentPokes returns the most recent poke log entries for a basket,
// newest first.
func LoadRecentPokes(basketID uint64, limit int) ([]PokeLogEntry, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT basket_id, poke_timestamp, elapsed_seconds, fee_shares_minted, dao_shares
        FROM poke_log
        WHERE basket_id = $1
        ORDER BY poke_timestamp DESC
        LIMIT $2;`

	rows, err := DB.Query(query, basketID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query poke log for basket %d: %w", basketID, err)
	}
	defer rows.Close()

	var entries []PokeLogEntry
	for rows.Next() {
		var e PokeLogEntry
		var minted, dao string
		if err := rows.Scan(&e.BasketID, &e.PokeTimestamp, &e.ElapsedSeconds, &minted, &dao); err != nil {
			return nil, fmt.Errorf("failed to scan poke log row: %w", err)
		}
		if e.FeeSharesMinted, err = scanInt("fee_shares_minted", minted); err != nil {
			return nil, err
		}
		if e.DAOShares, err = scanInt("dao_shares", dao); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate poke log rows: %w", err)
	}
	return entries, nil
}
