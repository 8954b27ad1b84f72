// ./internal/state/auction_store.go
package state

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/folio-protocol/folio-core/internal/types"
)

// SaveAuction upserts an auction record. The full record is stored as JSONB;
// start/end and token columns are duplicated for indexed queries.
func SaveAuction(a *types.Auction) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	record, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal auction %d: %w", a.ID, err)
	}

	stmt := `
        INSERT INTO auctions (auction_id, sell_token, buy_token, record, start_time, end_time, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP)
        ON CONFLICT (auction_id) DO UPDATE SET
            sell_token = EXCLUDED.sell_token,
            buy_token = EXCLUDED.buy_token,
            record = EXCLUDED.record,
            start_time = EXCLUDED.start_time,
            end_time = EXCLUDED.end_time,
            updated_at = CURRENT_TIMESTAMP;`

	_, err = DB.Exec(stmt, a.ID, a.SellToken, a.BuyToken, record, a.Start, a.End)
	if err != nil {
		return fmt.Errorf("failed to upsert auction %d: %w", a.ID, err)
	}

	log.Debug().Uint64("auction_id", a.ID).Str("sell", a.SellToken).Str("buy", a.BuyToken).Msg("Saved auction")
	return nil
}

// LoadAuction reads a single auction record by ID.
func LoadAuction(auctionID uint64) (*types.Auction, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	var record []byte
	row := DB.QueryRow(`SELECT record FROM auctions WHERE auction_id = $1;`, auctionID)
	if err := row.Scan(&record); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no auction %d: %w", auctionID, err)
		}
		return nil, fmt.Errorf("failed to scan auction %d: %w", auctionID, err)
	}

	a := &types.Auction{}
	if err := json.Unmarshal(record, a); err != nil {
		return nil, fmt.Errorf("failed to unmarshal auction %d: %w", auctionID, err)
	}
	return a, nil
}

// LoadAllAuctions returns every stored auction, newest window first.
func LoadAllAuctions() ([]*types.Auction, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	rows, err := DB.Query(`SELECT record FROM auctions ORDER BY end_time DESC, auction_id DESC;`)
	if err != nil {
		return nil, fmt.Errorf("failed to query auctions: %w", err)
	}
	defer rows.Close()

	var auctions []*types.Auction
	for rows.Next() {
		var record []byte
		if err := rows.Scan(&record); err != nil {
			return nil, fmt.Errorf("failed to scan auction row: %w", err)
		}
		a := &types.Auction{}
		if err := json.Unmarshal(record, a); err != nil {
			return nil, fmt.Errorf("failed to unmarshal auction row: %w", err)
		}
		auctions = append(auctions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate auction rows: %w", err)
	}
	return auctions, nil
}

// LoadOpenAuctions returns auctions whose window contains now.
func LoadOpenAuctions(now int64) ([]*types.Auction, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT record FROM auctions
        WHERE start_time > 0 AND start_time <= $1 AND end_time >= $1
        ORDER BY auction_id;`

	rows, err := DB.Query(query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query open auctions: %w", err)
	}
	defer rows.Close()

	var auctions []*types.Auction
	for rows.Next() {
		var record []byte
		if err := rows.Scan(&record); err != nil {
			return nil, fmt.Errorf("failed to scan open auction row: %w", err)
		}
		a := &types.Auction{}
		if err := json.Unmarshal(record, a); err != nil {
			return nil, fmt.Errorf("failed to unmarshal open auction row: %w", err)
		}
		auctions = append(auctions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate open auction rows: %w", err)
	}
	return auctions, nil
}
