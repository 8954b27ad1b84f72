// ./internal/state/parameters_store.go
package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/folio-protocol/folio-core/internal/types"
)

// SaveProtocolParameters saves a new version of protocol parameters.
func SaveProtocolParameters(params types.ProtocolParameters, configName string, version int, makeActive bool) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	payload, err := json.Marshal(params)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal protocol parameters: %w", err)
	}

	tx, err := DB.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p) // Re-panic after rollback
		} else if err != nil {
			tx.Rollback() // Rollback if error occurred
		}
	}()

	if makeActive {
		stmtDeactivate := `UPDATE protocol_parameters SET is_active = FALSE WHERE config_name = $1 AND is_active = TRUE;`
		_, err = tx.Exec(stmtDeactivate, configName)
		if err != nil {
			return 0, fmt.Errorf("failed to deactivate existing active parameters for %s: %w", configName, err)
		}
	}

	stmt := `
        INSERT INTO protocol_parameters (version, config_name, is_active, activated_at, created_at, params)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING params_id;`

	var paramsID int64
	currentTime := time.Now()
	err = tx.QueryRow(stmt, version, configName, makeActive, currentTime, currentTime, payload).Scan(&paramsID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert protocol parameters: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Info().
		Int("version", version).
		Str("config", configName).
		Int64("params_id", paramsID).
		Bool("active", makeActive).
		Msg("Saved protocol parameters")
	return paramsID, nil
}

// LoadActiveProtocolParameters loads the currently active protocol parameters.
func LoadActiveProtocolParameters(configName string) (*types.ProtocolParameters, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT params
        FROM protocol_parameters
        WHERE config_name = $1 AND is_active = TRUE
        ORDER BY activated_at DESC
        LIMIT 1;`

	var payload []byte
	row := DB.QueryRow(query, configName)
	if err := row.Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no active protocol parameters found for config '%s'", configName)
		}
		return nil, fmt.Errorf("failed to scan active protocol parameters for config '%s': %w", configName, err)
	}

	p := &types.ProtocolParameters{}
	if err := json.Unmarshal(payload, p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal protocol parameters for config '%s': %w", configName, err)
	}
	log.Info().Str("config", configName).Msg("Loaded active protocol parameters")
	return p, nil
}

// GetActiveProtocolParametersID returns the params_id of the currently active protocol parameters
func GetActiveProtocolParametersID(configName string) (*int64, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT params_id
        FROM protocol_parameters
        WHERE config_name = $1 AND is_active = TRUE
        ORDER BY activated_at DESC
        LIMIT 1;`

	var paramsID int64
	row := DB.QueryRow(query, configName)
	err := row.Scan(&paramsID)

	if err != nil {
		if err == sql.ErrNoRows {
			// No active parameters found - this is valid, return nil
			log.Debug().Str("config", configName).Msg("No active protocol parameters found")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active protocol parameters ID for config '%s': %w", configName, err)
	}

	log.Debug().
		Str("config", configName).
		Int64("params_id", paramsID).
		Msg("Retrieved active protocol parameters ID")

	return &paramsID, nil
}
