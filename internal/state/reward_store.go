// ./internal/state/reward_store.go
package state

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/folio-protocol/folio-core/internal/rewards"
	"github.com/folio-protocol/folio-core/internal/types"
)

// SaveRewardInfo upserts the global tracking record for one reward token.
func SaveRewardInfo(info *types.RewardInfo) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	stmt := `
        INSERT INTO reward_tokens (
            token, decimals, reward_index, balance_accounted, balance_last_known,
            total_claimed, payout_last_paid, disallowed, updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, CURRENT_TIMESTAMP)
        ON CONFLICT (token) DO UPDATE SET
            decimals = EXCLUDED.decimals,
            reward_index = EXCLUDED.reward_index,
            balance_accounted = EXCLUDED.balance_accounted,
            balance_last_known = EXCLUDED.balance_last_known,
            total_claimed = EXCLUDED.total_claimed,
            payout_last_paid = EXCLUDED.payout_last_paid,
            disallowed = EXCLUDED.disallowed,
            updated_at = CURRENT_TIMESTAMP;`

	_, err := DB.Exec(stmt,
		info.Token, int16(info.Decimals),
		info.RewardIndex.String(), info.BalanceAccounted.String(), info.BalanceLastKnown.String(),
		info.TotalClaimed.String(), info.PayoutLastPaid, info.Disallowed,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert reward token %s: %w", info.Token, err)
	}

	log.Debug().Str("token", info.Token).Bool("disallowed", info.Disallowed).Msg("Saved reward token")
	return nil
}

// LoadRewardInfos reads every reward token record, disallowed ones included,
// so a restarted keeper reconstructs the full ledger.
func LoadRewardInfos() ([]*types.RewardInfo, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT token, decimals, reward_index, balance_accounted, balance_last_known,
               total_claimed, payout_last_paid, disallowed
        FROM reward_tokens
        ORDER BY token;`

	rows, err := DB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query reward tokens: %w", err)
	}
	defer rows.Close()

	var infos []*types.RewardInfo
	for rows.Next() {
		info := &types.RewardInfo{}
		var decimals int16
		var rewardIndex, accounted, lastKnown, totalClaimed string
		if err := rows.Scan(&info.Token, &decimals, &rewardIndex, &accounted, &lastKnown,
			&totalClaimed, &info.PayoutLastPaid, &info.Disallowed); err != nil {
			return nil, fmt.Errorf("failed to scan reward token row: %w", err)
		}
		info.Decimals = uint8(decimals)
		if info.RewardIndex, err = scanInt("reward_index", rewardIndex); err != nil {
			return nil, err
		}
		if info.BalanceAccounted, err = scanInt("balance_accounted", accounted); err != nil {
			return nil, err
		}
		if info.BalanceLastKnown, err = scanInt("balance_last_known", lastKnown); err != nil {
			return nil, err
		}
		if info.TotalClaimed, err = scanInt("total_claimed", totalClaimed); err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reward token rows: %w", err)
	}
	return infos, nil
}

// SaveUserReward upserts one (user, token) accrual record.
func SaveUserReward(user, token string, info *types.UserRewardInfo) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	stmt := `
        INSERT INTO user_rewards (user_address, token, last_reward_index, accrued_rewards, updated_at)
        VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP)
        ON CONFLICT (user_address, token) DO UPDATE SET
            last_reward_index = EXCLUDED.last_reward_index,
            accrued_rewards = EXCLUDED.accrued_rewards,
            updated_at = CURRENT_TIMESTAMP;`

	_, err := DB.Exec(stmt, user, token, info.LastRewardIndex.String(), info.AccruedRewards.String())
	if err != nil {
		return fmt.Errorf("failed to upsert user reward %s/%s: %w", user, token, err)
	}
	return nil
}

// LoadUserRewards reads every per-user accrual record keyed for the ledger.
func LoadUserRewards() (map[rewards.UserKey]*types.UserRewardInfo, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `SELECT user_address, token, last_reward_index, accrued_rewards FROM user_rewards;`

	rows, err := DB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query user rewards: %w", err)
	}
	defer rows.Close()

	users := make(map[rewards.UserKey]*types.UserRewardInfo)
	for rows.Next() {
		var key rewards.UserKey
		var lastIndex, accrued string
		info := &types.UserRewardInfo{}
		if err := rows.Scan(&key.User, &key.Token, &lastIndex, &accrued); err != nil {
			return nil, fmt.Errorf("failed to scan user reward row: %w", err)
		}
		if info.LastRewardIndex, err = scanInt("last_reward_index", lastIndex); err != nil {
			return nil, err
		}
		if info.AccruedRewards, err = scanInt("accrued_rewards", accrued); err != nil {
			return nil, err
		}
		users[key] = info
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user reward rows: %w", err)
	}
	return users, nil
}
