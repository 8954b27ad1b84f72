package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/folio-protocol/folio-core/internal/config"
	"github.com/folio-protocol/folio-core/internal/fees"
	"github.com/folio-protocol/folio-core/internal/logger"
	"github.com/folio-protocol/folio-core/internal/rewards"
	"github.com/folio-protocol/folio-core/internal/state"
	"github.com/folio-protocol/folio-core/internal/types"
	"github.com/folio-protocol/folio-core/internal/web"

	sdkmath "cosmossdk.io/math"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const DEFAULT_CONFIG_NAME = "default"
const DEFAULT_CONFIG_VERSION = 1

// main is the entry point for the folio keeper.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("Folio Keeper Starting...")

	// Initialize Database Connection
	dbCfg := state.DBConfig{
		Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
		User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
		DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// Load Protocol Parameters
	params, err := state.LoadActiveProtocolParameters(DEFAULT_CONFIG_NAME)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load active protocol parameters, using defaults and saving.")
		defaultParams := config.DefaultProtocolParameters
		if _, err := state.SaveProtocolParameters(defaultParams, DEFAULT_CONFIG_NAME, DEFAULT_CONFIG_VERSION, true); err != nil {
			log.Fatal().Err(err).Msg("Failed to save initial default protocol parameters.")
		}
		params = &defaultParams
	}
	log.Info().Msg("Protocol parameters loaded successfully.")

	// Restore or initialize basket fee state
	basketState, totalSupply, recipients, err := state.LoadBasketState(config.BasketID)
	if err != nil {
		log.Warn().Err(err).Uint64("basket_id", config.BasketID).
			Msg("No persisted basket state, initializing from parameters.")

		perSecond, err := fees.PerSecondRate(params.AnnualTVLFee)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to derive per-second TVL fee rate")
		}
		basketState = types.NewBasketState(perSecond, params.MintFee, time.Now().Unix())
		totalSupply = sdkmath.ZeroInt()
		recipients = nil
		if err := state.SaveBasketState(config.BasketID, basketState, totalSupply, recipients); err != nil {
			log.Fatal().Err(err).Msg("Failed to persist initial basket state")
		}
	}

	// Restore the reward ledger
	rewardLedger := rewards.NewLedger()
	infos, err := state.LoadRewardInfos()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load reward tokens")
	}
	for _, info := range infos {
		rewardLedger.Tokens[info.Token] = info
		if info.Disallowed {
			rewardLedger.Disallowed[info.Token] = true
		}
	}
	userRewards, err := state.LoadUserRewards()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load user rewards")
	}
	rewardLedger.Users = userRewards
	log.Info().Int("reward_tokens", len(infos)).Int("user_records", len(userRewards)).
		Msg("Reward ledger restored")

	rewardRatio, err := rewards.HalfLifeToRatio(int64(params.RewardHalfLife))
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid reward half-life in parameters")
	}

	// The floor is configured annually; Poke expects it per-second.
	feeFloorRate, err := fees.PerSecondRate(params.FeeFloor)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid fee floor in parameters")
	}

	// --- Start Web Server ---
	webPort := strconv.FormatUint(config.WebPort, 10)
	webServer := web.NewWebServer(webPort)
	go func() {
		log.Info().Str("port", webPort).Str("url", "http://localhost:"+webPort).Msg("Starting folio status API")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 2. Keeper Main Loop ---
	pokeInterval := params.PokeInterval
	if config.PokeIntervalOverride > 0 {
		pokeInterval = config.PokeIntervalOverride
	}
	interval := time.Duration(pokeInterval) * time.Second
	log.Info().Str("interval", interval.String()).Msg("Starting keeper loop")

	ctx := context.Background()
	runLoop(ctx, interval, params, rewardRatio, feeFloorRate, &basketState, totalSupply, recipients, rewardLedger)
}

// runLoop advances fee and reward accrual on a fixed ticker and persists the
// result of every cycle. Accrual math is exact in elapsed seconds, so a
// missed tick costs nothing.
func runLoop(ctx context.Context, interval time.Duration, params *types.ProtocolParameters,
	rewardRatio, feeFloorRate sdkmath.Int, basketState *types.BasketState, totalSupply sdkmath.Int,
	recipients []types.FeeRecipient, rewardLedger *rewards.Ledger) {

	keeperLogger := logger.GetForComponent("keeper")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			keeperLogger.Info().Msg("Keeper loop stopped")
			return
		case <-ticker.C:
		}

		now := time.Now().Unix()
		elapsed := now - basketState.LastPoke
		daoBefore := basketState.DAOPendingFeeShares
		recipientsBefore := basketState.FeeRecipientsPendingFeeShares

		if err := fees.Poke(basketState, totalSupply, now,
			params.DAOFeeNumerator, params.DAOFeeDenominator, feeFloorRate); err != nil {
			keeperLogger.Error().Err(err).Msg("Fee poke failed")
			continue
		}

		for token, info := range rewardLedger.Tokens {
			if info.Disallowed {
				continue
			}
			custodial := info.BalanceLastKnown.Sub(info.TotalClaimed)
			if err := rewardLedger.Accrue(token, rewardRatio, custodial, totalSupply, now); err != nil {
				keeperLogger.Error().Err(err).Str("token", token).Msg("Reward accrual failed")
				continue
			}
			if err := state.SaveRewardInfo(info); err != nil {
				keeperLogger.Error().Err(err).Str("token", token).Msg("Failed to persist reward token")
			}
		}

		if err := state.SaveBasketState(config.BasketID, *basketState, totalSupply, recipients); err != nil {
			keeperLogger.Error().Err(err).Msg("Failed to persist basket state")
			continue
		}
		daoMinted := basketState.DAOPendingFeeShares.Sub(daoBefore)
		recipientsMinted := basketState.FeeRecipientsPendingFeeShares.Sub(recipientsBefore)
		if err := state.RecordPoke(config.BasketID, now, elapsed,
			daoMinted.Add(recipientsMinted), daoMinted); err != nil {
			keeperLogger.Error().Err(err).Msg("Failed to record poke")
		}

		keeperLogger.Debug().
			Int64("now", now).
			Int64("elapsed", elapsed).
			Str("dao_pending", basketState.DAOPendingFeeShares.String()).
			Str("recipients_pending", basketState.FeeRecipientsPendingFeeShares.String()).
			Msg("Poke cycle complete")
	}
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
