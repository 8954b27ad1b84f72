package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/folio-protocol/folio-core/internal/fees"
	"github.com/folio-protocol/folio-core/internal/logger"
	"github.com/folio-protocol/folio-core/internal/rewards"
	"github.com/folio-protocol/folio-core/internal/state"
	"github.com/folio-protocol/folio-core/internal/types"
	"github.com/folio-protocol/folio-core/internal/utils"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// folioctl is the operator companion to the keeper: one-shot governance and
// distribution actions against the shared database. The keeper only accrues;
// everything that moves pending amounts out of the basket goes through here.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}
	logger.Initialize(os.Getenv("LOG_LEVEL"))
	cli := logger.Get()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	dbCfg := state.DBConfig{
		Host: os.Getenv("DB_HOST"), Port: atoiOrDefault(os.Getenv("DB_PORT"), 5432),
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

	var err error
	switch os.Args[1] {
	case "approve-auction":
		err = cmdApproveAuction(os.Args[2:])
	case "set-tvl-fee":
		err = cmdSetTVLFee(os.Args[2:])
	case "realize":
		err = cmdRealize(os.Args[2:])
	case "crank":
		err = cmdCrank(os.Args[2:])
	case "settle-user":
		err = cmdSettleUser(os.Args[2:])
	case "claim":
		err = cmdClaim(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal().Err(err).Str("command", os.Args[1]).Msg("Command failed")
	}
	cli.Info().Str("command", os.Args[1]).Msg("Done")
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: folioctl <command> [flags]

commands:
  approve-auction -file <auction.json>           store an approved auction record
  set-tvl-fee     -annual <rate>                 set the annual TVL fee, e.g. 0.02
  realize         -initiator <addr>              convert pending fees into a distribution
  crank           -id <uuid> -index <n> -dest <addr>
                                                 distribute one recipient of a snapshot
  settle-user     -token <t> -user <addr> -stake <raw>
                                                 settle a user against the reward index
  claim           -token <t> -user <addr>        pay out a user's accrued rewards`)
}

// cmdApproveAuction stores an auction record from a JSON file. The record
// must still be in the approved state; opening it is the launcher's job.
func cmdApproveAuction(args []string) error {
	fs := flag.NewFlagSet("approve-auction", flag.ExitOnError)
	file := fs.String("file", "", "path to the auction JSON file")
	fs.Parse(args)

	a, err := loadAuctionFile(*file)
	if err != nil {
		return err
	}
	if err := state.SaveAuction(a); err != nil {
		return err
	}
	log.Info().Uint64("auction_id", a.ID).
		Str("sell", a.SellToken).Str("buy", a.BuyToken).
		Msg("Auction approved")
	return nil
}

// loadAuctionFile reads and sanity-checks an approved auction record. The
// checks here are structural; price and limit semantics are enforced when
// the auction is opened.
func loadAuctionFile(path string) (*types.Auction, error) {
	if path == "" {
		return nil, fmt.Errorf("auction file path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read auction file: %w", err)
	}

	var a types.Auction
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to parse auction file %s: %w", path, err)
	}
	if a.ID == 0 {
		return nil, fmt.Errorf("auction id must be set")
	}
	if a.SellToken == "" || a.BuyToken == "" || a.SellToken == a.BuyToken {
		return nil, fmt.Errorf("auction %d needs two distinct tokens", a.ID)
	}
	if a.Start != 0 || a.End != 0 {
		return nil, fmt.Errorf("auction %d is not in the approved state", a.ID)
	}

	// JSON may omit the big-int fields entirely; nil ints poison every
	// later comparison, so zero them here.
	for _, p := range []*sdkmath.Int{
		&a.Prices.Start, &a.Prices.End,
		&a.ApprovedPrices.Start, &a.ApprovedPrices.End,
		&a.SellLimit.Spot, &a.SellLimit.Low, &a.SellLimit.High,
		&a.BuyLimit.Spot, &a.BuyLimit.Low, &a.BuyLimit.High,
		&a.ApprovedSellLimit.Spot, &a.ApprovedSellLimit.Low, &a.ApprovedSellLimit.High,
		&a.ApprovedBuyLimit.Spot, &a.ApprovedBuyLimit.Low, &a.ApprovedBuyLimit.High,
		&a.K,
	} {
		if p.IsNil() {
			*p = sdkmath.ZeroInt()
		}
	}
	return &a, nil
}

// cmdSetTVLFee re-derives the basket's per-second fee rate from a new annual
// rate given as a plain fraction (0.02 for 2%).
func cmdSetTVLFee(args []string) error {
	fs := flag.NewFlagSet("set-tvl-fee", flag.ExitOnError)
	annual := fs.Float64("annual", -1, "annual TVL fee as a fraction")
	fs.Parse(args)
	if *annual < 0 {
		return fmt.Errorf("-annual is required")
	}

	rate, err := utils.Float64ToD18(*annual)
	if err != nil {
		return fmt.Errorf("invalid annual rate %f: %w", *annual, err)
	}

	basket := basketID()
	bs, totalSupply, recipients, err := state.LoadBasketState(basket)
	if err != nil {
		return err
	}
	if err := fees.SetTVLFee(&bs, rate); err != nil {
		return err
	}
	if err := state.SaveBasketState(basket, bs, totalSupply, recipients); err != nil {
		return err
	}
	log.Info().Float64("annual", *annual).
		Str("per_second", bs.TVLFeeRate.String()).
		Msg("TVL fee updated")
	return nil
}

// cmdRealize converts the basket's pending fee counters into an immediate
// DAO mint plus a persisted distribution snapshot for the crank.
func cmdRealize(args []string) error {
	fs := flag.NewFlagSet("realize", flag.ExitOnError)
	initiator := fs.String("initiator", "", "address fronting the storage deposit")
	fs.Parse(args)
	if *initiator == "" {
		return fmt.Errorf("-initiator is required")
	}

	basket := basketID()
	bs, totalSupply, recipients, err := state.LoadBasketState(basket)
	if err != nil {
		return err
	}
	daoMint, snapshot, err := fees.Realize(&bs, recipients, *initiator)
	if err != nil {
		return err
	}
	if err := state.SaveDistribution(snapshot); err != nil {
		return err
	}
	if err := state.SaveBasketState(basket, bs, totalSupply, recipients); err != nil {
		return err
	}

	daoShares, err := utils.D9ToFloat64(sdkmath.NewIntFromUint64(daoMint))
	if err != nil {
		return err
	}
	log.Info().Str("distribution_id", snapshot.ID.String()).
		Float64("dao_shares", daoShares).
		Msg("Fees realized, mint the DAO amount and start cranking")
	return nil
}

// cmdCrank distributes one recipient index of a persisted snapshot.
func cmdCrank(args []string) error {
	fs := flag.NewFlagSet("crank", flag.ExitOnError)
	id := fs.String("id", "", "distribution id")
	index := fs.Int("index", -1, "recipient index")
	dest := fs.String("dest", "", "destination address, must match the entry")
	fs.Parse(args)

	distID, err := uuid.Parse(*id)
	if err != nil {
		return fmt.Errorf("invalid distribution id %q: %w", *id, err)
	}
	snapshot, err := state.LoadDistribution(distID)
	if err != nil {
		return err
	}
	res, err := fees.Crank(snapshot, *index, *dest)
	if err != nil {
		return err
	}
	if err := state.SaveDistribution(snapshot); err != nil {
		return err
	}

	minted, err := utils.D9ToFloat64(sdkmath.NewIntFromUint64(res.Minted))
	if err != nil {
		return err
	}
	log.Info().Str("distribution_id", distID.String()).
		Int("index", *index).
		Float64("minted_shares", minted).
		Bool("done", res.Done).
		Msg("Crank step complete")
	return nil
}

// cmdSettleUser advances one user's reward record to the current index.
func cmdSettleUser(args []string) error {
	fs := flag.NewFlagSet("settle-user", flag.ExitOnError)
	token := fs.String("token", "", "reward token")
	user := fs.String("user", "", "user address")
	stake := fs.String("stake", "0", "user staked balance, raw units")
	fs.Parse(args)

	staked, ok := sdkmath.NewIntFromString(*stake)
	if !ok {
		return fmt.Errorf("invalid stake amount %q", *stake)
	}
	ledger, info, err := loadLedger(*token)
	if err != nil {
		return err
	}
	ui, err := ledger.SettleUser(info, *user, staked)
	if err != nil {
		return err
	}
	if err := state.SaveUserReward(*user, *token, ui); err != nil {
		return err
	}
	log.Info().Str("user", *user).Str("token", *token).
		Str("accrued", ui.AccruedRewards.String()).
		Msg("User settled")
	return nil
}

// cmdClaim pays out a user's accrued rewards in whole raw units.
func cmdClaim(args []string) error {
	fs := flag.NewFlagSet("claim", flag.ExitOnError)
	token := fs.String("token", "", "reward token")
	user := fs.String("user", "", "user address")
	fs.Parse(args)

	ledger, info, err := loadLedger(*token)
	if err != nil {
		return err
	}
	key := rewards.UserKey{User: *user, Token: *token}
	ui, ok := ledger.Users[key]
	if !ok {
		return fmt.Errorf("user %s has no reward record for %s", *user, *token)
	}
	amount, err := rewards.Claim(info, ui)
	if err != nil {
		return err
	}
	if err := state.SaveUserReward(*user, *token, ui); err != nil {
		return err
	}
	if err := state.SaveRewardInfo(info); err != nil {
		return err
	}
	log.Info().Str("user", *user).Str("token", *token).
		Str("amount", amount.String()).
		Msg("Rewards claimed, transfer the amount from custody")
	return nil
}

// loadLedger restores the persisted reward ledger and resolves one token.
func loadLedger(token string) (*rewards.Ledger, *types.RewardInfo, error) {
	if token == "" {
		return nil, nil, fmt.Errorf("-token is required")
	}
	ledger := rewards.NewLedger()
	infos, err := state.LoadRewardInfos()
	if err != nil {
		return nil, nil, err
	}
	for _, info := range infos {
		ledger.Tokens[info.Token] = info
		if info.Disallowed {
			ledger.Disallowed[info.Token] = true
		}
	}
	users, err := state.LoadUserRewards()
	if err != nil {
		return nil, nil, err
	}
	ledger.Users = users

	info, ok := ledger.Tokens[token]
	if !ok {
		return nil, nil, fmt.Errorf("reward token %s is not registered", token)
	}
	return ledger, info, nil
}

func basketID() uint64 {
	id, err := strconv.ParseUint(os.Getenv("FOLIO_BASKET_ID"), 10, 64)
	if err != nil {
		log.Fatal().Err(err).Msg("FOLIO_BASKET_ID must be set to a valid uint64")
	}
	return id
}

func atoiOrDefault(s string, defaultValue int) int {
	if s == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return v
}
