/*

This file contains the fee accrual and distribution engine. A poke compounds
the per-second TVL fee over the elapsed window and splits the proceeds
between the DAO and the fee recipient table; realization freezes the
recipients' share into an immutable snapshot that a permissionless crank then
drains index by index.

*/

package fees

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"

	"github.com/folio-protocol/folio-core/internal/decimal"
	"github.com/folio-protocol/folio-core/internal/logger"
	"github.com/folio-protocol/folio-core/internal/types"
)

var feesLogger = logger.GetForComponent("fees")

// SecondsPerYear converts annual rates to per-second rates.
const SecondsPerYear = 31_536_000

// MaxAnnualTVLFee caps the configurable annual TVL fee at 10%, D18.
var MaxAnnualTVLFee = sdkmath.NewInt(100_000_000_000_000_000)

// PerSecondRate derives the per-second fee rate from a D18 annual rate as
// 1 - (1 - annual)^(1/SecondsPerYear). Done once at configuration time, not
// per poke.
func PerSecondRate(annualRate sdkmath.Int) (sdkmath.Int, error) {
	if annualRate.IsNegative() || annualRate.GTE(decimal.One().Raw()) {
		return sdkmath.Int{}, errorsmod.Wrapf(types.ErrInvalidParameter,
			"annual rate %s outside [0, 1)", annualRate)
	}
	if annualRate.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	retained, err := decimal.One().Sub(decimal.NewFromRaw(annualRate))
	if err != nil {
		return sdkmath.Int{}, err
	}
	root, err := retained.NthRoot(SecondsPerYear)
	if err != nil {
		return sdkmath.Int{}, err
	}
	rate, err := decimal.One().Sub(root)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return rate.Raw(), nil
}

// SetTVLFee updates the stored per-second rate from a new annual rate.
// Callers must poke first so the old rate covers the elapsed window.
func SetTVLFee(state *types.BasketState, annualRate sdkmath.Int) error {
	if annualRate.GT(MaxAnnualTVLFee) {
		return errorsmod.Wrapf(types.ErrInvalidParameter,
			"annual rate %s exceeds maximum %s", annualRate, MaxAnnualTVLFee)
	}
	rate, err := PerSecondRate(annualRate)
	if err != nil {
		return err
	}
	state.TVLFeeRate = rate
	return nil
}

// Poke realizes the TVL fee accrued since the last poke against the supplied
// total supply (D18 shares). feeFloor is a per-second rate like
// state.TVLFeeRate (derive it once from the annual floor via PerSecondRate);
// both are compounded over the same elapsed window, and the larger take
// always wins, so a minimum fee survives a near-zero nominal rate no matter
// how often the keeper pokes. The DAO share is carved out first, rounded
// down, and both running counters grow; nothing else mutates.
func Poke(state *types.BasketState, totalSupply sdkmath.Int, now int64,
	daoFeeNumerator, daoFeeDenominator, feeFloor sdkmath.Int) error {

	if daoFeeDenominator.IsZero() {
		return errorsmod.Wrap(types.ErrInvalidParameter, "dao fee denominator is zero")
	}
	if daoFeeNumerator.GT(daoFeeDenominator) {
		return errorsmod.Wrap(types.ErrInvalidParameter, "dao fee numerator exceeds denominator")
	}
	elapsed := now - state.LastPoke
	if elapsed <= 0 {
		return nil
	}

	retained, err := decimal.One().Sub(decimal.NewFromRaw(state.TVLFeeRate))
	if err != nil {
		return err
	}
	multiplier, err := retained.Pow(uint64(elapsed))
	if err != nil {
		return err
	}
	decayed, err := decimal.One().Sub(multiplier)
	if err != nil {
		return err
	}
	supply := decimal.NewFromRaw(totalSupply)
	feeAmount, err := supply.MulDiv(decayed, decimal.One(), decimal.Floor)
	if err != nil {
		return err
	}

	floorRetained, err := decimal.One().Sub(decimal.NewFromRaw(feeFloor))
	if err != nil {
		return err
	}
	floorMultiplier, err := floorRetained.Pow(uint64(elapsed))
	if err != nil {
		return err
	}
	floorDecayed, err := decimal.One().Sub(floorMultiplier)
	if err != nil {
		return err
	}
	minFee, err := supply.MulDiv(floorDecayed, decimal.One(), decimal.Floor)
	if err != nil {
		return err
	}
	fee := feeAmount.Raw()
	if fee.LT(minFee.Raw()) {
		fee = minFee.Raw()
	}

	daoShare := fee.Mul(daoFeeNumerator).Quo(daoFeeDenominator)
	recipientsShare := fee.Sub(daoShare)

	state.DAOPendingFeeShares = state.DAOPendingFeeShares.Add(daoShare)
	state.FeeRecipientsPendingFeeShares = state.FeeRecipientsPendingFeeShares.Add(recipientsShare)
	state.LastPoke = now
	return nil
}

// ApplyMintFee splits the fee charged on a share issuance (D18 shares) into
// the DAO and recipient cuts. The DAO cut is floored at minDAOFee (a D18
// fraction of the issued shares) so tiny mint fees cannot zero it out.
func ApplyMintFee(shares sdkmath.Int, mintFeeRate, daoFeeNumerator, daoFeeDenominator, minDAOFee sdkmath.Int) (daoFee, recipientsFee sdkmath.Int, err error) {
	if daoFeeDenominator.IsZero() {
		return sdkmath.Int{}, sdkmath.Int{}, errorsmod.Wrap(types.ErrInvalidParameter, "dao fee denominator is zero")
	}
	sharesDec := decimal.NewFromRaw(shares)
	totalFee, err := sharesDec.MulDiv(decimal.NewFromRaw(mintFeeRate), decimal.One(), decimal.Ceil)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	daoCut := totalFee.Raw().Mul(daoFeeNumerator).Quo(daoFeeDenominator)

	floor, err := sharesDec.MulDiv(decimal.NewFromRaw(minDAOFee), decimal.One(), decimal.Ceil)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	if daoCut.LT(floor.Raw()) {
		daoCut = floor.Raw()
	}
	if daoCut.GT(totalFee.Raw()) {
		return daoCut, sdkmath.ZeroInt(), nil
	}
	return daoCut, totalFee.Raw().Sub(daoCut), nil
}

// ValidateRecipients enforces the recipient table rules: at most
// MaxFeeRecipients entries, no duplicate non-empty recipients, every
// non-empty portion positive, and the portions summing to exactly 1.0 D18.
func ValidateRecipients(recipients []types.FeeRecipient) error {
	if len(recipients) > types.MaxFeeRecipients {
		return errorsmod.Wrapf(types.ErrInvalidParameter,
			"%d recipients exceeds maximum %d", len(recipients), types.MaxFeeRecipients)
	}
	seen := make(map[string]struct{}, len(recipients))
	sum := sdkmath.ZeroInt()
	for _, r := range recipients {
		if r.Empty() {
			continue
		}
		if _, dup := seen[r.Recipient]; dup {
			return errorsmod.Wrapf(types.ErrInvalidParameter, "duplicate recipient %s", r.Recipient)
		}
		seen[r.Recipient] = struct{}{}
		if !r.Portion.IsPositive() {
			return errorsmod.Wrapf(types.ErrInvalidParameter, "recipient %s has non-positive portion", r.Recipient)
		}
		sum = sum.Add(r.Portion)
	}
	if len(seen) == 0 {
		return errorsmod.Wrap(types.ErrInvalidParameter, "no recipients")
	}
	if !sum.Equal(decimal.One().Raw()) {
		return errorsmod.Wrapf(types.ErrInvalidParameter, "portions sum to %s, want 1e18", sum)
	}
	return nil
}

// UpdateRecipients removes and adds entries, re-validating the surviving
// table before it replaces the old one. The update is all-or-nothing.
func UpdateRecipients(list *[]types.FeeRecipient, remove []string, add []types.FeeRecipient) error {
	removeSet := make(map[string]struct{}, len(remove))
	for _, r := range remove {
		removeSet[r] = struct{}{}
	}
	next := make([]types.FeeRecipient, 0, len(*list)+len(add))
	for _, r := range *list {
		if _, drop := removeSet[r.Recipient]; drop {
			continue
		}
		next = append(next, r)
	}
	next = append(next, add...)
	if err := ValidateRecipients(next); err != nil {
		return err
	}
	*list = next
	return nil
}

// Realize turns the running counters into actual distributions: the DAO
// pending shares convert to an immediate mint (returned raw, D9) and the
// recipients' pending shares freeze into a snapshot for the crank. Both
// counters keep only sub-D9 dust. Fails with ErrNothingToDistribute when
// neither counter holds a mintable amount.
func Realize(state *types.BasketState, recipients []types.FeeRecipient, initiator string) (daoMint uint64, snapshot *types.FeeDistributionSnapshot, err error) {
	if err := ValidateRecipients(recipients); err != nil {
		return 0, nil, err
	}

	daoMint = decimal.NewFromRaw(state.DAOPendingFeeShares).ToTokenAmount(decimal.Floor)
	recipientsAmount := state.FeeRecipientsPendingFeeShares
	if daoMint == 0 && recipientsAmount.IsZero() {
		return 0, nil, types.ErrNothingToDistribute
	}

	snapshot = &types.FeeDistributionSnapshot{
		ID:                 uuid.New(),
		AmountToDistribute: recipientsAmount,
		Recipients:         append([]types.FeeRecipient(nil), recipients...),
		Distributed:        make([]bool, len(recipients)),
		Initiator:          initiator,
	}

	minted := decimal.FromTokenAmount(daoMint)
	state.DAOPendingFeeShares = state.DAOPendingFeeShares.Sub(minted.Raw())
	state.FeeRecipientsPendingFeeShares = sdkmath.ZeroInt()

	feesLogger.Info().
		Str("distribution_id", snapshot.ID.String()).
		Uint64("dao_mint", daoMint).
		Str("recipients_amount", recipientsAmount.String()).
		Msg("Fees realized")
	return daoMint, snapshot, nil
}

// CrankResult reports one crank step.
type CrankResult struct {
	// Minted is the raw (D9) share amount to mint to the recipient; zero
	// when the entry was already distributed.
	Minted uint64
	// Done is set once every entry is distributed; the snapshot is closed
	// and its storage deposit goes back to the initiator.
	Done bool
}

// Crank distributes one recipient index of a snapshot. Already-distributed
// indices are silently skipped so repeated calls are idempotent; the
// caller-supplied destination must match the entry's recipient. The call is
// permissionless and resumable across any number of invocations.
func Crank(s *types.FeeDistributionSnapshot, index int, destination string) (CrankResult, error) {
	if s.Closed {
		return CrankResult{}, errorsmod.Wrapf(types.ErrInvalidState,
			"distribution %s already closed", s.ID)
	}
	if index < 0 || index >= len(s.Recipients) {
		return CrankResult{}, errorsmod.Wrapf(types.ErrInvalidParameter,
			"recipient index %d out of range", index)
	}

	var result CrankResult
	entry := s.Recipients[index]
	if !s.Distributed[index] && !entry.Empty() {
		if entry.Recipient != destination {
			return CrankResult{}, errorsmod.Wrapf(types.ErrInvalidParameter,
				"destination %s does not match recipient %s", destination, entry.Recipient)
		}
		share, err := decimal.NewFromRaw(s.AmountToDistribute).MulDiv(
			decimal.NewFromRaw(entry.Portion), decimal.One(), decimal.Floor)
		if err != nil {
			return CrankResult{}, err
		}
		result.Minted = share.ToTokenAmount(decimal.Floor)
	}
	s.Distributed[index] = true

	result.Done = true
	for i := range s.Distributed {
		if !s.Distributed[i] && !s.Recipients[i].Empty() {
			result.Done = false
			break
		}
	}
	if result.Done {
		s.Closed = true
		feesLogger.Info().
			Str("distribution_id", s.ID.String()).
			Str("reimburse", s.Initiator).
			Msg("Distribution complete")
	}
	return result, nil
}
