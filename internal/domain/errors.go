package domain

import (
	"errors"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sentinel errors — compare with errors.Is()
// ──────────────────────────────────────────────────────────────────────────────

// User / VaultWallet errors
var (
	// ErrUserNotFound is returned when no user exists for a given address.
	ErrUserNotFound = errors.New("user not found")

	// ErrWalletNotFound is returned when no vault wallet matches a lookup.
	ErrWalletNotFound = errors.New("vault wallet not found")

	// ErrWalletAlreadyExists is returned when creating a vault wallet whose
	// address is already in use.
	ErrWalletAlreadyExists = errors.New("vault wallet already exists for this address")

	// ErrWalletInactive is returned when an operation requires an active wallet.
	ErrWalletInactive = errors.New("vault wallet is inactive")

	// ErrWalletDepleted is returned when a vault has no usable UTXOs left.
	ErrWalletDepleted = errors.New("vault wallet is depleted")

	// ErrInvalidChanceMultiplier is returned at wallet creation time when
	// chance × multiplier exceeds 100 − house_edge_percent (positive
	// expected-value bets are never allowed).
	ErrInvalidChanceMultiplier = errors.New("chance × multiplier exceeds the house-edge-adjusted ceiling")
)

// Seed registry errors
var (
	// ErrSeedNotFound is returned when no ServerSeed exists for a given date.
	ErrSeedNotFound = errors.New("server seed not found")

	// ErrSeedDateNotFuture is returned when admin_create/admin_delete targets a
	// date that is today or in the past; the calendar is future-only writeable.
	ErrSeedDateNotFuture = errors.New("server seed date must be strictly in the future")

	// ErrSeedAlreadyExists is returned when a ServerSeed already exists for the
	// requested date (seed_date is unique).
	ErrSeedAlreadyExists = errors.New("server seed already exists for this date")

	// ErrUserSeedNotFound is returned when a user has no active UserSeed.
	ErrUserSeedNotFound = errors.New("user seed not found")
)

// Bet / materializer errors
var (
	// ErrBetNotFound is returned when no bet matches a lookup.
	ErrBetNotFound = errors.New("bet not found")

	// ErrDuplicateDepositTxid is the IntegrityFatal signal that a bet already
	// exists for a deposit txid that should have been deduplicated earlier.
	ErrDuplicateDepositTxid = errors.New("a bet already exists for this deposit txid")

	// ErrBetAmountOutOfBounds is a UserError: the deposit amount falls outside
	// the configured (min_bet, max_bet) range.
	ErrBetAmountOutOfBounds = errors.New("bet amount is outside the configured bounds")

	// ErrMultiplierOutOfBounds is a UserError: the wallet's multiplier falls
	// outside the configured (min_multiplier, max_multiplier) range.
	ErrMultiplierOutOfBounds = errors.New("multiplier is outside the configured bounds")

	// ErrChanceOutOfRange is a UserError: the win chance is outside its valid
	// range — (0, 100) for an admin-set chance, [1, 98] percent for the chance
	// derived during bet validation.
	ErrChanceOutOfRange = errors.New("win chance is out of the valid range")

	// ErrNotAVaultAddress is a UserError: the deposit's destination address is
	// not a known, active vault wallet (a false positive from the ingester).
	ErrNotAVaultAddress = errors.New("deposit destination is not a vault address")

	// ErrAlreadyRolled is returned by RollAndSettle when a bet's roll_result is
	// already set; guards against double-rolling the same bet.
	ErrAlreadyRolled = errors.New("bet has already been rolled")

	// ErrDetectedTxNotFound is returned when no DetectedTransaction matches a
	// lookup by txid.
	ErrDetectedTxNotFound = errors.New("detected transaction not found")

	// ErrCorruptProcessedState is an IntegrityFatal signal: a DetectedTransaction
	// is flagged processed but no Bet references its txid. Indicates a prior
	// crash mid-materialization or a bug; requires manual investigation.
	ErrCorruptProcessedState = errors.New("detected transaction marked processed with no corresponding bet")

	// ErrUnknownSender is a UserError: the ingester could not recover a
	// sending address for a deposit (no resolvable prevout), so no User can
	// be upserted and the deposit cannot be materialized into a bet.
	ErrUnknownSender = errors.New("deposit has no recoverable sender address")
)

// Payout engine errors
var (
	// ErrPayoutNotEligible is returned when process_winning_bet's eligibility
	// gate fails (already paid, not a win, zero payout, insufficient confirmations).
	ErrPayoutNotEligible = errors.New("bet is not eligible for payout")

	// ErrNoRecipientAddress is a non-retryable error: neither the detected
	// deposit's from_address nor the user's address is available.
	ErrNoRecipientAddress = errors.New("no recipient address available for payout")

	// ErrInsufficientFunds is returned when no UTXO set can cover
	// payout_amount + fee_buffer_satoshis, even combining every UTXO.
	ErrInsufficientFunds = errors.New("vault wallet has insufficient funds for this payout")

	// ErrRetriesExhausted is the terminal state of a Payout once retry_count
	// reaches max_retries.
	ErrRetriesExhausted = errors.New("payout has exhausted its retry budget")

	// ErrPayoutNotFound is returned when no Payout matches a lookup.
	ErrPayoutNotFound = errors.New("payout not found")

	// ErrIntegrityTampered is returned when decrypting a vault's private key
	// fails authentication (ciphertext was tampered with, or the master key is
	// wrong). Payout-fatal; never retried.
	ErrIntegrityTampered = errors.New("private key ciphertext failed integrity check")
)

// Config / vault errors
var (
	// ErrMasterKeyMissing is ConfigFatal: MASTER_ENCRYPTION_KEY is unset.
	ErrMasterKeyMissing = errors.New("master encryption key is not configured")

	// ErrMasterKeyMalformed is ConfigFatal: the configured key does not decode
	// to a valid AES-256 key.
	ErrMasterKeyMalformed = errors.New("master encryption key is malformed")

	// ErrNetworkMismatch is ConfigFatal: the explorer endpoint does not serve
	// the network the process was configured for.
	ErrNetworkMismatch = errors.New("explorer endpoint network does not match configured network")
)

// Admin surface errors
var (
	// ErrUnauthorized is returned when the admin API key is missing or wrong.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrIPNotWhitelisted is returned when the caller's IP is not on the
	// admin_ip_whitelist.
	ErrIPNotWhitelisted = errors.New("caller IP is not whitelisted for admin access")
)

// ──────────────────────────────────────────────────────────────────────────────
// Helper predicates
// ──────────────────────────────────────────────────────────────────────────────

// notFoundErrors collects all "entity not found" sentinel errors so that
// IsNotFound can stay in sync automatically.
var notFoundErrors = []error{
	ErrUserNotFound,
	ErrWalletNotFound,
	ErrSeedNotFound,
	ErrUserSeedNotFound,
	ErrBetNotFound,
	ErrDetectedTxNotFound,
	ErrPayoutNotFound,
}

// IsNotFound returns true when err (or any error in its chain) is one of the
// domain "not found" errors. Use this instead of comparing error values
// directly when you need to translate domain errors to HTTP 404 responses.
func IsNotFound(err error) bool {
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsConflict returns true for errors that represent a state conflict (e.g.
// duplicate deposit txid or double-rolling a bet).
func IsConflict(err error) bool {
	conflictErrors := []error{
		ErrWalletAlreadyExists,
		ErrDuplicateDepositTxid,
		ErrSeedAlreadyExists,
		ErrAlreadyRolled,
	}
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsAuthError returns true for authentication/authorisation errors.
func IsAuthError(err error) bool {
	authErrors := []error{
		ErrUnauthorized,
		ErrIPNotWhitelisted,
	}
	for _, target := range authErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsRetryable returns true for errors the caller should retry, bounded, per
// the ExternalRetryable / InsufficientFunds error taxonomy classes.
func IsRetryable(err error) bool {
	retryableErrors := []error{
		ErrInsufficientFunds,
		ErrWalletDepleted,
	}
	for _, target := range retryableErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
