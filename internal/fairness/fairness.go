// Package fairness implements the provably-fair dice roll: a deterministic,
// publicly verifiable function of a hidden server seed, a public client seed,
// and a monotonic nonce. Ported from the HMAC-SHA512 scheme of the reference
// Python implementation — every constant and rounding step below is chosen to
// match it exactly, since this is the one place where the on-chain meaning of
// "house" vs. "player" wins is decided.
package fairness

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/evetabi/prediction/internal/domain"
)

// GenerateServerSeed returns a cryptographically secure random 64-character
// hex-encoded server seed (32 random bytes).
func GenerateServerSeed() (string, error) {
	raw := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", fmt.Errorf("fairness.GenerateServerSeed: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

// HashSeed returns the SHA-256 hex digest of a server seed, the value
// committed publicly before the seed itself is ever revealed.
func HashSeed(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])
}

// CalculateRoll computes the dice roll for one bet:
//
//  1. message = client_seed + ":" + nonce
//  2. hmac = HMAC-SHA512(key=server_seed, message)
//  3. take the first 8 hex characters of hmac, parse as a uint32
//  4. roll = (n % 10000) / 100.0, in [0.00, 99.99]
//
// The result is rounded to 2 decimal places, matching the source's
// round(roll, 2) — the modulo/divide already yields at most 2 significant
// fractional digits, but float64 representation can introduce noise that the
// rounding step removes before it reaches a verifier's eye.
func CalculateRoll(serverSeed, clientSeed string, nonce int64) float64 {
	message := fmt.Sprintf("%s:%d", clientSeed, nonce)

	mac := hmac.New(sha512.New, []byte(serverSeed))
	mac.Write([]byte(message))
	digest := hex.EncodeToString(mac.Sum(nil))

	first8 := digest[:8]
	n, _ := strconv.ParseUint(first8, 16, 32)

	roll := float64(n%10000) / 100.0
	return math.Round(roll*100) / 100
}

// VerifyRoll reports whether claimedRoll matches the roll recomputed from
// server_seed/client_seed/nonce, within floating-point tolerance.
func VerifyRoll(serverSeed, clientSeed string, nonce int64, claimedRoll float64) bool {
	actual := CalculateRoll(serverSeed, clientSeed, nonce)
	return math.Abs(actual-claimedRoll) < 0.01
}

// CalculateWinChance derives the win-chance percentage a given multiplier
// implies under the configured house edge: (100 - house_edge_percent) / multiplier.
func CalculateWinChance(multiplier, houseEdge float64) float64 {
	houseEdgePercent := houseEdge * 100
	chance := (100 - houseEdgePercent) / multiplier
	return math.Round(chance*100) / 100
}

// CalculateMultiplier derives the multiplier a given win-chance percentage
// implies under the configured house edge — the inverse of CalculateWinChance.
func CalculateMultiplier(winChance, houseEdge float64) (float64, error) {
	if winChance <= 0 || winChance >= 100 {
		return 0, domain.ErrChanceOutOfRange
	}
	houseEdgePercent := houseEdge * 100
	multiplier := (100 - houseEdgePercent) / winChance
	return math.Round(multiplier*100) / 100, nil
}

// IsWinningRoll reports whether roll beats winChance: the bet wins when
// roll < win_chance (e.g. at 50% win chance, rolls 0.00-49.99 win).
func IsWinningRoll(roll, winChance float64) bool {
	return roll < winChance
}

// CalculatePayout returns the payout in satoshis: 0 on a loss, otherwise
// int(bet_amount * multiplier) truncated toward zero.
func CalculatePayout(betAmount int64, multiplier float64, isWin bool) int64 {
	if !isWin {
		return 0
	}
	return int64(float64(betAmount) * multiplier)
}

// ValidateBetParams checks a prospective bet's amount and multiplier against
// configured bounds, including the derived win-chance band [1%, 98%].
func ValidateBetParams(betAmount int64, multiplier, minBet, maxBet, minMultiplier, maxMultiplier, houseEdge float64) error {
	if float64(betAmount) < minBet {
		return domain.ErrBetAmountOutOfBounds
	}
	if float64(betAmount) > maxBet {
		return domain.ErrBetAmountOutOfBounds
	}
	if multiplier < minMultiplier || multiplier > maxMultiplier {
		return domain.ErrMultiplierOutOfBounds
	}
	winChance := CalculateWinChance(multiplier, houseEdge)
	if winChance < 1.0 || winChance > 98.0 {
		return domain.ErrChanceOutOfRange
	}
	return nil
}

// BetResult is the outcome of rolling one bet: everything the materializer
// needs to persist and everything the player needs to verify.
type BetResult struct {
	Roll       float64
	WinChance  float64
	IsWin      bool
	Payout     int64
	Profit     int64
	Nonce      int64
	Multiplier float64
	BetAmount  int64
}

// CreateBetResult rolls the dice for one bet and computes its full outcome.
// winChance is the bet's own snapshotted chance (domain.Bet.Chance), not
// re-derived from multiplier/houseEdge: spec.md makes chance authoritative at
// settlement time so an admin-set chance that doesn't exactly equal
// (100-edge)/multiplier still decides the win correctly.
func CreateBetResult(serverSeed, clientSeed string, nonce, betAmount int64, multiplier, winChance float64) BetResult {
	roll := CalculateRoll(serverSeed, clientSeed, nonce)
	isWin := IsWinningRoll(roll, winChance)
	payout := CalculatePayout(betAmount, multiplier, isWin)

	profit := -betAmount
	if isWin {
		profit = payout - betAmount
	}

	return BetResult{
		Roll:       roll,
		WinChance:  winChance,
		IsWin:      isWin,
		Payout:     payout,
		Profit:     profit,
		Nonce:      nonce,
		Multiplier: multiplier,
		BetAmount:  betAmount,
	}
}

// VerificationData is the full transparency payload shown on a bet's
// verification page: every intermediate value a player needs to recompute
// the roll by hand and confirm the house didn't cheat.
type VerificationData struct {
	ServerSeed          string  `json:"server_seed"`
	ServerSeedHash      string  `json:"server_seed_hash"`
	ServerSeedHashValid bool    `json:"server_seed_hash_valid"`
	ClientSeed          string  `json:"client_seed"`
	Nonce               int64   `json:"nonce"`
	HmacSha512          string  `json:"hmac_sha512"`
	HmacFirst8Chars     string  `json:"hmac_first_8_chars"`
	HmacDecimal         uint64  `json:"hmac_decimal"`
	RollCalculation     string  `json:"roll_calculation"`
	RecalculatedRoll    float64 `json:"recalculated_roll"`
	ClaimedRoll         float64 `json:"claimed_roll"`
	RollValid           bool    `json:"roll_valid"`
	OverallValid        bool    `json:"overall_valid"`
}

// GenerateVerificationData recomputes everything a verifier needs from a
// revealed server seed, confirming both the hash commitment and the roll.
func GenerateVerificationData(serverSeed, serverSeedHash, clientSeed string, nonce int64, claimedRoll float64) VerificationData {
	calculatedHash := HashSeed(serverSeed)
	hashValid := calculatedHash == serverSeedHash

	recalculated := CalculateRoll(serverSeed, clientSeed, nonce)
	rollValid := math.Abs(recalculated-claimedRoll) < 0.01

	message := fmt.Sprintf("%s:%d", clientSeed, nonce)
	mac := hmac.New(sha512.New, []byte(serverSeed))
	mac.Write([]byte(message))
	digest := hex.EncodeToString(mac.Sum(nil))
	first8 := digest[:8]
	n, _ := strconv.ParseUint(first8, 16, 32)

	return VerificationData{
		ServerSeed:          serverSeed,
		ServerSeedHash:      serverSeedHash,
		ServerSeedHashValid: hashValid,
		ClientSeed:          clientSeed,
		Nonce:               nonce,
		HmacSha512:          digest,
		HmacFirst8Chars:     first8,
		HmacDecimal:         n,
		RollCalculation:     fmt.Sprintf("(%d %% 10000) / 100", n),
		RecalculatedRoll:    recalculated,
		ClaimedRoll:         claimedRoll,
		RollValid:           rollValid,
		OverallValid:        hashValid && rollValid,
	}
}
