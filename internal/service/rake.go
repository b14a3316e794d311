package service

import (
	"duel-escrow/internal/core/domain"
	"duel-escrow/pkg/apperror"

	"github.com/shopspring/decimal"
)

// Rake banding. Rematch tags take a flat rate regardless of wager size;
// everything else bands on the USD wager. The 15-dollar boundary is the
// canonical one platform-wide.
var (
	rakeLeaderboardRematch = decimal.RequireFromString("0.03")
	rakeStandardRematch    = decimal.RequireFromString("0.04")
	rakeBandSmall          = decimal.RequireFromString("0.10")  // [5, 15)
	rakeBandMid            = decimal.RequireFromString("0.045") // [15, 150)
	rakeBandLarge          = decimal.RequireFromString("0.03")  // >= 150

	rakeBandFloor    = decimal.NewFromInt(5)
	rakeBandMidEdge  = decimal.NewFromInt(15)
	rakeBandHighEdge = decimal.NewFromInt(150)
)

// RakeRate returns the rake fraction for a wager. It is deterministic and
// side-effect free. Wagers below the $5 band floor have no rake band and are
// rejected; Create validates against this so no contract can exist that
// could never settle.
func RakeRate(wagerUSD decimal.Decimal, matchType domain.MatchType) (decimal.Decimal, error) {
	switch matchType {
	case domain.MatchTypeLeaderboardRematch:
		return rakeLeaderboardRematch, nil
	case domain.MatchTypeStandardRematch:
		return rakeStandardRematch, nil
	}

	switch {
	case wagerUSD.LessThan(rakeBandFloor):
		return decimal.Zero, apperror.ErrBelowMinimumWager(rakeBandFloor.StringFixed(2))
	case wagerUSD.LessThan(rakeBandMidEdge):
		return rakeBandSmall, nil
	case wagerUSD.LessThan(rakeBandHighEdge):
		return rakeBandMid, nil
	default:
		return rakeBandLarge, nil
	}
}
