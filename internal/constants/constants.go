package constants

import (
	"time"

	"league-matchmaker/internal/domain"
)

const (
	DatabaseTimeout = 5 * time.Second
	RequestTimeout  = 30 * time.Second
	WebhookTimeout  = 10 * time.Second
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
	DBBatchSize       = 100
)

const (
	ShutdownTimeout = 5 * time.Second
	SweepInterval   = 1 * time.Minute
)

const (
	DefaultRating          = 1000
	DefaultKFactor         = 30
	DefaultQueueTargetSize = 6
	DefaultSeriesWins      = 2
	DefaultDivision        = "solo"
	DefaultVoteTimeout     = 1 * time.Hour
	LeaderboardPageSize    = 10
)

// Ranks is the display ladder, ascending. Gold is where the upper queue starts.
var Ranks = []domain.Rank{
	{MinRating: 0, Name: "Bronze", Emoji: "🟤"},
	{MinRating: 900, Name: "Silver", Emoji: "⚪"},
	{MinRating: 1100, Name: "Gold", Emoji: "🟡"},
	{MinRating: 1300, Name: "Diamond", Emoji: "💠"},
	{MinRating: 1500, Name: "Mythic", Emoji: "🔮"},
	{MinRating: 1700, Name: "Legendary", Emoji: "👑"},
	{MinRating: 1900, Name: "Masters", Emoji: "🏆"},
}

var DefaultQueueThresholds = []int{1100}

var DefaultTierDistribution = []domain.TierSpec{
	{Tier: "S", Ratio: 0.005, MinCount: 1},
	{Tier: "A", Ratio: 0.02, MinCount: 1},
	{Tier: "B", Ratio: 0.04, MinCount: 1},
	{Tier: "C", Ratio: 0.10, MinCount: 1},
	{Tier: "D", Ratio: 0.28, MinCount: 1},
	{Tier: "E", Ratio: 0.555, MinCount: 1},
}

type MapMode struct {
	Mode  string
	Emoji string
	Maps  []string
}

var MapRotation = []MapMode{
	{Mode: "Brawl Ball", Emoji: "⚽", Maps: []string{"Pinball Dreams", "Sneaky Fields", "Super Stadium"}},
	{Mode: "Gem Grab", Emoji: "💎", Maps: []string{"Crystal Arcade", "Hard Rock Mine", "Flooded Mine"}},
	{Mode: "Heist", Emoji: "🧨", Maps: []string{"Hot Potato", "Safe Zone", "Bridge Too Far"}},
	{Mode: "Hot Zone", Emoji: "🔥", Maps: []string{"Parallel Plays", "Split", "Dueling Beetles"}},
	{Mode: "Bounty", Emoji: "🎯", Maps: []string{"Shooting Star", "Canal Grande", "Dry Season"}},
	{Mode: "Knockout", Emoji: "💥", Maps: []string{"Belle's Rock", "Out in the Open", "Goldarm Gulch"}},
}
