package domain

// RiskEntry is one district's position on the high-risk leaderboard.
type RiskEntry struct {
	District   string
	AvgPRGI    float64  // mean PRGI over the trailing window of months
	LatestPRGI *float64 // nil when the district is absent from the latest month
	Months     int      // months in window where the district reported
}
