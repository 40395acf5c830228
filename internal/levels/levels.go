// Package levels is the single authoritative implementation of the level
// threshold table and the calculations derived from it. No other copy of
// these thresholds may exist in the system.
package levels

import (
	"math"
)

// Definition maps a cumulative point threshold to a level and title.
type Definition struct {
	Level          int    `json:"level"`
	PointsRequired int    `json:"points_required"`
	Title          string `json:"title"`
}

// Table is ordered ascending by PointsRequired. Level 1 starts at 0 so every
// user has a level; level 10 is terminal.
var Table = []Definition{
	{Level: 1, PointsRequired: 0, Title: "Newcomer"},
	{Level: 2, PointsRequired: 100, Title: "Supporter"},
	{Level: 3, PointsRequired: 250, Title: "Contributor"},
	{Level: 4, PointsRequired: 500, Title: "Advocate"},
	{Level: 5, PointsRequired: 1000, Title: "Benefactor"},
	{Level: 6, PointsRequired: 2000, Title: "Patron"},
	{Level: 7, PointsRequired: 4000, Title: "Champion"},
	{Level: 8, PointsRequired: 7000, Title: "Guardian"},
	{Level: 9, PointsRequired: 10000, Title: "Hero"},
	{Level: 10, PointsRequired: 15000, Title: "Legend"},
}

// MaxLevel is the terminal level in the table.
const MaxLevel = 10

// LevelFor returns the highest level whose threshold is at or below
// totalPoints. Negative input is treated as 0.
func LevelFor(totalPoints int) int {
	if totalPoints < 0 {
		totalPoints = 0
	}
	level := 1
	for _, def := range Table {
		if totalPoints >= def.PointsRequired {
			level = def.Level
		}
	}
	return level
}

// TitleFor returns the title for the level that totalPoints maps to.
func TitleFor(totalPoints int) string {
	level := LevelFor(totalPoints)
	return Table[level-1].Title
}

// ProgressFor returns the percentage progress toward the next level, clamped
// to [0,100]. A user at the terminal level is always at 100.
func ProgressFor(totalPoints int) int {
	if totalPoints < 0 {
		totalPoints = 0
	}
	level := LevelFor(totalPoints)
	if level == MaxLevel {
		return 100
	}
	current := Table[level-1].PointsRequired
	next := Table[level].PointsRequired
	progress := int(math.Round(100 * float64(totalPoints-current) / float64(next-current)))
	if progress < 0 {
		return 0
	}
	// Rounding may reach 100 just below the next threshold; 100 is reserved
	// for the terminal level.
	if progress > 99 {
		return 99
	}
	return progress
}

// PointsToNext returns the points missing until the next level, or 0 at the
// terminal level.
func PointsToNext(totalPoints int) int {
	if totalPoints < 0 {
		totalPoints = 0
	}
	level := LevelFor(totalPoints)
	if level == MaxLevel {
		return 0
	}
	return Table[level].PointsRequired - totalPoints
}
