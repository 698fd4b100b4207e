package leveling

// threshold is the minimum XP needed to hold a level.
type threshold struct {
	Level int
	XP    int64
}

// thresholds is ascending in both Level and XP.
var thresholds = []threshold{
	{Level: 1, XP: 0},
	{Level: 2, XP: 100},
	{Level: 3, XP: 300},
	{Level: 4, XP: 600},
	{Level: 5, XP: 1000},
	{Level: 6, XP: 1500},
	{Level: 7, XP: 2100},
	{Level: 8, XP: 2800},
	{Level: 9, XP: 3600},
	{Level: 10, XP: 4500},
}

// MaxLevel is the highest level reachable through XP.
var MaxLevel = thresholds[len(thresholds)-1].Level

// LevelFromXP returns the highest level whose threshold is at or below xp.
// Negative input is treated as zero.
func LevelFromXP(xp int64) int {
	level := thresholds[0].Level
	for _, t := range thresholds {
		if xp < t.XP {
			break
		}
		level = t.Level
	}
	return level
}

// ThresholdFor returns the XP needed to reach level. Levels outside the
// table clamp to its ends.
func ThresholdFor(level int) int64 {
	if level <= thresholds[0].Level {
		return thresholds[0].XP
	}
	for _, t := range thresholds {
		if t.Level == level {
			return t.XP
		}
	}
	return thresholds[len(thresholds)-1].XP
}

// XPProgress describes where a user sits between two levels.
type XPProgress struct {
	Level          int   `json:"level"`
	XP             int64 `json:"xp"`
	CurrentLevelXP int64 `json:"currentLevelXp"`
	NextLevelXP    int64 `json:"nextLevelXp"`
	XPToNext       int64 `json:"xpToNext"`
	MaxLevel       bool  `json:"maxLevel"`
}

// Progress reports the level for xp and the distance to the next one.
func Progress(xp int64) XPProgress {
	if xp < 0 {
		xp = 0
	}
	level := LevelFromXP(xp)
	p := XPProgress{
		Level:          level,
		XP:             xp,
		CurrentLevelXP: ThresholdFor(level),
	}
	if level >= MaxLevel {
		p.NextLevelXP = p.CurrentLevelXP
		p.MaxLevel = true
		return p
	}
	p.NextLevelXP = ThresholdFor(level + 1)
	p.XPToNext = p.NextLevelXP - xp
	return p
}
