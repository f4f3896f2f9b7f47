package gamification

import (
	"testing"

	"github.com/stretchr/testify/require"

	"progress/internal/models"
)

func newUser(xp, level int) *models.User {
	return &models.User{XP: xp, Level: level, Preferences: models.DefaultPreferences()}
}

func TestThreshold(t *testing.T) {
	require.Equal(t, 100, Threshold(1))
	require.Equal(t, 282, Threshold(2))
	require.Equal(t, 519, Threshold(3))
	require.Equal(t, 800, Threshold(4))
	require.Equal(t, 100, Threshold(0))
}

func TestAwardSingleLevelUp(t *testing.T) {
	u := newUser(0, 1)

	res := Award(u, 100)
	require.NotNil(t, res)
	require.True(t, res.LeveledUp)
	require.Equal(t, 2, u.Level)
	require.Equal(t, 100, u.XP)
	require.Equal(t, 282, res.NextLevelXP)
}

func TestAwardMultipleLevelUpsInOneCall(t *testing.T) {
	u := newUser(0, 1)

	res := Award(u, 300)
	require.Equal(t, 1, res.PreviousLevel)
	require.Equal(t, 3, res.Level)
	require.Equal(t, 300, u.XP, "xp is cumulative and never reset")
}

func TestAwardBelowThreshold(t *testing.T) {
	u := newUser(50, 1)

	res := Award(u, 10)
	require.False(t, res.LeveledUp)
	require.Equal(t, 1, u.Level)
	require.Equal(t, 60, u.XP)
}

func TestAwardDisabledIsNoop(t *testing.T) {
	u := newUser(0, 1)
	u.Preferences.Gamification = false

	require.Nil(t, Award(u, 500))
	require.Equal(t, 0, u.XP)
	require.Equal(t, 1, u.Level)
}
