package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore_HappyPathFromSpecScenario(t *testing.T) {
	// Q0: points=1000, T=10s. Alice correct at e=2000ms.
	r := Score(true, 2000, 10000, 1000, 0)
	assert.Equal(t, 900, r.Base)
	assert.Equal(t, 0, r.StreakBonus)
	assert.Equal(t, 1, r.NewStreak)
}

func TestScore_WrongAnswerResetsStreak(t *testing.T) {
	r := Score(false, 4000, 10000, 1000, 3)
	assert.Equal(t, 0, r.Base)
	assert.Equal(t, 0, r.StreakBonus)
	assert.Equal(t, 0, r.NewStreak)
}

func TestScore_StreakBonusCapsAt500(t *testing.T) {
	r := Score(true, 0, 10000, 1000, 10)
	assert.Equal(t, 11, r.NewStreak)
	assert.Equal(t, MaxStreakBonus, r.StreakBonus)
}

func TestScore_FirstCorrectAnswerGetsNoBonus(t *testing.T) {
	r := Score(true, 0, 10000, 1000, 0)
	assert.Equal(t, 1, r.NewStreak)
	assert.Equal(t, 0, r.StreakBonus)
}

func TestScore_SecondCorrectAnswerGetsOneStepBonus(t *testing.T) {
	r := Score(true, 0, 10000, 1000, 1)
	assert.Equal(t, 2, r.NewStreak)
	assert.Equal(t, StreakBonusStep, r.StreakBonus)
}

func TestScore_ElapsedClampedAtBoundaries(t *testing.T) {
	atStart := Score(true, 0, 10000, 1000, 0)
	assert.Equal(t, 1000, atStart.Base)

	atEnd := Score(true, 10000, 10000, 1000, 0)
	assert.Equal(t, 500, atEnd.Base)

	beyondEnd := Score(true, 99999, 10000, 1000, 0)
	assert.Equal(t, 500, beyondEnd.Base)

	negative := Score(true, -500, 10000, 1000, 0)
	assert.Equal(t, 1000, negative.Base)
}
