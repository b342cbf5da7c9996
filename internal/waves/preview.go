package waves

import (
	"github.com/seawatts/grid-sub000/internal/balance"
	"github.com/seawatts/grid-sub000/internal/state"
)

// Info describes a wave as it would spawn at a neutral adaptive multiplier.
type Info struct {
	Wave             int                     `json:"wave"`
	Count            int                     `json:"count"`
	IsBossWave       bool                    `json:"isBossWave"`
	Composition      map[state.EnemyType]int `json:"composition"`
	HealthMultiplier float64                 `json:"healthMultiplier"`
	RewardMultiplier float64                 `json:"rewardMultiplier"`
	TargetPower      float64                 `json:"targetPower"`
}

// Preview reports what wave would contain, for "next wave" displays. Run
// upgrades in st feed the reward multiplier; the build does not.
func Preview(st state.GameState, wave int) Info {
	if wave < 1 {
		wave = 1
	}
	count := EnemyCount(wave)
	boss := IsBossWave(wave)
	health := HealthMultiplier(wave, boss)
	composition := make(map[state.EnemyType]int)
	for _, kind := range typePlan(wave, count) {
		composition[kind]++
	}
	return Info{
		Wave:             wave,
		Count:            count,
		IsBossWave:       boss,
		Composition:      composition,
		HealthMultiplier: health,
		RewardMultiplier: RewardMultiplier(health, balance.Upgrade(&st, state.UpgradeReward)),
		TargetPower:      TargetPower(wave),
	}
}
