package balance

import (
	"math/rand"

	"github.com/seawatts/grid-sub000/internal/state"
)

// Rarity drives how often a catalog entry is offered.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

var rarityWeights = map[Rarity]int{
	RarityCommon:    60,
	RarityRare:      25,
	RarityEpic:      12,
	RarityLegendary: 3,
}

// RarityWeight returns the relative draw weight of r.
func RarityWeight(r Rarity) int {
	return rarityWeights[r]
}

// PowerUpDefinition is one entry of the wave power-up catalog.
type PowerUpDefinition struct {
	ID       string               `json:"id"`
	Name     string               `json:"name"`
	Rarity   Rarity               `json:"rarity"`
	Effect   state.Effect         `json:"effect"`
	Duration state.Duration       `json:"duration"`
	Stacking state.StackingPolicy `json:"stacking"`
}

var catalog = []PowerUpDefinition{
	{ID: "overclock", Name: "Overclock", Rarity: RarityCommon, Effect: state.Effect{Type: state.EffectFireRate, Value: 0.15}, Duration: state.Duration{Waves: 3}, Stacking: state.StackMultiplicative},
	{ID: "hardened-rounds", Name: "Hardened Rounds", Rarity: RarityRare, Effect: state.Effect{Type: state.EffectDamage, Value: 0.2}, Duration: state.Duration{Permanent: true}, Stacking: state.StackAdditive},
	{ID: "bounty", Name: "Bounty", Rarity: RarityCommon, Effect: state.Effect{Type: state.EffectReward, Value: 0.25}, Duration: state.Duration{Waves: 2}, Stacking: state.StackAdditive},
	{ID: "long-scope", Name: "Long Scope", Rarity: RarityCommon, Effect: state.Effect{Type: state.EffectRange, Value: 0.15}, Duration: state.Duration{Waves: 3}, Stacking: state.StackMultiplicative},
	{ID: "surge", Name: "Surge", Rarity: RarityEpic, Effect: state.Effect{Type: state.EffectDamage, Value: 0.5}, Duration: state.Duration{Waves: 1}, Stacking: state.StackReplace},
	{ID: "rapid-cycle", Name: "Rapid Cycle", Rarity: RarityLegendary, Effect: state.Effect{Type: state.EffectFireRate, Value: 0.3}, Duration: state.Duration{Waves: 1}, Stacking: state.StackReplace},
	{ID: "repair-kit", Name: "Repair Kit", Rarity: RarityRare, Effect: state.Effect{Type: state.EffectLives, Value: 5}, Stacking: state.StackAdditive},
	{ID: "windfall", Name: "Windfall", Rarity: RarityCommon, Effect: state.Effect{Type: state.EffectMoney, Value: 150}, Stacking: state.StackAdditive},
}

// Catalog returns a copy of every power-up definition.
func Catalog() []PowerUpDefinition {
	out := make([]PowerUpDefinition, len(catalog))
	copy(out, catalog)
	return out
}

// PowerUp looks up a catalog entry by id.
func PowerUp(id string) (PowerUpDefinition, bool) {
	for _, def := range catalog {
		if def.ID == id {
			return def, true
		}
	}
	return PowerUpDefinition{}, false
}

// Offer draws up to n distinct catalog entries weighted by rarity.
func Offer(rng *rand.Rand, n int) []PowerUpDefinition {
	pool := Catalog()
	if n > len(pool) {
		n = len(pool)
	}
	offered := make([]PowerUpDefinition, 0, n)
	for len(offered) < n {
		total := 0
		for _, def := range pool {
			total += RarityWeight(def.Rarity)
		}
		if total <= 0 {
			break
		}
		roll := rng.Intn(total)
		for i, def := range pool {
			roll -= RarityWeight(def.Rarity)
			if roll < 0 {
				offered = append(offered, def)
				pool = append(pool[:i], pool[i+1:]...)
				break
			}
		}
	}
	return offered
}
