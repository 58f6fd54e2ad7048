// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

// Quota returns the Droop quota: the smallest pile that guarantees a seat
// when ballots ballots are counted for winnerCount seats.
func Quota(ballots, winnerCount int) int {
	return ballots/(winnerCount+1) + 1
}

// Popularity weights every option by where it appears on each ballot. A
// first preference adds 1, a second 1/2, a third 1/3 and so on. Options
// absent from every ballot are missing from the map and weigh 0.
func Popularity(ballots []Ballot) map[OptionID]float64 {
	weights := make(map[OptionID]float64)
	for _, b := range ballots {
		for rank, id := range b.Preferences {
			weights[id] += 1 / float64(rank+1)
		}
	}
	return weights
}
