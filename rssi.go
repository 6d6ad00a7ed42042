// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.17
//

// Conversion between RSSI and distance (log-distance model, reference distance 1 m).

package gowips

import "math"

// Distance [m] for a received power
// - rssi = txPower - 10 n log10(d)
func RssiToDistance(txPower, pathLossExp, rssi float64) float64 {
	return math.Pow(10, (txPower-rssi)/(10*pathLossExp))
}

// Received power [dBm] at a distance. Inverse of RssiToDistance.
func DistanceToRssi(txPower, pathLossExp, dist float64) float64 {
	return txPower - 10*pathLossExp*math.Log10(dist)
}

// First order propagation of the RSSI std to the distance
// - dd/drssi = -d ln10 / (10 n)
func RssiStdToDistanceStd(dist, pathLossExp, rssiStd float64) float64 {
	return dist * LN10 * rssiStd / (10 * pathLossExp)
}

// Distance and its std derived from the RSSI part of a reading.
// ok is false when the source has no RSSI parameters or the reading no RSSI.
func (r *Reading) RssiDistance() (dist, std float64, ok bool) {
	if !r.HasRssi() || r.Source == nil || !r.Source.IsRssiCapable() {
		return 0, 0, false
	}
	dist = RssiToDistance(r.Source.TxPower, r.Source.PathLossExp, r.Rssi)
	std = RssiStdToDistanceStd(dist, r.Source.PathLossExp, r.RssiStd)
	return dist, std, true
}
