package estimate

import "math"

// The stencils span stencilLen bins and are aligned so that position
// spikeCenter corresponds to the $100 denomination when the window sits at
// slide 0 (i.e. at refBin). The weights are empirically tuned against
// historical output distributions; they are calibration data, not derived
// quantities.
const (
	stencilLen  = 803
	spikeCenter = 401

	smoothMean   = 411
	smoothStdDev = 201
	smoothBase   = 0.00150
	smoothTilt   = 0.0000005
)

// usdSpikes maps stencil positions to weights for the popular round-dollar
// denominations. Positions are 60 bins (a factor of 2) or 79/80 bins apart,
// tracking the 1-2-5 structure of round amounts.
var usdSpikes = []struct {
	pos    int
	weight float64
}{
	{40, 0.001300198324984352},   // $1
	{141, 0.001676746949820743},  // $5
	{201, 0.003468805546942046},  // $10
	{261, 0.003341772718156079},  // $20
	{340, 0.003076117748975647},  // $50
	{401, 0.006174500465286022},  // $100
	{461, 0.004097463611984264},  // $200
	{541, 0.003792850444811335},  // $500
	{601, 0.003688240815848247},  // $1000
	{661, 0.001654665137536031},  // $2000
	{741, 0.001154279140906312},  // $5000
	{801, 0.000832244504868709},  // $10000
}

// spikeStencil is sparse: nonzero only at round-dollar offsets.
func spikeStencil() []float64 {
	s := make([]float64, stencilLen)
	for _, sp := range usdSpikes {
		s[sp.pos] = sp.weight
	}
	return s
}

// smoothStencil is a dense Gaussian envelope with a slight linear tilt toward
// larger amounts.
func smoothStencil() []float64 {
	s := make([]float64, stencilLen)
	for x := 0; x < stencilLen; x++ {
		d := float64(x - smoothMean)
		s[x] = smoothBase*math.Exp(-d*d/(2*smoothStdDev*smoothStdDev)) +
			smoothTilt*float64(x)
	}
	return s
}
