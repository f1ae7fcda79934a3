package sigpacket

// IMIXMember is one weighted frame size in an Internet Mix distribution.
type IMIXMember struct {
	FrameSize int
	Weight    int
}

// IMIXDistribution is the standard IMIX weighted frame-size mix: seven
// 64-byte frames, four 594-byte frames, one 1518-byte frame per cycle,
// a widely used approximation of real-world Internet traffic.
var IMIXDistribution = []IMIXMember{
	{FrameSize: 64, Weight: 7},
	{FrameSize: 594, Weight: 4},
	{FrameSize: 1518, Weight: 1},
}

// Expand returns the frame sizes in one IMIX cycle, in weighted order.
func Expand(dist []IMIXMember) []int {
	total := 0
	for _, m := range dist {
		total += m.Weight
	}
	sizes := make([]int, 0, total)
	for _, m := range dist {
		for range m.Weight {
			sizes = append(sizes, m.FrameSize)
		}
	}
	return sizes
}

// MeanFrameSize returns the weighted average frame size of dist.
func MeanFrameSize(dist []IMIXMember) float64 {
	var totalSize, totalWeight float64
	for _, m := range dist {
		totalSize += float64(m.FrameSize * m.Weight)
		totalWeight += float64(m.Weight)
	}
	if totalWeight == 0 {
		return 0
	}
	return totalSize / totalWeight
}
