package agent

// Progress tiers per iteration. Values climb with the iteration number
// and saturate below 100, which is reserved for the terminal step.

func thinkingProgress(i int) float64 {
	return capped(10+5*i, 80)
}

func reasoningProgress(i int) float64 {
	return capped(15+5*i, 85)
}

func toolCallingProgress(i int) float64 {
	return capped(20+8*i, 90)
}

func toolExecutingProgress(i int) float64 {
	return capped(25+8*i, 92)
}

func toolCompletedProgress(i int) float64 {
	return capped(30+8*i, 95)
}

func capped(v, limit int) float64 {
	if v > limit {
		return float64(limit)
	}
	return float64(v)
}
