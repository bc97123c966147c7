package capability

import "sort"

// Matcher scores agents against task requirements. It never returns an
// error: with no candidate agents it returns an empty slice (§4.2 "Failure
// mode: never throws").
type Matcher struct{}

// NewMatcher constructs a Matcher. It carries no state; scoring is a pure
// function of its inputs.
func NewMatcher() *Matcher {
	return &Matcher{}
}

// FindBestAgents scores every candidate in agents against req and returns
// the top k, ordered best-first, tie-broken deterministically.
func (m *Matcher) FindBestAgents(req TaskRequirements, agents []AgentSnapshot, k int) []RankedMatch {
	if len(agents) == 0 {
		return nil
	}

	matches := make([]RankedMatch, 0, len(agents))
	for _, a := range agents {
		matches = append(matches, m.score(req, a))
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		ri, rj := matches[i].reliability, matches[j].reliability
		if ri != rj {
			return ri > rj
		}
		wi, wj := matches[i].workload, matches[j].workload
		if wi != wj {
			return wi < wj
		}
		return matches[i].AgentID < matches[j].AgentID
	})

	if k > 0 && k < len(matches) {
		matches = matches[:k]
	}
	for i := range matches {
		matches[i].reliability = 0
		matches[i].workload = 0
	}
	return matches
}

// reason bands, keyed by score (§4.2).
func reasonFor(score float64) string {
	switch {
	case score >= 90:
		return "excellent"
	case score >= 75:
		return "good"
	case score >= 50:
		return "partial"
	default:
		return "poor"
	}
}

func (m *Matcher) score(req TaskRequirements, a AgentSnapshot) RankedMatch {
	var score float64
	matched, missing := 0, 0
	criticalMisses := 0

	agentLabels := append(append(append(append([]string{}, a.Capabilities.Languages...), a.Capabilities.Frameworks...), a.Capabilities.Domains...), a.Capabilities.Tools...)

	for _, req := range req.RequiredCapabilities {
		if has, known := a.Capabilities.flag(req); known && has {
			score += 20
			matched++
			continue
		}
		if matchesConcept(req, agentLabels) {
			score += 20
			matched++
			continue
		}
		score -= 5
		missing++
		criticalMisses++
	}

	for _, pref := range req.PreferredCapabilities {
		if has, known := a.Capabilities.flag(pref); known && has {
			score += 10
			matched++
		} else if matchesConcept(pref, agentLabels) {
			score += 10
			matched++
		} else {
			missing++
		}
	}

	if overlaps(req.Languages, a.Capabilities.Languages) {
		score += 15
		matched++
	} else if len(req.Languages) > 0 {
		missing++
	}
	if overlaps(req.Frameworks, a.Capabilities.Frameworks) {
		score += 15
		matched++
	} else if len(req.Frameworks) > 0 {
		missing++
	}
	if overlaps(req.Domains, a.Capabilities.Domains) {
		score += 10
		matched++
	} else if len(req.Domains) > 0 {
		missing++
	}

	score += a.Health*10 + (1-a.Workload)*10
	score += a.Capabilities.Reliability * 10

	if req.Complexity > 0 {
		diff := abs(a.Capabilities.complexityLevel() - req.Complexity)
		switch diff {
		case 0:
			score += 10
		case 1:
			score += 7
		case 2:
			score += 4
		default:
			score += 1
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	confidence := 1.0
	if matched+missing > 0 {
		confidence = float64(matched) / float64(matched+missing)
	}
	if criticalMisses > 0 {
		confidence -= float64(criticalMisses) * 0.15
		if confidence < 0 {
			confidence = 0
		}
	}

	return RankedMatch{
		AgentID:     a.ID,
		Score:       score,
		Confidence:  confidence,
		Reason:      reasonFor(score),
		reliability: a.Capabilities.Reliability,
		workload:    a.Workload,
	}
}

func overlaps(want, have []string) bool {
	if len(want) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(have))
	for _, h := range have {
		set[h] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; ok {
			return true
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
