package place

import "sort"

// CompareRequest asks a dissimilarity service to score Current. When Target
// is set the service scores against that profile only; otherwise it scores
// against every vertex holding a descriptor under InterfaceName.
type CompareRequest struct {
	Current       Profile        `json:"current"`
	Target        *VertexProfile `json:"target,omitempty"`
	InterfaceName string         `json:"interface_name,omitempty"`
}

// CompareResponse carries one score per compared vertex.
type CompareResponse struct {
	Scores []Score `json:"scores"`
}

// SortScores orders scores by vertex id.
func SortScores(scores []Score) {
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Vertex < scores[j].Vertex })
}

// Best returns the score with the lowest dissimilarity.
func Best(scores []Score) (Score, bool) {
	if len(scores) == 0 {
		return Score{}, false
	}
	best := scores[0]
	for _, s := range scores[1:] {
		if s.Dissimilarity < best.Dissimilarity {
			best = s
		}
	}
	return best, true
}
