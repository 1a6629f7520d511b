package jockey

import (
	"context"

	"github.com/banshee-data/lj-costmap/internal/place"
)

// DissimilarityService scores place profiles. Endpoint selects the remote
// method, e.g. the localize service or the compare-all server.
type DissimilarityService interface {
	Compare(ctx context.Context, endpoint string, req place.CompareRequest) (place.CompareResponse, error)
}

// DissimilarityClient issues the two comparisons the jockey needs.
type DissimilarityClient struct {
	svc             DissimilarityService
	localizeService string
	compareService  string
	profileIface    func() string
}

// NewDissimilarityClient creates a client. profileIface reports the
// place-profile interface to compare against in CompareAll.
func NewDissimilarityClient(svc DissimilarityService, localizeService, compareService string, profileIface func() string) *DissimilarityClient {
	return &DissimilarityClient{
		svc:             svc,
		localizeService: localizeService,
		compareService:  compareService,
		profileIface:    profileIface,
	}
}

// CompareOne scores current against a single stored profile.
func (c *DissimilarityClient) CompareOne(ctx context.Context, current place.Profile, target place.VertexProfile) (place.Score, error) {
	resp, err := c.svc.Compare(ctx, c.localizeService, place.CompareRequest{
		Current: current,
		Target:  &target,
	})
	if err != nil {
		return place.Score{}, newError(ServiceUnavailable, err, "%s for vertex %d", c.localizeService, target.Vertex)
	}
	if len(resp.Scores) != 1 || resp.Scores[0].Vertex != target.Vertex {
		return place.Score{}, newError(ServiceUnavailable, nil, "%s returned %d scores for vertex %d", c.localizeService, len(resp.Scores), target.Vertex)
	}
	return resp.Scores[0], nil
}

// CompareAll scores current against every vertex with a stored profile.
// Scores are ordered by vertex id.
func (c *DissimilarityClient) CompareAll(ctx context.Context, current place.Profile) ([]place.Score, error) {
	req := place.CompareRequest{Current: current}
	if c.profileIface != nil {
		req.InterfaceName = c.profileIface()
	}
	resp, err := c.svc.Compare(ctx, c.compareService, req)
	if err != nil {
		return nil, newError(ServiceUnavailable, err, "%s", c.compareService)
	}
	scores := append([]place.Score(nil), resp.Scores...)
	place.SortScores(scores)
	return scores, nil
}
