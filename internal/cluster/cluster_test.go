package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fennec/internal/domain"
)

func TestRun_GroupsSimilarVectorsTogether(t *testing.T) {
	ids := []int64{1, 2, 3, 4, 5, 6}
	vectors := [][]float32{
		{1, 0, 0}, {0.98, 0.02, 0}, {0.97, 0.03, 0}, // cluster A
		{0, 1, 0}, {0.02, 0.98, 0}, {0.03, 0.97, 0}, // cluster B
	}

	out := Run(ids, vectors, Params{Eps: 0.05, MinPoints: 3})

	clusterOf := map[int64]int64{}
	for _, a := range out {
		clusterOf[a.ID] = a.ClusterID
	}
	assert.Equal(t, clusterOf[1], clusterOf[2])
	assert.Equal(t, clusterOf[2], clusterOf[3])
	assert.Equal(t, clusterOf[4], clusterOf[5])
	assert.Equal(t, clusterOf[5], clusterOf[6])
	assert.NotEqual(t, clusterOf[1], clusterOf[4])
}

func TestRun_SingletonGoesUnclustered(t *testing.T) {
	ids := []int64{1, 2}
	vectors := [][]float32{{1, 0, 0}, {0, 1, 0}}

	out := Run(ids, vectors, Params{Eps: 0.05, MinPoints: 3})
	for _, a := range out {
		assert.Equal(t, domain.UnclusteredID, a.ClusterID)
	}
}

func TestRun_Empty(t *testing.T) {
	out := Run(nil, nil, DefaultParams)
	assert.Empty(t, out)
}
