package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVesselStatsKeyIsStable(t *testing.T) {
	assert.Equal(t, "stats:global", VesselStatsKey())
	assert.Equal(t, VesselStatsKey(), VesselStatsKey())
}

func TestVesselKeyIncludesMMSI(t *testing.T) {
	assert.Equal(t, "vessel:123456789", VesselKey("123456789"))
	assert.NotEqual(t, VesselKey("111111111"), VesselKey("222222222"))
}

func TestVesselPatternMatchesVesselKeyPrefix(t *testing.T) {
	assert.Equal(t, "vessel:*", VesselPattern())
	assert.Equal(t, PrefixVessel, "vessel")
}
