package account

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalIP(t *testing.T) {
	assert.Equal(t, netip.MustParseAddr("10.0.0.1"), CanonicalIP("::ffff:10.0.0.1"))
	assert.Equal(t, netip.MustParseAddr("10.0.0.1"), CanonicalIP("10.0.0.1:4288"))
	assert.Equal(t, netip.MustParseAddr("::1"), CanonicalIP("[::1]:80"))
	assert.False(t, CanonicalIP("not-an-ip").IsValid())
}

func TestCreationLimiter_HourWindow(t *testing.T) {
	clock := newFakeClock()
	l := NewCreationLimiter(10, 2, clock.Now)

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("::ffff:10.0.0.1"), "mapped address counts as the same IP")
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"), "other addresses are unaffected")

	clock.Advance(time.Hour + time.Second)
	assert.True(t, l.Allow("10.0.0.1"))
	assert.Equal(t, 4, l.Len(), "rejections are not recorded")
}

func TestCreationLimiter_DayCountsAllRecords(t *testing.T) {
	clock := newFakeClock()
	l := NewCreationLimiter(2, 5, clock.Now)

	assert.True(t, l.Allow("10.0.0.1"))
	clock.Advance(48 * time.Hour)
	assert.True(t, l.Allow("10.0.0.1"))
	clock.Advance(48 * time.Hour)
	assert.False(t, l.Allow("10.0.0.1"), "records never expire from the daily count")
}
