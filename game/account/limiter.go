package account

import (
	"net/netip"
	"sync"
	"time"
)

// CreationRecord is one accepted account creation.
type CreationRecord struct {
	Addr netip.Addr
	Time time.Time
}

// CreationLimiter caps account creations per source IP. Records live for the
// process lifetime: the hourly cap looks at the last hour, the daily cap counts
// every record for the address.
type CreationLimiter struct {
	mu      sync.RWMutex
	records []CreationRecord
	perDay  int
	perHour int
	now     Clock
}

func NewCreationLimiter(perDay, perHour int, now Clock) *CreationLimiter {
	if now == nil {
		now = time.Now
	}
	return &CreationLimiter{perDay: perDay, perHour: perHour, now: now}
}

// Allow records a creation for ip and returns true, or returns false without
// recording when either cap is already reached.
func (l *CreationLimiter) Allow(ip string) bool {
	addr := CanonicalIP(ip)
	now := l.now()
	hourAgo := now.Add(-time.Hour)

	l.mu.Lock()
	defer l.mu.Unlock()
	var total, hour int
	for _, r := range l.records {
		if r.Addr != addr {
			continue
		}
		total++
		if r.Time.After(hourAgo) {
			hour++
		}
	}
	if total >= l.perDay || hour >= l.perHour {
		return false
	}
	l.records = append(l.records, CreationRecord{Addr: addr, Time: now})
	return true
}

// Len returns the number of stored records.
func (l *CreationLimiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// CanonicalIP parses ip (optionally with a port) and collapses IPv4-mapped
// IPv6 addresses to IPv4. Unparseable input maps to the zero Addr.
func CanonicalIP(ip string) netip.Addr {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		ap, perr := netip.ParseAddrPort(ip)
		if perr != nil {
			return netip.Addr{}
		}
		addr = ap.Addr()
	}
	return addr.Unmap().WithZone("")
}
