package gate

import (
	"fmt"
	"sync"
	"time"
)

// Cooldown limits. Wallet, token and global use sliding windows; the
// cluster limit counts for the whole session.
const (
	walletLimit  = 3
	walletWindow = 24 * time.Hour

	tokenLimit  = 2
	tokenWindow = 12 * time.Hour

	clusterSessionLimit = 5

	globalLimit  = 10
	globalWindow = time.Hour
)

// CooldownTracker counts admitted trades per wallet, token, cluster and
// globally. All checks and increments happen under one lock so two
// concurrent evaluations can never both squeeze through the last slot.
type CooldownTracker struct {
	mu       sync.Mutex
	byWallet map[string][]int64 // Unix ms of reservations
	byToken  map[string][]int64
	cluster  map[string]int // session counts
	global   []int64
}

// NewCooldownTracker creates an empty tracker.
func NewCooldownTracker() *CooldownTracker {
	return &CooldownTracker{
		byWallet: make(map[string][]int64),
		byToken:  make(map[string][]int64),
		cluster:  make(map[string]int),
	}
}

// Reserve checks every applicable limit and, if all pass, counts the
// trade against each. Returns a non-empty reason when a limit is hit.
// clusterID may be empty for signals with no cluster attribution.
func (c *CooldownTracker) Reserve(wallet, token, clusterID string, now time.Time) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	at := now.UnixMilli()
	c.byWallet[wallet] = pruneBefore(c.byWallet[wallet], at-walletWindow.Milliseconds())
	c.byToken[token] = pruneBefore(c.byToken[token], at-tokenWindow.Milliseconds())
	c.global = pruneBefore(c.global, at-globalWindow.Milliseconds())

	if len(c.byWallet[wallet]) >= walletLimit {
		return fmt.Sprintf("wallet limit %d/24h reached", walletLimit)
	}
	if len(c.byToken[token]) >= tokenLimit {
		return fmt.Sprintf("token limit %d/12h reached", tokenLimit)
	}
	if clusterID != "" && c.cluster[clusterID] >= clusterSessionLimit {
		return fmt.Sprintf("cluster session limit %d reached", clusterSessionLimit)
	}
	if len(c.global) >= globalLimit {
		return fmt.Sprintf("global limit %d/1h reached", globalLimit)
	}

	c.byWallet[wallet] = append(c.byWallet[wallet], at)
	c.byToken[token] = append(c.byToken[token], at)
	if clusterID != "" {
		c.cluster[clusterID]++
	}
	c.global = append(c.global, at)
	return ""
}

// Release undoes one reservation, for evaluations vetoed after the
// cooldown gate or fills configured not to count.
func (c *CooldownTracker) Release(wallet, token, clusterID string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	at := now.UnixMilli()
	c.byWallet[wallet] = removeOne(c.byWallet[wallet], at)
	c.byToken[token] = removeOne(c.byToken[token], at)
	c.global = removeOne(c.global, at)
	if clusterID != "" && c.cluster[clusterID] > 0 {
		c.cluster[clusterID]--
	}
}

func pruneBefore(stamps []int64, cutoff int64) []int64 {
	kept := stamps[:0]
	for _, s := range stamps {
		if s >= cutoff {
			kept = append(kept, s)
		}
	}
	return kept
}

func removeOne(stamps []int64, at int64) []int64 {
	for i := len(stamps) - 1; i >= 0; i-- {
		if stamps[i] == at {
			return append(stamps[:i], stamps[i+1:]...)
		}
	}
	return stamps
}
