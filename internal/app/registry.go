package app

import (
	"slices"
	"strings"
	"sync"

	"github.com/pscheid92/livetranslate/internal/domain"
	"github.com/pscheid92/livetranslate/internal/metrics"
)

// ChannelRegistry maps language codes to channels. All access goes through
// its methods; callers iterate over snapshots only.
type ChannelRegistry struct {
	mu       sync.RWMutex
	channels map[string]*LanguageChannel
}

func NewChannelRegistry() *ChannelRegistry {
	return &ChannelRegistry{channels: make(map[string]*LanguageChannel)}
}

// Add registers ch under its code. It fails with domain.ErrChannelExists if
// the code is taken.
func (r *ChannelRegistry) Add(ch *LanguageChannel) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.channels[ch.Code()]; ok {
		return domain.ErrChannelExists
	}
	r.channels[ch.Code()] = ch
	metrics.ChannelsActive.Set(float64(len(r.channels)))
	return nil
}

func (r *ChannelRegistry) Get(code string) (*LanguageChannel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[code]
	return ch, ok
}

// Snapshot returns the registered channels ordered by code.
func (r *ChannelRegistry) Snapshot() []*LanguageChannel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedLocked()
}

// Clear empties the registry and returns what it held.
func (r *ChannelRegistry) Clear() []*LanguageChannel {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := r.sortedLocked()
	clear(r.channels)
	metrics.ChannelsActive.Set(0)
	return removed
}

func (r *ChannelRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

func (r *ChannelRegistry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	codes := make([]string, 0, len(r.channels))
	for code := range r.channels {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	return codes
}

func (r *ChannelRegistry) sortedLocked() []*LanguageChannel {
	out := make([]*LanguageChannel, 0, len(r.channels))
	for _, ch := range r.channels {
		out = append(out, ch)
	}
	slices.SortFunc(out, func(a, b *LanguageChannel) int { return strings.Compare(a.Code(), b.Code()) })
	return out
}
