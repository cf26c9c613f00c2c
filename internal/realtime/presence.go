package realtime

import (
	"sync"
	"time"
)

// PresenceRecord is a lightweight "who is viewing what" marker. Presence is
// diagnostic display data only; event delivery does not depend on it.
type PresenceRecord struct {
	Key      string    `json:"key"`
	Viewer   string    `json:"viewer"`
	JoinedAt time.Time `json:"joined_at"`
}

// Presence tracks viewers per key. Track returns an untrack function, so a
// consumer pairs it with its unmount the same way it pairs Subscribe with
// unsubscribe.
type Presence struct {
	mu      sync.Mutex
	records map[string]map[string]PresenceRecord // key -> viewer -> record
}

func NewPresence() *Presence {
	return &Presence{records: make(map[string]map[string]PresenceRecord)}
}

func (p *Presence) Track(key, viewer string) func() {
	p.mu.Lock()
	bucket, ok := p.records[key]
	if !ok {
		bucket = make(map[string]PresenceRecord)
		p.records[key] = bucket
	}
	bucket[viewer] = PresenceRecord{Key: key, Viewer: viewer, JoinedAt: time.Now()}
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			if bucket, ok := p.records[key]; ok {
				delete(bucket, viewer)
				if len(bucket) == 0 {
					delete(p.records, key)
				}
			}
			p.mu.Unlock()
		})
	}
}

// Viewers lists current presence records for a key.
func (p *Presence) Viewers(key string) []PresenceRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PresenceRecord, 0, len(p.records[key]))
	for _, r := range p.records[key] {
		out = append(out, r)
	}
	return out
}
