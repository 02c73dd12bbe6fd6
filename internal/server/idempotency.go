package server

import (
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/tallystack/treasury/internal/auth"
)

// HeaderIdempotencyKey lets clients retry mutating requests safely.
const HeaderIdempotencyKey = "Idempotency-Key"

// HeaderIdempotentReplay marks a response served from the recorded first
// execution rather than a fresh one.
const HeaderIdempotentReplay = "Idempotent-Replay"

// DefaultIdempotencyTTL is how long a recorded response stays replayable.
const DefaultIdempotencyTTL = 24 * time.Hour

type idempotencyEntry struct {
	status      int
	contentType string
	body        []byte
	expiresAt   time.Time
}

// idempotencyCache records the first response per key. Expired entries
// are purged lazily on write.
type idempotencyCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	clock   func() time.Time
	entries map[string]idempotencyEntry
}

func newIdempotencyCache(ttl time.Duration) *idempotencyCache {
	return &idempotencyCache{
		ttl:     ttl,
		clock:   time.Now,
		entries: make(map[string]idempotencyEntry),
	}
}

func (ic *idempotencyCache) get(key string) (idempotencyEntry, bool) {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	entry, ok := ic.entries[key]
	if !ok {
		return idempotencyEntry{}, false
	}

	if ic.clock().After(entry.expiresAt) {
		delete(ic.entries, key)
		return idempotencyEntry{}, false
	}

	return entry, true
}

func (ic *idempotencyCache) put(key string, status int, contentType string, body []byte) {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	now := ic.clock()
	for k, e := range ic.entries {
		if now.After(e.expiresAt) {
			delete(ic.entries, k)
		}
	}

	ic.entries[key] = idempotencyEntry{
		status:      status,
		contentType: contentType,
		body:        append([]byte(nil), body...),
		expiresAt:   now.Add(ic.ttl),
	}
}

// idempotent replays the recorded response when a request repeats an
// Idempotency-Key. Only 2xx responses are recorded, so a failed attempt
// can be retried with the same key. Keys are scoped to caller, method
// and path; reusing a key on a different route is a fresh request.
func (s *Server) idempotent(h fiber.Handler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get(HeaderIdempotencyKey)
		if key == "" {
			return h(c)
		}

		caller, err := auth.Caller(c)
		if err != nil {
			return err
		}

		scoped := strings.Join([]string{caller.String(), c.Method(), c.Path(), key}, "|")

		if entry, ok := s.idem.get(scoped); ok {
			c.Set(HeaderIdempotentReplay, "true")
			c.Set(fiber.HeaderContentType, entry.contentType)

			return c.Status(entry.status).Send(entry.body)
		}

		if err := h(c); err != nil {
			return err
		}

		status := c.Response().StatusCode()
		if status >= 200 && status < 300 {
			s.idem.put(scoped, status, string(c.Response().Header.ContentType()), c.Response().Body())
		}

		return nil
	}
}
