package services

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tidewell/suggestbox/utils"
)

const sessionKeyPrefix = "session:"

type memSession struct {
	userID    uint
	expiresAt time.Time
}

// SessionManager issues and resolves opaque session tokens. A token is an
// HS256-signed wrapper around a random session id; the session is live only
// while its id exists in the backing store, so End invalidates every copy of
// the token immediately. Redis is preferred; without it an in-memory map
// serves single-instance deployments.
type SessionManager struct {
	secret string
	ttl    time.Duration
	rdb    *redis.Client
	creds  *CredentialStore

	mu  sync.Mutex
	mem map[string]memSession
}

func NewSessionManager(secret string, ttl time.Duration, rdb *redis.Client, creds *CredentialStore) *SessionManager {
	return &SessionManager{
		secret: secret,
		ttl:    ttl,
		rdb:    rdb,
		creds:  creds,
		mem:    make(map[string]memSession),
	}
}

// Start opens a session for the given user and returns the token. Multiple
// sessions per user may coexist; each carries its own id.
func (m *SessionManager) Start(userID uint) (string, error) {
	sid := uuid.NewString()
	if err := m.storePut(sid, userID); err != nil {
		return "", err
	}
	token, err := utils.SignSessionToken(m.secret, userID, sid, m.ttl)
	if err != nil {
		m.storeDel(sid)
		return "", err
	}
	return token, nil
}

// Resolve maps a token to a live user id. Any failure — bad signature,
// expired token, ended session, deleted user — yields ErrUnauthenticated;
// callers treat that as an anonymous request, never a 500.
func (m *SessionManager) Resolve(token string) (uint, error) {
	claims, err := utils.ParseSessionToken(m.secret, token)
	if err != nil {
		return 0, ErrUnauthenticated
	}
	userID, ok := m.storeGet(claims.SessionID)
	if !ok || userID != claims.UserID {
		return 0, ErrUnauthenticated
	}
	// A session whose user has since disappeared is dead.
	if _, err := m.creds.GetUser(userID); err != nil {
		m.storeDel(claims.SessionID)
		return 0, ErrUnauthenticated
	}
	return userID, nil
}

// End terminates the session behind the token. Idempotent: unknown, expired
// and already-ended tokens all succeed silently.
func (m *SessionManager) End(token string) {
	claims, err := utils.ParseSessionToken(m.secret, token)
	if err != nil {
		return
	}
	m.storeDel(claims.SessionID)
}

func (m *SessionManager) storePut(sid string, userID uint) error {
	if m.rdb != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return m.rdb.Set(ctx, sessionKeyPrefix+sid, strconv.FormatUint(uint64(userID), 10), m.ttl).Err()
	}
	m.mu.Lock()
	m.mem[sid] = memSession{userID: userID, expiresAt: time.Now().Add(m.ttl)}
	m.mu.Unlock()
	return nil
}

func (m *SessionManager) storeGet(sid string) (uint, bool) {
	if m.rdb != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		v, err := m.rdb.Get(ctx, sessionKeyPrefix+sid).Result()
		if err != nil {
			return 0, false
		}
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, false
		}
		return uint(n), true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.mem[sid]
	if !ok {
		return 0, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(m.mem, sid)
		return 0, false
	}
	return entry.userID, true
}

func (m *SessionManager) storeDel(sid string) {
	if m.rdb != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = m.rdb.Del(ctx, sessionKeyPrefix+sid).Err()
		return
	}
	m.mu.Lock()
	delete(m.mem, sid)
	m.mu.Unlock()
}
