package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agentcraft-ai/agentcraft/core"
)

// RedisStore is a SessionStore backed by Redis, suitable for deployments
// where multiple processes share session state. Each session is stored as a
// JSON document under a prefixed key, with a per-user set indexing session
// IDs for listing.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ core.SessionStore = (*RedisStore)(nil)

// RedisOption customizes RedisStore behavior.
type RedisOption func(*RedisStore)

// WithKeyPrefix overrides the default "agentcraft:session" key prefix.
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *RedisStore) { r.prefix = prefix }
}

// WithTTL expires sessions after the given idle duration. Zero means no
// expiry.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *RedisStore) { r.ttl = ttl }
}

// NewRedisStore wraps an existing Redis client as a session store.
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	store := &RedisStore{
		client: client,
		prefix: "agentcraft:session",
	}
	for _, o := range opts {
		o(store)
	}
	return store
}

// NewRedisStoreFromAddr connects to addr (e.g. "localhost:6379") and verifies
// the connection before returning a store.
func NewRedisStoreFromAddr(addr string, opts ...RedisOption) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return NewRedisStore(client, opts...), nil
}

// Close releases the underlying Redis connection.
func (r *RedisStore) Close() error { return r.client.Close() }

func (r *RedisStore) sessionKey(key core.SessionKey) string {
	return fmt.Sprintf("%s:%s", r.prefix, key.String())
}

func (r *RedisStore) indexKey(appName, userID string) string {
	return fmt.Sprintf("%s:index:%s:%s", r.prefix, appName, userID)
}

// redisSession is the serialized form stored in Redis. Content implements
// custom JSON marshaling, so events round-trip losslessly.
type redisSession struct {
	AppName   string         `json:"app_name"`
	UserID    string         `json:"user_id"`
	SessionID string         `json:"session_id"`
	State     map[string]any `json:"state"`
	History   []core.Event   `json:"history"`
	Created   time.Time      `json:"created"`
	Updated   time.Time      `json:"updated"`
}

func toRedisSession(sess *core.Session) redisSession {
	return redisSession{
		AppName:   sess.Key.AppName,
		UserID:    sess.Key.UserID,
		SessionID: sess.Key.SessionID,
		State:     sess.State,
		History:   sess.History,
		Created:   sess.Created,
		Updated:   sess.Updated,
	}
}

func (rs redisSession) toSession() *core.Session {
	sess := core.NewSession(core.SessionKey{
		AppName:   rs.AppName,
		UserID:    rs.UserID,
		SessionID: rs.SessionID,
	})
	if rs.State != nil {
		sess.State = rs.State
	}
	sess.History = rs.History
	sess.Created = rs.Created
	sess.Updated = rs.Updated
	return sess
}

func (r *RedisStore) save(ctx context.Context, sess *core.Session) error {
	data, err := json.Marshal(toRedisSession(sess))
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.sessionKey(sess.Key), data, r.ttl)
	pipe.SAdd(ctx, r.indexKey(sess.Key.AppName, sess.Key.UserID), sess.Key.SessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (r *RedisStore) load(ctx context.Context, key core.SessionKey) (*core.Session, error) {
	data, err := r.client.Get(ctx, r.sessionKey(key)).Bytes()
	if err == redis.Nil {
		return nil, core.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var rs redisSession
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return rs.toSession(), nil
}

// Create creates (or resets) the session for key with the given initial
// state.
func (r *RedisStore) Create(key core.SessionKey, initialState map[string]any) (*core.Session, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	sess := core.NewSession(key)
	if len(initialState) > 0 {
		sess.MergeState(initialState)
	}
	if err := r.save(context.Background(), sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get loads the session for key or returns core.ErrSessionNotFound.
func (r *RedisStore) Get(key core.SessionKey) (*core.Session, error) {
	return r.load(context.Background(), key)
}

// GetOrCreate returns the existing session or creates an empty one.
func (r *RedisStore) GetOrCreate(key core.SessionKey) (*core.Session, error) {
	sess, err := r.Get(key)
	if err == nil {
		return sess, nil
	}
	if err != core.ErrSessionNotFound {
		return nil, err
	}
	return r.Create(key, nil)
}

// List returns the session IDs stored for an app/user pair.
func (r *RedisStore) List(appName, userID string) ([]string, error) {
	ids, err := r.client.SMembers(context.Background(), r.indexKey(appName, userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return ids, nil
}

// Delete removes the session and its index entry. Deleting a missing session
// is not an error.
func (r *RedisStore) Delete(key core.SessionKey) error {
	ctx := context.Background()
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.sessionKey(key))
	pipe.SRem(ctx, r.indexKey(key.AppName, key.UserID), key.SessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// AppendEvent adds an event to the session history, creating the session if
// needed.
func (r *RedisStore) AppendEvent(key core.SessionKey, ev core.Event) error {
	ctx := context.Background()
	sess, err := r.load(ctx, key)
	if err == core.ErrSessionNotFound {
		sess = core.NewSession(key)
	} else if err != nil {
		return err
	}
	sess.AddEvent(ev)
	return r.save(ctx, sess)
}

// ApplyDelta merges a key/value delta into the stored session state, creating
// the session if needed.
func (r *RedisStore) ApplyDelta(key core.SessionKey, delta map[string]any) error {
	if len(delta) == 0 {
		return nil
	}
	ctx := context.Background()
	sess, err := r.load(ctx, key)
	if err == core.ErrSessionNotFound {
		sess = core.NewSession(key)
	} else if err != nil {
		return err
	}
	sess.MergeState(delta)
	return r.save(ctx, sess)
}
