package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

//go:embed putif.lua
var putIfScript string

//go:embed delete.lua
var deleteScript string

// Redis implements Store on a shared Redis instance, making it the backend
// for multi-process deployments. Conditional writes and index maintenance
// run inside Lua scripts, so they are atomic on the server regardless of
// how many limiter processes share the instance.
//
// Row expiry uses native Redis TTLs. Partition and index sets can briefly
// retain members for expired rows; reads detect and remove them, so query
// results never include expired rows. The backend does not implement
// Purger since Redis reclaims expired rows itself.
type Redis struct {
	client    *redis.Client
	prefix    string
	indexes   map[string]map[string]Index
	putIfSHA  string
	deleteSHA string
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	// Client is the go-redis client to use. Required.
	Client *redis.Client

	// Indexes declares the secondary indexes the backend serves.
	Indexes []Index

	// KeyPrefix namespaces every key written by the backend.
	// Default: "tollgate".
	KeyPrefix string
}

// NewRedis creates a Redis backend with the default key prefix and no
// secondary indexes.
func NewRedis(client *redis.Client) (*Redis, error) {
	return NewRedisWithConfig(RedisConfig{Client: client})
}

// NewRedisWithConfig creates a Redis backend with custom configuration. It
// pings the server and loads the backing scripts, so construction fails
// fast when the instance is unreachable.
func NewRedisWithConfig(cfg RedisConfig) (*Redis, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "tollgate"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := cfg.Client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	putIfSHA, err := cfg.Client.ScriptLoad(ctx, putIfScript).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load putif script: %w", err)
	}
	deleteSHA, err := cfg.Client.ScriptLoad(ctx, deleteScript).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load delete script: %w", err)
	}

	r := &Redis{
		client:    cfg.Client,
		prefix:    cfg.KeyPrefix,
		indexes:   make(map[string]map[string]Index),
		putIfSHA:  putIfSHA,
		deleteSHA: deleteSHA,
	}
	for _, idx := range cfg.Indexes {
		byName, ok := r.indexes[idx.Table]
		if !ok {
			byName = make(map[string]Index)
			r.indexes[idx.Table] = byName
		}
		byName[idx.Name] = idx
	}
	return r, nil
}

// rowEnvelope is the JSON document stored at each row key. The expiry is
// carried inside the document so reads can report it without a second
// round trip for the key TTL.
type rowEnvelope struct {
	Attrs     Attributes `json:"a"`
	ExpiresAt int64      `json:"x"`
}

// Get returns the live row at key.
func (r *Redis) Get(ctx context.Context, table string, key Key) (Row, error) {
	raw, err := r.client.Get(ctx, r.rowKey(table, key)).Result()
	if err == redis.Nil {
		return Row{}, ErrNotFound
	}
	if err != nil {
		return Row{}, fmt.Errorf("failed to get row: %w", err)
	}
	return decodeEnvelope(key, raw)
}

// Put unconditionally upserts the row.
func (r *Redis) Put(ctx context.Context, table string, row Row) error {
	return r.write(ctx, table, row, "none", "{}")
}

// PutIf upserts the row only while cond holds against the stored state.
func (r *Redis) PutIf(ctx context.Context, table string, row Row, cond Condition) error {
	mode := "match"
	expected := "{}"
	if cond.absent {
		mode = "absent"
	} else if len(cond.match) > 0 {
		raw, err := json.Marshal(cond.match)
		if err != nil {
			return fmt.Errorf("failed to marshal expected attributes: %w", err)
		}
		expected = string(raw)
	}
	return r.write(ctx, table, row, mode, expected)
}

func (r *Redis) write(ctx context.Context, table string, row Row, mode, expected string) error {
	attrs := row.Attrs
	if attrs == nil {
		attrs = Attributes{}
	}
	var expiresAt int64
	if !row.ExpiresAt.IsZero() {
		expiresAt = row.ExpiresAt.UnixMilli()
	}
	envelope, err := json.Marshal(rowEnvelope{Attrs: attrs, ExpiresAt: expiresAt})
	if err != nil {
		return fmt.Errorf("failed to marshal row: %w", err)
	}

	keys := []string{r.rowKey(table, row.Key), r.partitionKey(table, row.Key.Hash)}
	args := []any{mode, expected, string(envelope), expiresAt, row.Key.Range, member(row.Key)}
	args = r.appendIndexArgs(args, table)

	applied, err := r.client.EvalSha(ctx, r.putIfSHA, keys, args...).Int()
	if err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	if applied == 0 {
		return ErrConditionFailed
	}
	return nil
}

// Delete removes the row at key. Absent rows are not an error.
func (r *Redis) Delete(ctx context.Context, table string, key Key) error {
	keys := []string{r.rowKey(table, key), r.partitionKey(table, key.Hash)}
	args := []any{key.Range, member(key)}
	args = r.appendIndexArgs(args, table)

	if err := r.client.EvalSha(ctx, r.deleteSHA, keys, args...).Err(); err != nil {
		return fmt.Errorf("failed to delete row: %w", err)
	}
	return nil
}

// Query returns all live rows sharing the partition key, ordered by range
// key.
func (r *Redis) Query(ctx context.Context, table string, hash string) ([]Row, error) {
	partKey := r.partitionKey(table, hash)
	members, err := r.client.SMembers(ctx, partKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read partition set: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}
	sort.Strings(members)

	rowKeys := make([]string, len(members))
	for i, rk := range members {
		rowKeys[i] = r.rowKey(table, Key{Hash: hash, Range: rk})
	}
	values, err := r.client.MGet(ctx, rowKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	var out []Row
	var stale []any
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Row expired out from under the set; drop the member.
			stale = append(stale, members[i])
			continue
		}
		row, err := decodeEnvelope(Key{Hash: hash, Range: members[i]}, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if len(stale) > 0 {
		r.client.SRem(ctx, partKey, stale...)
	}
	return out, nil
}

// QueryIndex returns all live rows whose indexed attribute equals value.
func (r *Redis) QueryIndex(ctx context.Context, table, index, value string) ([]Row, error) {
	idx, ok := r.indexes[table][index]
	if !ok {
		return nil, &UnknownIndexError{Table: table, Index: index}
	}

	setKey := r.indexPrefix(table, index) + value
	members, err := r.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read index set: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}
	sort.Strings(members)

	keys := make([]Key, len(members))
	rowKeys := make([]string, len(members))
	for i, m := range members {
		hash, rk, _ := strings.Cut(m, keySeparator)
		keys[i] = Key{Hash: hash, Range: rk}
		rowKeys[i] = r.rowKey(table, keys[i])
	}
	values, err := r.client.MGet(ctx, rowKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	var out []Row
	var stale []any
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, members[i])
			continue
		}
		row, err := decodeEnvelope(keys[i], raw)
		if err != nil {
			return nil, err
		}
		// The row may have been rewritten with a different attribute value
		// after this member was added; trust the row, not the set.
		if s, ok := row.Attrs.String(idx.Attribute); !ok || s != value {
			stale = append(stale, members[i])
			continue
		}
		out = append(out, row)
	}
	if len(stale) > 0 {
		r.client.SRem(ctx, setKey, stale...)
	}
	return out, nil
}

// Close releases the underlying client connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

// appendIndexArgs appends the declared index count and (prefix, attribute)
// pairs for the table, matching the tail ARGV layout both scripts share.
func (r *Redis) appendIndexArgs(args []any, table string) []any {
	byName := r.indexes[table]
	args = append(args, len(byName))
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		args = append(args, r.indexPrefix(table, name), byName[name].Attribute)
	}
	return args
}

const keySeparator = "\x1f"

func (r *Redis) rowKey(table string, k Key) string {
	return r.prefix + ":" + table + ":r:" + k.Hash + keySeparator + k.Range
}

func (r *Redis) partitionKey(table, hash string) string {
	return r.prefix + ":" + table + ":p:" + hash
}

func (r *Redis) indexPrefix(table, index string) string {
	return r.prefix + ":" + table + ":i:" + index + ":"
}

func member(k Key) string {
	return k.Hash + keySeparator + k.Range
}

func decodeEnvelope(key Key, raw string) (Row, error) {
	var env rowEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return Row{}, fmt.Errorf("failed to unmarshal row: %w", err)
	}
	row := Row{Key: key, Attrs: env.Attrs}
	if env.ExpiresAt != 0 {
		row.ExpiresAt = time.UnixMilli(env.ExpiresAt)
	}
	return row, nil
}
