package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/docbench/docbench/lib/engine"
	"github.com/docbench/docbench/lib/logging"
)

var logger = logging.CreateLogger("engine/redis")

// classField is the reserved hash field holding a record's class name;
// document fields are stored under a "f:" prefix so they cannot collide
// with it.
const (
	classField  = "_class"
	fieldPrefix = "f:"
)

// placeholder credentials of the configuration resolver; Redis has no such
// account, they mean "no authentication" here.
const (
	placeholderUser     = "admin"
	placeholderPassword = "admin"
)

// --------------------------------------------------------------------------
// Driver Registration
// --------------------------------------------------------------------------

type redisDriver struct{}

func (redisDriver) Open(target engine.Target) (engine.Database, error) {
	return &database{
		target: target,
		ctx:    context.Background(),
	}, nil
}

func init() {
	engine.Register("remote", redisDriver{})
}

// --------------------------------------------------------------------------
// Database Session
// --------------------------------------------------------------------------

// database is one session to a database stored in a Redis instance. All
// keys of the database live under the prefix "db:<name>:"; concurrent
// sessions coordinate purely through Redis.
type database struct {
	target engine.Target
	ctx    context.Context

	client   *redis.Client
	user     string
	password string
	open     bool

	// Effective credentials the cached client was dialed with. When Open
	// supplies different ones the client is stale and must be re-dialed.
	dialedUser     string
	dialedPassword string
}

// Key layout helpers.

func (db *database) prefix() string {
	return "db:" + db.target.Name + ":"
}

func (db *database) kMeta() string    { return db.prefix() + "meta" }
func (db *database) kClasses() string { return db.prefix() + "classes" }
func (db *database) kDict() string    { return db.prefix() + "dict" }
func (db *database) kRIDs() string    { return db.prefix() + "rids" }

func (db *database) docKey(rid string) string {
	return db.prefix() + "doc:" + rid
}

// clientOptions maps a target and credentials onto go-redis options. The
// resolver's placeholder credentials mean "no authentication" here.
func clientOptions(target engine.Target, user, password string) *redis.Options {
	if user == placeholderUser && password == placeholderPassword {
		user, password = "", ""
	}
	return &redis.Options{
		Addr:     target.Location,
		Username: user,
		Password: password,
	}
}

// ensureClient dials the Redis instance on first use. Lifecycle calls
// (Exists/Create/Drop) are valid on a closed session, so the client is
// created lazily rather than in Open. A client dialed before Open set the
// session credentials is discarded and re-dialed with them.
func (db *database) ensureClient() error {
	opts := clientOptions(db.target, db.user, db.password)

	if db.client != nil {
		if db.dialedUser == opts.Username && db.dialedPassword == opts.Password {
			return nil
		}
		db.client.Close()
		db.client = nil
	}

	client := redis.NewClient(opts)
	if err := client.Ping(db.ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("redis: connecting to %s: %w", db.target.Location, err)
	}

	db.client = client
	db.dialedUser = opts.Username
	db.dialedPassword = opts.Password
	return nil
}

func (db *database) requireOpen() error {
	if !db.open || db.client == nil {
		return engine.ErrDatabaseClosed
	}
	return nil
}

// --------------------------------------------------------------------------
// Interface Methods - Lifecycle (docu see engine.Database)
// --------------------------------------------------------------------------

func (db *database) Exists() (bool, error) {
	if err := db.ensureClient(); err != nil {
		return false, err
	}
	n, err := db.client.Exists(db.ctx, db.kMeta()).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (db *database) Create() error {
	if err := db.ensureClient(); err != nil {
		return err
	}

	created, err := db.client.SetNX(db.ctx, db.kMeta(), "1", 0).Result()
	if err != nil {
		return err
	}
	if !created {
		return engine.ErrStorageExists
	}

	logger.Debugf("created database %s at %s", db.target.Name, db.target.Location)
	db.open = true
	return nil
}

func (db *database) Open(user, password string) error {
	if db.open {
		return nil
	}

	db.user = user
	db.password = password

	exists, err := db.Exists()
	if err != nil {
		return err
	}
	if !exists {
		return engine.ErrDatabaseNotFound
	}

	db.open = true
	return nil
}

func (db *database) Close() error {
	db.open = false
	if db.client == nil {
		return nil
	}
	err := db.client.Close()
	db.client = nil
	return err
}

func (db *database) IsClosed() bool {
	return !db.open
}

func (db *database) Drop() error {
	if err := db.ensureClient(); err != nil {
		return err
	}

	exists, err := db.Exists()
	if err != nil {
		return err
	}
	if !exists {
		return engine.ErrDatabaseNotFound
	}

	iter := db.client.Scan(db.ctx, 0, db.prefix()+"*", 512).Iterator()
	var keys []string
	for iter.Next(db.ctx) {
		keys = append(keys, iter.Val())
		if len(keys) == 512 {
			if err := db.client.Del(db.ctx, keys...).Err(); err != nil {
				return err
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) > 0 {
		if err := db.client.Del(db.ctx, keys...).Err(); err != nil {
			return err
		}
	}

	logger.Debugf("dropped database %s at %s", db.target.Name, db.target.Location)
	db.open = false
	return nil
}

// --------------------------------------------------------------------------
// Interface Methods - Schema (docu see engine.Database)
// --------------------------------------------------------------------------

func (db *database) ExistsClass(name string) (bool, error) {
	if err := db.requireOpen(); err != nil {
		return false, err
	}
	return db.client.SIsMember(db.ctx, db.kClasses(), name).Result()
}

func (db *database) CreateClass(name string) error {
	if err := db.requireOpen(); err != nil {
		return err
	}
	// SADD is atomic, so the not-yet-committed race of embedded engines
	// cannot occur here.
	return db.client.SAdd(db.ctx, db.kClasses(), name).Err()
}

// --------------------------------------------------------------------------
// Interface Methods - Records (docu see engine.Database)
// --------------------------------------------------------------------------

func (db *database) Save(doc *engine.Document) error {
	if err := db.requireOpen(); err != nil {
		return err
	}

	if doc.RID() == "" {
		doc.SetRID(uuid.NewString())
	}

	fields := doc.Fields()
	values := make(map[string]interface{}, len(fields)+1)
	values[classField] = doc.Class()
	for name, value := range fields {
		values[fieldPrefix+name] = value
	}

	return db.client.HSet(db.ctx, db.docKey(doc.RID()), values).Err()
}

func (db *database) Dictionary() engine.Dictionary {
	return &dictionary{db: db}
}

// --------------------------------------------------------------------------
// Dictionary Implementation
// --------------------------------------------------------------------------

// dictionary stores the key index twice: a hash for point lookups
// (key → RID) and a zero-score sorted set whose lexicographic member order
// provides ascending range iteration.
type dictionary struct {
	db *database
}

func (d *dictionary) Put(key string, doc *engine.Document) error {
	if err := d.db.requireOpen(); err != nil {
		return err
	}
	if doc.RID() == "" {
		return engine.ErrDocumentNotSaved
	}

	pipe := d.db.client.TxPipeline()
	pipe.HSet(d.db.ctx, d.db.kRIDs(), key, doc.RID())
	pipe.ZAdd(d.db.ctx, d.db.kDict(), redis.Z{Score: 0, Member: key})
	_, err := pipe.Exec(d.db.ctx)
	return err
}

func (d *dictionary) Get(key string) (*engine.Document, bool, error) {
	if err := d.db.requireOpen(); err != nil {
		return nil, false, err
	}

	rid, err := d.db.client.HGet(d.db.ctx, d.db.kRIDs(), key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	values, err := d.db.client.HGetAll(d.db.ctx, d.db.docKey(rid)).Result()
	if err != nil {
		return nil, false, err
	}
	if len(values) == 0 {
		return nil, false, nil
	}

	doc := engine.NewDocument(values[classField])
	doc.SetRID(rid)
	for name, value := range values {
		if len(name) > len(fieldPrefix) && name[:len(fieldPrefix)] == fieldPrefix {
			doc.SetField(name[len(fieldPrefix):], value)
		}
	}
	return doc, true, nil
}

func (d *dictionary) Remove(key string) error {
	if err := d.db.requireOpen(); err != nil {
		return err
	}

	pipe := d.db.client.TxPipeline()
	pipe.HDel(d.db.ctx, d.db.kRIDs(), key)
	pipe.ZRem(d.db.ctx, d.db.kDict(), key)
	_, err := pipe.Exec(d.db.ctx)
	return err
}

func (d *dictionary) IterateMajor(startKey string) (engine.Cursor, error) {
	if err := d.db.requireOpen(); err != nil {
		return nil, err
	}

	keys, err := d.db.client.ZRangeByLex(d.db.ctx, d.db.kDict(), &redis.ZRangeBy{
		Min: "[" + startKey,
		Max: "+",
	}).Result()
	if err != nil {
		return nil, err
	}

	return &cursor{dict: d, keys: keys}, nil
}

// cursor resolves a point-in-time key range lazily, one record per Next.
// Keys whose record vanished since the range was taken are skipped.
type cursor struct {
	dict *dictionary
	keys []string
	pos  int
}

func (c *cursor) Next() (string, *engine.Document, bool) {
	for c.pos < len(c.keys) {
		key := c.keys[c.pos]
		c.pos++

		doc, found, err := c.dict.Get(key)
		if err != nil {
			logger.Warningf("resolving key %q during scan: %v", key, err)
			return "", nil, false
		}
		if found {
			return key, doc, true
		}
	}
	return "", nil, false
}

func (c *cursor) Close() error {
	c.keys = nil
	return nil
}
