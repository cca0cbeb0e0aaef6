package bbolt

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/jrife/marmot/storage/kv"
	"github.com/jrife/marmot/utils/uuid"
	bolt "go.etcd.io/bbolt"
)

const (
	// DriverName is the name of this driver
	DriverName = "bbolt"
)

var (
	dataBucket = []byte("data")
	// versions drive optimistic lock conflict detection: every write
	// or delete of a key bumps its counter, so a commit can tell that
	// a locked key changed even if its value was restored in between
	versionsBucket = []byte("vers")
)

// Plugins returns the plugins implemented by this package
func Plugins() []kv.Plugin {
	return []kv.Plugin{
		&BBoltPlugin{},
	}
}

// BBoltPlugin is the bbolt transport driver
type BBoltPlugin struct {
}

// Name implements kv.Plugin.Name
func (plugin *BBoltPlugin) Name() string {
	return DriverName
}

// NewTransport implements kv.Plugin.NewTransport
func (plugin *BBoltPlugin) NewTransport(options kv.PluginOptions) (kv.Transport, error) {
	var config BBoltTransportConfig

	if path, ok := options["path"]; !ok {
		return nil, fmt.Errorf("\"path\" is required")
	} else if pathString, ok := path.(string); !ok {
		return nil, fmt.Errorf("\"path\" must be a string")
	} else {
		config.Path = pathString
	}

	transport, err := New(config)

	if err != nil {
		return nil, err
	}

	return transport, nil
}

// NewTempTransport implements kv.Plugin.NewTempTransport
func (plugin *BBoltPlugin) NewTempTransport() (kv.Transport, error) {
	return plugin.NewTransport(kv.PluginOptions{
		"path": fmt.Sprintf("%s/bbolt-%s", os.TempDir(), uuid.MustUUID()),
	})
}

// BBoltTransportConfig contains configuration for a bbolt transport
type BBoltTransportConfig struct {
	Path string
}

var _ kv.Transport = (*BBoltTransport)(nil)

// BBoltTransport is a transport backed by a local bbolt database
type BBoltTransport struct {
	db *bolt.DB
}

// New creates a bbolt transport at the configured path
func New(config BBoltTransportConfig) (*BBoltTransport, error) {
	db, err := bolt.Open(config.Path, 0666, nil)

	if err != nil {
		return nil, fmt.Errorf("could not open bbolt store at %s: %s", config.Path, err.Error())
	}

	if err := db.Update(func(txn *bolt.Tx) error {
		if _, err := txn.CreateBucketIfNotExists(dataBucket); err != nil {
			return err
		}

		_, err := txn.CreateBucketIfNotExists(versionsBucket)

		return err
	}); err != nil {
		db.Close()

		return nil, fmt.Errorf("could not ensure buckets exist: %s", err.Error())
	}

	return &BBoltTransport{db: db}, nil
}

// Connect implements kv.Transport.Connect
func (transport *BBoltTransport) Connect(ctx context.Context) (kv.Conn, error) {
	return &bboltConn{transport: transport, locks: make(map[string]uint64)}, nil
}

// Close implements kv.Transport.Close
func (transport *BBoltTransport) Close() error {
	return transport.db.Close()
}

// Delete closes the transport and removes its backing file
func (transport *BBoltTransport) Delete() error {
	path := transport.db.Path()

	if err := transport.Close(); err != nil {
		return fmt.Errorf("could not close transport: %s", err.Error())
	}

	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("could not remove path %s: %s", path, err.Error())
	}

	return nil
}

func version(txn *bolt.Tx, key []byte) uint64 {
	v := txn.Bucket(versionsBucket).Get(key)

	if len(v) != 8 {
		return 0
	}

	return binary.BigEndian.Uint64(v)
}

func bumpVersion(txn *bolt.Tx, key []byte) error {
	v := make([]byte, 8)
	binary.BigEndian.PutUint64(v, version(txn, key)+1)

	return txn.Bucket(versionsBucket).Put(key, v)
}

func set(txn *bolt.Tx, key []byte, value []byte) error {
	if err := txn.Bucket(dataBucket).Put(key, value); err != nil {
		return err
	}

	return bumpVersion(txn, key)
}

func del(txn *bolt.Tx, key []byte) error {
	if txn.Bucket(dataBucket).Get(key) == nil {
		return nil
	}

	if err := txn.Bucket(dataBucket).Delete(key); err != nil {
		return err
	}

	return bumpVersion(txn, key)
}

func translateError(err error) error {
	if err == bolt.ErrDatabaseNotOpen {
		return kv.ErrClosed
	}

	return err
}

var _ kv.Conn = (*bboltConn)(nil)

type bboltConn struct {
	transport *BBoltTransport
	locks     map[string]uint64
	closed    bool
}

// Exists implements kv.Conn.Exists
func (conn *bboltConn) Exists(ctx context.Context, key []byte) (bool, error) {
	if conn.closed {
		return false, kv.ErrClosed
	}

	var ok bool

	if err := conn.transport.db.View(func(txn *bolt.Tx) error {
		ok = txn.Bucket(dataBucket).Get(key) != nil

		return nil
	}); err != nil {
		return false, translateError(err)
	}

	return ok, nil
}

// Get implements kv.Conn.Get
func (conn *bboltConn) Get(ctx context.Context, key []byte) ([]byte, error) {
	if conn.closed {
		return nil, kv.ErrClosed
	}

	var value []byte

	if err := conn.transport.db.View(func(txn *bolt.Tx) error {
		v := txn.Bucket(dataBucket).Get(key)

		if v == nil {
			return kv.ErrNotFound
		}

		// v is only valid for the duration of the bolt transaction
		value = make([]byte, len(v))
		copy(value, v)

		return nil
	}); err != nil {
		return nil, translateError(err)
	}

	return value, nil
}

// Set implements kv.Conn.Set
func (conn *bboltConn) Set(ctx context.Context, key []byte, value []byte) error {
	if conn.closed {
		return kv.ErrClosed
	}

	return translateError(conn.transport.db.Update(func(txn *bolt.Tx) error {
		return set(txn, key, value)
	}))
}

// Delete implements kv.Conn.Delete
func (conn *bboltConn) Delete(ctx context.Context, key []byte) error {
	if conn.closed {
		return kv.ErrClosed
	}

	return translateError(conn.transport.db.Update(func(txn *bolt.Tx) error {
		return del(txn, key)
	}))
}

// Scan implements kv.Conn.Scan
func (conn *bboltConn) Scan(ctx context.Context, prefix []byte) ([][]byte, error) {
	if conn.closed {
		return nil, kv.ErrClosed
	}

	keys := [][]byte{}

	if err := conn.transport.db.View(func(txn *bolt.Tx) error {
		cursor := txn.Bucket(dataBucket).Cursor()

		for k, _ := cursor.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = cursor.Next() {
			key := make([]byte, len(k))
			copy(key, k)
			keys = append(keys, key)
		}

		return nil
	}); err != nil {
		return nil, translateError(err)
	}

	return keys, nil
}

// Lock implements kv.Conn.Lock
func (conn *bboltConn) Lock(ctx context.Context, key []byte) error {
	if conn.closed {
		return kv.ErrClosed
	}

	return translateError(conn.transport.db.View(func(txn *bolt.Tx) error {
		conn.locks[string(key)] = version(txn, key)

		return nil
	}))
}

// Unlock implements kv.Conn.Unlock
func (conn *bboltConn) Unlock(ctx context.Context, key []byte) error {
	if conn.closed {
		return kv.ErrClosed
	}

	delete(conn.locks, string(key))

	return nil
}

// Begin implements kv.Conn.Begin
func (conn *bboltConn) Begin() kv.Txn {
	return &bboltTxn{conn: conn}
}

// Close implements kv.Conn.Close
func (conn *bboltConn) Close() error {
	conn.closed = true
	conn.locks = make(map[string]uint64)

	return nil
}

type bboltCommand struct {
	delete bool
	key    []byte
	value  []byte
}

var _ kv.Txn = (*bboltTxn)(nil)

type bboltTxn struct {
	conn     *bboltConn
	commands []bboltCommand
}

// Set implements kv.Txn.Set
func (txn *bboltTxn) Set(key []byte, value []byte) {
	txn.commands = append(txn.commands, bboltCommand{key: key, value: value})
}

// Delete implements kv.Txn.Delete
func (txn *bboltTxn) Delete(key []byte) {
	txn.commands = append(txn.commands, bboltCommand{delete: true, key: key})
}

// Commit implements kv.Txn.Commit
func (txn *bboltTxn) Commit(ctx context.Context) error {
	if txn.conn.closed {
		return kv.ErrClosed
	}

	locks := txn.conn.locks
	txn.conn.locks = make(map[string]uint64)

	return translateError(txn.conn.transport.db.Update(func(boltTxn *bolt.Tx) error {
		for key, v := range locks {
			if version(boltTxn, []byte(key)) != v {
				return kv.ErrConflict
			}
		}

		for _, command := range txn.commands {
			if command.delete {
				if err := del(boltTxn, command.key); err != nil {
					return err
				}
			} else if err := set(boltTxn, command.key, command.value); err != nil {
				return err
			}
		}

		return nil
	}))
}
