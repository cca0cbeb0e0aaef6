package etcd

import (
	"context"
	"fmt"
	"time"

	"github.com/jrife/marmot/storage/kv"
	"go.etcd.io/etcd/clientv3"
)

const (
	// DriverName is the name of this driver
	DriverName = "etcd"
	// DefaultDialTimeout bounds how long New waits for the initial
	// connection
	DefaultDialTimeout = 5 * time.Second
)

// Plugins returns the plugins implemented by this package
func Plugins() []kv.Plugin {
	return []kv.Plugin{
		&EtcdPlugin{},
	}
}

// EtcdPlugin is the etcd transport driver
type EtcdPlugin struct {
}

// Name implements kv.Plugin.Name
func (plugin *EtcdPlugin) Name() string {
	return DriverName
}

// NewTransport implements kv.Plugin.NewTransport
func (plugin *EtcdPlugin) NewTransport(options kv.PluginOptions) (kv.Transport, error) {
	var config EtcdTransportConfig

	if endpoints, ok := options["endpoints"]; !ok {
		return nil, fmt.Errorf("\"endpoints\" is required")
	} else if endpointsList, ok := endpoints.([]string); !ok {
		return nil, fmt.Errorf("\"endpoints\" must be a string list")
	} else {
		config.Endpoints = endpointsList
	}

	transport, err := New(config)

	if err != nil {
		return nil, err
	}

	return transport, nil
}

// NewTempTransport implements kv.Plugin.NewTempTransport. The etcd
// driver needs a running cluster, so there is no self-contained temp
// instance; conformance tests skip this driver.
func (plugin *EtcdPlugin) NewTempTransport() (kv.Transport, error) {
	return nil, fmt.Errorf("the etcd driver requires endpoints")
}

// EtcdTransportConfig contains configuration for an etcd transport
type EtcdTransportConfig struct {
	Endpoints   []string
	DialTimeout time.Duration
}

var _ kv.Transport = (*EtcdTransport)(nil)

// EtcdTransport is a transport backed by an etcd cluster. Optimistic
// locks are implemented with mod revisions: Lock records the locked
// key's mod revision and Commit submits a single etcd transaction
// guarded by a mod revision comparison, so the commit aborts exactly
// when another writer touched the key in between.
type EtcdTransport struct {
	client *clientv3.Client
}

// New creates an etcd transport connected to the configured endpoints
func New(config EtcdTransportConfig) (*EtcdTransport, error) {
	dialTimeout := config.DialTimeout

	if dialTimeout == 0 {
		dialTimeout = DefaultDialTimeout
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   config.Endpoints,
		DialTimeout: dialTimeout,
	})

	if err != nil {
		return nil, fmt.Errorf("could not connect to etcd at %v: %s", config.Endpoints, err.Error())
	}

	return &EtcdTransport{client: client}, nil
}

// Connect implements kv.Transport.Connect
func (transport *EtcdTransport) Connect(ctx context.Context) (kv.Conn, error) {
	return &etcdConn{transport: transport, locks: make(map[string]int64)}, nil
}

// Close implements kv.Transport.Close
func (transport *EtcdTransport) Close() error {
	return transport.client.Close()
}

var _ kv.Conn = (*etcdConn)(nil)

type etcdConn struct {
	transport *EtcdTransport
	locks     map[string]int64
	closed    bool
}

// Exists implements kv.Conn.Exists
func (conn *etcdConn) Exists(ctx context.Context, key []byte) (bool, error) {
	if conn.closed {
		return false, kv.ErrClosed
	}

	resp, err := conn.transport.client.Get(ctx, string(key), clientv3.WithCountOnly())

	if err != nil {
		return false, err
	}

	return resp.Count > 0, nil
}

// Get implements kv.Conn.Get
func (conn *etcdConn) Get(ctx context.Context, key []byte) ([]byte, error) {
	if conn.closed {
		return nil, kv.ErrClosed
	}

	resp, err := conn.transport.client.Get(ctx, string(key))

	if err != nil {
		return nil, err
	}

	if len(resp.Kvs) == 0 {
		return nil, kv.ErrNotFound
	}

	return resp.Kvs[0].Value, nil
}

// Set implements kv.Conn.Set
func (conn *etcdConn) Set(ctx context.Context, key []byte, value []byte) error {
	if conn.closed {
		return kv.ErrClosed
	}

	_, err := conn.transport.client.Put(ctx, string(key), string(value))

	return err
}

// Delete implements kv.Conn.Delete
func (conn *etcdConn) Delete(ctx context.Context, key []byte) error {
	if conn.closed {
		return kv.ErrClosed
	}

	_, err := conn.transport.client.Delete(ctx, string(key))

	return err
}

// Scan implements kv.Conn.Scan
func (conn *etcdConn) Scan(ctx context.Context, prefix []byte) ([][]byte, error) {
	if conn.closed {
		return nil, kv.ErrClosed
	}

	resp, err := conn.transport.client.Get(ctx, string(prefix), clientv3.WithPrefix(), clientv3.WithKeysOnly())

	if err != nil {
		return nil, err
	}

	keys := make([][]byte, len(resp.Kvs))

	for i, pair := range resp.Kvs {
		keys[i] = pair.Key
	}

	return keys, nil
}

// Lock implements kv.Conn.Lock. A key that does not exist is recorded
// with mod revision 0, which etcd treats as the mod revision of a
// missing key in transaction comparisons.
func (conn *etcdConn) Lock(ctx context.Context, key []byte) error {
	if conn.closed {
		return kv.ErrClosed
	}

	resp, err := conn.transport.client.Get(ctx, string(key))

	if err != nil {
		return err
	}

	var revision int64

	if len(resp.Kvs) > 0 {
		revision = resp.Kvs[0].ModRevision
	}

	conn.locks[string(key)] = revision

	return nil
}

// Unlock implements kv.Conn.Unlock
func (conn *etcdConn) Unlock(ctx context.Context, key []byte) error {
	if conn.closed {
		return kv.ErrClosed
	}

	delete(conn.locks, string(key))

	return nil
}

// Begin implements kv.Conn.Begin
func (conn *etcdConn) Begin() kv.Txn {
	return &etcdTxn{conn: conn}
}

// Close implements kv.Conn.Close
func (conn *etcdConn) Close() error {
	conn.closed = true
	conn.locks = make(map[string]int64)

	return nil
}

var _ kv.Txn = (*etcdTxn)(nil)

type etcdTxn struct {
	conn *etcdConn
	ops  []clientv3.Op
}

// Set implements kv.Txn.Set
func (txn *etcdTxn) Set(key []byte, value []byte) {
	txn.ops = append(txn.ops, clientv3.OpPut(string(key), string(value)))
}

// Delete implements kv.Txn.Delete
func (txn *etcdTxn) Delete(key []byte) {
	txn.ops = append(txn.ops, clientv3.OpDelete(string(key)))
}

// Commit implements kv.Txn.Commit
func (txn *etcdTxn) Commit(ctx context.Context) error {
	if txn.conn.closed {
		return kv.ErrClosed
	}

	locks := txn.conn.locks
	txn.conn.locks = make(map[string]int64)

	compares := make([]clientv3.Cmp, 0, len(locks))

	for key, revision := range locks {
		compares = append(compares, clientv3.Compare(clientv3.ModRevision(key), "=", revision))
	}

	resp, err := txn.conn.transport.client.Txn(ctx).If(compares...).Then(txn.ops...).Commit()

	if err != nil {
		return err
	}

	if !resp.Succeeded {
		return kv.ErrConflict
	}

	return nil
}
