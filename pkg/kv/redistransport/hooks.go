package redistransport

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/leafsii/kvconn/pkg/kv"
	"github.com/redis/go-redis/v9"
)

// observer turns go-redis dials and command failures into transport events
type observer struct {
	t *Transport
}

var _ redis.Hook = observer{}

func (o observer) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		if err == nil {
			o.t.emitter.Emit(kv.Event{Kind: kv.EventConnect, Addr: addr})
		}
		return conn, err
	}
}

func (o observer) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if IsConnectionError(err) {
			o.t.markDown(err)
		}
		return err
	}
}

func (o observer) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		if IsConnectionError(err) {
			o.t.markDown(err)
		}
		return err
	}
}

// IsConnectionError reports whether err means the server could not be reached,
// as opposed to a command-level reply error
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	// redis.Nil is a missing key
	if errors.Is(err, redis.Nil) {
		return false
	}

	// the caller gave up; the connection may be fine
	if errors.Is(err, context.Canceled) {
		return false
	}

	// closed by us, not lost
	if errors.Is(err, redis.ErrClosed) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var sysErr syscall.Errno
	if errors.As(err, &sysErr) {
		switch sysErr {
		case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ECONNABORTED, syscall.ETIMEDOUT:
			return true
		}
	}

	msg := err.Error()
	for _, fragment := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"network is unreachable",
		"i/o timeout",
		"EOF",
	} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// keyLayout says which arguments of a command are keys
type keyLayout int

const (
	firstKey keyLayout = iota
	allKeys
	alternatingKeys
)

var keyedCommands = map[string]keyLayout{
	// strings
	"get": firstKey, "set": firstKey, "setnx": firstKey, "setex": firstKey, "psetex": firstKey,
	"getset": firstKey, "getdel": firstKey, "getex": firstKey, "append": firstKey, "strlen": firstKey,
	"incr": firstKey, "incrby": firstKey, "incrbyfloat": firstKey, "decr": firstKey, "decrby": firstKey,
	"getrange": firstKey, "setrange": firstKey,
	// keys
	"expire": firstKey, "pexpire": firstKey, "expireat": firstKey, "pexpireat": firstKey,
	"ttl": firstKey, "pttl": firstKey, "persist": firstKey, "type": firstKey, "dump": firstKey,
	// hashes
	"hset": firstKey, "hsetnx": firstKey, "hget": firstKey, "hmset": firstKey, "hmget": firstKey,
	"hdel": firstKey, "hgetall": firstKey, "hexists": firstKey, "hincrby": firstKey, "hkeys": firstKey,
	"hvals": firstKey, "hlen": firstKey,
	// sets
	"sadd": firstKey, "srem": firstKey, "smembers": firstKey, "sismember": firstKey, "scard": firstKey,
	"spop": firstKey,
	// lists
	"lpush": firstKey, "rpush": firstKey, "lpop": firstKey, "rpop": firstKey, "lrange": firstKey,
	"llen": firstKey, "lindex": firstKey, "lset": firstKey, "ltrim": firstKey, "lrem": firstKey,
	// sorted sets
	"zadd": firstKey, "zrem": firstKey, "zrange": firstKey, "zscore": firstKey, "zcard": firstKey,
	"zincrby": firstKey, "zrank": firstKey, "zrangebyscore": firstKey,
	// multi-key
	"del": allKeys, "unlink": allKeys, "exists": allKeys, "touch": allKeys, "mget": allKeys,
	"watch": allKeys,
	"mset": alternatingKeys, "msetnx": alternatingKeys,
}

// keyPrefixer namespaces key arguments in place before commands are written
type keyPrefixer struct {
	prefix string
}

var _ redis.Hook = keyPrefixer{}

func (p keyPrefixer) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (p keyPrefixer) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		p.apply(cmd)
		return next(ctx, cmd)
	}
}

func (p keyPrefixer) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		for _, cmd := range cmds {
			p.apply(cmd)
		}
		return next(ctx, cmds)
	}
}

func (p keyPrefixer) apply(cmd redis.Cmder) {
	layout, ok := keyedCommands[cmd.Name()]
	if !ok {
		return
	}

	args := cmd.Args()
	switch layout {
	case firstKey:
		if len(args) > 1 {
			args[1] = p.prefixed(args[1])
		}
	case allKeys:
		for i := 1; i < len(args); i++ {
			args[i] = p.prefixed(args[i])
		}
	case alternatingKeys:
		for i := 1; i < len(args); i += 2 {
			args[i] = p.prefixed(args[i])
		}
	}
}

func (p keyPrefixer) prefixed(arg any) any {
	key, ok := arg.(string)
	if !ok {
		return arg
	}
	return p.prefix + key
}
