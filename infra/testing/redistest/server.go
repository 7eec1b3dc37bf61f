// Package redistest runs an in-process server that speaks enough of the
// Redis protocol for the event log and the redis bus driver: list commands
// and PUBLISH/SUBSCRIBE.
package redistest

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/tidwall/redcon"
)

type Server struct {
	ln net.Listener

	mu    sync.Mutex
	lists map[string][][]byte
	subs  map[*subscriber]struct{}
	cmds  map[string]int

	// fail, when set, is returned as an error by every data command.
	fail string
}

// Start listens on a random local port and stops the server on test cleanup.
func Start(tb testing.TB) *Server {
	tb.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		tb.Fatalf("redistest: listen: %v", err)
	}

	s := &Server{
		ln:    ln,
		lists: make(map[string][][]byte),
		subs:  make(map[*subscriber]struct{}),
		cmds:  make(map[string]int),
	}
	go func() {
		_ = redcon.Serve(ln, s.handle, func(redcon.Conn) bool { return true }, nil)
	}()
	tb.Cleanup(s.Close)

	return s
}

func (s *Server) Addr() string { return s.ln.Addr().String() }

func (s *Server) URL() string { return "redis://" + s.Addr() + "/0" }

// Close stops accepting connections and drops every client.
func (s *Server) Close() {
	_ = s.ln.Close()
	s.DropSubscribers()
}

// DropSubscribers closes every connection currently in subscribe mode.
func (s *Server) DropSubscribers() {
	s.mu.Lock()
	subs := s.subs
	s.subs = make(map[*subscriber]struct{})
	s.mu.Unlock()

	for sub := range subs {
		sub.close()
	}
}

// Subscribers reports how many connections are subscribed to channel.
func (s *Server) Subscribers(channel string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for sub := range s.subs {
		if sub.has(channel) {
			n++
		}
	}
	return n
}

// FailWith makes data commands return msg as an error; "" restores service.
func (s *Server) FailWith(msg string) {
	s.mu.Lock()
	s.fail = msg
	s.mu.Unlock()
}

// Calls reports how many times cmd (lower case) was received.
func (s *Server) Calls(cmd string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cmds[cmd]
}

// List returns a copy of the list stored at key.
func (s *Server) List(key string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.lists[key]))
	for _, v := range s.lists[key] {
		out = append(out, string(v))
	}
	return out
}

func (s *Server) handle(conn redcon.Conn, cmd redcon.Command) {
	name := strings.ToLower(string(cmd.Args[0]))

	s.mu.Lock()
	s.cmds[name]++
	fail := s.fail
	s.mu.Unlock()

	switch name {
	case "ping":
		conn.WriteString("PONG")
		return
	case "auth", "select":
		conn.WriteString("OK")
		return
	case "quit":
		conn.WriteString("OK")
		conn.Close()
		return
	case "subscribe":
		if len(cmd.Args) < 2 {
			conn.WriteError("ERR wrong number of arguments for 'subscribe' command")
			return
		}
		sub := &subscriber{dc: conn.Detach(), channels: make(map[string]struct{})}
		go s.serveSubscriber(sub, cmd.Args[1:])
		return
	}

	if fail != "" {
		conn.WriteError(fail)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch name {
	case "lpush":
		if len(cmd.Args) < 3 {
			conn.WriteError("ERR wrong number of arguments for 'lpush' command")
			return
		}
		key := string(cmd.Args[1])
		list := s.lists[key]
		for _, v := range cmd.Args[2:] {
			list = append([][]byte{append([]byte(nil), v...)}, list...)
		}
		s.lists[key] = list
		conn.WriteInt(len(list))

	case "lrange":
		start, stop, ok := parseRange(cmd.Args)
		if !ok {
			conn.WriteError("ERR value is not an integer or out of range")
			return
		}
		list := s.lists[string(cmd.Args[1])]
		from, to, some := span(len(list), start, stop)
		if !some {
			conn.WriteArray(0)
			return
		}
		conn.WriteArray(to - from)
		for _, v := range list[from:to] {
			conn.WriteBulk(v)
		}

	case "ltrim":
		start, stop, ok := parseRange(cmd.Args)
		if !ok {
			conn.WriteError("ERR value is not an integer or out of range")
			return
		}
		key := string(cmd.Args[1])
		list := s.lists[key]
		from, to, some := span(len(list), start, stop)
		if !some {
			delete(s.lists, key)
		} else {
			s.lists[key] = append([][]byte(nil), list[from:to]...)
		}
		conn.WriteString("OK")

	case "llen":
		if len(cmd.Args) != 2 {
			conn.WriteError("ERR wrong number of arguments for 'llen' command")
			return
		}
		conn.WriteInt(len(s.lists[string(cmd.Args[1])]))

	case "del":
		n := 0
		for _, k := range cmd.Args[1:] {
			if _, ok := s.lists[string(k)]; ok {
				delete(s.lists, string(k))
				n++
			}
		}
		conn.WriteInt(n)

	case "publish":
		if len(cmd.Args) != 3 {
			conn.WriteError("ERR wrong number of arguments for 'publish' command")
			return
		}
		channel := string(cmd.Args[1])
		n := 0
		for sub := range s.subs {
			if sub.has(channel) && sub.message(channel, cmd.Args[2]) {
				n++
			}
		}
		conn.WriteInt(n)

	default:
		conn.WriteError(fmt.Sprintf("ERR unknown command '%s'", name))
	}
}

func (s *Server) serveSubscriber(sub *subscriber, channels [][]byte) {
	defer func() {
		s.mu.Lock()
		delete(s.subs, sub)
		s.mu.Unlock()
		sub.close()
	}()

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	sub.subscribe(channels)

	for {
		cmd, err := sub.dc.ReadCommand()
		if err != nil {
			return
		}
		switch strings.ToLower(string(cmd.Args[0])) {
		case "subscribe":
			sub.subscribe(cmd.Args[1:])
		case "unsubscribe":
			if !sub.unsubscribe(cmd.Args[1:]) {
				return
			}
		case "ping":
			data := ""
			if len(cmd.Args) > 1 {
				data = string(cmd.Args[1])
			}
			sub.pong(data)
		case "quit":
			return
		}
	}
}

type subscriber struct {
	dc redcon.DetachedConn

	mu       sync.Mutex
	channels map[string]struct{}
	closed   bool
}

func (sub *subscriber) has(channel string) bool {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	_, ok := sub.channels[channel]
	return ok
}

func (sub *subscriber) subscribe(channels [][]byte) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	for _, ch := range channels {
		sub.channels[string(ch)] = struct{}{}
		sub.dc.WriteArray(3)
		sub.dc.WriteBulkString("subscribe")
		sub.dc.WriteBulk(ch)
		sub.dc.WriteInt(len(sub.channels))
	}
	_ = sub.dc.Flush()
}

// unsubscribe reports whether the connection stays in subscribe mode.
func (sub *subscriber) unsubscribe(channels [][]byte) bool {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	if len(channels) == 0 {
		for ch := range sub.channels {
			channels = append(channels, []byte(ch))
		}
	}
	for _, ch := range channels {
		delete(sub.channels, string(ch))
		sub.dc.WriteArray(3)
		sub.dc.WriteBulkString("unsubscribe")
		sub.dc.WriteBulk(ch)
		sub.dc.WriteInt(len(sub.channels))
	}
	_ = sub.dc.Flush()
	return len(sub.channels) > 0
}

func (sub *subscriber) pong(data string) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	sub.dc.WriteArray(2)
	sub.dc.WriteBulkString("pong")
	sub.dc.WriteBulkString(data)
	_ = sub.dc.Flush()
}

func (sub *subscriber) message(channel string, payload []byte) bool {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return false
	}
	sub.dc.WriteArray(3)
	sub.dc.WriteBulkString("message")
	sub.dc.WriteBulkString(channel)
	sub.dc.WriteBulk(payload)
	return sub.dc.Flush() == nil
}

func (sub *subscriber) close() {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	sub.closed = true
	_ = sub.dc.Close()
}

func parseRange(args [][]byte) (int, int, bool) {
	if len(args) != 4 {
		return 0, 0, false
	}
	start, err1 := strconv.Atoi(string(args[2]))
	stop, err2 := strconv.Atoi(string(args[3]))
	return start, stop, err1 == nil && err2 == nil
}

// span converts Redis inclusive, possibly negative, indexes into a slice range.
func span(n, start, stop int) (int, int, bool) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return 0, 0, false
	}
	return start, stop + 1, true
}
