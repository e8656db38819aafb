// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/gammazero/workerpool"
	"github.com/miekg/dns"
)

// resolvconf is where the system resolver configuration lives.
const resolvconf = "/etc/resolv.conf"

// Pool is a (size-limited) pool of DNS client connections talking with the
// same DNS resolver address, used for reverse (PTR) lookups of probed host
// addresses.
type Pool struct {
	clnt    *dns.Client
	workers *workerpool.WorkerPool
	cache   *NameCache
	mu      sync.Mutex // protects the pool of DNS connections
	free    []*dns.Conn
}

// New returns a pool of the specified size of DNS client connections, with
// each connection talking to the same DNS resolver address.
//
// Generic DNS tasks are submitted using [Pool.Submit] in form of task
// functions receiving a concrete [dns.Conn]; reverse lookups use the
// [Pool.Reverse] convenience method.
//
// The passed context is used for creating (dialing) the DNS client
// connections only. It is not directly passed to the submitted DNS tasks, so
// task submitters are themselves responsible for capturing the necessary
// context in their task function closure.
func New(ctx context.Context, size int, dnsclnt *dns.Client, addr string) (*Pool, error) {
	pool := &Pool{
		clnt:    dnsclnt,
		workers: workerpool.New(size),
		cache:   NewNameCache(),
	}
	free := make([]*dns.Conn, 0, size)
	for i := 0; i < size; i++ {
		conn, err := dnsclnt.DialContext(ctx, addr)
		if err != nil {
			// Immediately release all connections created so far.
			for _, conn := range free {
				conn.Close()
			}
			return nil, err
		}
		free = append(free, conn)
	}
	pool.free = free
	return pool, nil
}

// NewFromSystem returns a pool of the specified size talking to the first
// nameserver of the system resolver configuration.
func NewFromSystem(ctx context.Context, size int) (*Pool, error) {
	conf, err := dns.ClientConfigFromFile(resolvconf)
	if err != nil {
		return nil, fmt.Errorf("cannot read system resolver configuration: %w", err)
	}
	if len(conf.Servers) == 0 {
		return nil, errors.New("system resolver configuration lists no nameservers")
	}
	return New(ctx, size, &dns.Client{}, net.JoinHostPort(conf.Servers[0], conf.Port))
}

// Submit a task to the DNS client connection pool, where it gets enqueued to
// be executed on an available DNS client connection.
func (p *Pool) Submit(task func(conn *dns.Conn)) {
	p.workers.Submit(func() { p.task(task) })
}

// Reverse is a convenience method for submitting a PTR query for the
// specified host address and gathering the result. The resolved name (with
// the trailing root dot removed) or an error if resolution failed is passed
// to the specified callback function fn, which is called exactly once.
//
// A successful resolution additionally lands in the pool's name cache, where
// [Pool.Cached] picks it up; failures leave the cache alone, so an earlier
// successful resolution is never displaced by a later hiccup.
//
// Please note that when the passed context is cancelled this will cancel all
// in-flight as well as scheduled reverse lookup jobs.
func (p *Pool) Reverse(ctx context.Context, addr string, fn func(name string, err error)) {
	p.Submit(func(conn *dns.Conn) {
		var name string
		var err error
		defer func() { // ...ensure triggering the result callback on our way out
			if err == nil && name != "" {
				p.cache.Put(addr, name)
			}
			fn(name, err)
		}()

		// don't try to resolve the address if the context has been cancelled;
		// trigger the callback immediately with the context error.
		select {
		case <-ctx.Done():
			err = ctx.Err()
			return
		default:
		}

		var ptr string
		ptr, err = dns.ReverseAddr(addr)
		if err != nil {
			// not an IP address literal, so there is no reverse name to dig
			// for.
			return
		}
		msg := dns.Msg{
			MsgHdr: dns.MsgHdr{Id: dns.Id()},
		}
		msg.SetQuestion(ptr, dns.TypePTR)
		var r *dns.Msg
		r, _, err = p.clnt.ExchangeWithConn(&msg, conn)
		if err != nil {
			return
		}
		for _, rr := range r.Answer {
			if ptrRR, ok := rr.(*dns.PTR); ok {
				name = strings.TrimSuffix(ptrRR.Ptr, ".")
				return
			}
		}
		err = fmt.Errorf("Reverse: query for %q yields no answers", addr)
	})
}

// Cached returns the reverse-resolved name for the specified host address,
// if a lookup has succeeded so far.
func (p *Pool) Cached(addr string) (string, bool) {
	return p.cache.Get(addr)
}

// task grabs the next free DNS client and passes it to the specified
// function. After the function returns, the connection is put back into the
// free list.
func (p *Pool) task(task func(conn *dns.Conn)) {
	p.mu.Lock()
	if len(p.free) == 0 {
		panic("no free DNS client connection available")
	}
	last := len(p.free) - 1
	conn := p.free[last]
	p.free = p.free[:last]
	p.mu.Unlock()
	// run the task with its assigned DNS client connection...
	task(conn)
	// ...and push the DNS client connection back into the free list.
	p.mu.Lock()
	p.free = append(p.free, conn)
	p.mu.Unlock()
}

// StopWait waits for all enqueued reverse lookup or generic DNS request
// tasks to finish, and then shuts down the pool.
func (p *Pool) StopWait() {
	p.workers.StopWait()
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, conn := range p.free {
		conn.Close()
	}
	p.free = nil
}
