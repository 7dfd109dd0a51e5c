package platform

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"net"
	"strings"
	"sync"
	"time"
)

// ErrAlreadyRunning indicates another instance already holds the lock.
var ErrAlreadyRunning = errors.New("instance already running")

// ErrNotRunning is returned by RunningInstance when no instance holds the
// lock.
var ErrNotRunning = errors.New("no running instance")

const announceTimeout = time.Second

// InstanceGuard holds the single-instance lock. While held it answers every
// connection with the announced address, so other processes can find the
// running daemon.
type InstanceGuard struct {
	listener net.Listener
	address  string

	mu       sync.Mutex
	announce string
	done     chan struct{}
}

// AcquireSingleInstance binds the localhost port derived from appName.
func AcquireSingleInstance(appName string) (*InstanceGuard, error) {
	address := guardAddress(appName)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, address)
	}
	guard := &InstanceGuard{listener: listener, address: address, done: make(chan struct{})}
	go guard.serve()
	return guard, nil
}

// Announce sets the address handed to RunningInstance callers.
func (guard *InstanceGuard) Announce(address string) {
	guard.mu.Lock()
	guard.announce = address
	guard.mu.Unlock()
}

// Release frees the single instance lock.
func (guard *InstanceGuard) Release() error {
	if guard == nil || guard.listener == nil {
		return nil
	}
	err := guard.listener.Close()
	<-guard.done
	return err
}

// Address returns the bound lock address.
func (guard *InstanceGuard) Address() string {
	if guard == nil {
		return ""
	}
	return guard.address
}

func (guard *InstanceGuard) serve() {
	defer close(guard.done)
	for {
		conn, err := guard.listener.Accept()
		if err != nil {
			return
		}
		guard.mu.Lock()
		announce := guard.announce
		guard.mu.Unlock()

		_ = conn.SetWriteDeadline(time.Now().Add(announceTimeout))
		_, _ = fmt.Fprintln(conn, announce)
		_ = conn.Close()
	}
}

// RunningInstance asks the instance holding the lock of appName for its
// announced address. An empty string means the instance has not announced
// one yet.
func RunningInstance(ctx context.Context, appName string) (string, error) {
	var dialer net.Dialer
	dialCtx, cancel := context.WithTimeout(ctx, announceTimeout)
	defer cancel()
	conn, err := dialer.DialContext(dialCtx, "tcp", guardAddress(appName))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotRunning, err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(announceTimeout))
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read announced address: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func guardAddress(appName string) string {
	return fmt.Sprintf("127.0.0.1:%d", portFromName(appName))
}

func portFromName(appName string) int {
	const (
		minPort = 20000
		maxPort = 39999
	)
	hash := fnv.New32a()
	_, _ = hash.Write([]byte(appName))
	rangeSize := maxPort - minPort + 1
	return minPort + int(hash.Sum32()%uint32(rangeSize))
}
