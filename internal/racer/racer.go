// Package racer connects to the first working address of a list.
//
// Racing is strictly sequential: we try each address in order, each
// with its own timeout, and we stop at the first success. This package
// does not implement happy eyeballs.
package racer

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/ooni/mknet/internal/errorsx"
	"github.com/ooni/mknet/internal/model"
	"github.com/ooni/mknet/internal/reactor"
	"github.com/ooni/mknet/internal/transport"
)

// DefaultTimeout is the default timeout of each connect attempt.
const DefaultTimeout = 30 * time.Second

// Racer connects to the first working address of a list.
type Racer struct {
	// Dialer is the OPTIONAL dialer. When nil, we use a &net.Dialer{}.
	Dialer model.SimpleDialer

	// Logger is the OPTIONAL logger.
	Logger model.Logger

	// Reactor is the MANDATORY reactor owning the transports.
	Reactor *reactor.Reactor

	// Timeout is the OPTIONAL timeout of each attempt. When zero
	// or negative, we use DefaultTimeout.
	Timeout time.Duration
}

// Race connects to the given endpoints in order.
//
// This method MUST be called from the reactor goroutine. The callback
// runs in the reactor goroutine and receives the connected socket (or
// nil), the ConnectResult, and the error (or nil). The error is an
// *errorsx.ErrWrapper whose operation is connect. When there is a single
// failed attempt, the error is the error of such an attempt. Otherwise,
// it wraps an *errorsx.ConnectFailedError with all the children.
//
// Canceling ctx interrupts the attempt in progress and causes a
// socket connected after the cancellation to be discarded.
func (r *Racer) Race(ctx context.Context, endpoints []model.Endpoint,
	callback func(*transport.Socket, *model.ConnectResult, error)) {
	logger := model.ValidLoggerOrDefault(r.Logger)
	result := &model.ConnectResult{ID: uuid.NewString()}
	for _, epnt := range endpoints {
		result.Addresses = append(result.Addresses, epnt.Hostname)
	}
	if len(endpoints) <= 0 {
		err := errorsx.NewErrWrapper(
			errorsx.ClassifyGenericError, errorsx.ConnectOperation, errorsx.ErrNoAddresses)
		logger.Debugf("[%s] connect: %s", result.ID, err)
		r.Reactor.CallSoon(func() {
			callback(nil, result, err)
		})
		return
	}
	dialer := r.Dialer
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	go func() {
		start := time.Now()
		conn, attempts := r.connectFirstOf(ctx, logger, dialer, timeout, result.ID, endpoints)
		elapsed := time.Since(start)
		r.Reactor.CallSoon(func() {
			result.Attempts = attempts
			result.ConnectTime = elapsed
			metricConnectDurationSeconds.Observe(elapsed.Seconds())
			if conn != nil && ctx.Err() != nil {
				conn.Close() // discard the socket connected too late
				conn = nil
				attempts[len(attempts)-1].Err = errorsx.NewErrWrapper(
					errorsx.ClassifyGenericError, errorsx.ConnectOperation, ctx.Err())
			}
			if conn == nil {
				callback(nil, result, aggregate(result.Errors()))
				return
			}
			socket := transport.NewSocket(r.Reactor, conn, &transport.SocketConfig{Logger: logger})
			result.Transport = socket
			r.Reactor.CallSoon(socket.EmitConnect)
			callback(socket, result, nil)
		})
	}()
}

// connectFirstOf runs in a background goroutine and returns the first
// connected socket, if any, along with the result of each attempt.
func (r *Racer) connectFirstOf(ctx context.Context, logger model.Logger, dialer model.SimpleDialer,
	timeout time.Duration, id string, endpoints []model.Endpoint) (net.Conn, []model.ConnectAttemptResult) {
	var attempts []model.ConnectAttemptResult
	for _, epnt := range endpoints {
		address := net.JoinHostPort(epnt.Hostname, strconv.Itoa(epnt.Port))
		logger.Debugf("[%s] connect %s...", id, address)
		start := time.Now()
		conn, err := r.connectOne(ctx, dialer, timeout, address)
		elapsed := time.Since(start)
		attempts = append(attempts, model.ConnectAttemptResult{
			Address: epnt.Hostname,
			Port:    epnt.Port,
			Err:     err,
			Elapsed: elapsed,
		})
		if err != nil {
			logger.Debugf("[%s] connect %s... %s in %s", id, address, err, elapsed)
			metricAttemptsCount.WithLabelValues(err.Error()).Inc()
			if ctx.Err() != nil {
				break // no point in continuing
			}
			continue
		}
		logger.Debugf("[%s] connect %s... ok in %s", id, address, elapsed)
		metricAttemptsCount.WithLabelValues("ok").Inc()
		return conn, attempts
	}
	return nil, attempts
}

// noDelaySetter is implemented by *net.TCPConn.
type noDelaySetter interface {
	SetNoDelay(noDelay bool) error
}

func (r *Racer) connectOne(ctx context.Context, dialer model.SimpleDialer,
	timeout time.Duration, address string) (net.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, errorsx.NewErrWrapper(errorsx.ClassifyGenericError, errorsx.ConnectOperation, err)
	}
	if setter, good := conn.(noDelaySetter); good {
		// disable Nagle's algorithm for lower latency
		if err := setter.SetNoDelay(true); err != nil {
			conn.Close()
			return nil, errorsx.NewErrWrapper(errorsx.ClassifyGenericError, errorsx.ConnectOperation, err)
		}
	}
	return conn, nil
}

// aggregate returns the error to report after all attempts failed.
func aggregate(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	return errorsx.NewErrWrapper(errorsx.ClassifyGenericError, errorsx.ConnectOperation,
		&errorsx.ConnectFailedError{Children: errs})
}
