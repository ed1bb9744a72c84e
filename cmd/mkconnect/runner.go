package main

//
// Connecting
//

import (
	"context"
	"io"

	"github.com/ooni/mknet/internal/connect"
	"github.com/ooni/mknet/internal/model"
)

// outcome is the outcome of connecting once.
type outcome struct {
	// Result is the connect result.
	Result *model.ConnectResult

	// Err is the connect error or nil.
	Err error

	// Received is the number of bytes received after sending the payload.
	Received int

	// ReadErr is the error that terminated reading or nil.
	ReadErr error
}

// runner connects Repeat times in sequence. The zero value of this
// struct is invalid; please, fill all the fields marked as MANDATORY.
type runner struct {
	// Addresses contains OPTIONAL pre-resolved addresses.
	Addresses []string

	// Config is the MANDATORY connect config.
	Config *connect.Config

	// Hostname is the MANDATORY hostname.
	Hostname string

	// Logger is the MANDATORY logger.
	Logger model.Logger

	// Orchestrator is the MANDATORY orchestrator.
	Orchestrator *connect.Orchestrator

	// Payload is the OPTIONAL payload to send after connecting.
	Payload []byte

	// Port is the MANDATORY port.
	Port int

	// Repeat is the number of connects; zero means one.
	Repeat int

	// Stdout is the MANDATORY writer receiving the data we read.
	Stdout io.Writer
}

// Run connects and returns one outcome for each connect.
func (rnr *runner) Run(ctx context.Context) (outcomes []*outcome) {
	r := rnr.Orchestrator.Reactor
	var next func()
	next = func() {
		if len(outcomes) >= max(rnr.Repeat, 1) {
			r.CallSoon(r.Stop) // after pending closes
			return
		}
		rnr.connectOnce(ctx, func(o *outcome) {
			outcomes = append(outcomes, o)
			next()
		})
	}
	r.RunWith(next)
	return
}

func (rnr *runner) connectOnce(ctx context.Context, done func(*outcome)) {
	callback := func(txp model.Transport, result *model.ConnectResult, err error) {
		o := &outcome{Result: result, Err: err}
		if err != nil {
			done(o)
			return
		}
		if len(rnr.Payload) <= 0 {
			txp.Close(func() { done(o) })
			return
		}
		rnr.exchange(txp, o, done)
	}
	if len(rnr.Addresses) > 0 {
		rnr.Orchestrator.ConnectAddresses(ctx, rnr.Addresses, rnr.Hostname, rnr.Port, rnr.Config, callback)
		return
	}
	rnr.Orchestrator.Connect(ctx, rnr.Hostname, rnr.Port, rnr.Config, callback)
}

// exchange sends the payload and reads until EOF, the idle timeout, or
// any other error. Only then does it close the transport.
func (rnr *runner) exchange(txp model.Transport, o *outcome, done func(*outcome)) {
	txp.OnData(func(data []byte) {
		o.Received += len(data)
		_, _ = rnr.Stdout.Write(data)
	})
	txp.OnError(func(err error) {
		o.ReadErr = err
		rnr.Logger.Debugf("exchange: %s after %d bytes", err, o.Received)
		txp.Close(func() { done(o) })
	})
	txp.Write(rnr.Payload)
}

// anySucceeded returns whether at least a connect succeeded.
func anySucceeded(outcomes []*outcome) bool {
	for _, o := range outcomes {
		if o.Err == nil {
			return true
		}
	}
	return false
}
