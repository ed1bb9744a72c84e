package mocks

import (
	"bytes"
	"testing"
	"time"
)

func TestTransport(t *testing.T) {
	t.Run("Write", func(t *testing.T) {
		var got []byte
		txp := &Transport{
			MockWrite: func(data []byte) {
				got = data
			},
		}
		txp.Write([]byte("antani"))
		if !bytes.Equal(got, []byte("antani")) {
			t.Fatal("unexpected data", got)
		}
	})

	t.Run("Close", func(t *testing.T) {
		var called bool
		txp := &Transport{
			MockClose: func(callback func()) {
				callback()
			},
		}
		txp.Close(func() {
			called = true
		})
		if !called {
			t.Fatal("not called")
		}
	})

	t.Run("SetTimeout", func(t *testing.T) {
		var got time.Duration
		txp := &Transport{
			MockSetTimeout: func(timeout time.Duration) {
				got = timeout
			},
		}
		txp.SetTimeout(time.Second)
		if got != time.Second {
			t.Fatal("unexpected timeout", got)
		}
	})

	t.Run("SentData", func(t *testing.T) {
		txp := &Transport{
			MockSentData: func() []byte {
				return []byte("xo")
			},
		}
		if string(txp.SentData()) != "xo" {
			t.Fatal("unexpected data")
		}
	})
}
