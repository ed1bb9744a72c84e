package mocks

import (
	"net"
	"time"

	"github.com/ooni/mknet/internal/model"
)

// Transport is a mockable Transport.
type Transport struct {
	MockOnConnect              func(fn func())
	MockOnData                 func(fn func(data []byte))
	MockOnFlush                func(fn func())
	MockOnError                func(fn func(err error))
	MockWrite                  func(data []byte)
	MockClose                  func(callback func())
	MockSetTimeout             func(timeout time.Duration)
	MockClearTimeout           func()
	MockRecordReceivedData     func()
	MockDontRecordReceivedData func()
	MockReceivedData           func() []byte
	MockRecordSentData         func()
	MockDontRecordSentData     func()
	MockSentData               func() []byte
	MockLocalAddr              func() net.Addr
	MockRemoteAddr             func() net.Addr
}

var _ model.Transport = &Transport{}

// OnConnect calls MockOnConnect.
func (t *Transport) OnConnect(fn func()) {
	t.MockOnConnect(fn)
}

// OnData calls MockOnData.
func (t *Transport) OnData(fn func(data []byte)) {
	t.MockOnData(fn)
}

// OnFlush calls MockOnFlush.
func (t *Transport) OnFlush(fn func()) {
	t.MockOnFlush(fn)
}

// OnError calls MockOnError.
func (t *Transport) OnError(fn func(err error)) {
	t.MockOnError(fn)
}

// Write calls MockWrite.
func (t *Transport) Write(data []byte) {
	t.MockWrite(data)
}

// Close calls MockClose.
func (t *Transport) Close(callback func()) {
	t.MockClose(callback)
}

// SetTimeout calls MockSetTimeout.
func (t *Transport) SetTimeout(timeout time.Duration) {
	t.MockSetTimeout(timeout)
}

// ClearTimeout calls MockClearTimeout.
func (t *Transport) ClearTimeout() {
	t.MockClearTimeout()
}

// RecordReceivedData calls MockRecordReceivedData.
func (t *Transport) RecordReceivedData() {
	t.MockRecordReceivedData()
}

// DontRecordReceivedData calls MockDontRecordReceivedData.
func (t *Transport) DontRecordReceivedData() {
	t.MockDontRecordReceivedData()
}

// ReceivedData calls MockReceivedData.
func (t *Transport) ReceivedData() []byte {
	return t.MockReceivedData()
}

// RecordSentData calls MockRecordSentData.
func (t *Transport) RecordSentData() {
	t.MockRecordSentData()
}

// DontRecordSentData calls MockDontRecordSentData.
func (t *Transport) DontRecordSentData() {
	t.MockDontRecordSentData()
}

// SentData calls MockSentData.
func (t *Transport) SentData() []byte {
	return t.MockSentData()
}

// LocalAddr calls MockLocalAddr.
func (t *Transport) LocalAddr() net.Addr {
	return t.MockLocalAddr()
}

// RemoteAddr calls MockRemoteAddr.
func (t *Transport) RemoteAddr() net.Addr {
	return t.MockRemoteAddr()
}
