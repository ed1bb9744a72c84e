package socks5

//
// SOCKS5 frames
//

import (
	"bytes"
	"encoding/binary"
	"net"
	"strconv"

	"github.com/ooni/mknet/internal/errorsx"
	"github.com/ooni/mknet/internal/model"
	txsocks5 "github.com/txthinking/socks5"
	"golang.org/x/net/idna"
)

// version is the SOCKS protocol version.
const version = 5

// maxDomainLength is the maximum length of a domain in a CONNECT request.
const maxDomainLength = 255

// newMethodsFrame returns the frame offering the methods we support.
func newMethodsFrame() []byte {
	var buffer bytes.Buffer
	_, _ = txsocks5.NewNegotiationRequest([]byte{txsocks5.MethodNone}).WriteTo(&buffer)
	return buffer.Bytes()
}

// newConnectFrame returns the CONNECT request for target. IP address
// literals use the corresponding address type. Anything else is sent
// as a domain after conversion to ASCII.
func newConnectFrame(target model.Endpoint) ([]byte, error) {
	if target.Port < 0 || target.Port > 65535 {
		return nil, errorsx.ErrSOCKSInvalidPort
	}
	port := make([]byte, 2)
	binary.BigEndian.PutUint16(port, uint16(target.Port))

	var (
		atyp byte
		addr []byte
	)
	if ip := net.ParseIP(target.Hostname); ip != nil {
		if ipv4 := ip.To4(); ipv4 != nil {
			atyp, addr = txsocks5.ATYPIPv4, ipv4
		} else {
			atyp, addr = txsocks5.ATYPIPv6, ip.To16()
		}
	} else {
		domain := target.Hostname
		if ascii, err := idna.Lookup.ToASCII(domain); err == nil {
			domain = ascii
		}
		if len(domain) > maxDomainLength {
			return nil, errorsx.ErrSOCKSAddressTooLong
		}
		atyp, addr = txsocks5.ATYPDomain, []byte(domain)
	}

	var buffer bytes.Buffer
	_, _ = txsocks5.NewRequest(txsocks5.CmdConnect, atyp, addr, port).WriteTo(&buffer)
	return buffer.Bytes(), nil
}

// authReply is the parsed reply to the methods frame.
type authReply struct {
	version byte
	method  byte
}

// authReplyLength is the length of the reply to the methods frame.
const authReplyLength = 2

// parseAuthReply parses the reply to the methods frame, which must
// be at least authReplyLength bytes long.
func parseAuthReply(data []byte) (*authReply, error) {
	reply := &authReply{version: data[0], method: data[1]}
	if reply.version != version {
		return nil, errorsx.ErrSOCKSBadVersion
	}
	if reply.method != txsocks5.MethodNone {
		return nil, errorsx.ErrSOCKSNoAcceptableAuth
	}
	return reply, nil
}

// connectReply is the parsed reply to the CONNECT request.
type connectReply struct {
	rep  byte
	atyp byte
	addr []byte
	port uint16
}

// minConnectReplyLength is the number of bytes we need to know
// the length of the reply to the CONNECT request.
const minConnectReplyLength = 5

// parseConnectReply parses the reply to the CONNECT request. The data
// must be at least minConnectReplyLength bytes long. It returns the
// reply and its length, or zero if we need more data.
func parseConnectReply(data []byte) (*connectReply, int, error) {
	if data[0] != version {
		return nil, 0, errorsx.ErrSOCKSBadVersion
	}
	if data[1] != txsocks5.RepSuccess {
		return nil, 0, &errorsx.SOCKSReplyError{Code: data[1]}
	}
	if data[2] != 0 {
		return nil, 0, errorsx.ErrSOCKSBadReservedField
	}
	var start, addrLength int
	switch data[3] {
	case txsocks5.ATYPIPv4:
		start, addrLength = 4, net.IPv4len
	case txsocks5.ATYPDomain:
		start, addrLength = 5, int(data[4])
	case txsocks5.ATYPIPv6:
		start, addrLength = 4, net.IPv6len
	default:
		return nil, 0, errorsx.ErrSOCKSBadAddressType
	}
	total := start + addrLength + 2
	if len(data) < total {
		return nil, 0, nil
	}
	reply := &connectReply{
		rep:  data[1],
		atyp: data[3],
		addr: append([]byte{}, data[start:start+addrLength]...),
		port: binary.BigEndian.Uint16(data[start+addrLength : total]),
	}
	return reply, total, nil
}

// boundAddress returns the address bound by the proxy as a string.
func (r *connectReply) boundAddress() string {
	host := string(r.addr)
	if r.atyp != txsocks5.ATYPDomain {
		host = net.IP(r.addr).String()
	}
	return net.JoinHostPort(host, strconv.Itoa(int(r.port)))
}
