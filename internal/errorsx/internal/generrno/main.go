// Command generrno generates the errno*.go files of the errorsx package.
package main

import (
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/iancoleman/strcase"
	"golang.org/x/sys/execabs"
)

// ErrorSpec specifies the error we care about.
type ErrorSpec struct {
	// errno is the error name as an errno value (e.g., ECONNREFUSED).
	errno string

	// failure is the failure name (e.g., connection_refused).
	failure string

	// library restricts the spec to a golang.org/x/sys library
	// ("unix" or "windows"). Empty means every library.
	library string
}

// IsForLibrary returns true when the spec applies to the given library.
func (es *ErrorSpec) IsForLibrary(library string) bool {
	return es.library == library || es.library == ""
}

// AsErrnoName returns the name of the errno, if this is a system
// error, or panics otherwise.
func (es *ErrorSpec) AsErrnoName(library string) string {
	if !es.IsSystemError() {
		panic("not a system error")
	}
	if library == "windows" {
		return "WSA" + es.errno
	}
	return es.errno
}

// AsFailureVar returns the name of the failure constant.
func (es *ErrorSpec) AsFailureVar() string {
	return "Failure" + strcase.ToCamel(es.failure)
}

// AsFailureString returns the failure string.
func (es *ErrorSpec) AsFailureString() string {
	return strcase.ToSnake(es.failure)
}

// IsSystemError returns whether this spec describes an errno value.
func (es *ErrorSpec) IsSystemError() bool {
	return es.errno != ""
}

// NewSystemError constructs a new ErrorSpec for an errno value
// that exists on every supported system.
func NewSystemError(errno, failure string) *ErrorSpec {
	return &ErrorSpec{errno: errno, failure: failure}
}

// NewUnixError is like NewSystemError for Unix-only errno values.
func NewUnixError(errno, failure string) *ErrorSpec {
	return &ErrorSpec{errno: errno, failure: failure, library: "unix"}
}

// NewLibraryError constructs a new ErrorSpec for failures we
// produce when classifying errors not coming from syscalls.
func NewLibraryError(failure string) *ErrorSpec {
	return &ErrorSpec{failure: failure}
}

// Specs contains all the error specs. We need to write acronyms
// in uppercase to obtain the correct constant names.
var Specs = []*ErrorSpec{
	NewSystemError("ECONNREFUSED", "connection_refused"),
	NewSystemError("ECONNRESET", "connection_reset"),
	NewSystemError("EHOSTUNREACH", "host_unreachable"),
	NewSystemError("ETIMEDOUT", "timed_out"),
	NewSystemError("EAFNOSUPPORT", "address_family_not_supported"),
	NewSystemError("EADDRINUSE", "address_in_use"),
	NewSystemError("EADDRNOTAVAIL", "address_not_available"),
	NewSystemError("EISCONN", "already_connected"),
	NewSystemError("EFAULT", "bad_address"),
	NewSystemError("EBADF", "bad_file_descriptor"),
	NewSystemError("ECONNABORTED", "connection_aborted"),
	NewSystemError("EALREADY", "connection_already_in_progress"),
	NewSystemError("EDESTADDRREQ", "destination_address_required"),
	NewSystemError("EINTR", "interrupted"),
	NewSystemError("EINVAL", "invalid_argument"),
	NewSystemError("EMSGSIZE", "message_size"),
	NewSystemError("ENETDOWN", "network_down"),
	NewSystemError("ENETRESET", "network_reset"),
	NewSystemError("ENETUNREACH", "network_unreachable"),
	NewSystemError("ENOBUFS", "no_buffer_space"),
	NewSystemError("ENOPROTOOPT", "no_protocol_option"),
	NewSystemError("ENOTSOCK", "not_a_socket"),
	NewSystemError("ENOTCONN", "not_connected"),
	NewSystemError("EWOULDBLOCK", "operation_would_block"),
	NewSystemError("EACCES", "permission_denied"),
	NewSystemError("EPROTONOSUPPORT", "protocol_not_supported"),
	NewSystemError("EPROTOTYPE", "wrong_protocol_type"),

	// Windows does not define these values.
	NewUnixError("EPIPE", "broken_pipe"),
	NewUnixError("EPROTO", "protocol_error"),

	NewLibraryError("connect_error"),
	NewLibraryError("connection_already_closed"),
	NewLibraryError("DNS_lookup_error"),
	NewLibraryError("EOF_error"),
	NewLibraryError("generic_timeout_error"),
	NewLibraryError("no_addresses"),

	NewLibraryError("SOCKS_error"),
	NewLibraryError("SOCKS_address_too_long"),
	NewLibraryError("SOCKS_invalid_port"),
	NewLibraryError("SOCKS_no_available_authentication"),
	NewLibraryError("SOCKS_bad_reserved_field"),
	NewLibraryError("SOCKS_bad_address_type"),

	NewLibraryError("missing_CA_bundle_path"),
	NewLibraryError("SSL_ctx_new_error"),
	NewLibraryError("SSL_ctx_load_verify_locations_error"),
	NewLibraryError("SSL_dirty_shutdown"),
	NewLibraryError("SSL_error"),
	NewLibraryError("SSL_failed_handshake"),
	NewLibraryError("SSL_invalid_certificate"),
	NewLibraryError("SSL_invalid_hostname"),
	NewLibraryError("SSL_missing_hostname"),
	NewLibraryError("SSL_no_certificate"),
}

// mapSystemToLibrary maps the operating system name to the name
// of the related golang.org/x/sys/$name library.
func mapSystemToLibrary(system string) string {
	switch system {
	case "darwin", "freebsd", "openbsd", "linux":
		return "unix"
	case "windows":
		return "windows"
	default:
		panic(fmt.Sprintf("unsupported system: %s", system))
	}
}

func fileCreate(filename string) *os.File {
	filep, err := os.Create(filename)
	if err != nil {
		log.Fatal(err)
	}
	return filep
}

func fileWrite(filep *os.File, content string) {
	if _, err := filep.WriteString(content); err != nil {
		log.Fatal(err)
	}
}

func fileClose(filep *os.File) {
	if err := filep.Close(); err != nil {
		log.Fatal(err)
	}
}

func filePrintf(filep *os.File, format string, v ...any) {
	fileWrite(filep, fmt.Sprintf(format, v...))
}

func gofmt(filename string) {
	cmd := execabs.Command("go", "fmt", filename)
	if err := cmd.Run(); err != nil {
		log.Fatal(err)
	}
}

func writeSystemSpecificFile(system string) {
	filename := "errno_" + system + ".go"
	filep := fileCreate(filename)
	library := mapSystemToLibrary(system)
	fileWrite(filep, "// Code generated by go generate; DO NOT EDIT.\n")
	filePrintf(filep, "// Generated: %+v\n\n", time.Now())
	fileWrite(filep, "package errorsx\n\n")
	fileWrite(filep, "import (\n")
	fileWrite(filep, "\t\"errors\"\n")
	fileWrite(filep, "\t\"syscall\"\n")
	fileWrite(filep, "\n")
	filePrintf(filep, "\t\"golang.org/x/sys/%s\"\n", library)
	fileWrite(filep, ")\n\n")

	fileWrite(filep, "// This enumeration provides a canonical name for\n")
	fileWrite(filep, "// every system-call error we support. Note: this list\n")
	fileWrite(filep, "// is system dependent. You're currently looking at\n")
	filePrintf(filep, "// the list of errors for %s.\n", system)
	fileWrite(filep, "const (\n")
	for _, spec := range Specs {
		if !spec.IsSystemError() || !spec.IsForLibrary(library) {
			continue
		}
		filePrintf(filep, "\t%s = %s.%s\n",
			spec.errno, library, spec.AsErrnoName(library))
	}
	fileWrite(filep, ")\n\n")

	fileWrite(filep, "// classifySyscallError converts a syscall error to the\n")
	fileWrite(filep, "// proper failure string. Returns the failure string\n")
	fileWrite(filep, "// on success, an empty string otherwise.\n")
	fileWrite(filep, "func classifySyscallError(err error) string {\n")
	fileWrite(filep, "\tvar errno syscall.Errno\n")
	fileWrite(filep, "\tif !errors.As(err, &errno) {\n")
	fileWrite(filep, "\t\treturn \"\"\n")
	fileWrite(filep, "\t}\n")
	fileWrite(filep, "\tswitch errno {\n")
	for _, spec := range Specs {
		if !spec.IsSystemError() || !spec.IsForLibrary(library) {
			continue
		}
		filePrintf(filep, "\tcase %s.%s:\n", library, spec.AsErrnoName(library))
		filePrintf(filep, "\t\treturn %s\n", spec.AsFailureVar())
	}
	fileWrite(filep, "\t}\n")
	fileWrite(filep, "\treturn \"\"\n")
	fileWrite(filep, "}\n")

	fileClose(filep)
	gofmt(filename)
}

func writeGenericFile() {
	filename := "errno.go"
	filep := fileCreate(filename)
	fileWrite(filep, "// Code generated by go generate; DO NOT EDIT.\n")
	filePrintf(filep, "// Generated: %+v\n\n", time.Now())
	fileWrite(filep, "package errorsx\n\n")
	fileWrite(filep, "//go:generate go run ./internal/generrno/\n\n")

	fileWrite(filep, "// This enumeration lists the failure strings, which are\n")
	fileWrite(filep, "// also the strings used in measurement reports.\n")
	fileWrite(filep, "const (\n")
	names := make(map[string]string)
	for _, spec := range Specs {
		names[spec.AsFailureVar()] = spec.AsFailureString()
	}
	var nameskeys []string
	for key := range names {
		nameskeys = append(nameskeys, key)
	}
	sort.Strings(nameskeys)
	for _, key := range nameskeys {
		filePrintf(filep, "\t%s = \"%s\"\n", key, names[key])
	}
	fileWrite(filep, ")\n")

	fileClose(filep)
	gofmt(filename)
}

func writeSystemSpecificTestFile(system string) {
	filename := fmt.Sprintf("errno_%s_test.go", system)
	filep := fileCreate(filename)
	library := mapSystemToLibrary(system)

	fileWrite(filep, "// Code generated by go generate; DO NOT EDIT.\n")
	filePrintf(filep, "// Generated: %+v\n\n", time.Now())
	fileWrite(filep, "package errorsx\n\n")
	fileWrite(filep, "import (\n")
	fileWrite(filep, "\t\"io\"\n")
	fileWrite(filep, "\t\"syscall\"\n")
	fileWrite(filep, "\t\"testing\"\n")
	fileWrite(filep, "\n")
	filePrintf(filep, "\t\"golang.org/x/sys/%s\"\n", library)
	fileWrite(filep, ")\n\n")

	fileWrite(filep, "func TestClassifySyscallError(t *testing.T) {\n")
	fileWrite(filep, "\tt.Run(\"for a non-syscall error\", func(t *testing.T) {\n")
	fileWrite(filep, "\t\tif v := classifySyscallError(io.EOF); v != \"\" {\n")
	fileWrite(filep, "\t\t\tt.Fatalf(\"expected empty string, got '%s'\", v)\n")
	fileWrite(filep, "\t\t}\n")
	fileWrite(filep, "\t})\n\n")

	for _, spec := range Specs {
		if !spec.IsSystemError() || !spec.IsForLibrary(library) {
			continue
		}
		filePrintf(filep, "\tt.Run(\"for %s\", func(t *testing.T) {\n",
			spec.AsErrnoName(library))
		filePrintf(filep, "\t\tif v := classifySyscallError(%s.%s); v != %s {\n",
			library, spec.AsErrnoName(library), spec.AsFailureVar())
		filePrintf(filep, "\t\t\tt.Fatalf(\"expected '%%s', got '%%s'\", %s, v)\n",
			spec.AsFailureVar())
		fileWrite(filep, "\t\t}\n")
		fileWrite(filep, "\t})\n\n")
	}

	fileWrite(filep, "\tt.Run(\"for the zero errno value\", func(t *testing.T) {\n")
	fileWrite(filep, "\t\tif v := classifySyscallError(syscall.Errno(0)); v != \"\" {\n")
	fileWrite(filep, "\t\t\tt.Fatalf(\"expected empty string, got '%s'\", v)\n")
	fileWrite(filep, "\t\t}\n")
	fileWrite(filep, "\t})\n")
	fileWrite(filep, "}\n")

	fileClose(filep)
	gofmt(filename)
}

// SupportedSystems contains the list of supported systems.
var SupportedSystems = []string{
	"darwin",
	"freebsd",
	"openbsd",
	"linux",
	"windows",
}

func main() {
	for _, system := range SupportedSystems {
		writeSystemSpecificFile(system)
		writeSystemSpecificTestFile(system)
	}
	writeGenericFile()
}
