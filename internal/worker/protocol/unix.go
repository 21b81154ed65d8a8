package protocol

// UnixDomain reuses Echo's behavior; Unix-domain sockets differ from
// TCP only in the listener's address family (see listen_linux.go),
// not in the application-level contract.
type UnixDomain = Echo
