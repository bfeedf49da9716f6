// Package tor routes crawler traffic through a SOCKS5 proxy.
//
// A Client wraps a golang.org/x/net/proxy SOCKS5 dialer and hands out HTTP
// transports that dial through it. The proxy can be any SOCKS5 server, such
// as a system Tor daemon on 127.0.0.1:9050, or a Daemon started in-process
// with tornago when no Tor installation is available.
//
// Starting an embedded daemon takes a while because Tor has to bootstrap
// its circuits before the SOCKS port accepts traffic.
package tor
