// Package discovery advertises the bridge over mDNS (DNS-SD).
//
// The service type defaults to _orvibo._udp on the UDP listen port. TXT
// records carry the bridge ID, accessory kind and current status, and are
// updated in place as the status changes.
package discovery
