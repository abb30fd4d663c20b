// Package discovery implements mDNS discovery of Pulse brokers.
//
// Brokers advertise a "_pulse._tcp" service with TXT metadata;
// clients browse for brokers on the local network and pick an
// endpoint to connect to. Discovery is optional: clients may always
// connect to an explicit host and port instead.
package discovery
