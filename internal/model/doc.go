// Package model defines the shared data types of the tcplink connection pool.
//
// Conventions:
//   - An EndpointKey is "host:port" as produced by net.JoinHostPort
//   - Subscription classes are free-form, case-sensitive tags
//   - Event IDs are uuid.UUID, assigned once at publish time
package model
