// Package types defines the shared vocabulary of the container:
// module lifecycle states and events, operation responses and their
// single-resolution futures, and the fatal error marker that escapes
// actor panic isolation.
package types
