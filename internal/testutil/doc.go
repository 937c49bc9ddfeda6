// Package testutil provides fluent builders for events and sessions used by
// package tests. It is internal and carries no stability guarantees.
package testutil
