// Package testutil generates realistic ticket and feedback fixtures for
// tests and the demo load generator. Generators are seedable so failures
// reproduce.
package testutil
