// Package testutil provides builders shared by tests across packages:
// step-definition fixtures and a scripted agent caller. Not part of the
// public API.
package testutil
