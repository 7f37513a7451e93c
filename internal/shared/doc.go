// Package shared holds utilities that belong to no single domain layer.
// Currently that is only testutil, the fixtures and log-capture helpers the
// package tests build on.
package shared
