// Package repository defines the persistence interface for the application
// layer's state: node deployment status, the prepared deploy plan,
// deployment history, and isolation verification runs.
//
// The sqlite subpackage provides the concrete implementation.
package repository
