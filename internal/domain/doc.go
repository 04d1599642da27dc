// Package domain defines core data models and interfaces shared across the app.
// It contains plain types (vouchers, locks, wire messages) and contracts
// (interfaces) only; the types and interfaces subpackages hold the
// definitions and this package aliases them for compact imports.
package domain
