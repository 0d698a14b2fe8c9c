// Package domain defines the core relay types and the contracts between packages.
//
// Snapshot and its wire form live here, along with the rejection reasons the validator
// reports and the interfaces adapters implement. No implementation code.
package domain
