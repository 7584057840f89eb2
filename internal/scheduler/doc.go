// Package scheduler arms one in-memory timer per active reminder and drives
// the fire, cancel and restore protocol against the reminder store.
//
// The store's active flag is the single arbiter between a firing timer and a
// concurrent cancel: whichever flips it first wins, the other does nothing.
package scheduler
