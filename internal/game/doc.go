// Package game implements the pure session state machine: applying a move
// to a session snapshot, detecting terminal outcomes, and replaying a move
// log into a grid. The package performs no I/O and holds no state; given the
// same inputs it always produces the same outputs, which is what makes
// replay-based recovery and table-driven testing possible.
package game
