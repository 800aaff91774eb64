// Package ir defines the records the engine writes to the action log and the
// canonical encoding used to hash them.
//
// ir imports nothing internal. Values are restricted to strings, int64,
// bools, arrays and objects; there are no floats, and quantities travel as
// strings such as "10.0000 UBI".
package ir
