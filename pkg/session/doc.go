/*
Package session serializes turns of the same conversation inside one process.

Turns for different channel keys never block each other. Locks are reference
counted and disappear once no turn holds or waits for them.
*/
package session
