// Package assignment decides which of the two variants serves a request.
//
// A client that presents a variant cookie keeps its variant (sticky
// assignment). A client without one gets a fresh assignment chosen by a
// Policy over the per-variant Counters; the default least-assigned policy
// sends the client to the variant with fewer recorded assignments, breaking
// ties toward variant 0. Sticky and fresh assignments both count, so repeat
// traffic from long-lived clients is compensated for when new clients arrive.
//
// Counters are owned by the caller and injected into the Engine. They live as
// long as the process: a restarted instance starts again from zero, and
// separate instances balance independently.
package assignment
