// Package hide maintains the set of hidden posts.
//
// A post is hidden either because the user hid it directly or because it
// depends on a hidden post: it replies to one (when recursive hiding is
// enabled) or it belongs to a hidden thread. Only direct user hides are
// persisted; dependent hides are recomputed from them and the currently
// loaded post graph every session.
//
// Propagation walks the graph with an explicit work-list. A post's hidden
// flag doubles as its visited marker, so the walk terminates on any finite
// graph including ones with reply cycles.
package hide
