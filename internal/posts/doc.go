// Package posts keeps the in-memory index of posts loaded by a session.
//
// The index records thread membership (every post's OP) and the reply
// graph in both directions: Links are the posts a post quotes, Backlinks
// are the posts quoting it. Reply edges may point at posts that are not
// loaded; readers skip those.
package posts
