/*
Package session implements session management and persistence orchestration.

A session is one editing canvas: its graph, its auto-chain pointer and the model
metadata submitted with it. The Manager serializes every read-modify-write of a session
behind a per-session lock (and optionally a distributed lock) so concurrent requests
against the same canvas never lose updates.
*/
package session
