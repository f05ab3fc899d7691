package network

import "fmt"

// SessionState tracks a connection's progress from the initial handshake to
// being fully spawned in the world. States only ever advance; the transition
// guard makes regressions (and ReadyToSpawn without LoggedIn) unrepresentable.
type SessionState int32

const (
	// StateHandshaking is the initial state of every accepted connection.
	StateHandshaking SessionState = iota
	// StateEncrypting is entered only when the server runs in online mode,
	// while the encryption handshake collaborator negotiates with the client.
	StateEncrypting
	// StateLoggedIn means the player entity exists and is registered in a world.
	StateLoggedIn
	// StateReadyToSpawn means the initial terrain burst has been physically
	// transmitted and the client can be trusted to render its surroundings.
	StateReadyToSpawn
)

func (s SessionState) String() string {
	switch s {
	case StateHandshaking:
		return "handshaking"
	case StateEncrypting:
		return "encrypting"
	case StateLoggedIn:
		return "logged in"
	case StateReadyToSpawn:
		return "ready to spawn"
	}
	return fmt.Sprintf("unknown (%d)", int32(s))
}

// validTransition reports whether a session may move from one state to
// another. Encrypting is optional, everything else is strictly sequential.
func validTransition(from, to SessionState) bool {
	switch to {
	case StateEncrypting:
		return from == StateHandshaking
	case StateLoggedIn:
		return from == StateHandshaking || from == StateEncrypting
	case StateReadyToSpawn:
		return from == StateLoggedIn
	}
	return false
}
