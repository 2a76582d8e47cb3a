// Package relay runs one conversational turn end to end.
//
// An Orchestrator ties the session store, the backend registry and the
// stream reassembler together. For every turn it validates the request,
// serializes access to the session, normalizes the message list against the
// stored history, calls the backend and persists the updated history.
//
// # Non-streaming turns
//
// The backend's JSON reply is returned to the client with a session_id field
// added. The first choice's message is appended to the history before the
// reply is returned.
//
// # Streaming turns
//
// HandleTurn returns a Response whose Events channel already holds a session
// event. A goroutine reads the backend body, feeds it through a
// stream.Reassembler, forwards delta events, persists the assembled message
// and finishes with a done event before closing the channel:
//
//	resp := orch.HandleTurn(ctx, &relay.TurnRequest{
//	    SessionID: "s1",
//	    Messages:  []chat.Message{{Role: chat.RoleUser, Content: "hi"}},
//	    Stream:    true,
//	})
//	for ev := range resp.Events {
//	    writeEvent(w, ev)
//	}
//
// A client that goes away stops forwarding, but whatever content arrived is
// still persisted.
//
// # Errors
//
// Validation failures return 400 before any backend call. Backend failures
// return 502, or 504 on timeout, and leave the session unchanged. Persistence
// failures are logged and counted but never fail the turn.
package relay
