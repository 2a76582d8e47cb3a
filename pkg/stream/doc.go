// Package stream reassembles a backend's server-sent event stream into one
// complete assistant message.
//
// A Reassembler is fed raw body chunks in arrival order. Chunks need not line
// up with frame boundaries: partial frames are buffered until the blank-line
// delimiter arrives. Each complete frame is decoded and merged into the
// accumulating message, and client-facing Events are returned for content and
// tool-call deltas.
//
// Completion happens on the "[DONE]" terminator or when the caller calls
// Finish (end of body, cancellation, or backend error). After completion all
// further input is ignored.
//
// Basic usage:
//
//	r := stream.NewReassembler()
//	for chunk := range chunks {
//	    for _, ev := range r.Feed(chunk) {
//	        send(ev)
//	    }
//	    if r.Completed() {
//	        break
//	    }
//	}
//	msg := r.Finish(stream.ReasonEOF)
package stream
