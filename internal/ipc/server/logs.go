package server

import (
	"context"
	"sort"
	"sync"

	"github.com/servinel/daemon/internal/ipc/protocol"
	"github.com/servinel/daemon/internal/logbuf"
)

// handleLogs implements the one request that streams many responses: it
// replays each selected service's buffered history and, if requested,
// subscribes to each service's broadcast sender and follows until the
// client disconnects, the connection's context is cancelled, or every
// followed service's output has ended. An ended follow closes the
// connection without a trailing Ack.
//
// The subscriptions are opened only after history has been read and the
// store's guard released, so a handful of entries can appear twice (or,
// in the narrow window between the read and the subscribe, be missed)
// across the history/live boundary. Bounded by the subscriber channel
// capacity, this is an accepted tradeoff: holding the guard across the
// subscribe calls would violate the no-blocking-while-guarded rule.
func (s *Server) handleLogs(ctx context.Context, w *protocol.Writer, req protocol.LogsRequest) {
	appName, errResp := s.resolveApp(req.App)
	if errResp != nil {
		_ = w.WriteResponse(*errResp)
		return
	}

	names, err := s.store.Resolve(appName, req.Selector.ToState())
	if err != nil {
		_ = w.WriteResponse(protocol.Err(protocol.ErrKindNotFound, "%v", err))
		return
	}

	chunks := make([]protocol.LogChunk, 0, 64)
	for _, name := range names {
		history, err := s.store.ServiceHistory(appName, name, req.Tail)
		if err != nil {
			_ = w.WriteResponse(protocol.Err(protocol.ErrKindNotFound, "%v", err))
			return
		}
		for _, entry := range history {
			chunks = append(chunks, protocol.LogChunk{App: appName, Service: name, Entry: protocol.FromLogEntry(entry)})
		}
	}

	// Merged interleaves every selected service's history by timestamp;
	// unmerged keeps each service's block contiguous, in selector order
	// (the order chunks were appended above).
	if req.Merged {
		sort.SliceStable(chunks, func(i, j int) bool {
			return chunks[i].Entry.Timestamp < chunks[j].Entry.Timestamp
		})
	}

	for i := range chunks {
		if err := w.WriteResponse(protocol.Response{LogChunk: &chunks[i]}); err != nil {
			return
		}
	}

	if !req.Follow {
		_ = w.WriteResponse(protocol.OK())
		return
	}

	s.followLive(ctx, w, appName, names)
}

// followLive subscribes to each selected service's broadcast sender and
// pumps every subscriber into a single fan-in queue, writing each
// arriving chunk as a response line until the client disconnects or every
// subscribed service's broadcast sender has closed. Each
// subscriber's backlog is its own: a service that isn't running simply
// contributes nothing.
func (s *Server) followLive(ctx context.Context, w *protocol.Writer, appName string, names []string) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fanIn := make(chan protocol.LogChunk, 256)
	var wg sync.WaitGroup
	subscribed := 0
	for _, name := range names {
		tx, ok := s.super.LogSender(appName, name)
		if !ok {
			continue
		}
		ch, unsub := tx.Subscribe()
		subscribed++
		wg.Add(1)
		go func(service string, ch <-chan logbuf.LogEntry, unsub func()) {
			defer wg.Done()
			defer unsub()
			for {
				select {
				case <-ctx.Done():
					return
				case entry, ok := <-ch:
					if !ok {
						return
					}
					chunk := protocol.LogChunk{App: appName, Service: service, Entry: protocol.FromLogEntry(entry)}
					select {
					case fanIn <- chunk:
					case <-ctx.Done():
						return
					}
				}
			}
		}(name, ch, unsub)
	}

	if subscribed == 0 {
		// Nothing running to follow; hold the stream open until the
		// client hangs up.
		<-ctx.Done()
		return
	}

	go func() {
		wg.Wait()
		close(fanIn)
	}()

	for chunk := range fanIn {
		if err := w.WriteResponse(protocol.Response{LogChunk: &chunk}); err != nil {
			return
		}
	}
}
