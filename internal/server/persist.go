package server

import (
	"context"
	"log"
	"time"

	"backend-mtbtrainer/internal/collection"
	"backend-mtbtrainer/internal/recording"
)

// flushIdle is how long Flush waits for a request still being delivered by
// the controller after the save queue overflowed.
var flushIdle = 100 * time.Millisecond

// Persist drains save requests into the export directory and, when
// postgres is configured, the recordings table until ctx is done. A request
// taken off the queue is written in full even if ctx is cancelled meanwhile.
// Failures are logged and not retried.
func (s *Server) Persist(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-s.Controller.SaveRequests():
			s.persist(context.WithoutCancel(ctx), req)
		}
	}
}

// Flush persists queued requests, e.g. after the final Stop. It returns once
// no request has arrived for flushIdle or ctx is done.
func (s *Server) Flush(ctx context.Context) {
	idle := time.NewTimer(flushIdle)
	defer idle.Stop()
	for {
		select {
		case req := <-s.Controller.SaveRequests():
			s.persist(ctx, req)
			idle.Reset(flushIdle)
		case <-idle.C:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) persist(ctx context.Context, req collection.SaveRequest) {
	if s.Exports != nil {
		name, err := s.Exports.Write(req.SuggestedFileName, req.Events)
		if err != nil {
			log.Printf("persist: export %s: %v", req.SuggestedFileName, err)
		} else {
			log.Printf("persist: wrote %s (%d events)", name, len(req.Events))
		}
	}

	if s.Recordings != nil {
		sum, err := s.Recordings.Save(ctx, recording.Recording{
			FileName:  req.SuggestedFileName,
			StartedAt: req.StartedAt,
			StoppedAt: req.StoppedAt,
			Events:    req.Events,
		})
		if err != nil {
			log.Printf("persist: record session %s: %v", req.SessionID, err)
			return
		}
		log.Printf("persist: recorded session %s as %s", req.SessionID, sum.ID)
	}
}
