package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/JonMunkholm/explorer/internal/core"
)

// errNoFile is matched by core.MapError's "no file provided" pattern.
var errNoFile = fmt.Errorf("%w: no file provided", errInvalidRequest)

// heartbeatInterval keeps idle progress streams alive through proxies.
const heartbeatInterval = 15 * time.Second

// handleUpload loads the multipart "file" part into the session. The part is
// streamed straight into the parser; nothing is buffered to disk.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)

	// Allow some room for multipart framing; the parser enforces the exact cap.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Ingest.MaxFileSize+1<<20)

	part, err := filePart(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer part.Close()

	// The request length includes multipart framing, so it only estimates
	// the file size.
	v, err := sess.LoadStream(withClient(r), part.FileName(), part, r.ContentLength)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, v)
}

type namedPart interface {
	io.ReadCloser
	FileName() string
}

// filePart returns the first multipart part named "file".
func filePart(r *http.Request) (namedPart, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" {
		return nil, fmt.Errorf("%w: expected multipart/form-data", errInvalidRequest)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidRequest, err)
	}

	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, errNoFile
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidRequest, err)
		}
		if p.FormName() == "file" && p.FileName() != "" {
			return p, nil
		}
		p.Close()
	}
}

// handleLoadSample loads generated stock data into the session.
func (s *Server) handleLoadSample(w http.ResponseWriter, r *http.Request) {
	v, err := sessionFrom(r).LoadSample(withClient(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, v)
}

// handleProgress streams load progress as server-sent events.
//
// The current state is sent first. Without ?wait=true the stream then ends
// unless a load is running; with it, the stream stays open until the next
// load finishes. Each stream ends with a "complete" event.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	wait := r.URL.Query().Get("wait") == "true"

	ch, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	flush := func() { _ = rc.Flush() }
	flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	seenLoading := false
	for {
		select {
		case p, ok := <-ch:
			if !ok {
				// Session closed.
				fmt.Fprint(w, "event: complete\ndata: {}\n\n")
				flush()
				return
			}

			data, _ := json.Marshal(p)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", p.Percent, data)
			flush()

			if p.State == core.StateLoading {
				seenLoading = true
				continue
			}
			if seenLoading || !wait {
				fmt.Fprintf(w, "event: complete\ndata: %s\n\n", data)
				flush()
				return
			}

		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flush()

		case <-r.Context().Done():
			return
		}
	}
}
