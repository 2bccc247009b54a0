/*
Package streaming guards HTTP response bodies against slow or vanished
clients.

A TimeoutWriter wraps an http.ResponseWriter. Large writes are split into
chunks and each chunk gets a fresh write deadline through
http.ResponseController, so a client that stops reading fails the write
after WriteTimeout instead of pinning the handler, and with it a cache
handle, indefinitely. A cancelled request context stops the write between
chunks.

# Usage

	tw := streaming.NewTimeoutWriter(r.Context(), w, streaming.DefaultConfig())
	defer tw.Close()
	http.ServeContent(tw, r, "", time.Time{}, bytes.NewReader(data))

Errors returned by Write wrap ErrWriteTimeout when a deadline passed and
ErrClientGone when the request context ended.

Writers that do not support deadlines, such as httptest.ResponseRecorder,
are written to without them.
*/
package streaming
