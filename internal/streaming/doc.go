/*
Package streaming sends stored media to HTTP clients in bounded chunks.

Media payloads can be several megabytes. A slow or vanished client must not
hold a handler goroutine forever, so every chunk write carries its own
timeout and the request context is checked between chunks.

# Usage

	err := streaming.ServeBlob(r.Context(), w, streaming.Blob{
		ContentType: rec.MimeType,
		Modified:    rec.Date,
		Data:        data,
	}, streaming.DefaultConfig())

ServeBlob sets Content-Type, Content-Length and Last-Modified before writing.
Once the status line is out, a failed stream can only be logged.

# Errors

  - ErrWriteTimeout: one chunk was not accepted within Config.WriteTimeout
  - ErrClientGone: the request context ended between or during chunks
*/
package streaming
