package httpx

import (
	"strconv"

	"github.com/youfantan/Nexus/internal/bufpool"
)

// WriteResponse frames resp onto pool: the status line, each header in
// insertion order, a terminating blank line, then the body. Content-Length
// is injected if resp has a non-empty body and no explicit Content-Length
// header was already set. pool must have AutoExpand set, since the encoded
// size generally isn't known ahead of the write.
func WriteResponse(pool *bufpool.Pool, resp Response) error {
	if len(resp.Body) > 0 && !resp.Headers.Has("Content-Length") {
		resp.Headers.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	}

	if _, err := pool.WriteNext([]byte("HTTP/1.1 " + resp.Status + "\r\n")); err != nil {
		return err
	}

	var writeErr error
	resp.Headers.Each(func(name, value string) {
		if writeErr != nil {
			return
		}
		_, writeErr = pool.WriteNext([]byte(name + ": " + value + "\r\n"))
	})
	if writeErr != nil {
		return writeErr
	}

	if _, err := pool.WriteNext([]byte("\r\n")); err != nil {
		return err
	}

	if len(resp.Body) > 0 {
		if _, err := pool.WriteNext(resp.Body); err != nil {
			return err
		}
	}
	return nil
}
