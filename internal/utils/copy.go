package utils

import (
	"io"
	"net/http"
)

// CopyFlush copies src to w, flushing after every chunk so the client
// receives bytes as soon as upstream sends them.
func CopyFlush(w http.ResponseWriter, src io.Reader, size int) (int64, error) {
	buffer := make([]byte, size)
	flusher, _ := w.(http.Flusher)

	var written int64
	for {
		n, err := src.Read(buffer)
		if n > 0 {
			m, werr := w.Write(buffer[:n])
			written += int64(m)
			if werr != nil {
				return written, werr
			}

			if flusher != nil {
				flusher.Flush()
			}
		}

		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, err
		}
	}
}
