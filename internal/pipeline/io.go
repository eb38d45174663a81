package pipeline

import (
	"bytes"
	"encoding/base64"
	"io"
)

func bytesReader(b []byte) *bytes.Reader {
	return bytes.NewReader(b)
}

func readAllClose(r io.ReadCloser) ([]byte, error) {
	defer r.Close()
	return io.ReadAll(r)
}

func base64Encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
