package dist

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"io"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
)

// Encoding names understood by the handler.
const (
	EncodingBrotli  = "br"
	EncodingGzip    = "gzip"
	EncodingDeflate = "deflate"
)

var compressors = map[string]func(io.Writer) (io.WriteCloser, error){
	EncodingBrotli: func(w io.Writer) (io.WriteCloser, error) {
		return brotli.NewWriterLevel(w, brotli.DefaultCompression), nil
	},
	EncodingGzip: func(w io.Writer) (io.WriteCloser, error) {
		return gzip.NewWriterLevel(w, gzip.DefaultCompression)
	},
	// HTTP "deflate" is the zlib format.
	EncodingDeflate: func(w io.Writer) (io.WriteCloser, error) {
		return zlib.NewWriterLevel(w, zlib.DefaultCompression)
	},
}

// Supported reports whether enc can be produced.
func Supported(enc string) bool {
	_, ok := compressors[enc]
	return ok
}

// negotiate picks the encoding to use from offered, which is in server
// preference order. Client weights decide first; ties go to the server's
// order. q=0 excludes an encoding and "*" covers encodings not listed.
// The empty string means identity.
func negotiate(acceptEncoding string, offered []string) string {
	if acceptEncoding == "" || len(offered) == 0 {
		return ""
	}

	weights := make(map[string]float64)
	wildcard := -1.0
	for _, part := range strings.Split(acceptEncoding, ",") {
		name, params, _ := strings.Cut(part, ";")
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		q := 1.0
		for _, p := range strings.Split(params, ";") {
			k, v, ok := strings.Cut(p, "=")
			if !ok || !strings.EqualFold(strings.TrimSpace(k), "q") {
				continue
			}
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil || f < 0 {
				f = 0
			}
			q = f
		}
		if name == "*" {
			wildcard = q
		} else {
			weights[name] = q
		}
	}

	best, bestQ := "", 0.0
	for _, enc := range offered {
		q, ok := weights[enc]
		if !ok {
			if wildcard < 0 {
				continue
			}
			q = wildcard
		}
		if q > bestQ {
			best, bestQ = enc, q
		}
	}
	return best
}

func compress(enc string, body []byte) ([]byte, error) {
	newWriter, ok := compressors[enc]
	if !ok {
		return nil, errUnsupportedEncoding(enc)
	}

	var buf bytes.Buffer
	zw, err := newWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(body); err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type errUnsupportedEncoding string

func (e errUnsupportedEncoding) Error() string {
	return "unsupported encoding " + strconv.Quote(string(e))
}
