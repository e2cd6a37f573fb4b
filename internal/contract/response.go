package contract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/alanyoungcy/truemarket/internal/domain"
)

// ResponseKind records which shape the chain client returned.
type ResponseKind int

const (
	// KindText is a raw JSON string.
	KindText ResponseKind = iota
	// KindStructured is an already decoded value.
	KindStructured
)

func (k ResponseKind) String() string {
	if k == KindStructured {
		return "structured"
	}
	return "text"
}

// Response is an application response normalised to JSON bytes. Both input
// shapes read identically through Get and Data.
type Response struct {
	kind ResponseKind
	raw  []byte
}

// NormalizeResponse accepts whatever Application.Query produced.
func NormalizeResponse(v any) (Response, error) {
	var r Response
	switch t := v.(type) {
	case string:
		r = Response{kind: KindText, raw: []byte(t)}
	case []byte:
		r = Response{kind: KindText, raw: t}
	case json.RawMessage:
		r = Response{kind: KindText, raw: t}
	case nil:
		return Response{}, fmt.Errorf("contract: %w: empty response", domain.ErrMalformedResponse)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return Response{}, fmt.Errorf("contract: %w: %w", domain.ErrMalformedResponse, err)
		}
		r = Response{kind: KindStructured, raw: b}
	}
	if !gjson.ValidBytes(r.raw) {
		return Response{}, fmt.Errorf("contract: %w: invalid JSON", domain.ErrMalformedResponse)
	}
	return r, nil
}

func (r Response) Kind() ResponseKind { return r.kind }

// Raw returns the JSON bytes.
func (r Response) Raw() []byte { return r.raw }

// Get reads a gjson path from the top of the response.
func (r Response) Get(path string) gjson.Result {
	return gjson.GetBytes(r.raw, path)
}

// Data reads a path under the GraphQL "data" object.
func (r Response) Data(path string) gjson.Result {
	return r.Get("data." + path)
}

// Errors returns GraphQL error messages carried in the body.
func (r Response) Errors() []string {
	var out []string
	r.Get("errors").ForEach(func(_, e gjson.Result) bool {
		out = append(out, e.Get("message").String())
		return true
	})
	return out
}

// Decode unmarshals the value at path into dst.
func (r Response) Decode(path string, dst any) error {
	res := r.Get(path)
	if !res.Exists() {
		return fmt.Errorf("contract: %w: %s missing", domain.ErrMalformedResponse, path)
	}
	if err := json.Unmarshal([]byte(res.Raw), dst); err != nil {
		return fmt.Errorf("contract: decode %s: %w: %w", path, domain.ErrMalformedResponse, err)
	}
	return nil
}

func (r Response) String() string {
	return strings.TrimSpace(string(r.raw))
}
