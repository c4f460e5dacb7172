package geoloqi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"

	"github.com/geoloqi/geoloqi-go/internal/api"
)

// Response is a decoded JSON object returned by the API. Error payloads
// such as {"error": "not_found"} are responses too.
//
// Numbers are kept as json.Number so large identifiers survive decoding.
type Response map[string]any

// HasError reports whether the payload carries a non-null "error" field.
func (r Response) HasError() bool {
	return r["error"] != nil
}

// ErrorCode returns the "error" field when it is a string.
func (r Response) ErrorCode() string {
	code, _ := r["error"].(string)
	return code
}

// ErrorDescription returns the "error_description" field, if any.
func (r Response) ErrorDescription() string {
	desc, _ := r["error_description"].(string)
	return desc
}

// Decode re-encodes the response into v.
func (r Response) Decode(v any) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// unmarshalJSON decodes a single JSON value, keeping numbers as json.Number.
func unmarshalJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}

// decodeResponse parses a raw body. A successful response with an empty
// body decodes to an empty Response.
func decodeResponse(raw *api.Response) (Response, error) {
	if len(raw.Body) == 0 && raw.OK() {
		return Response{}, nil
	}

	var resp Response
	if err := unmarshalJSON(raw.Body, &resp); err != nil {
		return nil, &ParseError{StatusCode: raw.StatusCode, Body: raw.Body, Err: err}
	}
	if resp == nil {
		return nil, &ParseError{StatusCode: raw.StatusCode, Body: raw.Body, Err: errors.New("response is not a JSON object")}
	}
	return resp, nil
}
