package binancerest

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/adshao/go-binance/v2/common"
	"github.com/bitly/go-simplejson"

	"futuresProxy/internal/ports"
)

// fallbackMessage is reported when an error payload carries no msg of its own.
const fallbackMessage = "Unexpected response"

// decodeList decodes body into out when its top level is a JSON array.
// Any other JSON value is returned as an upstream API error; a body that is
// not JSON at all is returned as err.
func decodeList(status int, body []byte, out interface{}) (*common.APIError, error) {
	js, err := parse(status, body)
	if err != nil {
		return nil, err
	}
	if _, err := js.Array(); err != nil {
		return apiErrorFrom(js), nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return nil, fmt.Errorf("%w: decoding array: %w", ports.ErrUpstreamShape, err)
	}
	return nil, nil
}

// decodeField decodes the array stored under field of a top-level JSON object.
func decodeField(status int, body []byte, field string, out interface{}) (*common.APIError, error) {
	js, err := parse(status, body)
	if err != nil {
		return nil, err
	}
	sub, ok := js.CheckGet(field)
	if !ok {
		return apiErrorFrom(js), nil
	}
	if _, err := sub.Array(); err != nil {
		return apiErrorFrom(js), nil
	}
	raw, err := sub.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("%w: re-encoding %s: %w", ports.ErrUpstreamShape, field, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %w", ports.ErrUpstreamShape, field, err)
	}
	return nil, nil
}

func parse(status int, body []byte) (*simplejson.Json, error) {
	js, err := simplejson.NewJson(body)
	if err != nil {
		if status >= http.StatusInternalServerError {
			return nil, fmt.Errorf("%w: status %d with non-JSON body", ports.ErrUpstreamUnavailable, status)
		}
		return nil, fmt.Errorf("%w: status %d: body is not JSON: %w", ports.ErrUpstreamShape, status, err)
	}
	return js, nil
}

func apiErrorFrom(js *simplejson.Json) *common.APIError {
	msg := js.Get("msg").MustString()
	if msg == "" {
		msg = fallbackMessage
	}
	return &common.APIError{
		Code:    js.Get("code").MustInt64(),
		Message: msg,
	}
}
