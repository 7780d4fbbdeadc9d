package api

import "github.com/tidwall/gjson"

// ErrorDecoder turns a non-2xx response into an HTTPError. It must never fail:
// a body it cannot interpret yields an HTTPError with only the status set.
type ErrorDecoder func(statusCode int, body []byte) *HTTPError

// DecodeError interprets error bodies the way the visual recognition service
// shapes them, which differs per status code:
//
//	403  {"status": "...", "statusInfo": "..."}
//	404  {"error": {"description": "...", "error_id": "..."}}
//	413  {"Error": "..."}
//	*    {"error": "..."}
//
// Only string-typed fields count. Metadata is set only when a field was
// extracted.
func DecodeError(statusCode int, body []byte) *HTTPError {
	httpErr := &HTTPError{StatusCode: statusCode}
	if !gjson.ValidBytes(body) {
		return httpErr
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return httpErr
	}

	metadata := map[string]string{}
	switch statusCode {
	case 403:
		status, statusInfo := root.Get("status"), root.Get("statusInfo")
		if isString(status) && isString(statusInfo) {
			httpErr.Message = stringPtr(statusInfo.Str)
			metadata["status"] = status.Str
			metadata["statusInfo"] = statusInfo.Str
		}
	case 404:
		errObj := root.Get("error")
		if errObj.IsObject() {
			description, errorID := errObj.Get("description"), errObj.Get("error_id")
			if isString(description) && isString(errorID) {
				httpErr.Message = stringPtr(description.Str)
				metadata["description"] = description.Str
				metadata["errorID"] = errorID.Str
			}
		}
	case 413:
		// Capitalized key on this status only.
		if message := root.Get("Error"); isString(message) {
			httpErr.Message = stringPtr(message.Str)
		}
	default:
		if message := root.Get("error"); isString(message) {
			httpErr.Message = stringPtr(message.Str)
		}
	}

	if len(metadata) > 0 {
		httpErr.Metadata = metadata
	}
	return httpErr
}

func isString(r gjson.Result) bool {
	return r.Exists() && r.Type == gjson.String
}
