package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/youtell/visrec-cli/internal/api"
	"github.com/youtell/visrec-cli/internal/config"
)

// HandleError processes an error and returns a user-friendly message with suggestions
func HandleError(err error) string {
	if err == nil {
		return ""
	}

	var msg strings.Builder

	var (
		httpErr      *api.HTTPError
		serErr       *api.SerializationError
		urlErr       *api.URLEncodingError
		transportErr *api.TransportError
	)

	switch {
	case errors.Is(err, config.ErrNotConfigured):
		msg.WriteString("Not authenticated.\n\n")
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Run: visrec auth login --api-key YOUR_KEY\n")
		msg.WriteString("  - Or export VISREC_API_KEY\n")

	case errors.As(err, &httpErr):
		fmt.Fprintf(&msg, "API error (HTTP %d): %s\n", httpErr.StatusCode, httpErr.MessageOr("no message"))
		if details := httpErr.MetadataString(); details != "" {
			fmt.Fprintf(&msg, "Details: %s\n", details)
		}
		msg.WriteString("\n")
		msg.WriteString(suggestionsForStatusCode(httpErr.StatusCode))
		if httpErr.RequestID != "" {
			fmt.Fprintf(&msg, "\nRequest ID: %s\n", httpErr.RequestID)
		}

	case errors.As(err, &serErr):
		fmt.Fprintf(&msg, "Could not process %s: %v\n\n", serErr.Values, serErr.Err)
		msg.WriteString("Suggestions:\n")
		if strings.HasPrefix(serErr.Values, "file ") {
			msg.WriteString("  - Check the file exists and is readable\n")
		} else {
			msg.WriteString("  - The service response had an unexpected shape\n")
			msg.WriteString("  - Check --version matches the service API version\n")
		}

	case errors.As(err, &urlErr):
		fmt.Fprintf(&msg, "Invalid identifier: %s\n\n", urlErr.Error())
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Check the classifier ID for invalid characters\n")

	case errors.As(err, &transportErr):
		msg.WriteString(transportMessage(transportErr))

	default:
		fmt.Fprintf(&msg, "Error: %s\n", err.Error())
	}

	return msg.String()
}

func transportMessage(err *api.TransportError) string {
	var msg strings.Builder
	text := err.Error()
	switch {
	case strings.Contains(text, "connection refused"):
		msg.WriteString("Connection refused.\n\n")
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Verify the service URL: visrec auth status\n")
		msg.WriteString("  - Check your network connection\n")
	case strings.Contains(text, "no such host"):
		msg.WriteString("DNS resolution failed.\n\n")
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Check the service URL spelling\n")
		msg.WriteString("  - Verify your DNS settings\n")
	case strings.Contains(text, "certificate"):
		msg.WriteString("TLS certificate error.\n\n")
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Verify the server's certificate is valid and not expired\n")
	case strings.Contains(text, "URL validation failed"):
		fmt.Fprintf(&msg, "Refusing to contact service: %v\n\n", err.Err)
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Use an https:// service URL\n")
		msg.WriteString("  - For local deployments pass --allow-private\n")
	default:
		fmt.Fprintf(&msg, "Request failed: %v\n\n", err.Err)
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Retry the command\n")
		msg.WriteString("  - Increase --timeout for large uploads\n")
	}
	return msg.String()
}

func suggestionsForStatusCode(code int) string {
	var suggestions strings.Builder
	suggestions.WriteString("Suggestions:\n")

	switch code {
	case 400:
		suggestions.WriteString("  - Check your request parameters\n")
		suggestions.WriteString("  - Use --debug to see the request\n")
	case 401:
		suggestions.WriteString("  - Your API key or access token may be invalid or expired\n")
		suggestions.WriteString("  - Run: visrec auth login\n")
	case 403:
		suggestions.WriteString("  - Your credentials lack permission for this action\n")
		suggestions.WriteString("  - Check the service instance plan\n")
	case 404:
		suggestions.WriteString("  - The classifier doesn't exist or was deleted\n")
		suggestions.WriteString("  - List classifiers: visrec classifiers list\n")
	case 413:
		suggestions.WriteString("  - The upload is too large\n")
		suggestions.WriteString("  - Split image archives into smaller batches\n")
	case 415, 422:
		suggestions.WriteString("  - The service rejected the input\n")
		suggestions.WriteString("  - Check image formats (jpg, png, zip)\n")
	case 429:
		suggestions.WriteString("  - Too many requests\n")
		suggestions.WriteString("  - Wait and retry, or lower --concurrency\n")
	case 500, 502, 503, 504:
		suggestions.WriteString("  - Server error - not your fault\n")
		suggestions.WriteString("  - Wait and retry\n")
	default:
		suggestions.WriteString("  - Use --debug for more details\n")
	}

	return suggestions.String()
}

// ExitWithError prints error with suggestions and exits
func ExitWithError(err error) {
	if err == nil {
		return
	}
	_, _ = fmt.Fprint(os.Stderr, HandleError(err))
	os.Exit(ExitCode(err))
}
