package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

// Tracking tokens are an HMAC over the message ID so tracking endpoints can
// reject forged hits without a database lookup.

func trackingToken(secret, messageID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(messageID))
	return base64.URLEncoding.EncodeToString(mac.Sum(nil))[:20]
}

// ValidTrackingToken verifies a token produced by trackingToken
func ValidTrackingToken(secret, messageID, token string) bool {
	return hmac.Equal([]byte(trackingToken(secret, messageID)), []byte(token))
}

// TrackingPixelURL generates a tracking pixel URL for email opens
func TrackingPixelURL(baseURL, secret, messageID string) string {
	return fmt.Sprintf("%s/track/open/%s/%s", baseURL, messageID, trackingToken(secret, messageID))
}

// ClickTrackURL generates a tracked redirect URL for a link
func ClickTrackURL(baseURL, secret, messageID, originalURL string) string {
	return fmt.Sprintf("%s/track/click/%s/%s?url=%s",
		baseURL, messageID, trackingToken(secret, messageID), url.QueryEscape(originalURL))
}

// UnsubscribeURL generates the one-click unsubscribe link for a contact
func UnsubscribeURL(baseURL, secret, messageID string) string {
	return fmt.Sprintf("%s/track/unsubscribe/%s/%s", baseURL, messageID, trackingToken(secret, messageID))
}

// InjectTracking rewrites links for click tracking and appends the open
// pixel and unsubscribe footer to HTML email content.
func InjectTracking(htmlContent, baseURL, secret, messageID string) string {
	modified := injectClickTracking(htmlContent, baseURL, secret, messageID)

	pixel := fmt.Sprintf(`<img src="%s" alt="" width="1" height="1" style="display:none">`,
		TrackingPixelURL(baseURL, secret, messageID))
	footer := fmt.Sprintf(`<p style="font-size:11px;color:#999"><a href="%s">Unsubscribe</a></p>`,
		UnsubscribeURL(baseURL, secret, messageID))

	return modified + footer + pixel
}

func injectClickTracking(html, baseURL, secret, messageID string) string {
	// Simplified rewriting; an HTML parser would be more robust for nested
	// or single-quoted attributes.
	startTag := "<a href=\""
	endTag := "\""
	offset := 0

	for {
		startIdx := strings.Index(html[offset:], startTag)
		if startIdx == -1 {
			break
		}
		startIdx += offset + len(startTag)

		endIdx := strings.Index(html[startIdx:], endTag)
		if endIdx == -1 {
			break
		}
		endIdx += startIdx

		originalURL := html[startIdx:endIdx]
		if strings.HasPrefix(originalURL, baseURL+"/track/") {
			offset = endIdx
			continue
		}
		trackedURL := ClickTrackURL(baseURL, secret, messageID, originalURL)

		html = html[:startIdx] + trackedURL + html[endIdx:]
		offset = startIdx + len(trackedURL)
	}

	return html
}
