package zap

import "strings"

// phoenixd externalId prefixes. The webhook path tells zaps from plain LNURL
// payments by them.
const (
	ZapPrefix   = "zap-"
	LnurlPrefix = "lnurl-"
)

func ZapExternalID(eventID string) string {
	return ZapPrefix + eventID
}

func LnurlExternalID(metadataHash string) string {
	return LnurlPrefix + metadataHash
}

func IsZap(externalID string) bool {
	return strings.HasPrefix(externalID, ZapPrefix)
}

// EventID returns the zap request id carried by a zap external id.
func EventID(externalID string) (string, bool) {
	if !IsZap(externalID) {
		return "", false
	}
	return strings.TrimPrefix(externalID, ZapPrefix), true
}
