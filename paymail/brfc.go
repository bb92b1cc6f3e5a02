package paymail

import (
	"crypto/sha256"
	"encoding/hex"
)

// ComputeBRFCID computes a BRFC (Bitcoin Request for Comments) ID. The ID is
// the first 6 bytes of SHA256d(title + author + version), hex encoded.
func ComputeBRFCID(title, author, version string) string {
	data := []byte(title + author + version)
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	return hex.EncodeToString(second[:6])
}

// BRFCVoicemailIdentity is the capability a Paymail host advertises when it
// serves a dedicated voicemail identity key. Its template answers in the PKI
// response format and is preferred over the generic PKI key.
var BRFCVoicemailIdentity = ComputeBRFCID("Voicemail Identity", "BitFS", "1.0")
