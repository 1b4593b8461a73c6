// Package common contains shared constants and sentinel errors used across
// Reelproof components.
package common

// AuthorizationHeaderName is the HTTP header carrying the bearer access token
// on outbound API requests.
const AuthorizationHeaderName = "Authorization"

// UploadOffsetHeaderName carries the byte offset of a chunk within a
// resumable upload, both on PATCH requests and HEAD responses.
const UploadOffsetHeaderName = "Upload-Offset"

// UploadLengthHeaderName carries the total upload size when a resumable
// upload is registered.
const UploadLengthHeaderName = "Upload-Length"
