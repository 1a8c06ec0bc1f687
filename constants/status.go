package constants

// VerifyStatus is the outcome of probing a retrieval URL after registration.
type VerifyStatus string

// Stable values (these exact strings appear in logs).
const (
	VerifyStatusReachable   VerifyStatus = "REACHABLE"
	VerifyStatusUnreachable VerifyStatus = "UNREACHABLE" // non-2xx answer
	VerifyStatusFailed      VerifyStatus = "FAILED"      // transport error
)
