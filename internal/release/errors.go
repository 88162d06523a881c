package release

import "errors"

// Error taxonomy shared by every stage of the pipeline. Callers classify
// wrapped errors with errors.Is.
var (
	// ErrSourceUnavailable means the remote document could not be fetched
	// (network error, timeout, non-2xx status).
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrParseFailed means the document was fetched but had an unexpected shape.
	ErrParseFailed = errors.New("parse failed")

	// ErrTranslationFailed is advisory; processing continues without translation.
	ErrTranslationFailed = errors.New("translation failed")

	// ErrDeliveryFailed means a message chunk did not reach the transport.
	// The failure is assumed transient unless it also matches ErrDeliveryRejected.
	ErrDeliveryFailed = errors.New("delivery failed")

	// ErrDeliveryRejected is a terminal delivery failure that retrying will not fix
	// (chat not found, bot blocked, notifier not configured).
	ErrDeliveryRejected = &wrapped{msg: "delivery rejected", inner: ErrDeliveryFailed}

	// ErrStateIO means a durable state record could not be read or written.
	ErrStateIO = errors.New("state i/o error")
)

type wrapped struct {
	msg   string
	inner error
}

func (w *wrapped) Error() string { return w.msg }
func (w *wrapped) Unwrap() error { return w.inner }

// IsTerminalDelivery reports whether a delivery error should be accepted as final
func IsTerminalDelivery(err error) bool {
	return errors.Is(err, ErrDeliveryRejected)
}
