package pkg

import "errors"

// Configuration errors. The engine reports these by panicking with a
// wrapped sentinel: they indicate a programming mistake, and continuing
// would leave the controller acting on inconsistent register state.
var (
	// ErrLengthMismatch indicates both endpoints increment but disagree on
	// their element count.
	ErrLengthMismatch = errors.New("endpoint length mismatch")

	// ErrUndeterminedLength indicates neither endpoint reports an element
	// count, so the transfer length cannot be derived.
	ErrUndeterminedLength = errors.New("undetermined transfer length")

	// ErrTransferTooLong indicates the transfer exceeds what a single
	// hardware descriptor can move.
	ErrTransferTooLong = errors.New("transfer exceeds single-descriptor limit")

	// ErrZeroLength indicates a memory endpoint with no elements.
	ErrZeroLength = errors.New("zero-length memory endpoint")

	// ErrPeripheralNotRouted indicates a peripheral requested on a port
	// that has no request line wired to it.
	ErrPeripheralNotRouted = errors.New("peripheral not routed to port")

	// ErrTokenSpent indicates an ownership token was used after it was
	// consumed by a transfer.
	ErrTokenSpent = errors.New("channel token already consumed")

	// ErrTokenIssued indicates a second token was requested for a channel.
	ErrTokenIssued = errors.New("channel token already issued")

	// ErrChannelBusy indicates a transfer was started on a channel that
	// already has one in flight.
	ErrChannelBusy = errors.New("channel busy")

	// ErrTransferDone indicates an operation on a transfer that was already
	// torn down or handed to a completion callback.
	ErrTransferDone = errors.New("transfer already completed")

	// ErrNoInterruptRoute indicates callback completion was requested on a
	// port whose interrupt is not routed to the running core.
	ErrNoInterruptRoute = errors.New("no interrupt route for channel")

	// ErrInvalidChannel indicates a channel identity outside the engine.
	ErrInvalidChannel = errors.New("invalid channel")

	// ErrNilCallback indicates OnComplete was given a nil callback.
	ErrNilCallback = errors.New("nil completion callback")
)

// Engine construction errors, returned rather than raised.
var (
	// ErrNoPorts indicates an engine configured without any port.
	ErrNoPorts = errors.New("no DMA ports configured")

	// ErrNilRegisters indicates a port without a register file.
	ErrNilRegisters = errors.New("port has no register file")

	// ErrTooManyChannels indicates a port wider than a status bitmap.
	ErrTooManyChannels = errors.New("too many channels on port")

	// ErrNoInterruptController indicates a routed port with no controller
	// to attach its handler to.
	ErrNoInterruptController = errors.New("no interrupt controller")
)

// Hardware transfer errors.
var (
	// ErrBusError indicates the controller flagged a bus error on the
	// channel instead of reaching terminal count.
	ErrBusError = errors.New("DMA bus error")

	// ErrPending indicates the transfer has not reached terminal count.
	ErrPending = errors.New("transfer pending")
)

// TransferStatus represents the completion status of a DMA transfer.
type TransferStatus int

// Transfer status values.
const (
	TransferStatusPending  TransferStatus = iota // Not yet observed complete
	TransferStatusSuccess                        // Terminal count reached
	TransferStatusBusError                       // Controller signaled a bus error
)

// String returns a string representation of the transfer status.
func (s TransferStatus) String() string {
	switch s {
	case TransferStatusPending:
		return "pending"
	case TransferStatusSuccess:
		return "success"
	case TransferStatusBusError:
		return "bus error"
	default:
		return "unknown"
	}
}

// Error returns the corresponding error for the transfer status.
func (s TransferStatus) Error() error {
	switch s {
	case TransferStatusSuccess:
		return nil
	case TransferStatusPending:
		return ErrPending
	default:
		return ErrBusError
	}
}
