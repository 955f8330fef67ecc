package domain

import (
	"strconv"
	"time"
)

// NativeTransfer is a single SOL movement inside a notified transaction.
type NativeTransfer struct {
	FromAddress string
	ToAddress   string
	Lamports    uint64
}

// TransferEvent is one notified transaction carrying native transfers.
type TransferEvent struct {
	Signature string
	Type      string
	Timestamp time.Time
	Transfers []NativeTransfer
}

// TransferKey identifies a transfer across redeliveries of the same event.
// index is the transfer's position within the event, so identical transfers
// inside one transaction stay distinct.
func TransferKey(signature string, index int, t NativeTransfer) string {
	return signature + ":" + strconv.Itoa(index) + ":" + t.ToAddress + ":" + strconv.FormatUint(t.Lamports, 10)
}
