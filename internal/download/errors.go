package download

import "fmt"

// TransferError reports a failed artifact transfer.
type TransferError struct {
	URL  string
	Path string
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("download %s to %s: %v", e.URL, e.Path, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}
