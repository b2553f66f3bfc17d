package engine

import "fmt"

// DataFetchError wraps a market data failure.
type DataFetchError struct {
	Symbol    string
	Timeframe string
	Err       error
}

func (e *DataFetchError) Error() string {
	return fmt.Sprintf("fetch %s %s candles: %v", e.Symbol, e.Timeframe, e.Err)
}

func (e *DataFetchError) Unwrap() error { return e.Err }

// InsufficientHistoryError means the last two indicator rows are not both usable.
type InsufficientHistoryError struct {
	Rows    int
	Defined int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history: %d rows, %d of the last two defined", e.Rows, e.Defined)
}

type ComputeError struct {
	Err error
}

func (e *ComputeError) Error() string {
	return fmt.Sprintf("compute indicators: %v", e.Err)
}

func (e *ComputeError) Unwrap() error { return e.Err }

// PanicError is a recovered panic from inside one iteration.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("cycle panicked: %v", e.Value)
}

func failureReason(err error) string {
	switch err.(type) {
	case *PanicError:
		return "panic"
	case *DataFetchError:
		return "fetch"
	case *InsufficientHistoryError:
		return "history"
	case *ComputeError:
		return "compute"
	default:
		return "ledger"
	}
}
