package domain

// State is a stage of the verification state machine.
//
// Transitions:
//
//	DirectQuery   -> Succeeded | TxSenderScan (logs found, minAmount set) | RawTopicQuery
//	RawTopicQuery -> Succeeded | TxSenderScan
//	TxSenderScan  -> Succeeded | AmountGate (logs found, minAmount set) | Failed
//	AmountGate    -> Succeeded | Failed
type State int

const (
	StateDirectQuery State = iota
	StateRawTopicQuery
	StateTxSenderScan
	StateAmountGate
	StateFailed
	StateSucceeded
)

func (s State) String() string {
	switch s {
	case StateDirectQuery:
		return "DirectQuery"
	case StateRawTopicQuery:
		return "RawTopicQuery"
	case StateTxSenderScan:
		return "TxSenderScan"
	case StateAmountGate:
		return "AmountGate"
	case StateFailed:
		return "Failed"
	case StateSucceeded:
		return "Succeeded"
	default:
		return "Unknown"
	}
}

func (s State) terminal() bool {
	return s == StateFailed || s == StateSucceeded
}
