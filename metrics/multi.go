package metrics

// MultiSink duplicates records to several sinks. The first error is returned
// after every sink has been attempted.
type MultiSink []SwapSink

func (m MultiSink) RecordSwapCommitted(stationID, batteryType string) error {
	var first error
	for _, s := range m {
		if err := s.RecordSwapCommitted(stationID, batteryType); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m MultiSink) RecordConflict(reason string) error {
	var first error
	for _, s := range m {
		if err := s.RecordConflict(reason); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m MultiSink) RecordCancellation(kind string, partialRevert bool) error {
	var first error
	for _, s := range m {
		if err := s.RecordCancellation(kind, partialRevert); err != nil && first == nil {
			first = err
		}
	}
	return first
}
