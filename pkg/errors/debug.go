package errors

import stdErrors "errors"

// ErrorDump flattens an error chain for structured logging.
type ErrorDump struct {
	Code       Code
	TopMessage string
	Chain      []string
}

// Dump walks the cause chain and returns a loggable summary.
func Dump(err error) ErrorDump {
	dump := ErrorDump{Code: CodeInternal}
	if err == nil {
		return dump
	}

	dump.TopMessage = err.Error()
	if typed := As(err); typed != nil {
		dump.Code = typed.Code()
	}

	for cur := err; cur != nil; cur = stdErrors.Unwrap(cur) {
		dump.Chain = append(dump.Chain, cur.Error())
	}
	return dump
}
