package errprocess

import (
	"errors"
	"fmt"

	"thesis_realtime/pkg/logger"

	"go.uber.org/zap"
)

// Set logs errMsg and returns it as an error
func Set(errMsg string) error {
	logger.Log.Error(errMsg)
	return errors.New(errMsg)
}

// Wrap logs err with context and returns it wrapped, nil stays nil
func Wrap(err error, msg string, fields ...zap.Field) error {
	if err == nil {
		return nil
	}
	logger.Log.Error(msg, append(fields, zap.Error(err))...)
	return fmt.Errorf("%s: %w", msg, err)
}
