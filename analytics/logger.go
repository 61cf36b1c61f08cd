package analytics

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogFileDataCollector struct {
	fileName string
	logger   *zap.Logger
}

func NewLogFileDataCollector(fileName string) (*LogFileDataCollector, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.StacktraceKey = ""
	fileEncoder := zapcore.NewJSONEncoder(encoderConfig)
	logFile, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	writer := zapcore.AddSync(logFile)
	core := zapcore.NewTee(zapcore.NewCore(fileEncoder, writer, zapcore.InfoLevel))
	logger := zap.New(core)
	return &LogFileDataCollector{
		fileName: fileName,
		logger:   logger,
	}, nil
}

func (lc *LogFileDataCollector) RecordActivitySuccess(processId string, instanceId string, activityId string, data map[string]any) {
	lc.logger.Info("activity completed", zap.String("process", processId), zap.String("instanceId", instanceId),
		zap.String("activity", activityId), zap.Any("data", data))
}

func (lc *LogFileDataCollector) RecordActivityFailure(processId string, instanceId string, activityId string, reason string) {
	lc.logger.Info("activity failed", zap.String("process", processId), zap.String("instanceId", instanceId),
		zap.String("activity", activityId), zap.String("reason", reason))
}

func (lc *LogFileDataCollector) RecordProcessEnd(processId string, instanceId string, state string, aggregate string) {
	lc.logger.Info("process ended", zap.String("process", processId), zap.String("instanceId", instanceId),
		zap.String("state", state), zap.String("aggregate", aggregate))
}
