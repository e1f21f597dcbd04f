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
	logFile, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return newLogDataCollector(fileName, zapcore.AddSync(logFile)), nil
}

func newLogDataCollector(fileName string, writer zapcore.WriteSyncer) *LogFileDataCollector {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.StacktraceKey = "" // to hide stacktrace info
	fileEncoder := zapcore.NewJSONEncoder(encoderConfig)
	core := zapcore.NewCore(fileEncoder, writer, zapcore.InfoLevel)
	return &LogFileDataCollector{
		fileName: fileName,
		logger:   zap.New(core),
	}
}

// data is logged by key only; the bag can carry credentials.
func (lc *LogFileDataCollector) RecordStepSuccess(flowKind string, subjectId string, stepName string, step int, data map[string]any) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	lc.logger.Info("success", zap.String("flow", flowKind), zap.String("subject", subjectId), zap.String("step", stepName), zap.Int("stepIndex", step), zap.Strings("dataKeys", keys))
}

func (lc *LogFileDataCollector) RecordStepFailure(flowKind string, subjectId string, stepName string, step int, reason string) {
	lc.logger.Info("failure", zap.String("flow", flowKind), zap.String("subject", subjectId), zap.String("step", stepName), zap.Int("stepIndex", step), zap.String("reason", reason))
}

func (lc *LogFileDataCollector) RecordCommand(flowKind string, command string, outcome string) {
	lc.logger.Info("command", zap.String("flow", flowKind), zap.String("command", command), zap.String("outcome", outcome))
}
